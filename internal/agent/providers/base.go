package providers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rivoli-ai/andy-agentic-sub001/internal/agent"
)

// BaseProvider holds the retry configuration shared by all providers.
type BaseProvider struct {
	name       string
	maxRetries int
	retryDelay time.Duration
}

// NewBaseProvider creates a base provider with sane defaults.
func NewBaseProvider(name string, maxRetries int, retryDelay time.Duration) BaseProvider {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return BaseProvider{
		name:       name,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Name returns the provider's registry name.
func (b *BaseProvider) Name() string {
	return b.name
}

// Retry executes op with linear backoff while isRetryable returns true.
func (b *BaseProvider) Retry(ctx context.Context, isRetryable func(error) bool, op func() error) error {
	if op == nil {
		return nil
	}
	var lastErr error
	for attempt := 1; attempt <= b.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if isRetryable == nil || !isRetryable(err) {
			return err
		}
		if attempt >= b.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retryDelay * time.Duration(attempt)):
		}
	}
	return lastErr
}

// isRetryableError classifies transient failures worth another attempt:
// rate limits, server-side 5xx responses, and timeouts.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") {
		return true
	}
	if strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504") {
		return true
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return true
	}
	return false
}

// sendError emits the terminal failure form of a stream: a single text chunk
// prefixed with "Error: " followed by a Done chunk. Callers close the channel
// afterwards; nothing else may be sent.
func sendError(ctx context.Context, chunks chan<- *agent.CompletionChunk, msg string) {
	select {
	case chunks <- &agent.CompletionChunk{Text: "Error: " + msg}:
	case <-ctx.Done():
		return
	}
	select {
	case chunks <- &agent.CompletionChunk{Done: true}:
	case <-ctx.Done():
	}
}

// drainBody reads a bounded prefix of an error response body for diagnostics.
func drainBody(r io.Reader) string {
	const limit = 4 * 1024
	data, _ := io.ReadAll(io.LimitReader(r, limit))
	return strings.TrimSpace(string(data))
}

// newHTTPClient builds the streaming HTTP client providers share. No overall
// timeout is set; long-lived streams are bounded by the request context.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
