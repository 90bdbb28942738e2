package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rivoli-ai/andy-agentic-sub001/internal/agent"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// ollamaChatRequest is the local-inference chat request body.
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OllamaProvider implements agent.LLMProvider for local inference servers
// speaking the Ollama NDJSON chat dialect. The dialect streams one JSON
// object per line carrying message.content (or a top-level response field)
// and signals completion with done: true. It requires no credential and
// accepts no tool definitions.
type OllamaProvider struct {
	BaseProvider

	baseURL      string
	defaultModel string
	httpClient   *http.Client
	logger       *slog.Logger
}

var _ agent.LLMProvider = (*OllamaProvider)(nil)
var _ agent.LLMProvider = (*OpenAIProvider)(nil)

// NewOllamaProvider creates a local-inference provider. An empty baseURL
// selects the conventional localhost endpoint.
func NewOllamaProvider(baseURL, defaultModel string, logger *slog.Logger) *OllamaProvider {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaProvider{
		BaseProvider: NewBaseProvider("ollama", 3, time.Second),
		baseURL:      baseURL,
		defaultModel: strings.TrimSpace(defaultModel),
		httpClient:   newHTTPClient(),
		logger:       logger.With("provider", "ollama"),
	}
}

// SupportsTools reports that this dialect cannot carry tool definitions.
func (p *OllamaProvider) SupportsTools() bool {
	return false
}

// Complete sends a streaming chat request to the local server. Transport
// failures surface as a terminal "Error: " chunk on the returned channel.
func (p *OllamaProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.defaultModel
	}

	body := ollamaChatRequest{
		Model:    model,
		Stream:   true,
		Messages: p.convertMessages(req),
	}
	options := make(map[string]any)
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.TopP > 0 {
		options["top_p"] = req.TopP
	}
	if len(options) > 0 {
		body.Options = options
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	chunks := make(chan *agent.CompletionChunk)
	go func() {
		respBody, err := p.open(ctx, payload)
		if err != nil {
			defer close(chunks)
			p.logger.WarnContext(ctx, "chat request failed", "model", model, "error", err)
			sendError(ctx, chunks, err.Error())
			return
		}
		p.processStream(ctx, respBody, chunks)
	}()
	return chunks, nil
}

func (p *OllamaProvider) open(ctx context.Context, payload []byte) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := p.Retry(ctx, isRetryableError, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.baseURL+"/api/chat", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			detail := drainBody(resp.Body)
			resp.Body.Close()
			if detail != "" {
				return fmt.Errorf("chat request failed with status %d: %s", resp.StatusCode, detail)
			}
			return fmt.Errorf("chat request failed with status %d", resp.StatusCode)
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// processStream relays NDJSON content lines as they arrive. The dialect's
// in-band error field already arrives from the parser in terminal form, so
// it passes through like any other content.
func (p *OllamaProvider) processStream(ctx context.Context, body io.ReadCloser, chunks chan<- *agent.CompletionChunk) {
	defer close(chunks)
	defer body.Close()

	finished := false

	send := func(c *agent.CompletionChunk) bool {
		select {
		case chunks <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	err := scanStream(ctx, body, localChatParser{}, func(ev StreamEvent) bool {
		switch ev.Type {
		case EventContent:
			return send(&agent.CompletionChunk{Text: ev.Text})
		case EventDone:
			finished = send(&agent.CompletionChunk{
				Done:         true,
				InputTokens:  ev.InputTokens,
				OutputTokens: ev.OutputTokens,
			})
			return finished
		}
		return true
	})

	if finished {
		return
	}
	if err != nil {
		sendError(ctx, chunks, err.Error())
		return
	}
	// Connection closed without done: true; end the sequence cleanly.
	send(&agent.CompletionChunk{Done: true})
}

func (p *OllamaProvider) convertMessages(req *agent.CompletionRequest) []ollamaChatMessage {
	result := make([]ollamaChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		result = append(result, ollamaChatMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		result = append(result, ollamaChatMessage{Role: msg.Role, Content: msg.Content})
	}
	return result
}
