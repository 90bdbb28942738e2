package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rivoli-ai/andy-agentic-sub001/internal/agent"
	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider implements agent.LLMProvider for any backend that speaks the
// OpenAI chat-completions streaming dialect (OpenAI itself, Azure-compatible
// gateways, vLLM, and similar).
//
// Streaming specifics of this dialect:
//   - Responses arrive as SSE "data:" frames terminated by a [DONE] sentinel
//   - A delta carries either content or tool-call fragments, never both
//   - Tool calls stream incrementally and are accumulated per index until the
//     terminator, at which point every complete call is emitted
//
// Safe for concurrent use; each Complete call runs an independent stream.
type OpenAIProvider struct {
	BaseProvider

	baseURL      string
	apiKey       string
	defaultModel string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewOpenAIProvider creates an OpenAI-dialect provider. The API key may be
// empty when every request supplies its own credential; Complete fails fast
// if neither is set. An empty baseURL selects the public OpenAI endpoint.
func NewOpenAIProvider(apiKey, baseURL string, logger *slog.Logger) *OpenAIProvider {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIProvider{
		BaseProvider: NewBaseProvider("openai", 3, time.Second),
		baseURL:      baseURL,
		apiKey:       apiKey,
		defaultModel: "gpt-4o",
		httpClient:   newHTTPClient(),
		logger:       logger.With("provider", "openai"),
	}
}

// SupportsTools reports that this dialect accepts tool definitions.
func (p *OpenAIProvider) SupportsTools() bool {
	return true
}

// Complete sends a streaming chat request and returns the chunk channel.
//
// A synchronous error is returned only for configuration problems detected
// before the request is sent, such as a missing API key. Every later failure
// mode, including network errors and non-2xx responses after retries, is
// delivered on the channel as a terminal "Error: " chunk followed by Done.
func (p *OpenAIProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = p.apiKey
	}
	if apiKey == "" {
		return nil, errors.New("openai API key not configured")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:            model,
		Messages:         p.convertMessages(req),
		Stream:           true,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = p.convertTools(req.Tools)
	}

	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	chunks := make(chan *agent.CompletionChunk)
	go func() {
		body, err := p.open(ctx, apiKey, payload)
		if err != nil {
			defer close(chunks)
			p.logger.WarnContext(ctx, "chat request failed", "model", model, "error", err)
			sendError(ctx, chunks, err.Error())
			return
		}
		p.processStream(ctx, body, chunks)
	}()
	return chunks, nil
}

// open establishes the streaming response, retrying transient failures with
// linear backoff. The caller owns the returned body.
func (p *OpenAIProvider) open(ctx context.Context, apiKey string, payload []byte) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := p.Retry(ctx, isRetryableError, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
		httpReq.Header.Set("Accept", "text/event-stream")

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

// processStream decodes SSE frames, relays text immediately, and accumulates
// tool-call fragments per index until the stream terminates.
func (p *OpenAIProvider) processStream(ctx context.Context, body io.ReadCloser, chunks chan<- *agent.CompletionChunk) {
	defer close(chunks)
	defer body.Close()

	pending := make(map[int]*models.ToolCall)
	finished := false

	send := func(c *agent.CompletionChunk) bool {
		select {
		case chunks <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// flush emits every accumulated call that has both an id and a name,
	// in index order.
	flush := func() bool {
		indices := make([]int, 0, len(pending))
		for i := range pending {
			indices = append(indices, i)
		}
		sort.Ints(indices)
		for _, i := range indices {
			tc := pending[i]
			if tc.ID == "" || tc.Name == "" {
				continue
			}
			if !send(&agent.CompletionChunk{ToolCall: tc}) {
				return false
			}
		}
		pending = make(map[int]*models.ToolCall)
		return true
	}

	err := scanStream(ctx, body, chatCompletionsParser{}, func(ev StreamEvent) bool {
		switch ev.Type {
		case EventContent:
			return send(&agent.CompletionChunk{Text: ev.Text})

		case EventToolCall:
			frag := ev.ToolCall
			tc := pending[frag.Index]
			// A fresh id at an occupied index starts a new call there.
			if tc == nil || (frag.ID != "" && tc.ID != "" && frag.ID != tc.ID) {
				tc = &models.ToolCall{}
				pending[frag.Index] = tc
			}
			if frag.ID != "" {
				tc.ID = frag.ID
			}
			if frag.Name != "" {
				tc.Name = frag.Name
			}
			if frag.Arguments != "" {
				tc.Input = append(tc.Input, frag.Arguments...)
			}
			return true

		case EventDone:
			if !flush() {
				return false
			}
			finished = send(&agent.CompletionChunk{Done: true})
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
	// EOF without the terminator; flush and finish normally.
	if flush() {
		send(&agent.CompletionChunk{Done: true})
	}
}

// convertMessages builds the wire message list, injecting the system prompt
// as the leading message since this dialect has no separate system slot.
func (p *OpenAIProvider) convertMessages(req *agent.CompletionRequest) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		result = append(result, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return result
}

// convertTools maps tool definitions to function declarations. A tool whose
// schema fails to parse degrades to an empty object schema rather than
// breaking the whole request.
func (p *OpenAIProvider) convertTools(tools []agent.Tool) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Schema(), &schemaMap); err != nil {
			schemaMap = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  schemaMap,
			},
		}
	}
	return result
}
