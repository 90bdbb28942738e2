package agent

import (
	"context"
	"encoding/json"

	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// LLMProvider is the uniform streaming contract every chat-completion backend
// implements regardless of its wire dialect.
//
// Implementations must be safe for concurrent use; each Complete call creates
// an independent stream. A provider never fails past its streaming boundary:
// after the channel is returned, every failure mode is representable as a
// chunk on it, and a synchronous error is reserved for configuration problems
// detected before any network call.
type LLMProvider interface {
	// Complete sends a streaming chat request and returns the chunk channel.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider's registry name.
	Name() string

	// SupportsTools reports whether tool definitions can be supplied.
	SupportsTools() bool
}

// CompletionRequest contains all parameters for one provider round-trip.
type CompletionRequest struct {
	// Model is the backend model id; empty selects the provider default.
	Model string `json:"model"`

	// System sets the assistant's behavior. Dialects that have no separate
	// system slot inject it as the first message.
	System string `json:"system,omitempty"`

	// Messages is the conversation so far, in chronological order.
	Messages []CompletionMessage `json:"messages"`

	// Tools are the definitions the model may call. Empty disables tool use.
	Tools []Tool `json:"-"`

	// Sampling parameters; zero values fall back to provider defaults.
	MaxTokens        int     `json:"max_tokens,omitempty"`
	Temperature      float32 `json:"temperature,omitempty"`
	TopP             float32 `json:"top_p,omitempty"`
	FrequencyPenalty float32 `json:"frequency_penalty,omitempty"`
	PresencePenalty  float32 `json:"presence_penalty,omitempty"`

	// APIKey is the bearer credential resolved per call from the agent's
	// LLM settings. Dialects that need no credential tolerate it empty.
	APIKey string `json:"-"`
}

// FromHistory converts stored conversation messages into provider request
// messages, dropping system entries (the system prompt travels separately on
// the request).
func FromHistory(history []models.Message) []CompletionMessage {
	out := make([]CompletionMessage, 0, len(history))
	for _, msg := range history {
		if msg.Role == models.RoleSystem {
			continue
		}
		out = append(out, CompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return out
}

// CompletionMessage is a single message in a provider request.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionChunk is one element of a streaming response.
//
// Exactly one of Text, ToolCall, or Done is meaningful per chunk. A Text
// chunk beginning with "Error:" is a terminal, non-retryable failure of the
// call; the sequence ends immediately after it.
type CompletionChunk struct {
	// Text is partial response text, relayed in arrival order.
	Text string `json:"text,omitempty"`

	// ToolCall is a fully assembled tool execution request.
	ToolCall *models.ToolCall `json:"tool_call,omitempty"`

	// Done is true on the final chunk of a successful stream.
	Done bool `json:"done,omitempty"`

	// InputTokens and OutputTokens are populated on the final chunk when the
	// dialect reports usage.
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// Tool is an executable capability the model can request during a turn.
type Tool interface {
	// Name returns the function name exposed to the model.
	Name() string

	// Description tells the model what the tool does.
	Description() string

	// Schema returns the JSON Schema for the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with arguments matching Schema.
	Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error)
}
