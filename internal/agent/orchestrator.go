package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rivoli-ai/andy-agentic-sub001/internal/observability"
	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// OrchestratorConfig bounds the turn loop.
type OrchestratorConfig struct {
	// MaxTurns limits the number of provider round-trips per turn.
	// Default: 10
	MaxTurns int `yaml:"max_turns"`

	// MaxTokens is the default max tokens for LLM responses when the agent
	// does not specify one. Default: 4096
	MaxTokens int `yaml:"max_tokens"`

	// ToolTimeout bounds a single tool execution (0 = no limit).
	// Default: 1 minute
	ToolTimeout time.Duration `yaml:"tool_timeout"`
}

// DefaultOrchestratorConfig returns the default loop bounds.
func DefaultOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		MaxTurns:    10,
		MaxTokens:   4096,
		ToolTimeout: time.Minute,
	}
}

func sanitizeOrchestratorConfig(cfg *OrchestratorConfig) *OrchestratorConfig {
	defaults := DefaultOrchestratorConfig()
	if cfg == nil {
		return defaults
	}
	out := *cfg
	if out.MaxTurns <= 0 {
		out.MaxTurns = defaults.MaxTurns
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = defaults.MaxTokens
	}
	if out.ToolTimeout < 0 {
		out.ToolTimeout = 0
	}
	return &out
}

// TurnRequest starts one agent turn.
type TurnRequest struct {
	// Agent supplies the system prompt, LLM settings, and allowed tools.
	Agent *models.Agent

	// SessionID scopes the turn's tool execution records.
	SessionID string

	// Messages is the conversation so far, ending with the user's message.
	Messages []CompletionMessage
}

// TurnChunk is one element of a streaming turn. Content chunks carry Text;
// tool activity surfaces as ToolCall (about to execute) and ToolResult
// (finished) chunks; the final chunk has Done set. A Text beginning with
// "Error: " is terminal.
type TurnChunk struct {
	Text       string             `json:"text,omitempty"`
	ToolCall   *models.ToolCall   `json:"tool_call,omitempty"`
	ToolResult *models.ToolResult `json:"tool_result,omitempty"`
	Turn       int                `json:"turn"`
	Done       bool               `json:"done,omitempty"`
}

// TurnOrchestrator runs the recursive tool-calling loop.
//
// Each turn streams one provider response. Content relays to the caller as
// it arrives. When the response requests tool calls, they execute
// concurrently, their results fold into a follow-up user message together
// with any partial assistant text, and the conversation resubmits. The loop
// ends when a response carries no tool calls, a terminal error chunk
// arrives, or MaxTurns is reached.
type TurnOrchestrator struct {
	providers *ProviderRegistry
	tools     *ToolRegistry
	config    *OrchestratorConfig
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
}

// NewTurnOrchestrator creates an orchestrator. Metrics and tracer may be nil.
func NewTurnOrchestrator(
	providers *ProviderRegistry,
	tools *ToolRegistry,
	cfg *OrchestratorConfig,
	logger *slog.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
) *TurnOrchestrator {
	if tools == nil {
		tools = NewToolRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnOrchestrator{
		providers: providers,
		tools:     tools,
		config:    sanitizeOrchestratorConfig(cfg),
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
	}
}

// StreamTurn starts a turn and returns its chunk channel together with the
// recorder that accumulates the turn's tool executions. A synchronous error
// means the turn never started: a malformed request or an unresolvable
// provider.
func (o *TurnOrchestrator) StreamTurn(ctx context.Context, req *TurnRequest) (<-chan *TurnChunk, *TurnRecorder, error) {
	if req == nil || req.Agent == nil {
		return nil, nil, errors.New("turn request has no agent")
	}
	if len(req.Messages) == 0 {
		return nil, nil, errors.New("turn request has no messages")
	}

	provider, err := o.providers.Resolve(req.Agent.LLM.Provider)
	if err != nil {
		return nil, nil, err
	}

	recorder := NewTurnRecorder()
	interceptor := NewToolInterceptor(recorder, req.SessionID, req.Agent.ID, o.metrics)

	var tools []Tool
	if provider.SupportsTools() && len(req.Agent.Tools) > 0 {
		tools = o.tools.Subset(req.Agent.Tools)
	}

	chunks := make(chan *TurnChunk)
	go o.run(ctx, provider, req, tools, interceptor, chunks)
	return chunks, recorder, nil
}

func (o *TurnOrchestrator) run(ctx context.Context, provider LLMProvider, req *TurnRequest, tools []Tool, interceptor *ToolInterceptor, chunks chan<- *TurnChunk) {
	defer close(chunks)

	ctx = WithTurnScope(ctx, req.Agent.ID, req.SessionID)
	ctx, span := o.tracer.Start(ctx, "agent.turn",
		attribute.String("agent.id", req.Agent.ID),
		attribute.String("provider", provider.Name()),
	)
	defer span.End()

	send := func(c *TurnChunk) bool {
		select {
		case chunks <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	allowed := make(map[string]Tool, len(tools))
	for _, t := range tools {
		allowed[t.Name()] = t
	}

	messages := append([]CompletionMessage(nil), req.Messages...)

	for turn := 0; turn < o.config.MaxTurns; turn++ {
		creq := o.buildRequest(req.Agent, messages, tools)

		start := time.Now()
		stream, err := provider.Complete(ctx, creq)
		if err != nil {
			// Resolution succeeded but the provider rejected its config.
			observability.RecordError(span, err)
			o.countError("provider", "complete")
			o.logger.ErrorContext(ctx, "provider call failed",
				"agent_id", req.Agent.ID, "turn", turn, "error", err)
			if send(&TurnChunk{Text: "Error: " + err.Error(), Turn: turn}) {
				send(&TurnChunk{Done: true, Turn: turn})
			}
			return
		}

		var assistantText strings.Builder
		var calls []*models.ToolCall
		terminal := false

		for chunk := range stream {
			switch {
			case chunk.ToolCall != nil:
				calls = append(calls, chunk.ToolCall)
			case chunk.Text != "":
				assistantText.WriteString(chunk.Text)
				if !send(&TurnChunk{Text: chunk.Text, Turn: turn}) {
					return
				}
				if strings.HasPrefix(chunk.Text, "Error: ") {
					terminal = true
				}
			case chunk.Done:
				o.observeRequest(provider.Name(), creq.Model, start, chunk, terminal)
			}
		}

		if terminal {
			send(&TurnChunk{Done: true, Turn: turn})
			return
		}

		if len(calls) == 0 {
			span.SetAttributes(attribute.Int("turns", turn+1))
			send(&TurnChunk{Done: true, Turn: turn})
			return
		}

		results, ok := o.executeTools(ctx, turn, calls, allowed, interceptor, send)
		if !ok {
			return
		}

		messages = append(messages, CompletionMessage{
			Role:    string(models.RoleUser),
			Content: buildFollowUp(assistantText.String(), calls, results),
		})
	}

	// Turn cap reached with tool calls still pending.
	err := &TurnError{Phase: PhaseStream, Turn: o.config.MaxTurns, Cause: ErrMaxTurns}
	observability.RecordError(span, err)
	o.countError("orchestrator", "max_turns")
	o.logger.WarnContext(ctx, "turn cap reached",
		"agent_id", req.Agent.ID, "max_turns", o.config.MaxTurns)
	if send(&TurnChunk{Text: "Error: " + ErrMaxTurns.Error(), Turn: o.config.MaxTurns - 1}) {
		send(&TurnChunk{Done: true, Turn: o.config.MaxTurns - 1})
	}
}

// executeTools fans the calls out concurrently and streams ToolCall and
// ToolResult chunks. It returns false when the turn was cancelled.
func (o *TurnOrchestrator) executeTools(ctx context.Context, turn int, calls []*models.ToolCall, allowed map[string]Tool, interceptor *ToolInterceptor, send func(*TurnChunk) bool) ([]*models.ToolResult, bool) {
	for _, call := range calls {
		if !send(&TurnChunk{ToolCall: call, Turn: turn}) {
			return nil, false
		}
	}

	results := make([]*models.ToolResult, len(calls))
	var wg sync.WaitGroup
	for idx, call := range calls {
		wg.Add(1)
		go func(idx int, call *models.ToolCall) {
			defer wg.Done()

			tool, ok := allowed[call.Name]
			if !ok {
				results[idx] = interceptor.RecordFailure(call, "tool not found: "+call.Name)
				send(&TurnChunk{ToolResult: results[idx], Turn: turn})
				return
			}

			toolCtx := ctx
			if o.config.ToolTimeout > 0 {
				var cancel context.CancelFunc
				toolCtx, cancel = context.WithTimeout(ctx, o.config.ToolTimeout)
				defer cancel()
			}

			result, err := interceptor.Execute(toolCtx, tool, call)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				result = &models.ToolResult{
					ToolCallID: call.ID,
					Content:    err.Error(),
					IsError:    true,
				}
			}
			if result == nil {
				result = &models.ToolResult{ToolCallID: call.ID, Content: "", IsError: false}
			}
			if result.ToolCallID == "" {
				result.ToolCallID = call.ID
			}
			results[idx] = result
			send(&TurnChunk{ToolResult: result, Turn: turn})
		}(idx, call)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, false
	}
	return results, true
}

func (o *TurnOrchestrator) buildRequest(agent *models.Agent, messages []CompletionMessage, tools []Tool) *CompletionRequest {
	maxTokens := agent.LLM.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.config.MaxTokens
	}
	return &CompletionRequest{
		Model:            agent.LLM.Model,
		System:           agent.SystemPrompt,
		Messages:         messages,
		Tools:            tools,
		MaxTokens:        maxTokens,
		Temperature:      agent.LLM.Temperature,
		TopP:             agent.LLM.TopP,
		FrequencyPenalty: agent.LLM.FrequencyPenalty,
		PresencePenalty:  agent.LLM.PresencePenalty,
		APIKey:           agent.LLM.APIKey,
	}
}

func (o *TurnOrchestrator) observeRequest(provider, model string, start time.Time, final *CompletionChunk, terminal bool) {
	if o.metrics == nil {
		return
	}
	status := "success"
	if terminal {
		status = "error"
	}
	o.metrics.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	o.metrics.LLMRequestDuration.WithLabelValues(provider, model).
		Observe(time.Since(start).Seconds())
	if final.InputTokens > 0 {
		o.metrics.LLMTokensUsed.WithLabelValues(provider, model, "prompt").
			Add(float64(final.InputTokens))
	}
	if final.OutputTokens > 0 {
		o.metrics.LLMTokensUsed.WithLabelValues(provider, model, "completion").
			Add(float64(final.OutputTokens))
	}
}

func (o *TurnOrchestrator) countError(component, errorType string) {
	if o.metrics != nil {
		o.metrics.ErrorCounter.WithLabelValues(component, errorType).Inc()
	}
}

// buildFollowUp folds the partial assistant text and every tool result into
// the user-role message that continues the loop.
func buildFollowUp(assistantText string, calls []*models.ToolCall, results []*models.ToolResult) string {
	var b strings.Builder
	if assistantText != "" {
		b.WriteString("Assistant response so far:\n")
		b.WriteString(assistantText)
		b.WriteString("\n\n")
	}
	b.WriteString("Tool results:\n")
	for i, call := range calls {
		res := results[i]
		if res == nil {
			continue
		}
		if res.IsError {
			fmt.Fprintf(&b, "%s error: %s\n", call.Name, res.Content)
		} else {
			fmt.Fprintf(&b, "%s: %s\n", call.Name, res.Content)
		}
	}
	b.WriteString("\nUse these results to continue answering the original request.")
	return b.String()
}
