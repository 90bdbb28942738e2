package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// scriptedProvider replays one canned chunk sequence per Complete call.
type scriptedProvider struct {
	name     string
	tools    bool
	scripts  [][]*CompletionChunk
	call     int
	requests []*CompletionRequest
}

func (p *scriptedProvider) Name() string        { return p.name }
func (p *scriptedProvider) SupportsTools() bool { return p.tools }

func (p *scriptedProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	p.requests = append(p.requests, req)
	script := p.scripts[len(p.scripts)-1]
	if p.call < len(p.scripts) {
		script = p.scripts[p.call]
	}
	p.call++

	out := make(chan *CompletionChunk)
	go func() {
		defer close(out)
		for _, c := range script {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// echoTool returns its input back as the result.
type echoTool struct {
	name string
	fail bool
}

func (t *echoTool) Name() string        { return t.name }
func (t *echoTool) Description() string { return "echoes input" }
func (t *echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`)
}

func (t *echoTool) Execute(_ context.Context, params json.RawMessage) (*models.ToolResult, error) {
	if t.fail {
		return nil, errors.New("echo failed")
	}
	return &models.ToolResult{Content: "echo:" + string(params)}, nil
}

func testAgent(provider string) *models.Agent {
	return &models.Agent{
		ID:           "agent-1",
		Name:         "test",
		SystemPrompt: "You are concise.",
		Tools:        []string{"echo"},
		LLM: models.LLMSettings{
			Provider: provider,
			Model:    "test-model",
			APIKey:   "sk-test",
		},
	}
}

func newTestOrchestrator(t *testing.T, p LLMProvider, cfg *OrchestratorConfig) *TurnOrchestrator {
	t.Helper()
	providers := NewProviderRegistry()
	providers.Register(p)
	tools := NewToolRegistry()
	if err := tools.Register(&echoTool{name: "echo"}); err != nil {
		t.Fatalf("register tool: %v", err)
	}
	return NewTurnOrchestrator(providers, tools, cfg, nil, nil, nil)
}

func drainTurn(t *testing.T, chunks <-chan *TurnChunk) []*TurnChunk {
	t.Helper()
	var got []*TurnChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				return got
			}
			got = append(got, c)
		case <-timeout:
			t.Fatal("timed out waiting for turn chunks")
		}
	}
}

func turnText(chunks []*TurnChunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

func TestStreamTurnRelaysContent(t *testing.T) {
	p := &scriptedProvider{name: "openai", tools: true, scripts: [][]*CompletionChunk{{
		{Text: "Hello"},
		{Text: " there"},
		{Done: true},
	}}}
	o := newTestOrchestrator(t, p, nil)

	chunks, recorder, err := o.StreamTurn(context.Background(), &TurnRequest{
		Agent:    testAgent("openai"),
		Messages: []CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("StreamTurn: %v", err)
	}

	got := drainTurn(t, chunks)
	if turnText(got) != "Hello there" {
		t.Errorf("text = %q", turnText(got))
	}
	if !got[len(got)-1].Done {
		t.Error("final chunk not Done")
	}
	if recorder.Len() != 0 {
		t.Errorf("recorder has %d records, want 0", recorder.Len())
	}
}

func TestStreamTurnExecutesToolAndContinues(t *testing.T) {
	p := &scriptedProvider{name: "openai", tools: true, scripts: [][]*CompletionChunk{
		{
			{Text: "Let me check."},
			{ToolCall: &models.ToolCall{ID: "call_1", Name: "echo", Input: json.RawMessage(`{"q":"go"}`)}},
			{Done: true},
		},
		{
			{Text: "The answer is go."},
			{Done: true},
		},
	}}
	o := newTestOrchestrator(t, p, nil)

	chunks, recorder, err := o.StreamTurn(context.Background(), &TurnRequest{
		Agent:     testAgent("openai"),
		SessionID: "sess-1",
		Messages:  []CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("StreamTurn: %v", err)
	}
	got := drainTurn(t, chunks)

	var sawCall, sawResult bool
	for _, c := range got {
		if c.ToolCall != nil {
			sawCall = true
		}
		if c.ToolResult != nil {
			sawResult = true
			if c.ToolResult.ToolCallID != "call_1" {
				t.Errorf("result tool_call_id = %q", c.ToolResult.ToolCallID)
			}
		}
	}
	if !sawCall || !sawResult {
		t.Error("expected tool call and tool result chunks")
	}
	if !strings.Contains(turnText(got), "The answer is go.") {
		t.Errorf("text = %q", turnText(got))
	}

	records := recorder.Records()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.ToolName != "echo" || rec.ToolCallID != "call_1" || !rec.Success {
		t.Errorf("record = %+v", rec)
	}
	if rec.SessionID != "sess-1" || rec.AgentID != "agent-1" {
		t.Errorf("record scope = %q/%q", rec.SessionID, rec.AgentID)
	}

	// Second request must carry the folded follow-up as a user message.
	if len(p.requests) != 2 {
		t.Fatalf("provider called %d times, want 2", len(p.requests))
	}
	followUp := p.requests[1].Messages[len(p.requests[1].Messages)-1]
	if followUp.Role != "user" {
		t.Errorf("follow-up role = %q, want user", followUp.Role)
	}
	if !strings.Contains(followUp.Content, "Let me check.") {
		t.Error("follow-up missing partial assistant text")
	}
	if !strings.Contains(followUp.Content, `echo:{"q":"go"}`) {
		t.Errorf("follow-up missing tool result: %q", followUp.Content)
	}
}

func TestStreamTurnFoldsToolErrorIntoFollowUp(t *testing.T) {
	p := &scriptedProvider{name: "openai", tools: true, scripts: [][]*CompletionChunk{
		{
			{ToolCall: &models.ToolCall{ID: "call_1", Name: "boom", Input: json.RawMessage(`{}`)}},
			{Done: true},
		},
		{
			{Text: "done"},
			{Done: true},
		},
	}}
	providers := NewProviderRegistry()
	providers.Register(p)
	tools := NewToolRegistry()
	if err := tools.Register(&echoTool{name: "boom", fail: true}); err != nil {
		t.Fatalf("register tool: %v", err)
	}
	o := NewTurnOrchestrator(providers, tools, nil, nil, nil, nil)

	agent := testAgent("openai")
	agent.Tools = []string{"boom"}
	chunks, recorder, err := o.StreamTurn(context.Background(), &TurnRequest{
		Agent:    agent,
		Messages: []CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("StreamTurn: %v", err)
	}
	drainTurn(t, chunks)

	records := recorder.Records()
	if len(records) != 1 || records[0].Success || records[0].Error != "echo failed" {
		t.Fatalf("records = %+v", records)
	}
	followUp := p.requests[1].Messages[len(p.requests[1].Messages)-1].Content
	if !strings.Contains(followUp, "boom error: echo failed") {
		t.Errorf("follow-up = %q", followUp)
	}
}

func TestStreamTurnUnknownToolRecorded(t *testing.T) {
	p := &scriptedProvider{name: "openai", tools: true, scripts: [][]*CompletionChunk{
		{
			{ToolCall: &models.ToolCall{ID: "call_1", Name: "nope", Input: json.RawMessage(`{}`)}},
			{Done: true},
		},
		{
			{Text: "done"},
			{Done: true},
		},
	}}
	o := newTestOrchestrator(t, p, nil)

	agent := testAgent("openai")
	agent.Tools = []string{"echo"}
	chunks, recorder, err := o.StreamTurn(context.Background(), &TurnRequest{
		Agent:    agent,
		Messages: []CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("StreamTurn: %v", err)
	}
	drainTurn(t, chunks)

	records := recorder.Records()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Success || !strings.Contains(records[0].Error, "tool not found") {
		t.Errorf("record = %+v", records[0])
	}
}

func TestStreamTurnCapsToolLoop(t *testing.T) {
	// The provider requests a tool on every round-trip.
	loop := []*CompletionChunk{
		{ToolCall: &models.ToolCall{ID: "call_x", Name: "echo", Input: json.RawMessage(`{}`)}},
		{Done: true},
	}
	p := &scriptedProvider{name: "openai", tools: true, scripts: [][]*CompletionChunk{loop}}
	o := newTestOrchestrator(t, p, &OrchestratorConfig{MaxTurns: 3})

	chunks, _, err := o.StreamTurn(context.Background(), &TurnRequest{
		Agent:    testAgent("openai"),
		Messages: []CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("StreamTurn: %v", err)
	}
	got := drainTurn(t, chunks)

	if len(p.requests) != 3 {
		t.Errorf("provider called %d times, want 3", len(p.requests))
	}
	text := turnText(got)
	if !strings.Contains(text, "Error: tool call limit exceeded") {
		t.Errorf("text = %q, want terminal limit error", text)
	}
	if !got[len(got)-1].Done {
		t.Error("final chunk not Done")
	}
}

func TestStreamTurnTerminalErrorChunkEndsTurn(t *testing.T) {
	p := &scriptedProvider{name: "openai", tools: true, scripts: [][]*CompletionChunk{{
		{Text: "Error: connection reset"},
		{Done: true},
	}}}
	o := newTestOrchestrator(t, p, nil)

	chunks, _, err := o.StreamTurn(context.Background(), &TurnRequest{
		Agent:    testAgent("openai"),
		Messages: []CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("StreamTurn: %v", err)
	}
	got := drainTurn(t, chunks)

	if len(p.requests) != 1 {
		t.Errorf("provider called %d times, want 1", len(p.requests))
	}
	if turnText(got) != "Error: connection reset" {
		t.Errorf("text = %q", turnText(got))
	}
	if !got[len(got)-1].Done {
		t.Error("final chunk not Done")
	}
}

func TestStreamTurnUnknownProviderFailsFast(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedProvider{name: "openai"}, nil)

	_, _, err := o.StreamTurn(context.Background(), &TurnRequest{
		Agent:    testAgent("anthropic"),
		Messages: []CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "openai") {
		t.Errorf("error %v does not enumerate available providers", err)
	}
}

func TestStreamTurnOmitsToolsForProvidersWithoutSupport(t *testing.T) {
	p := &scriptedProvider{name: "ollama", tools: false, scripts: [][]*CompletionChunk{{
		{Text: "plain"},
		{Done: true},
	}}}
	o := newTestOrchestrator(t, p, nil)

	chunks, _, err := o.StreamTurn(context.Background(), &TurnRequest{
		Agent:    testAgent("ollama"),
		Messages: []CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("StreamTurn: %v", err)
	}
	drainTurn(t, chunks)

	if len(p.requests[0].Tools) != 0 {
		t.Errorf("tools sent to non-tool provider: %d", len(p.requests[0].Tools))
	}
}
