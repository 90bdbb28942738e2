package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rivoli-ai/andy-agentic-sub001/internal/agent"
)

func collect(t *testing.T, chunks <-chan *agent.CompletionChunk) []*agent.CompletionChunk {
	t.Helper()
	var got []*agent.CompletionChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				return got
			}
			got = append(got, c)
		case <-timeout:
			t.Fatal("timed out waiting for chunks")
		}
	}
}

func sseServer(t *testing.T, lines []string, verify func(r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if verify != nil {
			verify(r)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n\n"))
		}
	}))
}

func TestOpenAIStreamsContent(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Stream bool `json:"stream"`
	}
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
	}, func(r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
	})
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, nil)
	chunks, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []agent.CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got := collect(t, chunks)
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want bearer credential", gotAuth)
	}
	if !gotBody.Stream {
		t.Error("request did not set stream: true")
	}
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3: %+v", len(got), got)
	}
	if got[0].Text != "Hel" || got[1].Text != "lo" {
		t.Errorf("text chunks = %q, %q", got[0].Text, got[1].Text)
	}
	if !got[2].Done {
		t.Error("final chunk not Done")
	}
}

func TestOpenAIAccumulatesToolCallFragments(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"lookup"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"q\":"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_2","function":{"name":"fetch","arguments":"{}"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"go\"}"}}]}}]}`,
		`data: [DONE]`,
	}, nil)
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, nil)
	chunks, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got := collect(t, chunks)
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3: %+v", len(got), got)
	}
	first, second := got[0].ToolCall, got[1].ToolCall
	if first == nil || second == nil {
		t.Fatalf("expected two tool-call chunks, got %+v", got)
	}
	if first.ID != "call_1" || first.Name != "lookup" || string(first.Input) != `{"q":"go"}` {
		t.Errorf("first call = %+v", first)
	}
	if second.ID != "call_2" || second.Name != "fetch" || string(second.Input) != `{}` {
		t.Errorf("second call = %+v", second)
	}
	if !got[2].Done {
		t.Error("final chunk not Done")
	}
}

func TestOpenAIStopsReadingAfterDoneSentinel(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"MUST NOT APPEAR"}}]}`,
	}, nil)
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, nil)
	chunks, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got := collect(t, chunks)
	for _, c := range got {
		if strings.Contains(c.Text, "MUST NOT APPEAR") {
			t.Fatal("provider read past the [DONE] sentinel")
		}
	}
	if !got[len(got)-1].Done {
		t.Error("final chunk not Done")
	}
}

func TestOpenAIMissingKeyFailsFast(t *testing.T) {
	p := NewOpenAIProvider("", "http://localhost:0", nil)
	_, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected configuration error for missing API key")
	}
	if !strings.Contains(err.Error(), "API key") {
		t.Errorf("error = %v, want mention of API key", err)
	}
}

func TestOpenAIHTTPErrorBecomesErrorChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, nil)
	chunks, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got := collect(t, chunks)
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want error chunk plus Done: %+v", len(got), got)
	}
	if !strings.HasPrefix(got[0].Text, "Error: ") {
		t.Errorf("first chunk = %q, want Error: prefix", got[0].Text)
	}
	if !got[1].Done {
		t.Error("second chunk not Done")
	}
}

func TestOpenAINetworkErrorBecomesErrorChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	p := NewOpenAIProvider("sk-test", srv.URL, nil)
	chunks, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got := collect(t, chunks)
	if len(got) != 2 || !strings.HasPrefix(got[0].Text, "Error: ") || !got[1].Done {
		t.Fatalf("got %+v, want terminal error chunk then Done", got)
	}
}

func TestChatCompletionsParserToolCallsSuppressContent(t *testing.T) {
	payload := `{"choices":[{"delta":{"content":"ignored","tool_calls":[{"index":0,"id":"c1","function":{"name":"f","arguments":"{}"}}]}}]}`
	events := chatCompletionsParser{}.ParsePayload([]byte(payload))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != EventToolCall {
		t.Errorf("event type = %v, want tool call", events[0].Type)
	}
	if events[0].Text != "" {
		t.Errorf("content leaked alongside tool call: %q", events[0].Text)
	}
}

func TestChatCompletionsParserSkipsMalformedPayloads(t *testing.T) {
	for _, payload := range []string{`not json`, `{"choices":[]}`, `{}`} {
		if events := (chatCompletionsParser{}).ParsePayload([]byte(payload)); len(events) != 0 {
			t.Errorf("payload %q produced events %+v", payload, events)
		}
	}
}

func TestOllamaStreamsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		lines := []string{
			`{"message":{"content":"Hel"},"done":false}`,
			`{"message":{"content":"lo"},"done":false}`,
			`{"message":{"content":""},"done":true,"prompt_eval_count":12,"eval_count":34}`,
		}
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", nil)
	chunks, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got := collect(t, chunks)
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3: %+v", len(got), got)
	}
	if got[0].Text != "Hel" || got[1].Text != "lo" {
		t.Errorf("text chunks = %q, %q", got[0].Text, got[1].Text)
	}
	final := got[2]
	if !final.Done || final.InputTokens != 12 || final.OutputTokens != 34 {
		t.Errorf("final chunk = %+v, want Done with usage", final)
	}
}

func TestOllamaInBandErrorIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model not found"}` + "\n"))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", nil)
	chunks, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got := collect(t, chunks)
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(got), got)
	}
	if got[0].Text != "Error: model not found" {
		t.Errorf("error chunk = %q", got[0].Text)
	}
	if !got[1].Done {
		t.Error("second chunk not Done")
	}
}

func TestOllamaTopLevelResponseField(t *testing.T) {
	events := localChatParser{}.ParsePayload([]byte(`{"response":"plain","done":false}`))
	if len(events) != 1 || events[0].Type != EventContent || events[0].Text != "plain" {
		t.Fatalf("events = %+v, want single content event", events)
	}
}

func TestOllamaSupportsToolsIsFalse(t *testing.T) {
	if NewOllamaProvider("", "", nil).SupportsTools() {
		t.Error("local dialect must not advertise tool support")
	}
	if !NewOpenAIProvider("k", "", nil).SupportsTools() {
		t.Error("chat-completions dialect must advertise tool support")
	}
}

func TestScanStreamPassesRawLinesToParser(t *testing.T) {
	// Unframed NDJSON lines must reach the parser unchanged.
	input := strings.NewReader(`{"response":"a","done":false}` + "\n" + `{"done":true}` + "\n")
	var events []StreamEvent
	err := scanStream(context.Background(), input, localChatParser{}, func(ev StreamEvent) bool {
		events = append(events, ev)
		return true
	})
	if err != nil {
		t.Fatalf("scanStream: %v", err)
	}
	if len(events) != 2 || events[0].Text != "a" || events[1].Type != EventDone {
		t.Fatalf("events = %+v", events)
	}
}
