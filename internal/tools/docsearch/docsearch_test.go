package docsearch

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rivoli-ai/andy-agentic-sub001/internal/agent"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/embeddings"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/index"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/store"
	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// keywordEmbedder maps cat/dog keywords onto orthogonal vectors.
type keywordEmbedder struct{}

var _ embeddings.Provider = keywordEmbedder{}

func (keywordEmbedder) Name() string      { return "keyword" }
func (keywordEmbedder) Dimension() int    { return 2 }
func (keywordEmbedder) MaxBatchSize() int { return 16 }

func (e keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	batch, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return batch[0], nil
}

func (keywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if strings.Contains(text, "cat") {
			out[i] = []float32{1, 0}
		} else {
			out[i] = []float32{0, 1}
		}
	}
	return out, nil
}

func newTestTool(t *testing.T) *Tool {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	idx := index.NewUpserter(s, keywordEmbedder{}, nil)
	doc := &models.Document{ID: "d1", AgentID: "a1", Name: "pets.txt"}
	_, err = idx.Upsert(context.Background(), "a1", doc,
		[]string{"the cat slept on the windowsill", "the dog dug a hole"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return New(idx)
}

func scopedCtx() context.Context {
	return agent.WithTurnScope(context.Background(), "a1", "s1")
}

func TestExecuteReturnsRankedPassages(t *testing.T) {
	tool := newTestTool(t)

	res, err := tool.Execute(scopedCtx(), json.RawMessage(`{"query":"where is the cat"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Content)
	}
	if !strings.Contains(res.Content, "cat slept") || !strings.Contains(res.Content, "pets.txt") {
		t.Errorf("content = %q", res.Content)
	}
	if !strings.HasPrefix(res.Content, "1. ") {
		t.Errorf("results not numbered: %q", res.Content)
	}
}

func TestExecuteRequiresAgentScope(t *testing.T) {
	tool := newTestTool(t)
	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"x"}`)); err == nil {
		t.Fatal("expected error without agent scope")
	}
}

func TestExecuteRejectsEmptyQuery(t *testing.T) {
	tool := newTestTool(t)
	res, err := tool.Execute(scopedCtx(), json.RawMessage(`{"query":"  "}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError {
		t.Error("empty query should yield an error result")
	}
}

func TestExecuteEmptyCollection(t *testing.T) {
	tool := newTestTool(t)
	ctx := agent.WithTurnScope(context.Background(), "other-agent", "s1")
	res, err := tool.Execute(ctx, json.RawMessage(`{"query":"cat"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsError || !strings.Contains(res.Content, "No matching documents") {
		t.Errorf("result = %+v", res)
	}
}

func TestSchemaRegisters(t *testing.T) {
	reg := agent.NewToolRegistry()
	if err := reg.Register(newTestTool(t)); err != nil {
		t.Fatalf("schema failed registration: %v", err)
	}
}
