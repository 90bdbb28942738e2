package store

import (
	"context"
	"math"
	"testing"

	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

func record(docID string, ordinal int, content string, embedding []float32) *models.ChunkRecord {
	return &models.ChunkRecord{
		Key:        models.ChunkKey(docID, ordinal),
		DocumentID: docID,
		Ordinal:    ordinal,
		Content:    content,
		Embedding:  embedding,
		SourceName: "doc-" + docID,
	}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteUpsertAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, "agent-1", []*models.ChunkRecord{
		record("d1", 0, "about cats", []float32{1, 0, 0}),
		record("d1", 1, "about dogs", []float32{0, 1, 0}),
		record("d2", 0, "about fish", []float32{0, 0, 1}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := s.Search(ctx, "agent-1", []float32{1, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Record.Content != "about cats" {
		t.Errorf("best match = %q", matches[0].Record.Content)
	}
	if matches[0].Score < matches[1].Score {
		t.Error("matches not ordered by score descending")
	}
}

func TestSQLiteAgentScoping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "agent-1", []*models.ChunkRecord{
		record("d1", 0, "private to agent one", []float32{1, 0}),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := s.Search(ctx, "agent-2", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("agent-2 sees %d records from agent-1's collection", len(matches))
	}
}

func TestSQLiteUpsertReplacesSameKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "agent-1", []*models.ChunkRecord{
		record("d1", 0, "old content", []float32{1, 0}),
	}); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	if err := s.Upsert(ctx, "agent-1", []*models.ChunkRecord{
		record("d1", 0, "new content", []float32{1, 0}),
	}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	matches, err := s.Search(ctx, "agent-1", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1 after replace", len(matches))
	}
	if matches[0].Record.Content != "new content" {
		t.Errorf("content = %q", matches[0].Record.Content)
	}
}

func TestSQLiteDeleteByDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "agent-1", []*models.ChunkRecord{
		record("d1", 0, "keep me not", []float32{1, 0}),
		record("d1", 1, "me neither", []float32{0.9, 0.1}),
		record("d2", 0, "survivor", []float32{0, 1}),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := s.DeleteByDocument(ctx, "agent-1", "d1"); err != nil {
		t.Fatalf("DeleteByDocument: %v", err)
	}

	matches, err := s.Search(ctx, "agent-1", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].Record.DocumentID != "d2" {
		t.Errorf("matches = %+v, want only d2", matches)
	}
}

func TestEmbeddingBlobRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.75, 0}
	out := decodeEmbedding(encodeEmbedding(in))
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %v != %v", i, in[i], out[i])
		}
	}
	if decodeEmbedding(nil) != nil {
		t.Error("decode of nil blob should be nil")
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		a, b []float32
		want float32
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{1, 0}, []float32{1, 0, 0}, 0}, // mismatched length
		{[]float32{0, 0}, []float32{1, 0}, 0},    // zero vector
	}
	for _, tc := range cases {
		got := cosineSimilarity(tc.a, tc.b)
		if math.Abs(float64(got-tc.want)) > 1e-6 {
			t.Errorf("cosineSimilarity(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestFormatVector(t *testing.T) {
	got := formatVector([]float32{0.5, -1, 2})
	if got != "[0.5,-1,2]" {
		t.Errorf("formatVector = %q", got)
	}
	if formatVector(nil) != "[]" {
		t.Errorf("empty vector = %q", formatVector(nil))
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New(Config{Backend: "redis"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
