// Package index ties chunk embedding and vector storage together into the
// per-agent document index.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/embeddings"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/store"
	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// Upserter writes, searches, and deletes embedded chunks in an agent's
// collection.
type Upserter struct {
	store      store.VectorStore
	embeddings embeddings.Provider
	logger     *slog.Logger
}

// NewUpserter creates an upserter over the given store and embedding
// provider.
func NewUpserter(s store.VectorStore, e embeddings.Provider, logger *slog.Logger) *Upserter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Upserter{store: s, embeddings: e, logger: logger}
}

// Upsert embeds the chunks in provider-sized batches and writes them into
// the agent's collection, keyed by document id and ordinal so re-ingestion
// replaces prior records.
func (u *Upserter) Upsert(ctx context.Context, agentID string, doc *models.Document, chunks []string) ([]*models.ChunkRecord, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	records := make([]*models.ChunkRecord, len(chunks))
	now := time.Now().UTC()
	for i, content := range chunks {
		records[i] = &models.ChunkRecord{
			Key:        models.ChunkKey(doc.ID, i),
			DocumentID: doc.ID,
			Ordinal:    i,
			Content:    content,
			SourceName: doc.Name,
			SourceURI:  doc.SourceURI,
			CreatedAt:  now,
		}
	}

	batchSize := u.embeddings.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		vectors, err := u.embeddings.EmbedBatch(ctx, chunks[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embed chunks %d-%d: got %d vectors, want %d",
				start, end-1, len(vectors), end-start)
		}
		for i, v := range vectors {
			records[start+i].Embedding = v
		}
	}

	if err := u.store.Upsert(ctx, agentID, records); err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	u.logger.DebugContext(ctx, "upserted document chunks",
		"agent_id", agentID, "document_id", doc.ID, "chunks", len(records))
	return records, nil
}

// Search embeds the query and returns the topK ranked matches from the
// agent's collection.
func (u *Upserter) Search(ctx context.Context, agentID, query string, topK int) ([]*models.ChunkMatch, error) {
	vector, err := u.embeddings.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := u.store.Search(ctx, agentID, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("search collection: %w", err)
	}
	return matches, nil
}

// DeleteDocument removes every chunk of the document from the agent's
// collection by direct lookup on the document id.
func (u *Upserter) DeleteDocument(ctx context.Context, agentID, documentID string) error {
	if err := u.store.DeleteByDocument(ctx, agentID, documentID); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}
