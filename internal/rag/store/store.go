// Package store provides vector storage backends for document chunks.
// Every operation is scoped to an agent's collection; collections come into
// existence lazily on first write.
package store

import (
	"context"
	"fmt"
	"math"

	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// VectorStore stores and searches embedded document chunks.
type VectorStore interface {
	// Upsert writes the records into the agent's collection, replacing any
	// records with the same keys.
	Upsert(ctx context.Context, agentID string, records []*models.ChunkRecord) error

	// Search returns the topK most similar records by cosine similarity,
	// best first.
	Search(ctx context.Context, agentID string, embedding []float32, topK int) ([]*models.ChunkMatch, error)

	// DeleteByDocument removes every record of the given document from the
	// agent's collection.
	DeleteByDocument(ctx context.Context, agentID, documentID string) error

	// Close releases the backend's resources.
	Close() error
}

// Config selects and configures a vector store backend.
type Config struct {
	// Backend is "sqlite" or "pgvector". Default: sqlite
	Backend string `yaml:"backend"`

	// Path is the sqlite database file (":memory:" for in-process only).
	Path string `yaml:"path"`

	// DSN is the PostgreSQL connection string for the pgvector backend.
	DSN string `yaml:"dsn"`

	// Dimension is the embedding dimension, required by pgvector.
	// Default: 1536
	Dimension int `yaml:"dimension"`
}

// New creates the configured backend.
func New(cfg Config) (VectorStore, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "pgvector":
		return NewPgVectorStore(cfg.DSN, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown vector store backend %q, available: pgvector, sqlite", cfg.Backend)
	}
}

// cosineSimilarity computes the cosine similarity of two vectors. Mismatched
// lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
