package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// PgVectorStore stores chunks in PostgreSQL with the pgvector extension.
// Similarity ranking happens in the database via the cosine distance
// operator, so searches stay efficient as collections grow.
type PgVectorStore struct {
	db        *sql.DB
	dimension int
}

var _ VectorStore = (*PgVectorStore)(nil)

// NewPgVectorStore connects to PostgreSQL and ensures the schema exists.
// The pgvector extension must be installed on the server.
func NewPgVectorStore(dsn string, dimension int) (*PgVectorStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pgvector backend requires a DSN")
	}
	if dimension <= 0 {
		dimension = 1536
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PgVectorStore{db: db, dimension: dimension}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enable pgvector extension: %w", err)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunks (
			agent_id    TEXT NOT NULL,
			key         TEXT NOT NULL,
			document_id TEXT NOT NULL,
			ordinal     INTEGER NOT NULL,
			content     TEXT NOT NULL,
			source_name TEXT,
			source_uri  TEXT,
			embedding   vector(%d),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (agent_id, key)
		)
	`, s.dimension))
	if err != nil {
		return fmt.Errorf("create chunks table: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(agent_id, document_id)")
	if err != nil {
		return fmt.Errorf("create document index: %w", err)
	}
	return nil
}

// Upsert writes the records in one transaction.
func (s *PgVectorStore) Upsert(ctx context.Context, agentID string, records []*models.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks
			(agent_id, key, document_id, ordinal, content, source_name, source_uri, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector, $9)
		ON CONFLICT (agent_id, key) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			ordinal     = EXCLUDED.ordinal,
			content     = EXCLUDED.content,
			source_name = EXCLUDED.source_name,
			source_uri  = EXCLUDED.source_uri,
			embedding   = EXCLUDED.embedding,
			created_at  = EXCLUDED.created_at
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if s.dimension > 0 && len(rec.Embedding) != s.dimension {
			return fmt.Errorf("chunk %s: embedding dimension %d, want %d",
				rec.Key, len(rec.Embedding), s.dimension)
		}
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := stmt.ExecContext(ctx,
			agentID, rec.Key, rec.DocumentID, rec.Ordinal, rec.Content,
			rec.SourceName, rec.SourceURI, formatVector(rec.Embedding), createdAt,
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", rec.Key, err)
		}
	}
	return tx.Commit()
}

// Search ranks by cosine distance in the database.
func (s *PgVectorStore) Search(ctx context.Context, agentID string, embedding []float32, topK int) ([]*models.ChunkMatch, error) {
	if topK <= 0 {
		topK = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, document_id, ordinal, content, source_name, source_uri, created_at,
			1 - (embedding <=> $1::vector) AS score
		FROM chunks
		WHERE agent_id = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1::vector ASC
		LIMIT $3
	`, formatVector(embedding), agentID, topK)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var matches []*models.ChunkMatch
	for rows.Next() {
		var rec models.ChunkRecord
		var sourceName, sourceURI sql.NullString
		var score float64
		if err := rows.Scan(&rec.Key, &rec.DocumentID, &rec.Ordinal, &rec.Content,
			&sourceName, &sourceURI, &rec.CreatedAt, &score); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		rec.SourceName = sourceName.String
		rec.SourceURI = sourceURI.String
		matches = append(matches, &models.ChunkMatch{Record: &rec, Score: float32(score)})
	}
	return matches, rows.Err()
}

// DeleteByDocument removes the document's records by indexed lookup.
func (s *PgVectorStore) DeleteByDocument(ctx context.Context, agentID, documentID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE agent_id = $1 AND document_id = $2", agentID, documentID)
	if err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *PgVectorStore) Close() error {
	return s.db.Close()
}

// formatVector renders the pgvector text literal, e.g. "[0.1,0.2]".
func formatVector(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
