package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers "sqlite"

	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// SQLiteStore is the default vector store. Embeddings live as little-endian
// float32 blobs and similarity is computed in process, which keeps the
// backend pure Go and dependency-light at the cost of scanning the agent's
// collection per search. Fine for the collection sizes one agent holds.
type SQLiteStore struct {
	db *sql.DB
}

var _ VectorStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path. An empty path
// selects an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// The driver is not safe for concurrent writes on one connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			agent_id    TEXT NOT NULL,
			key         TEXT NOT NULL,
			document_id TEXT NOT NULL,
			ordinal     INTEGER NOT NULL,
			content     TEXT NOT NULL,
			source_name TEXT,
			source_uri  TEXT,
			embedding   BLOB,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (agent_id, key)
		)
	`)
	if err != nil {
		return fmt.Errorf("create chunks table: %w", err)
	}
	_, err = s.db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(agent_id, document_id)")
	if err != nil {
		return fmt.Errorf("create document index: %w", err)
	}
	return nil
}

// Upsert writes the records in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, agentID string, records []*models.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			_ = err
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(agent_id, key, document_id, ordinal, content, source_name, source_uri, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := stmt.ExecContext(ctx,
			agentID, rec.Key, rec.DocumentID, rec.Ordinal, rec.Content,
			rec.SourceName, rec.SourceURI, encodeEmbedding(rec.Embedding), createdAt,
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", rec.Key, err)
		}
	}
	return tx.Commit()
}

// Search scans the agent's collection and ranks by cosine similarity.
func (s *SQLiteStore) Search(ctx context.Context, agentID string, embedding []float32, topK int) ([]*models.ChunkMatch, error) {
	if topK <= 0 {
		topK = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, document_id, ordinal, content, source_name, source_uri, embedding, created_at
		FROM chunks WHERE agent_id = ?
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var matches []*models.ChunkMatch
	for rows.Next() {
		var rec models.ChunkRecord
		var sourceName, sourceURI sql.NullString
		var blob []byte
		if err := rows.Scan(&rec.Key, &rec.DocumentID, &rec.Ordinal, &rec.Content,
			&sourceName, &sourceURI, &blob, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		rec.SourceName = sourceName.String
		rec.SourceURI = sourceURI.String
		rec.Embedding = decodeEmbedding(blob)

		matches = append(matches, &models.ChunkMatch{
			Record: &rec,
			Score:  cosineSimilarity(embedding, rec.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteByDocument removes the document's records by indexed lookup.
func (s *SQLiteStore) DeleteByDocument(ctx context.Context, agentID, documentID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE agent_id = ? AND document_id = ?", agentID, documentID)
	if err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeEmbedding packs a vector as little-endian float32 bytes.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// decodeEmbedding unpacks little-endian float32 bytes. Truncated trailing
// bytes are ignored.
func decodeEmbedding(b []byte) []float32 {
	n := len(b) / 4
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
