// Package models defines the core data types shared across the engine.
package models

import (
	"fmt"
	"time"
)

// Document represents an uploaded document owned by an agent.
// Documents are chunked and embedded before becoming searchable.
type Document struct {
	// ID is the unique identifier for the document.
	ID string `json:"id"`

	// AgentID is the owning agent; chunks land in this agent's collection.
	AgentID string `json:"agent_id"`

	// Name is the human-readable name of the document.
	Name string `json:"name"`

	// SourceURI is the original path or URL the document came from.
	SourceURI string `json:"source_uri,omitempty"`

	// ContentType is the MIME type of the original document.
	ContentType string `json:"content_type,omitempty"`

	// Content is the raw extracted text.
	Content string `json:"content"`

	// Ingested reports whether the document has been chunked and embedded.
	Ingested bool `json:"ingested"`

	// ChunkCount is the number of chunks from the last ingestion.
	ChunkCount int `json:"chunk_count,omitempty"`

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the document was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// ChunkRecord is the unit stored in an agent's vector collection.
// Its key is derived from the document id and chunk ordinal, so re-ingesting
// a document supersedes the prior records rather than merging with them.
type ChunkRecord struct {
	// Key uniquely identifies the record within the collection.
	Key string `json:"key"`

	// DocumentID links the record back to its source document.
	DocumentID string `json:"document_id"`

	// Ordinal is the chunk position within the document (0-based).
	Ordinal int `json:"ordinal"`

	// Content is the chunk text, including any leading overlap.
	Content string `json:"content"`

	// Embedding is the vector for semantic search.
	Embedding []float32 `json:"-"`

	// SourceName is the document name, carried for search results.
	SourceName string `json:"source_name,omitempty"`

	// SourceURI locates the chunk's origin.
	SourceURI string `json:"source_uri,omitempty"`

	// CreatedAt is when the record was written.
	CreatedAt time.Time `json:"created_at"`
}

// ChunkKey builds the canonical record key for a document chunk.
func ChunkKey(documentID string, ordinal int) string {
	return fmt.Sprintf("%s_%d", documentID, ordinal)
}

// ChunkMatch is a search hit with its similarity score.
type ChunkMatch struct {
	Record *ChunkRecord `json:"record"`
	Score  float32      `json:"score"`
}
