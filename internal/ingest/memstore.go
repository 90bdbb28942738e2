package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// MemoryDocuments is an in-memory DocumentStore. It backs deployments that
// have no external document database and the loading of documents from disk
// at startup.
type MemoryDocuments struct {
	mu   sync.RWMutex
	docs map[string]map[string]*models.Document // agent id -> document id
}

var _ DocumentStore = (*MemoryDocuments)(nil)

// NewMemoryDocuments creates an empty document store.
func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{docs: make(map[string]map[string]*models.Document)}
}

// Add stores a document under its owning agent. A missing ID is generated.
func (m *MemoryDocuments) Add(doc *models.Document) *models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.UpdatedAt = doc.CreatedAt
	byID, ok := m.docs[doc.AgentID]
	if !ok {
		byID = make(map[string]*models.Document)
		m.docs[doc.AgentID] = byID
	}
	byID[doc.ID] = doc
	return doc
}

// GetDocument returns the document or an error when either the agent or the
// document is unknown.
func (m *MemoryDocuments) GetDocument(_ context.Context, agentID, documentID string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[agentID][documentID]
	if !ok {
		return nil, fmt.Errorf("document %s not found for agent %s", documentID, agentID)
	}
	copied := *doc
	return &copied, nil
}

// ListDocuments returns the agent's documents ordered by name.
func (m *MemoryDocuments) ListDocuments(_ context.Context, agentID string) ([]*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Document, 0, len(m.docs[agentID]))
	for _, doc := range m.docs[agentID] {
		copied := *doc
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// MarkIngested records a successful ingestion pass for the document.
func (m *MemoryDocuments) MarkIngested(_ context.Context, agentID, documentID string, chunkCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[agentID][documentID]
	if !ok {
		return fmt.Errorf("document %s not found for agent %s", documentID, agentID)
	}
	doc.Ingested = true
	doc.ChunkCount = chunkCount
	doc.UpdatedAt = time.Now().UTC()
	return nil
}
