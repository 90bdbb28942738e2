package agent

import (
	"sync"

	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// TurnRecorder collects every tool execution performed during one turn.
// It is append-only and safe for the concurrent tool fan-out; a fresh
// recorder is created per StreamTurn call.
type TurnRecorder struct {
	mu      sync.Mutex
	records []*models.ToolExecutionRecord
}

// NewTurnRecorder creates an empty recorder.
func NewTurnRecorder() *TurnRecorder {
	return &TurnRecorder{}
}

// Record appends one execution record.
func (r *TurnRecorder) Record(rec *models.ToolExecutionRecord) {
	if rec == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// Records returns a copy of the collected records.
func (r *TurnRecorder) Records() []*models.ToolExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.ToolExecutionRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of recorded executions.
func (r *TurnRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
