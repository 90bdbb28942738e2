package models

import "time"

// IngestionJob is one unit of document-ingestion work. A nil DocumentID
// means "reprocess every document belonging to the agent".
type IngestionJob struct {
	DocumentID *string   `json:"document_id,omitempty"`
	AgentID    string    `json:"agent_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// IngestionStatus is the notification emitted when a job reaches a terminal
// state. Processed is false when the job failed or was skipped.
type IngestionStatus struct {
	DocumentID string    `json:"document_id,omitempty"`
	AgentID    string    `json:"agent_id"`
	Processed  bool      `json:"processed"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
