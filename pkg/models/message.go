package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry in a conversation transcript.
type Message struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToolCall represents the model's request to execute a tool.
// Input is the raw argument string as assembled from the stream; it is
// expected to be valid JSON once complete, but providers may legitimately
// violate that on malformed responses.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the output of a tool execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ToolExecutionRecord captures one tool invocation for a turn, success or
// failure. Exactly one record is produced per invocation.
type ToolExecutionRecord struct {
	ID         string    `json:"id"`
	ToolName   string    `json:"tool_name"`
	ToolCallID string    `json:"tool_call_id"`
	SessionID  string    `json:"session_id"`
	AgentID    string    `json:"agent_id"`
	Parameters string    `json:"parameters"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	Success    bool      `json:"success"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}
