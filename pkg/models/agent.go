package models

import "time"

// Agent is a configured persona: a system prompt plus an LLM backend and an
// optional embedding backend for document retrieval.
type Agent struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	SystemPrompt string             `json:"system_prompt,omitempty"`
	Tools        []string           `json:"tools,omitempty"`
	LLM          LLMSettings        `json:"llm"`
	Embedding    *EmbeddingSettings `json:"embedding,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// LLMSettings selects and parameterizes the chat-completion backend for an agent.
type LLMSettings struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"-"`
	BaseURL  string `json:"base_url,omitempty"`

	MaxTokens        int     `json:"max_tokens,omitempty"`
	Temperature      float32 `json:"temperature,omitempty"`
	TopP             float32 `json:"top_p,omitempty"`
	FrequencyPenalty float32 `json:"frequency_penalty,omitempty"`
	PresencePenalty  float32 `json:"presence_penalty,omitempty"`
}

// EmbeddingSettings selects the embedding backend for an agent's document
// collection. Agents without embedding settings cannot ingest documents.
type EmbeddingSettings struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"-"`
	BaseURL  string `json:"base_url,omitempty"`
}
