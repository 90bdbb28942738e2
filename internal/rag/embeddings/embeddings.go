// Package embeddings provides embedding providers for document indexing
// and retrieval.
package embeddings

import (
	"context"
	"fmt"
	"strings"
)

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the provider name.
	Name() string

	// Dimension returns the embedding dimension.
	Dimension() int

	// MaxBatchSize returns the maximum number of texts per batch.
	MaxBatchSize() int
}

// Config selects and configures an embedding provider.
type Config struct {
	Provider string `yaml:"provider"` // openai, ollama
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

// New creates the configured embedding provider. Unknown provider names
// yield an error listing the supported ones.
func New(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		return NewOpenAIProvider(cfg)
	case "ollama":
		return NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q, available: ollama, openai", cfg.Provider)
	}
}
