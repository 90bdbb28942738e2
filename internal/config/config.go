// Package config loads and validates the service configuration from YAML
// (or JSON5) files, with $include composition and environment variable
// expansion.
package config

import (
	"fmt"
	"strings"

	"github.com/rivoli-ai/andy-agentic-sub001/internal/agent"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/observability"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/chunker"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/embeddings"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/store"
	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// Config is the root configuration for the service.
type Config struct {
	Logging      observability.LogConfig   `yaml:"logging"`
	Tracing      observability.TraceConfig `yaml:"tracing"`
	LLM          LLMConfig                 `yaml:"llm"`
	Embeddings   embeddings.Config         `yaml:"embeddings"`
	Chunker      chunker.Config            `yaml:"chunker"`
	Orchestrator agent.OrchestratorConfig  `yaml:"orchestrator"`
	Store        store.Config              `yaml:"store"`
	Agents       []AgentConfig             `yaml:"agents"`
}

// LLMConfig configures the available completion providers.
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

// LLMProviderConfig holds per-provider connection settings.
type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// AgentConfig declares an agent in the configuration file.
type AgentConfig struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	SystemPrompt string            `yaml:"system_prompt"`
	Tools        []string          `yaml:"tools"`
	LLM          AgentLLMConfig    `yaml:"llm"`
	Embedding    *embeddings.Config `yaml:"embedding"`
}

// AgentLLMConfig selects the provider and model an agent speaks through.
type AgentLLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	TopP        float32 `yaml:"top_p"`
}

// ToModel converts the declared agent into the runtime model, filling in
// provider-level defaults for anything the agent leaves unset.
func (a AgentConfig) ToModel(llm LLMConfig) *models.Agent {
	provider := a.LLM.Provider
	if provider == "" {
		provider = llm.DefaultProvider
	}
	settings := models.LLMSettings{
		Provider:    provider,
		Model:       a.LLM.Model,
		MaxTokens:   a.LLM.MaxTokens,
		Temperature: a.LLM.Temperature,
		TopP:        a.LLM.TopP,
	}
	if pc, ok := llm.Providers[provider]; ok {
		settings.APIKey = pc.APIKey
		settings.BaseURL = pc.BaseURL
		if settings.Model == "" {
			settings.Model = pc.DefaultModel
		}
	}
	out := &models.Agent{
		ID:           a.ID,
		Name:         a.Name,
		SystemPrompt: a.SystemPrompt,
		Tools:        append([]string(nil), a.Tools...),
		LLM:          settings,
	}
	if a.Embedding != nil {
		out.Embedding = &models.EmbeddingSettings{
			Provider: a.Embedding.Provider,
			Model:    a.Embedding.Model,
			APIKey:   a.Embedding.APIKey,
			BaseURL:  a.Embedding.BaseURL,
		}
	}
	return out
}

// Load reads, merges, and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "andy"
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "openai"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "sqlite"
	}
	if cfg.Store.Backend == "sqlite" && cfg.Store.Path == "" {
		cfg.Store.Path = "andy.db"
	}
}

// Validate rejects configurations that cannot produce a working service.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Store.Backend) {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case "pgvector":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the pgvector backend")
		}
		if c.Store.Dimension <= 0 {
			return fmt.Errorf("store.dimension is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("store.backend %q is not one of sqlite, pgvector", c.Store.Backend)
	}

	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("agents[%d]: id is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("agents[%d]: duplicate agent id %q", i, a.ID)
		}
		seen[a.ID] = true
		provider := a.LLM.Provider
		if provider == "" {
			provider = c.LLM.DefaultProvider
		}
		if _, ok := c.LLM.Providers[provider]; !ok && len(c.LLM.Providers) > 0 {
			return fmt.Errorf("agents[%d]: llm provider %q is not configured", i, provider)
		}
	}
	return nil
}
