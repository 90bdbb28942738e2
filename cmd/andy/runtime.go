package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rivoli-ai/andy-agentic-sub001/internal/agent"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/agent/providers"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/config"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/ingest"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/observability"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/chunker"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/embeddings"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/index"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/store"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/tools/docsearch"
	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// agentSet resolves config-declared agents by id.
type agentSet map[string]*models.Agent

var _ ingest.AgentResolver = agentSet(nil)

func (s agentSet) GetAgent(_ context.Context, agentID string) (*models.Agent, error) {
	a, ok := s[agentID]
	if !ok {
		return nil, fmt.Errorf("agent %s not found", agentID)
	}
	return a, nil
}

// runtime holds the wired engine components for one CLI invocation.
type runtime struct {
	cfg          *config.Config
	logger       *slog.Logger
	metrics      *observability.Metrics
	tracer       *observability.Tracer
	orchestrator *agent.TurnOrchestrator
	vectors      store.VectorStore
	docs         *ingest.MemoryDocuments
	agents       agentSet
	queue        *ingest.Queue

	shutdownTracer func(context.Context) error
}

// newRuntime loads the configuration and builds every engine component.
func newRuntime(ctx context.Context, configPath string, debug bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	logger := observability.SetDefault(cfg.Logging)
	metrics := observability.NewMetrics()

	tracer, shutdownTracer, err := observability.NewTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	registry := agent.NewProviderRegistry()
	openaiCfg := cfg.LLM.Providers["openai"]
	registry.Register(providers.NewOpenAIProvider(openaiCfg.APIKey, openaiCfg.BaseURL, logger))
	ollamaCfg := cfg.LLM.Providers["ollama"]
	registry.Register(providers.NewOllamaProvider(ollamaCfg.BaseURL, ollamaCfg.DefaultModel, logger))

	vectors, err := store.New(cfg.Store)
	if err != nil {
		_ = shutdownTracer(ctx)
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	tools := agent.NewToolRegistry()
	if cfg.Embeddings.Provider != "" {
		embedder, err := embeddings.New(cfg.Embeddings)
		if err != nil {
			_ = vectors.Close()
			_ = shutdownTracer(ctx)
			return nil, fmt.Errorf("failed to build embedding provider: %w", err)
		}
		searchIndex := index.NewUpserter(vectors, embedder, logger)
		if err := tools.Register(docsearch.New(searchIndex)); err != nil {
			_ = vectors.Close()
			_ = shutdownTracer(ctx)
			return nil, fmt.Errorf("failed to register document_search: %w", err)
		}
	}

	agents := make(agentSet, len(cfg.Agents))
	for _, a := range cfg.Agents {
		agents[a.ID] = a.ToModel(cfg.LLM)
	}

	docs := ingest.NewMemoryDocuments()
	queue := ingest.NewQueue(
		agents, docs, vectors,
		chunker.NewSentenceChunker(cfg.Chunker),
		nil, logger, metrics,
	)

	return &runtime{
		cfg:            cfg,
		logger:         logger,
		metrics:        metrics,
		tracer:         tracer,
		orchestrator:   agent.NewTurnOrchestrator(registry, tools, &cfg.Orchestrator, logger, metrics, tracer),
		vectors:        vectors,
		docs:           docs,
		agents:         agents,
		queue:          queue,
		shutdownTracer: shutdownTracer,
	}, nil
}

// close releases the runtime's resources. The queue must already be stopped.
func (r *runtime) close(ctx context.Context) {
	if err := r.vectors.Close(); err != nil {
		r.logger.Warn("failed to close vector store", "error", err)
	}
	if err := r.shutdownTracer(ctx); err != nil {
		r.logger.Warn("failed to shut down tracer", "error", err)
	}
}

// loadDocumentsDir registers every regular file under dir as a document for
// the agent and enqueues it for ingestion. Returns the number of documents
// enqueued.
func (r *runtime) loadDocumentsDir(dir, agentID string) (int, error) {
	if _, ok := r.agents[agentID]; !ok {
		return 0, fmt.Errorf("agent %s not found", agentID)
	}
	count := 0
	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		doc := r.docs.Add(&models.Document{
			AgentID:   agentID,
			Name:      entry.Name(),
			SourceURI: path,
			Content:   string(data),
		})
		if _, err := r.queue.Enqueue(&doc.ID, agentID); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	return count, nil
}

