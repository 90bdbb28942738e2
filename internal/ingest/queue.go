// Package ingest runs the document ingestion pipeline: an unbounded queue
// fed by many producers, drained by a single consumer that chunks, embeds,
// and indexes documents into their agent's collection.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rivoli-ai/andy-agentic-sub001/internal/observability"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/chunker"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/embeddings"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/index"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/store"
	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// ErrQueueStopped is returned by Enqueue after Stop has been called.
var ErrQueueStopped = errors.New("ingestion queue stopped")

// AgentResolver looks up agents for queued jobs.
type AgentResolver interface {
	GetAgent(ctx context.Context, agentID string) (*models.Agent, error)
}

// DocumentStore provides documents to the worker and accepts ingestion
// state updates.
type DocumentStore interface {
	GetDocument(ctx context.Context, agentID, documentID string) (*models.Document, error)
	ListDocuments(ctx context.Context, agentID string) ([]*models.Document, error)
	MarkIngested(ctx context.Context, agentID, documentID string, chunkCount int) error
}

// Queue is the unbounded multi-producer single-consumer ingestion queue.
// Enqueue never blocks; one consumer goroutine processes jobs in order.
// Job failures are logged and dropped, never retried.
type Queue struct {
	agents    AgentResolver
	docs      DocumentStore
	store     store.VectorStore
	chunker   *chunker.SentenceChunker
	extractor TextExtractor
	logger    *slog.Logger
	metrics   *observability.Metrics

	// embedderFor builds a provider from an agent's embedding settings.
	// Overridable in tests.
	embedderFor func(*models.EmbeddingSettings) (embeddings.Provider, error)

	mu      sync.Mutex
	jobs    []*models.IngestionJob
	stopped bool

	signal  chan struct{}
	quit    chan struct{}
	started bool
	wg      sync.WaitGroup

	runningMu sync.Mutex
	running   bool

	notifications chan *models.IngestionStatus
}

// NewQueue creates a queue. Metrics may be nil; the extractor defaults to
// plain text.
func NewQueue(agents AgentResolver, docs DocumentStore, s store.VectorStore, c *chunker.SentenceChunker, extractor TextExtractor, logger *slog.Logger, metrics *observability.Metrics) *Queue {
	if extractor == nil {
		extractor = PlainTextExtractor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = chunker.NewSentenceChunker(chunker.DefaultConfig())
	}
	return &Queue{
		agents:    agents,
		docs:      docs,
		store:     s,
		chunker:   c,
		extractor: extractor,
		logger:    logger.With("component", "ingest"),
		metrics:   metrics,
		embedderFor: func(settings *models.EmbeddingSettings) (embeddings.Provider, error) {
			return embeddings.New(embeddings.Config{
				Provider: settings.Provider,
				APIKey:   settings.APIKey,
				BaseURL:  settings.BaseURL,
				Model:    settings.Model,
			})
		},
		signal:        make(chan struct{}, 1),
		quit:          make(chan struct{}),
		notifications: make(chan *models.IngestionStatus, 64),
	}
}

// Enqueue accepts an ingestion job without blocking. A nil documentID means
// reprocess every document the agent owns.
func (q *Queue) Enqueue(documentID *string, agentID string) (*models.IngestionJob, error) {
	job := &models.IngestionJob{
		DocumentID: documentID,
		AgentID:    agentID,
		EnqueuedAt: time.Now().UTC(),
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil, ErrQueueStopped
	}
	q.jobs = append(q.jobs, job)
	depth := len(q.jobs)
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.IngestionQueueDepth.Set(float64(depth))
	}

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return job, nil
}

// Depth returns the number of jobs waiting in the queue.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Running reports whether the consumer is processing a job right now.
func (q *Queue) Running() bool {
	q.runningMu.Lock()
	defer q.runningMu.Unlock()
	return q.running
}

// Notifications returns the stream of per-document ingestion outcomes.
// Sends are non-blocking; a slow reader loses notifications, not jobs.
// Callers that only need completion should use AwaitIdle instead.
func (q *Queue) Notifications() <-chan *models.IngestionStatus {
	return q.notifications
}

// AwaitIdle blocks until every job enqueued so far has been processed or the
// context ends. Meaningful only once producers have stopped enqueueing.
// Unlike counting notifications, it cannot stall when the notification
// buffer overflows.
func (q *Queue) AwaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if q.Depth() == 0 && !q.Running() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Start launches the consumer goroutine. Calling it more than once has no
// effect.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true
	q.wg.Add(1)
	go q.consume()
}

// Stop closes intake, drains every queued job, and returns once the
// consumer has finished.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.wg.Wait()
		return
	}
	q.stopped = true
	started := q.started
	q.mu.Unlock()

	close(q.quit)
	if started {
		q.wg.Wait()
	}
}

// dequeue pops the next job. The running flag is raised before the queue
// lock is released so Depth()==0 && !Running() can never be observed while
// a job is still in flight.
func (q *Queue) dequeue() *models.IngestionJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.setRunning(true)
	if q.metrics != nil {
		q.metrics.IngestionQueueDepth.Set(float64(len(q.jobs)))
	}
	return job
}

func (q *Queue) consume() {
	defer q.wg.Done()
	for {
		if job := q.dequeue(); job != nil {
			q.process(context.Background(), job)
			q.setRunning(false)
			continue
		}
		select {
		case <-q.signal:
		case <-q.quit:
			// Drain whatever is still queued before returning.
			for {
				job := q.dequeue()
				if job == nil {
					return
				}
				q.process(context.Background(), job)
				q.setRunning(false)
			}
		}
	}
}

func (q *Queue) setRunning(v bool) {
	q.runningMu.Lock()
	q.running = v
	q.runningMu.Unlock()
}

// process handles one dequeued unit of work. Failures are logged and
// dropped.
func (q *Queue) process(ctx context.Context, job *models.IngestionJob) {
	start := time.Now()

	agent, err := q.agents.GetAgent(ctx, job.AgentID)
	if err != nil {
		q.dropJob(ctx, job, fmt.Errorf("resolve agent: %w", err))
		return
	}
	if agent.Embedding == nil {
		q.logger.InfoContext(ctx, "skipping job, agent has no embedding settings",
			"agent_id", job.AgentID)
		q.countJob("skipped", start)
		return
	}

	embedder, err := q.embedderFor(agent.Embedding)
	if err != nil {
		q.dropJob(ctx, job, fmt.Errorf("build embedding provider: %w", err))
		return
	}
	upserter := index.NewUpserter(q.store, embedder, q.logger)

	if job.DocumentID != nil {
		doc, err := q.docs.GetDocument(ctx, job.AgentID, *job.DocumentID)
		if err != nil {
			q.dropJob(ctx, job, fmt.Errorf("load document: %w", err))
			return
		}
		q.processDocument(ctx, agent, upserter, doc)
		q.countJob(statusLabel(true), start)
		return
	}

	// Reprocess everything the agent owns, concurrently within this one
	// unit of work.
	docs, err := q.docs.ListDocuments(ctx, job.AgentID)
	if err != nil {
		q.dropJob(ctx, job, fmt.Errorf("list documents: %w", err))
		return
	}
	var wg sync.WaitGroup
	for _, doc := range docs {
		wg.Add(1)
		go func(doc *models.Document) {
			defer wg.Done()
			q.processDocument(ctx, agent, upserter, doc)
		}(doc)
	}
	wg.Wait()
	q.countJob(statusLabel(true), start)
}

// processDocument runs the full pipeline for one document: extract, chunk,
// replace old records, upsert, mark ingested, notify.
func (q *Queue) processDocument(ctx context.Context, agent *models.Agent, upserter *index.Upserter, doc *models.Document) {
	err := q.ingestDocument(ctx, agent, upserter, doc)
	status := &models.IngestionStatus{
		DocumentID: doc.ID,
		AgentID:    agent.ID,
		Processed:  err == nil,
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		status.Error = err.Error()
		q.logger.ErrorContext(ctx, "document ingestion failed",
			"agent_id", agent.ID, "document_id", doc.ID, "error", err)
		if q.metrics != nil {
			q.metrics.ErrorCounter.WithLabelValues("ingest", "document").Inc()
		}
	} else {
		q.logger.InfoContext(ctx, "document ingested",
			"agent_id", agent.ID, "document_id", doc.ID)
	}
	q.notify(status)
}

func (q *Queue) ingestDocument(ctx context.Context, agent *models.Agent, upserter *index.Upserter, doc *models.Document) error {
	text, err := q.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	chunks := q.chunker.Chunk(text)

	// Old records go first so a shrinking document leaves no stale tail.
	if err := upserter.DeleteDocument(ctx, agent.ID, doc.ID); err != nil {
		return err
	}
	if len(chunks) > 0 {
		if _, err := upserter.Upsert(ctx, agent.ID, doc, chunks); err != nil {
			return err
		}
	}
	if err := q.docs.MarkIngested(ctx, agent.ID, doc.ID, len(chunks)); err != nil {
		return fmt.Errorf("mark ingested: %w", err)
	}
	return nil
}

func (q *Queue) dropJob(ctx context.Context, job *models.IngestionJob, err error) {
	q.logger.ErrorContext(ctx, "dropping ingestion job",
		"agent_id", job.AgentID, "error", err)
	if q.metrics != nil {
		q.metrics.IngestionJobCounter.WithLabelValues("failed").Inc()
		q.metrics.ErrorCounter.WithLabelValues("ingest", "job").Inc()
	}
	q.notify(&models.IngestionStatus{
		DocumentID: derefOrEmpty(job.DocumentID),
		AgentID:    job.AgentID,
		Processed:  false,
		Error:      err.Error(),
		Timestamp:  time.Now().UTC(),
	})
}

func (q *Queue) countJob(status string, start time.Time) {
	if q.metrics == nil {
		return
	}
	q.metrics.IngestionJobCounter.WithLabelValues(status).Inc()
	q.metrics.IngestionJobDuration.Observe(time.Since(start).Seconds())
}

func (q *Queue) notify(status *models.IngestionStatus) {
	select {
	case q.notifications <- status:
	default:
	}
}

func statusLabel(ok bool) string {
	if ok {
		return "processed"
	}
	return "failed"
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
