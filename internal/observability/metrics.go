package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the engine's Prometheus metrics.
//
// Tracked series:
//   - LLM request counts and latency by provider, model, and status
//   - Token consumption by provider and model
//   - Tool execution counts and latency by tool and status
//   - Ingestion job counts, latency, and live queue depth
//   - Errors by component and type
type Metrics struct {
	// LLMRequestCounter counts provider round-trips.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMRequestDuration measures provider call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// IngestionJobCounter counts processed ingestion jobs.
	// Labels: status (processed|skipped|failed)
	IngestionJobCounter *prometheus.CounterVec

	// IngestionJobDuration measures ingestion job latency in seconds.
	IngestionJobDuration prometheus.Histogram

	// IngestionQueueDepth gauges the number of queued jobs.
	IngestionQueueDepth prometheus.Gauge

	// ErrorCounter tracks errors by component and type.
	// Labels: component (provider|orchestrator|tool|ingest), error_type
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates metrics registered on the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates metrics registered on the given registerer.
// Tests pass a fresh prometheus.NewRegistry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LLMRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "andy_llm_requests_total",
			Help: "Total LLM requests by provider, model, and status.",
		}, []string{"provider", "model", "status"}),

		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "andy_llm_request_duration_seconds",
			Help:    "LLM request latency in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		LLMTokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "andy_llm_tokens_total",
			Help: "Token consumption by provider, model, and type.",
		}, []string{"provider", "model", "type"}),

		ToolExecutionCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "andy_tool_executions_total",
			Help: "Tool invocations by tool name and status.",
		}, []string{"tool_name", "status"}),

		ToolExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "andy_tool_execution_duration_seconds",
			Help:    "Tool execution time in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool_name"}),

		IngestionJobCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "andy_ingestion_jobs_total",
			Help: "Ingestion jobs by terminal status.",
		}, []string{"status"}),

		IngestionJobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "andy_ingestion_job_duration_seconds",
			Help:    "Ingestion job latency in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),

		IngestionQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "andy_ingestion_queue_depth",
			Help: "Number of ingestion jobs waiting in the queue.",
		}),

		ErrorCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "andy_errors_total",
			Help: "Errors by component and type.",
		}, []string{"component", "error_type"}),
	}
}
