// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Chat messages handled, by resolved intent and intent source",
		},
		[]string{"intent", "source"},
	)

	ChatRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_request_duration_seconds",
			Help:    "End-to-end chat handling duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2.5, 5},
		},
		[]string{"intent"},
	)

	ChatErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_errors_total",
			Help: "Unexpected chat pipeline errors caught at the entry point",
		},
		[]string{"stage"},
	)

	NLPCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlp_calls_total",
			Help: "NLP service calls by outcome (ok, cache_hit, timeout, error, malformed)",
		},
		[]string{"outcome"},
	)

	NLPCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nlp_call_duration_seconds",
			Help:    "NLP service call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 0.8, 1.2, 2},
		},
	)

	SearchFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_fallback_total",
			Help: "Fallback tier attempts by tier and outcome (hit, miss, skipped)",
		},
		[]string{"tier", "outcome"},
	)

	StorageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_failures_total",
			Help: "Product storage failures treated as empty results",
		},
		[]string{"operation"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)
