// Package telemetry exposes the Prometheus metrics surfaced at
// /metrics.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	SubmissionsTotal       = prometheus.NewCounter(prometheus.CounterOpts{Name: "review_submissions_total", Help: "Total review submissions accepted"})
	CacheHitsTotal         = prometheus.NewCounter(prometheus.CounterOpts{Name: "review_cache_hits_total", Help: "Submissions served from the result cache"})
	CacheMissesTotal       = prometheus.NewCounter(prometheus.CounterOpts{Name: "review_cache_misses_total", Help: "Submissions that missed the result cache"})
	RateLimitRejects       = prometheus.NewCounter(prometheus.CounterOpts{Name: "review_rate_limit_rejects_total", Help: "Submissions rejected by the rate limiter"})
	JobsCompletedTotal     = prometheus.NewCounter(prometheus.CounterOpts{Name: "review_jobs_completed_total", Help: "Jobs analyzed and completed successfully"})
	JobsRetriedTotal       = prometheus.NewCounter(prometheus.CounterOpts{Name: "review_jobs_retried_total", Help: "Jobs that failed analysis and were left for redelivery"})
	JobsDeadLetterTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "review_jobs_dead_letter_total", Help: "Jobs moved to the dead-letter queue"})
	MalformedMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "review_malformed_messages_total", Help: "Queue messages dropped for failing to parse"})
	QueueDepthGauge        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "review_queue_depth", Help: "Main queue ready-list depth"})
	DLQDepthGauge          = prometheus.NewGauge(prometheus.GaugeOpts{Name: "review_dlq_depth", Help: "Dead-letter messages recorded by the DLQ handler since process start"})
	AnalysisDuration       = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "review_analysis_duration_seconds", Help: "Wall-clock duration of one Analyze call", Buckets: prometheus.DefBuckets})
)

// Handler exposes /metrics with a process-wide singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			SubmissionsTotal,
			CacheHitsTotal,
			CacheMissesTotal,
			RateLimitRejects,
			JobsCompletedTotal,
			JobsRetriedTotal,
			JobsDeadLetterTotal,
			MalformedMessagesTotal,
			QueueDepthGauge,
			DLQDepthGauge,
			AnalysisDuration,
		)
	})
	return promhttp.Handler()
}
