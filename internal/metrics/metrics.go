// Package metrics exposes Prometheus collectors for the preview pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	poolRenderers             *prometheus.GaugeVec
	rendererEventsTotal       *prometheus.CounterVec
	cacheRequestsTotal        *prometheus.CounterVec
	extractionsTotal          *prometheus.CounterVec
	extractionDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		poolRenderers = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jetpreview_pool_renderers",
				Help: "Number of pooled renderers, labeled by pool and state.",
			},
			[]string{"pool", "state"},
		)

		rendererEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jetpreview_pool_events_total",
				Help: "Pool lifecycle events (borrow, return, invalidate, evict, exhausted, create_error, double_release).",
			},
			[]string{"pool", "event"},
		)

		cacheRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jetpreview_cache_requests_total",
				Help: "Metadata cache lookups, labeled by result (hit, miss, shared).",
			},
			[]string{"result"},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jetpreview_extractions_total",
				Help: "Metadata extractions, labeled by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		)

		extractionDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jetpreview_extraction_duration_seconds",
				Help:    "Histogram of extraction latencies, labeled by strategy.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"strategy"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePool records the current idle and active renderer counts.
func ObservePool(pool string, idle, active int) {
	Init()
	poolRenderers.WithLabelValues(pool, "idle").Set(float64(idle))
	poolRenderers.WithLabelValues(pool, "active").Set(float64(active))
}

// ObservePoolEvent increments the pool event counter.
func ObservePoolEvent(pool, event string) {
	Init()
	rendererEventsTotal.WithLabelValues(pool, event).Inc()
}

// ObserveCache increments the cache lookup counter for result.
func ObserveCache(result string) {
	Init()
	cacheRequestsTotal.WithLabelValues(result).Inc()
}

// ObserveExtraction records one dispatcher run.
func ObserveExtraction(strategy, outcome string, duration time.Duration) {
	Init()
	extractionsTotal.WithLabelValues(strategy, outcome).Inc()
	extractionDurationSeconds.WithLabelValues(strategy).Observe(duration.Seconds())
}
