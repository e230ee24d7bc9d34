// Package metrics implements the engine's MetricsCollector port on
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arenaops/go-arena/internal/ports"
)

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// PrometheusMetrics implements the MetricsCollector port using Prometheus.
// It tracks access decisions, cache effectiveness, and aggregation latency
// for the contest engine.
type PrometheusMetrics struct {
	operationLatency *prometheus.HistogramVec
	accessDecisions  *prometheus.CounterVec
	cacheEvents      *prometheus.CounterVec
	eventCounter     *prometheus.CounterVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// its collectors in the given registry, or the global default when reg is
// nil.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}
	return &PrometheusMetrics{
		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arena_operation_duration_seconds",
				Help:    "Execution time of contest engine operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		accessDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_access_decisions_total",
				Help: "Access gate decisions by outcome.",
			},
			[]string{"outcome"},
		),
		cacheEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_cache_events_total",
				Help: "Result cache hits and misses.",
			},
			[]string{"event"},
		),
		eventCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_events_total",
				Help: "Uncategorized contest engine events.",
			},
			[]string{"event"},
		),
	}
}

// RecordLatency implements the MetricsCollector port by observing the
// duration in the operation histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, _ map[string]string) {
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector port by incrementing the
// counter matching the metric name.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "access_decisions_total":
		outcome := labels["outcome"]
		if outcome == "" {
			outcome = "unknown"
		}
		pm.accessDecisions.WithLabelValues(outcome).Add(value)
	case "cache_hits_total":
		pm.cacheEvents.WithLabelValues("hit").Add(value)
	case "cache_misses_total":
		pm.cacheEvents.WithLabelValues("miss").Add(value)
	default:
		pm.eventCounter.WithLabelValues(metric).Add(value)
	}
}
