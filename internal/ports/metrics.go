package ports

import "time"

// MetricsCollector defines the interface for recording operational metrics.
// Implementations should integrate with observability platforms such as
// Prometheus or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric. Useful for tracking
	// events like cache hits/misses, access decisions, and errors.
	RecordCounter(metric string, value float64, labels map[string]string)
}
