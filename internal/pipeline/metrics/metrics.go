// Package metrics exposes Prometheus metrics for the orchestration layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UnitRuns counts unit invocation outcomes per unit and status.
	UnitRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_unit_runs_total",
			Help: "Total unit invocations by terminal status",
		},
		[]string{"unit", "status"},
	)

	// UnitSkips counts gate-level skips per unit and reason code.
	UnitSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_unit_skips_total",
			Help: "Total gate-level skips by reason code",
		},
		[]string{"unit", "reason"},
	)

	// UnitDuration tracks per-unit wall-clock run time.
	UnitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conductor_unit_duration_seconds",
			Help:    "Unit invocation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"unit"},
	)

	// BreakerTransitions counts circuit breaker state transitions.
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"unit", "to_state"},
	)

	// BreakerState exposes the current breaker state per unit
	// (0=closed, 1=half-open, 2=open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conductor_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"unit"},
	)

	// FallbackUsage counts resolutions served by non-primary sources.
	FallbackUsage = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_fallback_usage_total",
			Help: "Resolutions served by a non-primary source",
		},
		[]string{"dataset", "source"},
	)

	// FallbackExhausted counts chains that ran out of sources, by policy.
	FallbackExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_fallback_exhausted_total",
			Help: "Fallback chains exhausted, by terminal policy",
		},
		[]string{"dataset", "policy"},
	)

	// CheckpointProgress tracks processed day counts per job.
	CheckpointProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conductor_checkpoint_processed_days",
			Help: "Days resolved (successful + failed + skipped) per job",
		},
		[]string{"job"},
	)

	// DBPoolUsage tracks database connection pool utilization.
	DBPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conductor_db_pool_usage_percent",
			Help: "Database connection pool utilization percentage",
		},
	)
)
