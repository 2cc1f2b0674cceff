package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AppliedTotal tracks migrations applied successfully, by direction.
var AppliedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "migrate_applied_total",
		Help: "Total migrations executed successfully",
	},
	[]string{"direction"},
)

// FailedTotal tracks migration actions that returned an error.
var FailedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "migrate_failed_total",
		Help: "Total migration executions that failed",
	},
	[]string{"direction"},
)

// SkippedTotal tracks migrations with no action for the requested direction.
var SkippedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "migrate_skipped_total",
		Help: "Total migrations skipped for lack of an action",
	},
	[]string{"direction"},
)

// LockWaitsTotal tracks attempts that found the lock held by another process.
var LockWaitsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "migrate_lock_waits_total",
		Help: "Total lock attempts that had to wait",
	},
)

// ConsistencyFailuresTotal tracks plans aborted by the consistency check.
var ConsistencyFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "migrate_consistency_failures_total",
		Help: "Total runs aborted because history diverged from the file set",
	},
)

// Duration records per-migration execution time.
var Duration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "migrate_duration_seconds",
		Help:    "Execution time of individual migrations",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	},
	[]string{"direction"},
)
