package metrics

// Collector wraps the package metrics with a pre-filled direction label.
type Collector struct {
	direction string
}

// NewCollector creates a Collector reporting under the given direction.
func NewCollector(direction string) *Collector {
	return &Collector{direction: direction}
}

// IncApplied increments the applied counter.
func (c *Collector) IncApplied() {
	AppliedTotal.WithLabelValues(c.direction).Inc()
}

// IncFailed increments the failed counter.
func (c *Collector) IncFailed() {
	FailedTotal.WithLabelValues(c.direction).Inc()
}

// IncSkipped increments the skipped counter.
func (c *Collector) IncSkipped() {
	SkippedTotal.WithLabelValues(c.direction).Inc()
}

// IncLockWaits increments the lock wait counter.
func (c *Collector) IncLockWaits() {
	LockWaitsTotal.Inc()
}

// IncConsistencyFailures increments the consistency failure counter.
func (c *Collector) IncConsistencyFailures() {
	ConsistencyFailuresTotal.Inc()
}

// ObserveDuration records one migration's execution time.
func (c *Collector) ObserveDuration(seconds float64) {
	Duration.WithLabelValues(c.direction).Observe(seconds)
}
