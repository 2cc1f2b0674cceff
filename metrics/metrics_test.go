package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("up")

	before := testutil.ToFloat64(AppliedTotal.WithLabelValues("up"))
	c.IncApplied()
	c.IncApplied()
	after := testutil.ToFloat64(AppliedTotal.WithLabelValues("up"))
	assert.Equal(t, before+2, after)

	beforeFailed := testutil.ToFloat64(FailedTotal.WithLabelValues("up"))
	c.IncFailed()
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(FailedTotal.WithLabelValues("up")))

	beforeSkipped := testutil.ToFloat64(SkippedTotal.WithLabelValues("up"))
	c.IncSkipped()
	assert.Equal(t, beforeSkipped+1, testutil.ToFloat64(SkippedTotal.WithLabelValues("up")))
}

func TestCollector_DirectionsAreIndependent(t *testing.T) {
	up := NewCollector("up")
	down := NewCollector("down")

	beforeDown := testutil.ToFloat64(AppliedTotal.WithLabelValues("down"))
	up.IncApplied()
	assert.Equal(t, beforeDown, testutil.ToFloat64(AppliedTotal.WithLabelValues("down")))

	down.IncApplied()
	assert.Equal(t, beforeDown+1, testutil.ToFloat64(AppliedTotal.WithLabelValues("down")))
}
