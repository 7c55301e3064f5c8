package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestScoreDriftMonitor(t *testing.T) {
	m := NewScoreDriftMonitor(3, 10)

	for _, s := range []int{70, 72, 74} {
		assert.Zero(t, m.Record("general", "gemini-2.5-flash", s))
	}
	// baseline is 72; the next window slides in one score at a time
	assert.InDelta(t, 10.0/3, m.Record("general", "gemini-2.5-flash", 80), 1e-9)
	assert.InDelta(t, 6.0, m.Record("general", "gemini-2.5-flash", 80), 1e-9)
	assert.InDelta(t, 8.0, m.Record("general", "gemini-2.5-flash", 80), 1e-9)
	assert.InDelta(t, 8.0, testutil.ToFloat64(RoundScoreDrift.WithLabelValues("general", "gemini-2.5-flash")), 1e-9)

	assert.Zero(t, m.Record("coding", "gemini-2.5-flash", 10), "keys are tracked separately")

	var nilMonitor *ScoreDriftMonitor
	assert.Zero(t, nilMonitor.Record("general", "m", 50))
}
