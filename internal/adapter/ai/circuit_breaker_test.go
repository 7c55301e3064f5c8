package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBreaker(now *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker("gemini-2.5-flash")
	cb.now = func() time.Time { return *now }
	return cb
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Unix(0, 0)
	cb := newTestBreaker(&now)

	for i := 0; i < 2; i++ {
		assert.True(t, cb.Allow())
		cb.RecordFailure()
	}
	assert.Equal(t, CircuitClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	now := time.Unix(0, 0)
	cb := newTestBreaker(&now)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Unix(0, 0)
	cb := newTestBreaker(&now)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	now = now.Add(29 * time.Second)
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Second)
	assert.True(t, cb.Allow(), "first call after recovery timeout probes")
	assert.Equal(t, CircuitHalfOpen, cb.State())
	assert.False(t, cb.Allow(), "only one probe at a time")

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State(), "failed probe reopens")
	assert.False(t, cb.Allow())

	now = now.Add(31 * time.Second)
	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreakerManager(t *testing.T) {
	m := NewCircuitBreakerManager()
	a := m.Get("primary")
	assert.Same(t, a, m.Get("primary"))
	assert.NotSame(t, a, m.Get("fallback"))

	for i := 0; i < 3; i++ {
		a.RecordFailure()
	}
	assert.Equal(t, map[string]string{"primary": "open", "fallback": "closed"}, m.States())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}
