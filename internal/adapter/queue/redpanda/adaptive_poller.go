package redpanda

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// AdaptivePoller spaces out polls while the broker keeps failing. Healthy
// polls run back to back; after n consecutive failures the wait is
// base × factor^(n-1), capped at max.
type AdaptivePoller struct {
	mu                 sync.Mutex
	baseInterval       time.Duration
	maxInterval        time.Duration
	backoffFactor      float64
	consecutiveFailure int
}

// NewAdaptivePoller returns a poller starting at baseInterval and capped at 10s.
func NewAdaptivePoller(baseInterval time.Duration) *AdaptivePoller {
	return &AdaptivePoller{
		baseInterval:  baseInterval,
		maxInterval:   10 * time.Second,
		backoffFactor: 2,
	}
}

// NextInterval returns how long to wait before the next poll.
func (ap *AdaptivePoller) NextInterval() time.Duration {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	if ap.consecutiveFailure == 0 {
		return 0
	}
	interval := float64(ap.baseInterval) * math.Pow(ap.backoffFactor, float64(ap.consecutiveFailure-1))
	if interval > float64(ap.maxInterval) {
		return ap.maxInterval
	}
	return time.Duration(interval)
}

// RecordSuccess resets the backoff.
func (ap *AdaptivePoller) RecordSuccess() {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	if ap.consecutiveFailure > 0 {
		slog.Info("broker polls recovered", slog.Int("after_failures", ap.consecutiveFailure))
	}
	ap.consecutiveFailure = 0
}

// RecordFailure lengthens the next interval.
func (ap *AdaptivePoller) RecordFailure() {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.consecutiveFailure++
}

// IsHealthy reports whether the last poll succeeded.
func (ap *AdaptivePoller) IsHealthy() bool {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.consecutiveFailure == 0
}
