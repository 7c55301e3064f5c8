// Package domain defines entities, ports and the error taxonomy of the evaluation pipeline.
package domain

import (
	"time"
)

// RetryConfig defines the retry behaviour of a generation call.
type RetryConfig struct {
	// MaxAttempts counts the first call.
	MaxAttempts int
	// InitialDelay is the base delay before the second attempt; it doubles per attempt.
	InitialDelay time.Duration
	// MaxJitter is the exclusive upper bound of the random delay added per attempt.
	MaxJitter time.Duration
}

// DefaultRetryConfig returns 3 attempts, 1s initial delay and up to 1s jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxJitter:    time.Second,
	}
}

// DelayBefore returns the base delay before attempt k (k >= 2), without jitter.
func (c RetryConfig) DelayBefore(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	return c.InitialDelay << uint(attempt-2)
}
