package config

import (
	"time"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

// GetRetryConfig returns the retry policy for generation calls.
// In test environments delays are shortened so suites run fast.
func (c Config) GetRetryConfig() domain.RetryConfig {
	if c.IsTest() {
		return domain.RetryConfig{
			MaxAttempts:  max(c.GenerationMaxAttempts, 1),
			InitialDelay: 10 * time.Millisecond,
			MaxJitter:    10 * time.Millisecond,
		}
	}
	cfg := domain.DefaultRetryConfig()
	if c.GenerationMaxAttempts > 0 {
		cfg.MaxAttempts = c.GenerationMaxAttempts
	}
	if c.GenerationInitialDelay > 0 {
		cfg.InitialDelay = c.GenerationInitialDelay
	}
	if c.GenerationMaxJitter >= 0 {
		cfg.MaxJitter = c.GenerationMaxJitter
	}
	return cfg
}
