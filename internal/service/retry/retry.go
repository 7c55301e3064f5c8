// Package retry runs fallible operations with bounded exponential backoff and jitter.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/observability"
)

// Error is returned when an operation did not succeed. Err is the last error
// returned by the operation, unmodified.
type Error struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("op=%s: failed after %d attempt(s): %v", e.Operation, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error { return backoff.Permanent(err) }

// Option customizes a single Do call.
type Option func(*settings)

type settings struct {
	cfg      domain.RetryConfig
	newTimer func() backoff.Timer
	jitter   func(max time.Duration) time.Duration
}

// WithConfig overrides attempts, initial delay and jitter bound.
func WithConfig(cfg domain.RetryConfig) Option {
	return func(s *settings) {
		if cfg.MaxAttempts > 0 {
			s.cfg.MaxAttempts = cfg.MaxAttempts
		}
		if cfg.InitialDelay >= 0 {
			s.cfg.InitialDelay = cfg.InitialDelay
		}
		if cfg.MaxJitter >= 0 {
			s.cfg.MaxJitter = cfg.MaxJitter
		}
	}
}

// WithTimer injects the timer used to wait between attempts.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(s *settings) { s.newTimer = newTimer }
}

// WithJitter injects the jitter source. fn receives the exclusive upper bound.
func WithJitter(fn func(max time.Duration) time.Duration) Option {
	return func(s *settings) { s.jitter = fn }
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

// Do invokes fn until it succeeds or the attempts are exhausted. The delay
// before attempt k (k >= 2) is InitialDelay*2^(k-2) plus jitter in [0, MaxJitter).
// Every non-final failure is logged as a warning with the remaining attempts.
func Do(ctx context.Context, operation string, fn func(context.Context) error, opts ...Option) error {
	s := settings{cfg: domain.DefaultRetryConfig(), jitter: randomJitter}
	for _, o := range opts {
		o(&s)
	}

	attempt := 0
	op := func() error {
		attempt++
		return fn(ctx)
	}
	notify := func(err error, next time.Duration) {
		observability.LoggerFromContext(ctx).Warn("operation failed, retrying",
			slog.String("operation", operation),
			slog.Int("attempt", attempt),
			slog.Int("remaining_attempts", s.cfg.MaxAttempts-attempt),
			slog.Duration("next_delay", next),
			slog.Any("error", err),
		)
	}

	var timer backoff.Timer
	if s.newTimer != nil {
		timer = s.newTimer()
	}
	b := &exponential{cfg: s.cfg, jitter: s.jitter}
	if err := backoff.RetryNotifyWithTimer(op, backoff.WithContext(b, ctx), notify, timer); err != nil {
		return &Error{Operation: operation, Attempts: attempt, Err: err}
	}
	return nil
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, operation string, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	var out T
	err := Do(ctx, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, opts...)
	return out, err
}

// exponential implements backoff.BackOff. attempt is the number of the call
// that just failed.
type exponential struct {
	cfg     domain.RetryConfig
	jitter  func(time.Duration) time.Duration
	attempt int
}

func (e *exponential) Reset() { e.attempt = 1 }

func (e *exponential) NextBackOff() time.Duration {
	e.attempt++
	if e.attempt > e.cfg.MaxAttempts {
		return backoff.Stop
	}
	return e.cfg.DelayBefore(e.attempt) + e.jitter(e.cfg.MaxJitter)
}
