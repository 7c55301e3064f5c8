package retry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/observability"
)

// recordingTimer fires immediately and records every requested delay.
type recordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	c      chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{c: make(chan time.Time, 1)}
}

func (r *recordingTimer) Start(d time.Duration) {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	r.c <- time.Now()
}

func (r *recordingTimer) Stop() {}

func (r *recordingTimer) C() <-chan time.Time { return r.c }

func (r *recordingTimer) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func timerOpt(rt *recordingTimer) Option {
	return WithTimer(func() backoff.Timer { return rt })
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	rt := newRecordingTimer()
	calls := 0
	err := Do(context.Background(), "overview", func(context.Context) error {
		calls++
		return nil
	}, timerOpt(rt))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rt.Delays())
}

func TestDo_BackoffGrowth(t *testing.T) {
	tests := []struct {
		name   string
		jitter func(time.Duration) time.Duration
	}{
		{"no jitter", func(time.Duration) time.Duration { return 0 }},
		{"max jitter", func(max time.Duration) time.Duration { return max - time.Millisecond }},
		{"random jitter", randomJitter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRecordingTimer()
			cause := errors.New("backend unavailable")
			err := Do(context.Background(), "score", func(context.Context) error { return cause },
				timerOpt(rt), WithJitter(tt.jitter))

			var rerr *Error
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, 3, rerr.Attempts)
			assert.Equal(t, "score", rerr.Operation)
			assert.ErrorIs(t, err, cause)

			delays := rt.Delays()
			require.Len(t, delays, 2)
			// before attempt 2: 1000ms base + [0,1000) jitter
			assert.GreaterOrEqual(t, delays[0], 1000*time.Millisecond)
			assert.Less(t, delays[0], 2000*time.Millisecond)
			// before attempt 3: 2000ms base + [0,1000) jitter
			assert.GreaterOrEqual(t, delays[1], 2000*time.Millisecond)
			assert.Less(t, delays[1], 3000*time.Millisecond)
			// cumulative wait before attempt 3 is at least 3000ms
			assert.GreaterOrEqual(t, delays[0]+delays[1], 3000*time.Millisecond)
		})
	}
}

func TestDo_RandomJitterStaysInBounds(t *testing.T) {
	for i := 0; i < 500; i++ {
		j := randomJitter(time.Second)
		require.GreaterOrEqual(t, j, time.Duration(0))
		require.Less(t, j, time.Second)
	}
	assert.Equal(t, time.Duration(0), randomJitter(0))
}

func TestDo_LogsRemainingAttemptsOnNonFinalFailures(t *testing.T) {
	var buf bytes.Buffer
	ctx := observability.ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))
	rt := newRecordingTimer()

	calls := 0
	err := Do(ctx, "key_improvements", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, timerOpt(rt))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var remaining []float64
	for _, l := range lines {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		assert.Equal(t, "WARN", m["level"])
		assert.Equal(t, "key_improvements", m["operation"])
		remaining = append(remaining, m["remaining_attempts"].(float64))
	}
	assert.Equal(t, []float64{2, 1}, remaining)
}

func TestDo_NoWarningOnFinalFailure(t *testing.T) {
	var buf bytes.Buffer
	ctx := observability.ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))
	err := Do(ctx, "overview", func(context.Context) error { return errors.New("down") },
		timerOpt(newRecordingTimer()), WithConfig(domain.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}))
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(buf.String(), "operation failed, retrying"))
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	cause := errors.New("bad request")
	err := Do(context.Background(), "match", func(context.Context) error {
		calls++
		return Permanent(cause)
	}, timerOpt(newRecordingTimer()))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, cause)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, "overview", func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	}, timerOpt(newRecordingTimer()))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestValue_ReturnsResult(t *testing.T) {
	calls := 0
	v, err := Value(context.Background(), "extract", func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("malformed output")
		}
		return 42, nil
	}, timerOpt(newRecordingTimer()))
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDo_ConcurrentCallsAreIndependent(t *testing.T) {
	var wg sync.WaitGroup
	errs := make([]error, 32)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			calls := 0
			errs[i] = Do(context.Background(), "parallel", func(context.Context) error {
				calls++
				if calls < 2 {
					return errors.New("once")
				}
				return nil
			}, timerOpt(newRecordingTimer()))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}
