// Package observability carries the per-request logger and correlation
// identifiers through context.Context.
package observability

import (
	"context"
	"log/slog"
)

type loggerContextKey struct{}

type requestIDContextKey struct{}

// ContextWithLogger attaches a non-nil logger to the context.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if ctx == nil || lg == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey{}, lg)
}

// LoggerFromContext returns the logger stored in the context or slog.Default.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if lg, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && lg != nil {
		return lg
	}
	return slog.Default()
}

// ContextWithRequestID stores the originating request id so queue workers can
// correlate their logs with the HTTP request that enqueued the work.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	rid, _ := ctx.Value(requestIDContextKey{}).(string)
	return rid
}

// WithAttrs derives a context whose logger carries the given attributes.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	return ContextWithLogger(ctx, LoggerFromContext(ctx).With(args...))
}

// WithRound tags every subsequent log line with the round id.
func WithRound(ctx context.Context, roundID string) context.Context {
	return WithAttrs(ctx, slog.String("round_id", roundID))
}

// WithCandidate tags every subsequent log line with the candidate id.
func WithCandidate(ctx context.Context, candidateID string) context.Context {
	return WithAttrs(ctx, slog.String("candidate_id", candidateID))
}

// WithTask tags every subsequent log line with the generation task.
func WithTask(ctx context.Context, task string) context.Context {
	return WithAttrs(ctx, slog.String("task", task))
}
