package ai

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	obsctx "github.com/fairyhunter13/interview-evaluator/internal/observability"
	"github.com/fairyhunter13/interview-evaluator/internal/service/ratelimiter"
)

// GenerationLimitKey is the shared rate-limit bucket for generation calls.
const GenerationLimitKey = "generation"

// InstrumentedGenerator wraps a backend with the shared rate limit, a span per
// call and generation metrics.
type InstrumentedGenerator struct {
	next    domain.Generator
	name    string
	limiter ratelimiter.Limiter
	tracer  trace.Tracer
}

// NewInstrumentedGenerator wraps next. name labels metrics of failed calls,
// which carry no model; limiter may be nil.
func NewInstrumentedGenerator(next domain.Generator, name string, limiter ratelimiter.Limiter) *InstrumentedGenerator {
	return &InstrumentedGenerator{
		next:    next,
		name:    name,
		limiter: limiter,
		tracer:  otel.Tracer("ai.generation"),
	}
}

// Generate implements domain.Generator.
func (g *InstrumentedGenerator) Generate(ctx domain.Context, req domain.GenerationRequest) (domain.GenerationResponse, error) {
	ctx, span := g.tracer.Start(ctx, "generation."+string(req.Task),
		trace.WithAttributes(attribute.String("generation.task", string(req.Task))))
	defer span.End()

	if err := g.throttle(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limit wait")
		return domain.GenerationResponse{}, fmt.Errorf("op=ai.generate task=%s: %w", req.Task, err)
	}

	start := time.Now()
	resp, err := g.next.Generate(ctx, req)
	model := resp.Model
	if model == "" {
		model = g.name
	}
	observability.ObserveGeneration(model, string(req.Task), time.Since(start), resp.InputTokens, resp.OutputTokens, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return resp, err
	}
	span.SetAttributes(
		attribute.String("generation.model", model),
		attribute.Int("generation.input_tokens", resp.InputTokens),
		attribute.Int("generation.output_tokens", resp.OutputTokens),
	)
	return resp, nil
}

func (g *InstrumentedGenerator) throttle(ctx domain.Context) error {
	if g.limiter == nil {
		return nil
	}
	allowed, _, err := g.limiter.Allow(ctx, GenerationLimitKey, 1)
	if err != nil {
		obsctx.LoggerFromContext(ctx).Warn("generation rate limiter unavailable", slog.Any("error", err))
		return nil
	}
	if allowed {
		return nil
	}
	observability.GenerationThrottledTotal.Inc()
	return ratelimiter.Wait(ctx, g.limiter, GenerationLimitKey)
}

// CircuitStates reports breaker states when the wrapped backend tracks them.
func (g *InstrumentedGenerator) CircuitStates() map[string]string {
	if s, ok := g.next.(interface{ CircuitStates() map[string]string }); ok {
		return s.CircuitStates()
	}
	return map[string]string{}
}
