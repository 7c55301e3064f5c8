package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/interview-evaluator/internal/adapter/ai"
	"github.com/fairyhunter13/interview-evaluator/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/interview-evaluator/internal/adapter/ai/stub"
	"github.com/fairyhunter13/interview-evaluator/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/interview-evaluator/internal/config"
	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/service/ratelimiter"
	"github.com/fairyhunter13/interview-evaluator/internal/usecase"
)

// BuildGenerator selects the generation backend and wraps it with the
// shared Redis rate limit and metrics. It also returns the model label used
// for score drift. rdb may be nil, which disables the rate limit.
func BuildGenerator(ctx context.Context, cfg config.Config, rdb redis.Scripter) (*ai.InstrumentedGenerator, string, error) {
	var (
		next domain.Generator
		name string
	)
	if cfg.UseStubAI() {
		next, name = stub.New(0), stub.ModelName
	} else {
		g, err := gemini.New(ctx, gemini.Config{
			APIKey:        cfg.GeminiAPIKey,
			Model:         cfg.GeminiModel,
			FallbackModel: cfg.GeminiFallbackModel,
			Timeout:       cfg.GenerationTimeout,
		})
		if err != nil {
			return nil, "", fmt.Errorf("op=app.BuildGenerator: %w", err)
		}
		next, name = g, cfg.GeminiModel
	}

	var limiter ratelimiter.Limiter
	if rdb != nil {
		limiter = ratelimiter.NewRedisLuaLimiter(rdb, map[string]ratelimiter.BucketConfig{
			ai.GenerationLimitKey: ratelimiter.NewBucketConfigFromPerMinute(cfg.GenerationRPM),
		})
	}
	return ai.NewInstrumentedGenerator(next, name, limiter), name, nil
}

// Pipeline holds the use cases shared by the server and the worker.
type Pipeline struct {
	Enqueue     usecase.EnqueueService
	Results     usecase.ResultService
	Rounds      *usecase.RoundService
	Aggregation *usecase.AggregationService
}

// BuildPipeline wires repositories over pool into the use cases. queue and
// events may be nil where a process never enqueues or publishes.
func BuildPipeline(cfg config.Config, pool postgres.PgxPool, gen domain.Generator, queue domain.RoundQueue, events domain.EventPublisher) (*Pipeline, error) {
	prompts, err := usecase.LoadPromptCatalog()
	if err != nil {
		return nil, fmt.Errorf("op=app.BuildPipeline: %w", err)
	}
	runner, err := usecase.NewRunner(gen, prompts, usecase.WithRetryConfig(cfg.GetRetryConfig()))
	if err != nil {
		return nil, fmt.Errorf("op=app.BuildPipeline: %w", err)
	}

	rounds := postgres.NewRoundRepo(pool)
	jobs := postgres.NewJobRepo(pool)
	candidates := postgres.NewCandidateRepo(pool)
	feedback := postgres.NewFeedbackRepo(pool)
	questions := postgres.NewQuestionFeedbackRepo(pool)
	alignments := postgres.NewAlignmentRepo(pool)
	verdicts := postgres.NewVerdictRepo(pool)

	breakdown := usecase.NewQuestionBreakdown(runner, questions, cfg.MatchConfidenceThreshold, cfg.MatchConcurrency)
	alignment := usecase.NewAlignmentService(runner, alignments)

	return &Pipeline{
		Enqueue:     usecase.NewEnqueueService(rounds, queue),
		Results:     usecase.NewResultService(rounds, feedback, questions, alignments, verdicts),
		Rounds:      usecase.NewRoundService(rounds, jobs, feedback, runner, breakdown, events),
		Aggregation: usecase.NewAggregationService(candidates, jobs, rounds, feedback, verdicts, alignment, runner, events),
	}, nil
}
