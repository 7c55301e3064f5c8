package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

// Purger removes question feedback left behind by failed attempts.
type Purger interface {
	PurgeOrphanedQuestionFeedback(ctx context.Context) (int64, error)
}

// RoundSweeper re-enqueues finished rounds that never got feedback, for
// example because a message was lost or landed in the dead-letter topic,
// and purges orphaned question feedback rows. A round is re-enqueued at most
// maxSweeps times so rounds that keep failing stay in the dead-letter topic.
type RoundSweeper struct {
	rounds    domain.RoundRepository
	queue     domain.RoundQueue
	purger    Purger
	minAge    time.Duration
	interval  time.Duration
	maxSweeps int
	batch     int
}

// NewRoundSweeper returns nil when rounds or queue is nil. purger may be nil.
func NewRoundSweeper(rounds domain.RoundRepository, queue domain.RoundQueue, purger Purger, minAge, interval time.Duration, maxSweeps int) *RoundSweeper {
	if rounds == nil || queue == nil {
		return nil
	}
	if minAge <= 0 {
		minAge = 15 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxSweeps <= 0 {
		maxSweeps = 3
	}
	return &RoundSweeper{
		rounds:    rounds,
		queue:     queue,
		purger:    purger,
		minAge:    minAge,
		interval:  interval,
		maxSweeps: maxSweeps,
		batch:     100,
	}
}

// Run sweeps once immediately and then every interval until ctx ends.
func (s *RoundSweeper) Run(ctx context.Context) {
	if s == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("round sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *RoundSweeper) sweepOnce(ctx context.Context) {
	ctx, span := otel.Tracer("rounds.sweeper").Start(ctx, "RoundSweeper.sweepOnce")
	defer span.End()
	span.SetAttributes(
		attribute.Int("rounds.batch", s.batch),
		attribute.Float64("rounds.min_age_seconds", s.minAge.Seconds()),
		attribute.Int("rounds.max_sweeps", s.maxSweeps),
	)

	rounds, err := s.rounds.ListFinishedWithoutFeedback(ctx, int64(s.minAge.Seconds()), s.maxSweeps, s.batch)
	if err != nil {
		span.RecordError(err)
		slog.Error("round sweep failed to list rounds", slog.Any("error", err))
	}
	requeued := 0
	for _, r := range rounds {
		// Counted before the enqueue so a round cannot be re-enqueued uncounted.
		if err := s.rounds.MarkSwept(ctx, r.ID); err != nil {
			span.RecordError(err)
			slog.Error("round sweep failed to record attempt", slog.String("round_id", r.ID), slog.Any("error", err))
			continue
		}
		taskID, err := s.queue.EnqueueRoundEvaluation(ctx, domain.RoundEvaluationPayload{RoundID: r.ID, RequestedBy: "sweeper"})
		if err != nil {
			span.RecordError(err)
			slog.Error("round sweep failed to enqueue", slog.String("round_id", r.ID), slog.Any("error", err))
			continue
		}
		requeued++
		observability.CountPipelineEvent("round_requeued")
		slog.Info("round re-enqueued by sweeper", slog.String("round_id", r.ID), slog.String("task_id", taskID))
	}

	var purged int64
	if s.purger != nil {
		if purged, err = s.purger.PurgeOrphanedQuestionFeedback(ctx); err != nil {
			span.RecordError(err)
			slog.Error("round sweep failed to purge question feedback", slog.Any("error", err))
		}
	}
	span.SetAttributes(
		attribute.Int("rounds.checked", len(rounds)),
		attribute.Int("rounds.requeued", requeued),
		attribute.Int64("question_feedback.purged", purged),
	)
}
