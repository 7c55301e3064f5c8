// Package usecase contains the evaluation pipeline: the round orchestrator,
// the question breakdown, job alignment and the aggregation orchestrator.
package usecase

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/observability"
)

// EnqueueService validates round evaluation requests and hands them to the queue.
type EnqueueService struct {
	Rounds domain.RoundRepository
	Queue  domain.RoundQueue
}

// ReadinessCheck represents a single readiness probe result used by handlers.
type ReadinessCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Details string `json:"details,omitempty"`
}

// NewEnqueueService constructs an EnqueueService with its dependencies.
func NewEnqueueService(r domain.RoundRepository, q domain.RoundQueue) EnqueueService {
	return EnqueueService{Rounds: r, Queue: q}
}

// Enqueue checks that the round exists and is finished, then queues it.
func (s EnqueueService) Enqueue(ctx domain.Context, roundID string) (string, error) {
	if roundID == "" {
		return "", fmt.Errorf("%w: round id required", domain.ErrInvalidArgument)
	}
	round, err := s.Rounds.Get(ctx, roundID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: round %s", domain.ErrNotFound, roundID)
		}
		return "", fmt.Errorf("op=usecase.EnqueueService.Enqueue: %w", err)
	}
	switch round.Status {
	case domain.RoundFinished:
	case domain.RoundComplete:
		return "", fmt.Errorf("%w: round %s already has feedback", domain.ErrConflict, roundID)
	default:
		return "", fmt.Errorf("%w: round %s is %s, not finished", domain.ErrInvalidArgument, roundID, round.Status)
	}

	payload := domain.RoundEvaluationPayload{
		RoundID:   roundID,
		RequestID: observability.RequestIDFromContext(ctx),
	}
	if p, ok := domain.PrincipalFrom(ctx); ok {
		payload.RequestedBy = p.Subject
	}
	taskID, err := s.Queue.EnqueueRoundEvaluation(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("op=usecase.EnqueueService.Enqueue: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("round evaluation enqueued",
		slog.String("round_id", roundID),
		slog.String("task_id", taskID))
	return taskID, nil
}
