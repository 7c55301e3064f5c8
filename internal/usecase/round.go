package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/observability"
)

// RoundService is the Round Orchestrator: it runs the six round-level tasks
// concurrently and persists one RoundFeedback only when all of them succeed.
type RoundService struct {
	Rounds    domain.RoundRepository
	Jobs      domain.JobRepository
	Feedback  domain.FeedbackRepository
	Runner    *Runner
	Breakdown *QuestionBreakdown
	Events    domain.EventPublisher
	// Observe, when set, is told about every state transition.
	Observe func(state domain.EvaluationState)
}

// NewRoundService constructs a RoundService with its dependencies. events may be nil.
func NewRoundService(rounds domain.RoundRepository, jobs domain.JobRepository, feedback domain.FeedbackRepository, runner *Runner, breakdown *QuestionBreakdown, events domain.EventPublisher) *RoundService {
	return &RoundService{Rounds: rounds, Jobs: jobs, Feedback: feedback, Runner: runner, Breakdown: breakdown, Events: events}
}

// RoundResult reports the outcome of one evaluation attempt.
type RoundResult struct {
	RoundID      string
	EvaluationID string
	RoundType    domain.RoundType
	State        domain.EvaluationState
	FeedbackID   string
	Score        int
	QuestionRows int
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

type roundInput struct {
	Round      domain.Round
	Job        domain.JobContext
	Transcript string
	Bank       []domain.QuestionBankEntry
	EvalID     string
	Tally      *tokenTally
}

type taskHandle struct {
	kind    domain.TaskKind
	outcome taskOutcome
	err     error
}

// Evaluate runs the orchestrator for a finished round. On any task failure
// nothing is persisted and the round status is left unchanged.
func (s *RoundService) Evaluate(ctx context.Context, roundID string) (RoundResult, error) {
	ctx = observability.WithRound(ctx, roundID)
	ctx, span := otel.Tracer("usecase.round").Start(ctx, "RoundService.Evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("round.id", roundID))

	start := time.Now()
	result := RoundResult{RoundID: roundID, State: domain.EvaluationPending}
	s.transition(&result, domain.EvaluationPending)

	in, err := s.load(ctx, roundID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return result, err
	}
	result.EvaluationID = in.EvalID
	result.RoundType = in.Round.Type
	ctx = observability.WithAttrs(ctx, slog.String("evaluation_id", in.EvalID), slog.String("candidate_id", in.Round.CandidateID))
	lg := observability.LoggerFromContext(ctx)

	s.transition(&result, domain.EvaluationRunning)
	lg.Info("round evaluation started", slog.Int("transcript_turns", len(in.Round.Transcript)), slog.Int("bank_size", len(in.Bank)))

	outcomes, failed, err := s.join(ctx, in)
	result.InputTokens, result.OutputTokens = in.Tally.totals()
	result.Duration = time.Since(start)
	if err != nil {
		s.transition(&result, domain.EvaluationFailed)
		lg.Error("round evaluation failed", slog.String("failed_task", string(failed)), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "task failed")
		return result, &domain.PipelineError{Unit: "round", ID: roundID, Stage: string(failed), Err: err}
	}

	fb := assembleFeedback(in, outcomes)
	fb.InputTokens, fb.OutputTokens = result.InputTokens, result.OutputTokens
	result.Score = fb.Score
	for _, o := range outcomes {
		if o.Kind == domain.TaskQuestionBreakdown {
			result.QuestionRows = o.Breakdown.Rows
		}
	}

	id, err := s.Feedback.Complete(ctx, fb)
	if err != nil {
		s.transition(&result, domain.EvaluationFailed)
		lg.Error("persisting round feedback failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		if errors.Is(err, domain.ErrConflict) {
			return result, fmt.Errorf("%w: round %s already has feedback", domain.ErrConflict, roundID)
		}
		return result, &domain.PipelineError{Unit: "round", ID: roundID, Stage: "persist_feedback", Err: err}
	}
	result.FeedbackID = id
	result.Duration = time.Since(start)
	s.transition(&result, domain.EvaluationCompleted)
	lg.Info("round evaluation completed",
		slog.String("feedback_id", id),
		slog.Int("score", fb.Score),
		slog.Int("question_rows", result.QuestionRows),
		slog.Int("input_tokens", fb.InputTokens),
		slog.Int("output_tokens", fb.OutputTokens),
		slog.Duration("duration", result.Duration))

	s.publish(ctx, domain.Event{
		Type:      domain.EventRoundCompleted,
		SubjectID: roundID,
		Data: map[string]any{
			"candidate_id":  in.Round.CandidateID,
			"feedback_id":   id,
			"score":         fb.Score,
			"input_tokens":  fb.InputTokens,
			"output_tokens": fb.OutputTokens,
		},
	})
	return result, nil
}

func (s *RoundService) transition(r *RoundResult, st domain.EvaluationState) {
	r.State = st
	if s.Observe != nil {
		s.Observe(st)
	}
}

func (s *RoundService) load(ctx context.Context, roundID string) (roundInput, error) {
	round, err := s.Rounds.Get(ctx, roundID)
	if err != nil {
		return roundInput{}, fmt.Errorf("op=usecase.RoundService.load: %w", err)
	}
	switch round.Status {
	case domain.RoundFinished:
	case domain.RoundComplete:
		return roundInput{}, fmt.Errorf("%w: round %s is already complete", domain.ErrConflict, roundID)
	default:
		return roundInput{}, fmt.Errorf("%w: round %s is %s, not finished", domain.ErrInvalidArgument, roundID, round.Status)
	}
	job, err := s.Jobs.Get(ctx, round.JobID)
	if err != nil {
		return roundInput{}, fmt.Errorf("op=usecase.RoundService.load: job %s: %w", round.JobID, err)
	}
	bank, err := s.Rounds.QuestionBank(ctx, roundID)
	if err != nil {
		return roundInput{}, fmt.Errorf("op=usecase.RoundService.load: question bank: %w", err)
	}
	return roundInput{
		Round:      round,
		Job:        job.Context(),
		Transcript: NormalizeTranscript(round.Transcript),
		Bank:       bank,
		EvalID:     uuid.NewString(),
		Tally:      &tokenTally{},
	}, nil
}

// join starts one handle per round task and waits for all of them. The first
// failure cancels the siblings and is reported without waiting for them.
func (s *RoundService) join(ctx context.Context, in roundInput) ([]taskOutcome, domain.TaskKind, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan taskHandle, len(domain.RoundTasks))
	for _, kind := range domain.RoundTasks {
		go func() {
			o, err := s.runTask(ctx, kind, in)
			done <- taskHandle{kind: kind, outcome: o, err: err}
		}()
	}

	outcomes := make([]taskOutcome, 0, len(domain.RoundTasks))
	for range domain.RoundTasks {
		h := <-done
		if h.err != nil {
			return nil, h.kind, h.err
		}
		outcomes = append(outcomes, h.outcome)
	}
	return outcomes, "", nil
}

func (s *RoundService) runTask(ctx context.Context, kind domain.TaskKind, in roundInput) (taskOutcome, error) {
	ctx = observability.WithTask(ctx, string(kind))
	data := promptData{Job: in.Job, Transcript: in.Transcript}
	files := in.Job.Files
	switch kind {
	case domain.TaskOverview:
		v, err := generate[overviewResult](ctx, s.Runner, kind, data, files, in.Tally)
		return taskOutcome{Kind: kind, Overview: &v}, err
	case domain.TaskProsAndCons:
		v, err := generate[prosAndConsResult](ctx, s.Runner, kind, data, files, in.Tally)
		return taskOutcome{Kind: kind, ProsAndCons: &v}, err
	case domain.TaskScore:
		v, err := generate[scoreResult](ctx, s.Runner, kind, data, files, in.Tally)
		return taskOutcome{Kind: kind, Score: &v}, err
	case domain.TaskJobFitAnalysis:
		v, err := generate[jobFitResult](ctx, s.Runner, kind, data, files, in.Tally)
		return taskOutcome{Kind: kind, JobFit: &v}, err
	case domain.TaskKeyImprovements:
		v, err := generate[keyImprovementsResult](ctx, s.Runner, kind, data, files, in.Tally)
		return taskOutcome{Kind: kind, Improvements: &v}, err
	case domain.TaskQuestionBreakdown:
		v, err := s.Breakdown.Run(ctx, breakdownInput{
			RoundID:      in.Round.ID,
			EvaluationID: in.EvalID,
			Transcript:   in.Transcript,
			Job:          in.Job,
			Bank:         in.Bank,
			Tally:        in.Tally,
		})
		return taskOutcome{Kind: kind, Breakdown: &v}, err
	default:
		return taskOutcome{}, fmt.Errorf("%w: unknown round task %s", domain.ErrInternal, kind)
	}
}

func assembleFeedback(in roundInput, outcomes []taskOutcome) domain.RoundFeedback {
	fb := domain.RoundFeedback{
		ID:           uuid.NewString(),
		RoundID:      in.Round.ID,
		EvaluationID: in.EvalID,
	}
	for _, o := range outcomes {
		switch o.Kind {
		case domain.TaskOverview:
			fb.Overview = o.Overview.Overview
		case domain.TaskProsAndCons:
			fb.Pros = nonNil(o.ProsAndCons.Pros)
			fb.Cons = nonNil(o.ProsAndCons.Cons)
		case domain.TaskScore:
			fb.Score = domain.ClampScore(o.Score.Score)
		case domain.TaskJobFitAnalysis:
			fb.JobFitAnalysis = o.JobFit.Analysis
			fb.JobFitPercentage = domain.ClampScore(o.JobFit.Percentage)
		case domain.TaskKeyImprovements:
			fb.KeyImprovements = nonNil(o.Improvements.KeyImprovements)
		case domain.TaskQuestionBreakdown:
		}
	}
	return fb
}

func (s *RoundService) publish(ctx context.Context, evt domain.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, evt); err != nil {
		observability.LoggerFromContext(ctx).Warn("publishing event failed",
			slog.String("event_type", string(evt.Type)), slog.Any("error", err))
	}
}
