package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/observability"
)

// AggregationService is the Aggregation Orchestrator. It checks every
// precondition before any generation work, then produces and stores exactly
// one AggregatedVerdict per candidate.
type AggregationService struct {
	Candidates domain.CandidateRepository
	Jobs       domain.JobRepository
	Rounds     domain.RoundRepository
	Feedback   domain.FeedbackRepository
	Verdicts   domain.VerdictRepository
	Alignment  *AlignmentService
	Runner     *Runner
	Events     domain.EventPublisher
}

// NewAggregationService constructs an AggregationService. events may be nil.
func NewAggregationService(
	candidates domain.CandidateRepository,
	jobs domain.JobRepository,
	rounds domain.RoundRepository,
	feedback domain.FeedbackRepository,
	verdicts domain.VerdictRepository,
	alignment *AlignmentService,
	runner *Runner,
	events domain.EventPublisher,
) *AggregationService {
	return &AggregationService{
		Candidates: candidates,
		Jobs:       jobs,
		Rounds:     rounds,
		Feedback:   feedback,
		Verdicts:   verdicts,
		Alignment:  alignment,
		Runner:     runner,
		Events:     events,
	}
}

// Aggregate produces the final hiring verdict for a candidate.
func (s *AggregationService) Aggregate(ctx context.Context, candidateID string) (domain.AggregatedVerdict, error) {
	ctx = observability.WithCandidate(ctx, candidateID)
	ctx, span := otel.Tracer("usecase.aggregate").Start(ctx, "AggregationService.Aggregate")
	defer span.End()
	span.SetAttributes(attribute.String("candidate.id", candidateID))
	lg := observability.LoggerFromContext(ctx)

	candidate, job, analyses, rounds, err := s.preconditions(ctx, candidateID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "precondition failed")
		lg.Warn("aggregation rejected", slog.Int("status", domain.StatusClass(err)), slog.Any("error", err))
		return domain.AggregatedVerdict{}, err
	}

	alignment, err := s.Alignment.Ensure(ctx, candidate, job, rounds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "alignment failed")
		lg.Error("job alignment failed", slog.Any("error", err))
		return domain.AggregatedVerdict{}, &domain.PipelineError{Unit: "aggregation", ID: candidateID, Stage: string(domain.TaskJobAlignment), Err: err}
	}

	res, err := generate[verdictResult](ctx, s.Runner, domain.TaskHiringVerdict, promptData{
		Job:       job.Context(),
		Candidate: candidate,
		Rounds:    analyses,
		Alignment: alignment,
	}, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verdict failed")
		lg.Error("hiring verdict generation failed", slog.Any("error", err))
		return domain.AggregatedVerdict{}, &domain.PipelineError{Unit: "aggregation", ID: candidateID, Stage: string(domain.TaskHiringVerdict), Err: err}
	}
	hv, err := domain.ParseHiringVerdict(res.HiringVerdict)
	if err != nil {
		return domain.AggregatedVerdict{}, &domain.PipelineError{Unit: "aggregation", ID: candidateID, Stage: string(domain.TaskHiringVerdict), Err: err}
	}

	v := domain.AggregatedVerdict{
		ID:               uuid.NewString(),
		CandidateID:      candidateID,
		OverallScore:     domain.ClampScore(res.OverallScore),
		HiringVerdict:    hv,
		VerdictRationale: res.VerdictRationale,
	}
	id, err := s.Verdicts.Create(ctx, v)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		if errors.Is(err, domain.ErrConflict) {
			return domain.AggregatedVerdict{}, domain.NewPrecondition(domain.ErrConflict, "verdict already exists for candidate %s", candidateID)
		}
		return domain.AggregatedVerdict{}, &domain.PipelineError{Unit: "aggregation", ID: candidateID, Stage: "persist_verdict", Err: err}
	}
	v.ID = id
	lg.Info("aggregated verdict stored",
		slog.String("verdict_id", id),
		slog.String("hiring_verdict", string(v.HiringVerdict)),
		slog.Int("overall_score", v.OverallScore),
		slog.Int("rounds", len(analyses)))

	if s.Events != nil {
		if err := s.Events.Publish(ctx, domain.Event{
			Type:      domain.EventVerdictCreated,
			SubjectID: candidateID,
			Data: map[string]any{
				"verdict_id":     id,
				"hiring_verdict": string(v.HiringVerdict),
				"overall_score":  v.OverallScore,
			},
		}); err != nil {
			lg.Warn("publishing event failed", slog.String("event_type", string(domain.EventVerdictCreated)), slog.Any("error", err))
		}
	}
	return v, nil
}

// preconditions checks, in order: principal, no existing verdict, candidate
// and job exist, all rounds complete, at least one round with feedback.
func (s *AggregationService) preconditions(ctx context.Context, candidateID string) (domain.Candidate, domain.Job, []domain.RoundAnalysis, []domain.Round, error) {
	var (
		candidate domain.Candidate
		job       domain.Job
	)
	if _, ok := domain.PrincipalFrom(ctx); !ok {
		return candidate, job, nil, nil, domain.NewPrecondition(domain.ErrUnauthenticated, "authentication required")
	}

	exists, err := s.Verdicts.ExistsForCandidate(ctx, candidateID)
	if err != nil {
		return candidate, job, nil, nil, fmt.Errorf("op=usecase.AggregationService.preconditions: %w", err)
	}
	if exists {
		return candidate, job, nil, nil, domain.NewPrecondition(domain.ErrConflict, "verdict already exists for candidate %s", candidateID)
	}

	candidate, err = s.Candidates.Get(ctx, candidateID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return candidate, job, nil, nil, domain.NewPrecondition(domain.ErrNotFound, "candidate %s not found", candidateID)
		}
		return candidate, job, nil, nil, fmt.Errorf("op=usecase.AggregationService.preconditions: %w", err)
	}
	job, err = s.Jobs.Get(ctx, candidate.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return candidate, job, nil, nil, domain.NewPrecondition(domain.ErrNotFound, "job %s not found", candidate.JobID)
		}
		return candidate, job, nil, nil, fmt.Errorf("op=usecase.AggregationService.preconditions: %w", err)
	}

	rounds, err := s.Rounds.ListByCandidate(ctx, candidateID)
	if err != nil {
		return candidate, job, nil, nil, fmt.Errorf("op=usecase.AggregationService.preconditions: %w", err)
	}
	sort.SliceStable(rounds, func(i, j int) bool { return rounds[i].OrderIndex < rounds[j].OrderIndex })
	incomplete := 0
	for _, r := range rounds {
		if r.Status != domain.RoundComplete {
			incomplete++
		}
	}
	if incomplete > 0 {
		return candidate, job, nil, nil, &domain.PreconditionError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("%d of %d interview rounds are not complete", incomplete, len(rounds)),
			Err:     domain.ErrInvalidArgument,
		}
	}

	lg := observability.LoggerFromContext(ctx)
	analyses := make([]domain.RoundAnalysis, 0, len(rounds))
	for _, r := range rounds {
		fb, err := s.Feedback.GetByRound(ctx, r.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				lg.Warn("round has no feedback, excluding it from aggregation", slog.String("round_id", r.ID))
				continue
			}
			return candidate, job, nil, nil, fmt.Errorf("op=usecase.AggregationService.preconditions: %w", err)
		}
		analyses = append(analyses, domain.RoundAnalysis{
			RoundID:    r.ID,
			Name:       r.Name,
			Type:       r.Type,
			OrderIndex: r.OrderIndex,
			Score:      fb.Score,
			Summary:    fb.Overview,
			Strengths:  fb.Pros,
			Concerns:   fb.Cons,
		})
	}
	if len(analyses) == 0 {
		return candidate, job, nil, nil, domain.NewPrecondition(domain.ErrInvalidArgument, "no interview round with feedback for candidate %s", candidateID)
	}
	return candidate, job, analyses, rounds, nil
}
