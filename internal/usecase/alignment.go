package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/observability"
)

// AlignmentService is the Job-Alignment Analyzer, run once per candidate.
type AlignmentService struct {
	Runner     *Runner
	Alignments domain.AlignmentRepository
}

// NewAlignmentService constructs an AlignmentService.
func NewAlignmentService(r *Runner, repo domain.AlignmentRepository) *AlignmentService {
	return &AlignmentService{Runner: r, Alignments: repo}
}

// Analyze compares the candidate's application files and completed-round
// transcripts against the job and persists the result.
func (s *AlignmentService) Analyze(ctx context.Context, candidate domain.Candidate, job domain.Job, rounds []domain.Round) (domain.JobAlignment, error) {
	transcripts := make([]domain.RoundTranscript, 0, len(rounds))
	for _, r := range rounds {
		if r.Status != domain.RoundComplete {
			continue
		}
		transcripts = append(transcripts, domain.RoundTranscript{Name: r.Name, Type: r.Type, OrderIndex: r.OrderIndex, Turns: r.Transcript})
	}
	data := promptData{
		Job:              job.Context(),
		Candidate:        candidate,
		RoundsTranscript: FormatRoundTranscripts(transcripts),
	}
	res, err := generate[alignmentResult](ctx, s.Runner, domain.TaskJobAlignment, data, candidate.ApplicationFiles, nil)
	if err != nil {
		return domain.JobAlignment{}, err
	}
	a := domain.JobAlignment{
		CandidateID:          candidate.ID,
		AlignmentScore:       domain.ClampScore(res.AlignmentScore),
		MatchedRequirements:  res.MatchedRequirements,
		MissingRequirements:  res.MissingRequirements,
		ExceededRequirements: res.ExceededRequirements,
	}
	if err := s.Alignments.Create(ctx, a); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// another aggregation stored one first; the stored row wins
			return s.Alignments.GetByCandidate(ctx, candidate.ID)
		}
		return domain.JobAlignment{}, fmt.Errorf("op=usecase.AlignmentService.Analyze: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("job alignment analysis complete",
		slog.Int("alignment_score", a.AlignmentScore),
		slog.Int("matched", len(a.MatchedRequirements)),
		slog.Int("missing", len(a.MissingRequirements)),
		slog.Int("exceeded", len(a.ExceededRequirements)))
	return a, nil
}

// Ensure returns the stored alignment for the candidate or generates one.
func (s *AlignmentService) Ensure(ctx context.Context, candidate domain.Candidate, job domain.Job, rounds []domain.Round) (domain.JobAlignment, error) {
	a, err := s.Alignments.GetByCandidate(ctx, candidate.ID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.JobAlignment{}, fmt.Errorf("op=usecase.AlignmentService.Ensure: %w", err)
	}
	return s.Analyze(ctx, candidate, job, rounds)
}
