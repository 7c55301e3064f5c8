package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

// ResultService provides read access to stored feedback and verdicts and
// assembles the API response envelope including ETag logic.
type ResultService struct {
	Rounds     domain.RoundRepository
	Feedback   domain.FeedbackRepository
	Questions  domain.QuestionFeedbackRepository
	Alignments domain.AlignmentRepository
	Verdicts   domain.VerdictRepository
}

// NewResultService constructs a ResultService with the given repositories.
func NewResultService(rounds domain.RoundRepository, fb domain.FeedbackRepository, q domain.QuestionFeedbackRepository, a domain.AlignmentRepository, v domain.VerdictRepository) ResultService {
	return ResultService{Rounds: rounds, Feedback: fb, Questions: q, Alignments: a, Verdicts: v}
}

// RoundFeedback returns the status code, body and ETag for a round's feedback.
// A round that is not complete yet answers with its status only.
func (s ResultService) RoundFeedback(ctx domain.Context, roundID, ifNoneMatch string) (int, map[string]any, string, error) {
	round, err := s.Rounds.Get(ctx, roundID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return http.StatusNotFound, nil, "", fmt.Errorf("%w: round %s", domain.ErrNotFound, roundID)
		}
		return http.StatusInternalServerError, nil, "", err
	}
	if round.Status != domain.RoundComplete {
		return conditional(map[string]any{"round_id": roundID, "status": string(round.Status)}, ifNoneMatch)
	}

	fb, err := s.Feedback.GetByRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return http.StatusNotFound, nil, "", fmt.Errorf("%w: feedback for round %s", domain.ErrNotFound, roundID)
		}
		return http.StatusInternalServerError, nil, "", err
	}
	rows, err := s.Questions.ListByRound(ctx, roundID)
	if err != nil {
		return http.StatusInternalServerError, nil, "", err
	}
	questions := make([]map[string]any, 0, len(rows))
	for _, q := range rows {
		questions = append(questions, map[string]any{
			"question_id": q.QuestionID,
			"question":    q.Question,
			"answer":      q.Answer,
			"pros":        q.Pros,
			"cons":        q.Cons,
			"score":       q.Score,
		})
	}
	m := map[string]any{
		"round_id": roundID,
		"status":   string(round.Status),
		"feedback": map[string]any{
			"id":                 fb.ID,
			"overview":           fb.Overview,
			"pros":               fb.Pros,
			"cons":               fb.Cons,
			"job_fit_analysis":   fb.JobFitAnalysis,
			"job_fit_percentage": fb.JobFitPercentage,
			"score":              fb.Score,
			"key_improvements":   fb.KeyImprovements,
			"input_tokens":       fb.InputTokens,
			"output_tokens":      fb.OutputTokens,
			"questions":          questions,
		},
	}
	return conditional(m, ifNoneMatch)
}

// Verdict returns the status code, body and ETag for a candidate's verdict.
func (s ResultService) Verdict(ctx domain.Context, candidateID, ifNoneMatch string) (int, map[string]any, string, error) {
	v, err := s.Verdicts.GetByCandidate(ctx, candidateID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return http.StatusNotFound, nil, "", fmt.Errorf("%w: verdict for candidate %s", domain.ErrNotFound, candidateID)
		}
		return http.StatusInternalServerError, nil, "", err
	}
	m := VerdictBody(v)
	a, err := s.Alignments.GetByCandidate(ctx, candidateID)
	switch {
	case err == nil:
		m["alignment"] = AlignmentBody(a)
	case errors.Is(err, domain.ErrNotFound):
	default:
		return http.StatusInternalServerError, nil, "", err
	}
	return conditional(m, ifNoneMatch)
}

// VerdictBody renders a verdict for API responses.
func VerdictBody(v domain.AggregatedVerdict) map[string]any {
	return map[string]any{
		"id":                v.ID,
		"candidate_id":      v.CandidateID,
		"overall_score":     v.OverallScore,
		"hiring_verdict":    string(v.HiringVerdict),
		"verdict_rationale": v.VerdictRationale,
	}
}

// AlignmentBody renders an alignment for API responses. Absent lists stay null.
func AlignmentBody(a domain.JobAlignment) map[string]any {
	return map[string]any{
		"alignment_score":       a.AlignmentScore,
		"matched_requirements":  a.MatchedRequirements,
		"missing_requirements":  a.MissingRequirements,
		"exceeded_requirements": a.ExceededRequirements,
	}
}

func conditional(m map[string]any, ifNoneMatch string) (int, map[string]any, string, error) {
	etag := makeETag(m)
	if ifNoneMatch != "" && etag == ifNoneMatch {
		return http.StatusNotModified, nil, etag, nil
	}
	return http.StatusOK, m, etag, nil
}

func makeETag(v any) string {
	b, _ := json.Marshal(v)
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}
