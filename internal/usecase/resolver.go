package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/observability"
)

// resolve produces the feedback row for one pair. Matched pairs try the
// bank-aware chain first and fall back to simple feedback on any failure.
func (b *QuestionBreakdown) resolve(ctx context.Context, pair domain.QAPair, entry domain.QuestionBankEntry, matched bool, in breakdownInput) (domain.QuestionFeedback, error) {
	row := domain.QuestionFeedback{
		ID:           newRowID(),
		RoundID:      in.RoundID,
		EvaluationID: in.EvaluationID,
		Question:     pair.Question,
		Answer:       pair.Answer,
	}
	if matched {
		qid := entry.QuestionID
		row.QuestionID = &qid
		res, err := b.bankAware(ctx, pair, entry, in)
		if err == nil {
			row.Pros = nonNil(res.Pros)
			row.Cons = nonNil(res.Cons)
			row.Score = domain.ClampScore(res.CorrectnessScore)
			return row, nil
		}
		observability.LoggerFromContext(ctx).Warn("bank-aware feedback failed, falling back to simple feedback",
			slog.String("event", "resolution_fallback"),
			slog.String("question_id", qid),
			slog.Any("error", err))
	}

	res, err := generate[simpleFeedbackResult](ctx, b.Runner, domain.TaskSimpleFeedback,
		promptData{Job: in.Job, Question: pair.Question, Answer: pair.Answer}, in.Job.Files, in.Tally)
	if err != nil {
		return domain.QuestionFeedback{}, err
	}
	row.Pros = nonNil(res.Pros)
	row.Cons = nonNil(res.Cons)
	row.Score = domain.ClampScore(res.Score)
	return row, nil
}

// bankAware grades the answer against the entry's guidelines: core criteria,
// criteria grading, optional sample comparison and coach knowledge, synthesis.
func (b *QuestionBreakdown) bankAware(ctx context.Context, pair domain.QAPair, entry domain.QuestionBankEntry, in breakdownInput) (synthesisResult, error) {
	data := promptData{Job: in.Job, Question: pair.Question, Answer: pair.Answer, Entry: entry}

	criteria, err := generate[coreCriteriaResult](ctx, b.Runner, domain.TaskCoreCriteria, data, nil, in.Tally)
	if err != nil {
		return synthesisResult{}, err
	}
	data.CoreCriteria = criteria.CoreCriteria

	grading, err := generate[criteriaGradingResult](ctx, b.Runner, domain.TaskCriteriaGrading, data, in.Job.Files, in.Tally)
	if err != nil {
		return synthesisResult{}, err
	}
	data.Grading = grading

	if len(entry.SampleAnswers) > 0 {
		cmp, err := generate[sampleComparisonResult](ctx, b.Runner, domain.TaskSampleComparison, data, in.Job.Files, in.Tally)
		if err != nil {
			return synthesisResult{}, err
		}
		data.Comparison = cmp
	}

	if strings.TrimSpace(in.Job.CoachKnowledgeBase) != "" {
		coach, err := generate[coachKnowledgeResult](ctx, b.Runner, domain.TaskCoachKnowledge, data, in.Job.Files, in.Tally)
		if err != nil {
			return synthesisResult{}, err
		}
		data.CoachFeedback = coach.CoachFeedback
	}

	return generate[synthesisResult](ctx, b.Runner, domain.TaskFeedbackSynthesis, data, nil, in.Tally)
}
