package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/observability"
)

// QuestionBreakdown extracts question-answer pairs from a transcript, matches
// them against the round's question bank, resolves per-question feedback and
// persists all rows in one batch.
type QuestionBreakdown struct {
	Runner *Runner
	Rows   domain.QuestionFeedbackRepository
	// Threshold rejects matches whose reported confidence is lower; 0 disables it.
	Threshold int
	// Concurrency bounds how many pairs are matched and resolved at once.
	Concurrency int
}

// NewQuestionBreakdown constructs a QuestionBreakdown.
func NewQuestionBreakdown(r *Runner, rows domain.QuestionFeedbackRepository, threshold, concurrency int) *QuestionBreakdown {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &QuestionBreakdown{Runner: r, Rows: rows, Threshold: threshold, Concurrency: concurrency}
}

type breakdownInput struct {
	RoundID      string
	EvaluationID string
	Transcript   string
	Job          domain.JobContext
	Bank         []domain.QuestionBankEntry
	Tally        *tokenTally
}

// Run executes extraction, then matching and resolution per pair, then the batch insert.
func (b *QuestionBreakdown) Run(ctx context.Context, in breakdownInput) (breakdownResult, error) {
	lg := observability.LoggerFromContext(ctx)

	pairs, err := b.extract(ctx, in)
	if err != nil {
		return breakdownResult{}, err
	}
	if len(pairs) == 0 {
		lg.Info("question breakdown found no question-answer pairs")
		return breakdownResult{}, nil
	}

	rows := make([]domain.QuestionFeedback, len(pairs))
	var matched atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.Concurrency)
	for i, pair := range pairs {
		g.Go(func() error {
			entry, ok := b.match(gctx, pair, in)
			if ok {
				matched.Add(1)
			}
			row, err := b.resolve(gctx, pair, entry, ok, in)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return breakdownResult{}, err
	}

	if err := b.Rows.InsertBatch(ctx, rows); err != nil {
		return breakdownResult{}, fmt.Errorf("op=usecase.QuestionBreakdown.Run: insert %d rows: %w", len(rows), err)
	}
	lg.Info("question breakdown generated",
		slog.Int("total_questions", len(rows)),
		slog.Int64("matched_questions", matched.Load()))
	return breakdownResult{Rows: len(rows), Matched: int(matched.Load())}, nil
}

// extract parses the transcript into pairs. Pairs with empty answers are kept.
func (b *QuestionBreakdown) extract(ctx context.Context, in breakdownInput) ([]domain.QAPair, error) {
	if strings.TrimSpace(in.Transcript) == "" {
		return nil, nil
	}
	res, err := generate[extractionResult](ctx, b.Runner, domain.TaskQAExtraction, promptData{Job: in.Job, Transcript: in.Transcript}, nil, in.Tally)
	if err != nil {
		return nil, err
	}
	observability.LoggerFromContext(ctx).Info("extracted question-answer pairs", slog.Int("count", len(res.Pairs)))
	return res.Pairs, nil
}

// match returns the bank entry for the pair's question, or false. Backend
// failures degrade to no match. Only ids present in the bank are accepted.
func (b *QuestionBreakdown) match(ctx context.Context, pair domain.QAPair, in breakdownInput) (domain.QuestionBankEntry, bool) {
	if len(in.Bank) == 0 {
		return domain.QuestionBankEntry{}, false
	}
	lg := observability.LoggerFromContext(ctx)
	res, err := generate[matchResult](ctx, b.Runner, domain.TaskQuestionMatch, promptData{Job: in.Job, Question: pair.Question, Bank: in.Bank}, nil, in.Tally)
	if err != nil {
		lg.Warn("question matching failed, treating as no match",
			slog.String("event", "matching_degradation"),
			slog.String("question", pair.Question),
			slog.Any("error", err))
		return domain.QuestionBankEntry{}, false
	}
	if res.MatchedQuestionID == nil || strings.TrimSpace(*res.MatchedQuestionID) == "" {
		return domain.QuestionBankEntry{}, false
	}
	id := strings.TrimSpace(*res.MatchedQuestionID)
	for _, e := range in.Bank {
		if e.QuestionID != id {
			continue
		}
		if b.Threshold > 0 && res.Confidence < b.Threshold {
			lg.Debug("match below confidence threshold",
				slog.String("question_id", id),
				slog.Int("confidence", res.Confidence),
				slog.Int("threshold", b.Threshold))
			return domain.QuestionBankEntry{}, false
		}
		return e, true
	}
	lg.Warn("matcher returned an id outside the question bank",
		slog.String("event", "matching_degradation"),
		slog.String("question_id", id))
	return domain.QuestionBankEntry{}, false
}

func newRowID() string { return uuid.NewString() }
