package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

// FeedbackRepo persists round-level feedback.
type FeedbackRepo struct{ Pool PgxPool }

// NewFeedbackRepo constructs a FeedbackRepo with the given pool.
func NewFeedbackRepo(p PgxPool) *FeedbackRepo { return &FeedbackRepo{Pool: p} }

// Complete inserts the feedback and moves the round from finished to complete
// in one transaction. A round that is no longer finished, or that already has
// feedback, yields ErrConflict and nothing is written.
func (r *FeedbackRepo) Complete(ctx domain.Context, fb domain.RoundFeedback) (string, error) {
	ctx, span := otel.Tracer("repo.feedback").Start(ctx, "feedback.Complete")
	defer span.End()
	id := fb.ID
	if id == "" {
		id = uuid.New().String()
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("op=feedback.complete: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `INSERT INTO round_feedback (id, round_id, evaluation_id, overview, pros, cons, job_fit_analysis, job_fit_percentage, score, key_improvements, input_tokens, output_tokens, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	if _, err := tx.Exec(ctx, q, id, fb.RoundID, fb.EvaluationID, fb.Overview, fb.Pros, fb.Cons, fb.JobFitAnalysis,
		fb.JobFitPercentage, fb.Score, fb.KeyImprovements, fb.InputTokens, fb.OutputTokens, time.Now().UTC()); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("op=feedback.complete: %w", domain.ErrConflict)
		}
		return "", fmt.Errorf("op=feedback.complete: insert: %w", err)
	}
	tag, err := tx.Exec(ctx, `UPDATE rounds SET status='complete' WHERE id=$1 AND status='finished'`, fb.RoundID)
	if err != nil {
		return "", fmt.Errorf("op=feedback.complete: update round: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return "", fmt.Errorf("op=feedback.complete: round %s is not finished: %w", fb.RoundID, domain.ErrConflict)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("op=feedback.complete: commit: %w", err)
	}
	return id, nil
}

// GetByRound loads the feedback of a round.
func (r *FeedbackRepo) GetByRound(ctx domain.Context, roundID string) (domain.RoundFeedback, error) {
	ctx, span := otel.Tracer("repo.feedback").Start(ctx, "feedback.GetByRound")
	defer span.End()
	q := `SELECT id, round_id, evaluation_id, overview, pros, cons, job_fit_analysis, job_fit_percentage, score, key_improvements, input_tokens, output_tokens, created_at
	FROM round_feedback WHERE round_id=$1`
	var fb domain.RoundFeedback
	err := r.Pool.QueryRow(ctx, q, roundID).Scan(&fb.ID, &fb.RoundID, &fb.EvaluationID, &fb.Overview, &fb.Pros, &fb.Cons,
		&fb.JobFitAnalysis, &fb.JobFitPercentage, &fb.Score, &fb.KeyImprovements, &fb.InputTokens, &fb.OutputTokens, &fb.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RoundFeedback{}, fmt.Errorf("op=feedback.get: %w", domain.ErrNotFound)
		}
		return domain.RoundFeedback{}, fmt.Errorf("op=feedback.get: %w", err)
	}
	return fb, nil
}

// QuestionFeedbackRepo persists per-question feedback rows.
type QuestionFeedbackRepo struct{ Pool PgxPool }

// NewQuestionFeedbackRepo constructs a QuestionFeedbackRepo with the given pool.
func NewQuestionFeedbackRepo(p PgxPool) *QuestionFeedbackRepo { return &QuestionFeedbackRepo{Pool: p} }

var questionFeedbackColumns = []string{"id", "round_id", "evaluation_id", "question_id", "question", "answer", "pros", "cons", "score", "position", "created_at"}

// InsertBatch writes all rows with a single COPY.
func (r *QuestionFeedbackRepo) InsertBatch(ctx domain.Context, rows []domain.QuestionFeedback) error {
	ctx, span := otel.Tracer("repo.question_feedback").Start(ctx, "question_feedback.InsertBatch")
	defer span.End()
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	n, err := r.Pool.CopyFrom(ctx, pgx.Identifier{"question_feedback"}, questionFeedbackColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			q := rows[i]
			id := q.ID
			if id == "" {
				id = uuid.New().String()
			}
			return []any{id, q.RoundID, q.EvaluationID, q.QuestionID, q.Question, q.Answer, q.Pros, q.Cons, q.Score, i, now}, nil
		}))
	if err != nil {
		return fmt.Errorf("op=question_feedback.insert_batch: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("op=question_feedback.insert_batch: copied %d of %d rows", n, len(rows))
	}
	return nil
}

// ListByRound returns the rows written by the evaluation that produced the
// round's persisted feedback. Rows of failed attempts are never returned.
func (r *QuestionFeedbackRepo) ListByRound(ctx domain.Context, roundID string) ([]domain.QuestionFeedback, error) {
	ctx, span := otel.Tracer("repo.question_feedback").Start(ctx, "question_feedback.ListByRound")
	defer span.End()
	q := `SELECT q.id, q.round_id, q.evaluation_id, q.question_id, q.question, q.answer, q.pros, q.cons, q.score, q.created_at
	FROM question_feedback q
	JOIN round_feedback f ON f.round_id = q.round_id AND f.evaluation_id = q.evaluation_id
	WHERE q.round_id=$1 ORDER BY q.position, q.id`
	rows, err := r.Pool.Query(ctx, q, roundID)
	if err != nil {
		return nil, fmt.Errorf("op=question_feedback.list: %w", err)
	}
	defer rows.Close()
	var out []domain.QuestionFeedback
	for rows.Next() {
		var qf domain.QuestionFeedback
		if err := rows.Scan(&qf.ID, &qf.RoundID, &qf.EvaluationID, &qf.QuestionID, &qf.Question, &qf.Answer, &qf.Pros, &qf.Cons, &qf.Score, &qf.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=question_feedback.list: %w", err)
		}
		out = append(out, qf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=question_feedback.list: %w", err)
	}
	return out, nil
}
