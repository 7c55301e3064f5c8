package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

// dbTurn is the jsonb shape of one transcript turn.
type dbTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func decodeTranscript(raw []byte) ([]domain.Turn, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rows []dbTurn
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	turns := make([]domain.Turn, 0, len(rows))
	for _, r := range rows {
		turns = append(turns, domain.Turn{Role: domain.Role(r.Role), Text: r.Text})
	}
	return turns, nil
}

func encodeTranscript(turns []domain.Turn) ([]byte, error) {
	rows := make([]dbTurn, 0, len(turns))
	for _, t := range turns {
		rows = append(rows, dbTurn{Role: string(t.Role), Text: t.Text})
	}
	return json.Marshal(rows)
}

// RoundRepo loads interview rounds and their question banks.
type RoundRepo struct{ Pool PgxPool }

// NewRoundRepo constructs a RoundRepo with the given pool.
func NewRoundRepo(p PgxPool) *RoundRepo { return &RoundRepo{Pool: p} }

const roundColumns = `r.id, r.candidate_id, c.job_id, r.name, r.type, r.order_index, r.status, r.transcript, r.finished_at, r.created_at`

func scanRound(row pgx.Row) (domain.Round, error) {
	var (
		r          domain.Round
		typ        string
		status     string
		transcript []byte
		finishedAt *time.Time
	)
	if err := row.Scan(&r.ID, &r.CandidateID, &r.JobID, &r.Name, &typ, &r.OrderIndex, &status, &transcript, &finishedAt, &r.CreatedAt); err != nil {
		return domain.Round{}, err
	}
	turns, err := decodeTranscript(transcript)
	if err != nil {
		return domain.Round{}, fmt.Errorf("decode transcript: %w", err)
	}
	r.Type = domain.RoundType(typ)
	r.Status = domain.RoundStatus(status)
	r.Transcript = turns
	r.FinishedAt = finishedAt
	return r, nil
}

// Get loads a round by id.
func (r *RoundRepo) Get(ctx domain.Context, id string) (domain.Round, error) {
	ctx, span := otel.Tracer("repo.rounds").Start(ctx, "rounds.Get")
	defer span.End()
	q := `SELECT ` + roundColumns + ` FROM rounds r JOIN candidates c ON c.id = r.candidate_id WHERE r.id=$1`
	round, err := scanRound(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Round{}, fmt.Errorf("op=round.get: %w", domain.ErrNotFound)
		}
		return domain.Round{}, fmt.Errorf("op=round.get: %w", err)
	}
	return round, nil
}

// ListByCandidate returns every round of the candidate ordered by order index.
func (r *RoundRepo) ListByCandidate(ctx domain.Context, candidateID string) ([]domain.Round, error) {
	ctx, span := otel.Tracer("repo.rounds").Start(ctx, "rounds.ListByCandidate")
	defer span.End()
	q := `SELECT ` + roundColumns + ` FROM rounds r JOIN candidates c ON c.id = r.candidate_id
	WHERE r.candidate_id=$1 ORDER BY r.order_index, r.created_at`
	return r.list(ctx, "op=round.list_by_candidate", q, candidateID)
}

// ListFinishedWithoutFeedback returns rounds finished longer than olderThanSeconds
// ago that still have no feedback, oldest first. A swept round waits
// olderThanSeconds again before it is listed, and at most maxSweeps times.
func (r *RoundRepo) ListFinishedWithoutFeedback(ctx domain.Context, olderThanSeconds int64, maxSweeps, limit int) ([]domain.Round, error) {
	ctx, span := otel.Tracer("repo.rounds").Start(ctx, "rounds.ListFinishedWithoutFeedback")
	defer span.End()
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + roundColumns + ` FROM rounds r JOIN candidates c ON c.id = r.candidate_id
	WHERE r.status='finished'
	  AND COALESCE(r.last_swept_at, r.finished_at, r.created_at) < now() - make_interval(secs => $1)
	  AND r.sweep_attempts < $2
	  AND NOT EXISTS (SELECT 1 FROM round_feedback f WHERE f.round_id = r.id)
	ORDER BY COALESCE(r.finished_at, r.created_at) LIMIT $3`
	return r.list(ctx, "op=round.list_unevaluated", q, olderThanSeconds, maxSweeps, limit)
}

// MarkSwept increments the round's sweep counter and stamps the sweep time.
func (r *RoundRepo) MarkSwept(ctx domain.Context, roundID string) error {
	ctx, span := otel.Tracer("repo.rounds").Start(ctx, "rounds.MarkSwept")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `UPDATE rounds SET sweep_attempts = sweep_attempts + 1, last_swept_at = now() WHERE id=$1`, roundID)
	if err != nil {
		return fmt.Errorf("op=round.mark_swept: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=round.mark_swept: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *RoundRepo) list(ctx domain.Context, op, q string, args ...any) ([]domain.Round, error) {
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var out []domain.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// QuestionBank returns the predefined questions attached to a round.
func (r *RoundRepo) QuestionBank(ctx domain.Context, roundID string) ([]domain.QuestionBankEntry, error) {
	ctx, span := otel.Tracer("repo.rounds").Start(ctx, "rounds.QuestionBank")
	defer span.End()
	q := `SELECT question_id, question_text, answer_guidelines, sample_answers FROM round_questions WHERE round_id=$1 ORDER BY position, question_id`
	rows, err := r.Pool.Query(ctx, q, roundID)
	if err != nil {
		return nil, fmt.Errorf("op=round.question_bank: %w", err)
	}
	defer rows.Close()
	var out []domain.QuestionBankEntry
	for rows.Next() {
		var e domain.QuestionBankEntry
		if err := rows.Scan(&e.QuestionID, &e.QuestionText, &e.AnswerGuidelines, &e.SampleAnswers); err != nil {
			return nil, fmt.Errorf("op=round.question_bank: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=round.question_bank: %w", err)
	}
	return out, nil
}
