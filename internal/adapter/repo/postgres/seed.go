package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

// SeedRound is a round together with its question bank.
type SeedRound struct {
	Round domain.Round
	Bank  []domain.QuestionBankEntry
}

// Fixture is a set of externally owned records to load into an empty
// database for local development and integration tests.
type Fixture struct {
	Jobs       []domain.Job
	Candidates []domain.Candidate
	Rounds     []SeedRound
}

// Seed inserts the fixture in one transaction. Existing rows are left alone.
func Seed(ctx context.Context, pool PgxPool, f Fixture) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("op=postgres.seed: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, j := range f.Jobs {
		files, err := encodeFiles(j.Files)
		if err != nil {
			return fmt.Errorf("op=postgres.seed: job %s: %w", j.ID, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO jobs (id, title, description, company_name, company_description, coach_knowledge_base, files)
		VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (id) DO NOTHING`,
			j.ID, j.Title, j.Description, j.CompanyName, j.CompanyDescription, j.CoachKnowledgeBase, files); err != nil {
			return fmt.Errorf("op=postgres.seed: job %s: %w", j.ID, err)
		}
	}
	for _, c := range f.Candidates {
		files, err := encodeFiles(c.ApplicationFiles)
		if err != nil {
			return fmt.Errorf("op=postgres.seed: candidate %s: %w", c.ID, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO candidates (id, job_id, name, application_files) VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING`,
			c.ID, c.JobID, c.Name, files); err != nil {
			return fmt.Errorf("op=postgres.seed: candidate %s: %w", c.ID, err)
		}
	}
	for _, sr := range f.Rounds {
		r := sr.Round
		transcript, err := encodeTranscript(r.Transcript)
		if err != nil {
			return fmt.Errorf("op=postgres.seed: round %s: %w", r.ID, err)
		}
		status := r.Status
		if status == "" {
			status = domain.RoundFinished
		}
		typ := r.Type
		if typ == "" {
			typ = domain.RoundTypeGeneral
		}
		finishedAt := r.FinishedAt
		if finishedAt == nil && status != domain.RoundInProgress {
			now := time.Now().UTC()
			finishedAt = &now
		}
		if _, err := tx.Exec(ctx, `INSERT INTO rounds (id, candidate_id, name, type, order_index, status, transcript, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (id) DO NOTHING`,
			r.ID, r.CandidateID, r.Name, string(typ), r.OrderIndex, string(status), transcript, finishedAt); err != nil {
			return fmt.Errorf("op=postgres.seed: round %s: %w", r.ID, err)
		}
		for i, e := range sr.Bank {
			samples := e.SampleAnswers
			if samples == nil {
				samples = []string{}
			}
			if _, err := tx.Exec(ctx, `INSERT INTO round_questions (round_id, question_id, question_text, answer_guidelines, sample_answers, position)
			VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (round_id, question_id) DO NOTHING`,
				r.ID, e.QuestionID, e.QuestionText, e.AnswerGuidelines, samples, i); err != nil {
				return fmt.Errorf("op=postgres.seed: round %s question %s: %w", r.ID, e.QuestionID, err)
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=postgres.seed: commit: %w", err)
	}
	return nil
}
