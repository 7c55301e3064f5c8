package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

// dbFile is the jsonb shape of a reference file.
type dbFile struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mime_type"`
}

func decodeFiles(raw []byte) ([]domain.ReferenceFile, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rows []dbFile
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	files := make([]domain.ReferenceFile, 0, len(rows))
	for _, f := range rows {
		files = append(files, domain.ReferenceFile{URI: f.URI, MIMEType: f.MIMEType})
	}
	return files, nil
}

func encodeFiles(files []domain.ReferenceFile) ([]byte, error) {
	rows := make([]dbFile, 0, len(files))
	for _, f := range files {
		rows = append(rows, dbFile{URI: f.URI, MIMEType: f.MIMEType})
	}
	return json.Marshal(rows)
}

// JobRepo loads job postings.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

// Get loads a job by id.
func (r *JobRepo) Get(ctx domain.Context, id string) (domain.Job, error) {
	ctx, span := otel.Tracer("repo.jobs").Start(ctx, "jobs.Get")
	defer span.End()
	q := `SELECT id, title, description, company_name, company_description, coach_knowledge_base, files FROM jobs WHERE id=$1`
	var (
		j     domain.Job
		files []byte
	)
	err := r.Pool.QueryRow(ctx, q, id).Scan(&j.ID, &j.Title, &j.Description, &j.CompanyName, &j.CompanyDescription, &j.CoachKnowledgeBase, &files)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Job{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("op=job.get: %w", err)
	}
	if j.Files, err = decodeFiles(files); err != nil {
		return domain.Job{}, fmt.Errorf("op=job.get: decode files: %w", err)
	}
	return j, nil
}

// CandidateRepo loads candidates.
type CandidateRepo struct{ Pool PgxPool }

// NewCandidateRepo constructs a CandidateRepo with the given pool.
func NewCandidateRepo(p PgxPool) *CandidateRepo { return &CandidateRepo{Pool: p} }

// Get loads a candidate by id.
func (r *CandidateRepo) Get(ctx domain.Context, id string) (domain.Candidate, error) {
	ctx, span := otel.Tracer("repo.candidates").Start(ctx, "candidates.Get")
	defer span.End()
	q := `SELECT id, job_id, name, application_files FROM candidates WHERE id=$1`
	var (
		c     domain.Candidate
		files []byte
	)
	err := r.Pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.JobID, &c.Name, &files)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Candidate{}, fmt.Errorf("op=candidate.get: %w", domain.ErrNotFound)
		}
		return domain.Candidate{}, fmt.Errorf("op=candidate.get: %w", err)
	}
	if c.ApplicationFiles, err = decodeFiles(files); err != nil {
		return domain.Candidate{}, fmt.Errorf("op=candidate.get: decode files: %w", err)
	}
	return c, nil
}
