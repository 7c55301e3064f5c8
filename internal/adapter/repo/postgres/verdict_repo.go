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

// AlignmentRepo persists job alignments, one per candidate.
type AlignmentRepo struct{ Pool PgxPool }

// NewAlignmentRepo constructs an AlignmentRepo with the given pool.
func NewAlignmentRepo(p PgxPool) *AlignmentRepo { return &AlignmentRepo{Pool: p} }

// Create inserts the alignment. Absent requirement lists are stored as NULL,
// distinct from an empty list.
func (r *AlignmentRepo) Create(ctx domain.Context, a domain.JobAlignment) error {
	ctx, span := otel.Tracer("repo.alignments").Start(ctx, "alignments.Create")
	defer span.End()
	q := `INSERT INTO job_alignments (candidate_id, alignment_score, matched_requirements, missing_requirements, exceeded_requirements, created_at)
	VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.Pool.Exec(ctx, q, a.CandidateID, a.AlignmentScore, a.MatchedRequirements, a.MissingRequirements, a.ExceededRequirements, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("op=alignment.create: %w", domain.ErrConflict)
		}
		return fmt.Errorf("op=alignment.create: %w", err)
	}
	return nil
}

// GetByCandidate loads the candidate's alignment.
func (r *AlignmentRepo) GetByCandidate(ctx domain.Context, candidateID string) (domain.JobAlignment, error) {
	ctx, span := otel.Tracer("repo.alignments").Start(ctx, "alignments.GetByCandidate")
	defer span.End()
	q := `SELECT candidate_id, alignment_score, matched_requirements, missing_requirements, exceeded_requirements, created_at
	FROM job_alignments WHERE candidate_id=$1`
	var a domain.JobAlignment
	err := r.Pool.QueryRow(ctx, q, candidateID).Scan(&a.CandidateID, &a.AlignmentScore, &a.MatchedRequirements, &a.MissingRequirements, &a.ExceededRequirements, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.JobAlignment{}, fmt.Errorf("op=alignment.get: %w", domain.ErrNotFound)
		}
		return domain.JobAlignment{}, fmt.Errorf("op=alignment.get: %w", err)
	}
	return a, nil
}

// VerdictRepo persists aggregated verdicts. The unique candidate_id
// constraint guarantees at most one verdict per candidate.
type VerdictRepo struct{ Pool PgxPool }

// NewVerdictRepo constructs a VerdictRepo with the given pool.
func NewVerdictRepo(p PgxPool) *VerdictRepo { return &VerdictRepo{Pool: p} }

// Create inserts the verdict and returns its id, or ErrConflict when the
// candidate already has one.
func (r *VerdictRepo) Create(ctx domain.Context, v domain.AggregatedVerdict) (string, error) {
	ctx, span := otel.Tracer("repo.verdicts").Start(ctx, "verdicts.Create")
	defer span.End()
	id := v.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO aggregated_verdicts (id, candidate_id, overall_score, hiring_verdict, verdict_rationale, created_at) VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.Pool.Exec(ctx, q, id, v.CandidateID, v.OverallScore, string(v.HiringVerdict), v.VerdictRationale, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("op=verdict.create: %w", domain.ErrConflict)
		}
		return "", fmt.Errorf("op=verdict.create: %w", err)
	}
	return id, nil
}

// GetByCandidate loads the candidate's verdict.
func (r *VerdictRepo) GetByCandidate(ctx domain.Context, candidateID string) (domain.AggregatedVerdict, error) {
	ctx, span := otel.Tracer("repo.verdicts").Start(ctx, "verdicts.GetByCandidate")
	defer span.End()
	q := `SELECT id, candidate_id, overall_score, hiring_verdict, verdict_rationale, created_at FROM aggregated_verdicts WHERE candidate_id=$1`
	var (
		v  domain.AggregatedVerdict
		hv string
	)
	err := r.Pool.QueryRow(ctx, q, candidateID).Scan(&v.ID, &v.CandidateID, &v.OverallScore, &hv, &v.VerdictRationale, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AggregatedVerdict{}, fmt.Errorf("op=verdict.get: %w", domain.ErrNotFound)
		}
		return domain.AggregatedVerdict{}, fmt.Errorf("op=verdict.get: %w", err)
	}
	v.HiringVerdict = domain.HiringVerdict(hv)
	return v, nil
}

// ExistsForCandidate reports whether the candidate already has a verdict.
func (r *VerdictRepo) ExistsForCandidate(ctx domain.Context, candidateID string) (bool, error) {
	ctx, span := otel.Tracer("repo.verdicts").Start(ctx, "verdicts.ExistsForCandidate")
	defer span.End()
	var exists bool
	if err := r.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM aggregated_verdicts WHERE candidate_id=$1)`, candidateID).Scan(&exists); err != nil {
		return false, fmt.Errorf("op=verdict.exists: %w", err)
	}
	return exists, nil
}
