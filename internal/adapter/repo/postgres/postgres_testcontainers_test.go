//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	containerTypes "github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fairyhunter13/interview-evaluator/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()
	port := nat.Port("5432/tcp")
	req := tc.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "app"},
		ExposedPorts: []string{string(port)},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort(port),
		).WithDeadline(90 * time.Second),
	}
	req.HostConfigModifier = func(hc *containerTypes.HostConfig) {
		hc.Tmpfs = map[string]string{"/var/lib/postgresql/data": "rw"}
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, port)
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/app?sslmode=disable", host, mapped.Port())

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.Eventually(t, func() bool { return pool.Ping(ctx) == nil }, 30*time.Second, time.Second)
	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}

func TestPostgres_RoundLifecycle(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	require.NoError(t, postgres.Seed(ctx, pool, postgres.Fixture{
		Jobs:       []domain.Job{{ID: "job-1", Title: "Backend Engineer", Description: "Go services", Files: []domain.ReferenceFile{{URI: "gs://b/jd.pdf", MIMEType: "application/pdf"}}}},
		Candidates: []domain.Candidate{{ID: "cand-1", JobID: "job-1", Name: "Ada"}},
		Rounds: []postgres.SeedRound{{
			Round: domain.Round{ID: "round-1", CandidateID: "cand-1", Name: "Screening", Transcript: []domain.Turn{
				{Role: domain.RoleInterviewer, Text: "Why Go?"},
				{Role: domain.RoleCandidate, Text: "Concurrency."},
			}},
			Bank: []domain.QuestionBankEntry{{QuestionID: "q1", QuestionText: "Why Go?"}},
		}},
	}))

	rounds := postgres.NewRoundRepo(pool)
	r, err := rounds.Get(ctx, "round-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", r.JobID)
	assert.Equal(t, domain.RoundFinished, r.Status)
	require.Len(t, r.Transcript, 2)

	bank, err := rounds.QuestionBank(ctx, "round-1")
	require.NoError(t, err)
	require.Len(t, bank, 1)
	assert.Equal(t, []string{}, bank[0].SampleAnswers)

	job, err := postgres.NewJobRepo(pool).Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Len(t, job.Files, 1)

	pending, err := rounds.ListFinishedWithoutFeedback(ctx, 0, 2, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, rounds.MarkSwept(ctx, "round-1"))
	pending, err = rounds.ListFinishedWithoutFeedback(ctx, 3600, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "a swept round waits for the age again")
	require.NoError(t, rounds.MarkSwept(ctx, "round-1"))
	pending, err = rounds.ListFinishedWithoutFeedback(ctx, 0, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "sweep cap reached")
	pending, err = rounds.ListFinishedWithoutFeedback(ctx, 0, 3, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	qid := "q1"
	questions := postgres.NewQuestionFeedbackRepo(pool)
	require.NoError(t, questions.InsertBatch(ctx, []domain.QuestionFeedback{
		{RoundID: "round-1", EvaluationID: "stale", Question: "Why Go?", Answer: "x", Pros: []string{}, Cons: []string{}, Score: 10},
	}))
	require.NoError(t, questions.InsertBatch(ctx, []domain.QuestionFeedback{
		{RoundID: "round-1", EvaluationID: "eval-1", QuestionID: &qid, Question: "Why Go?", Answer: "Concurrency.", Pros: []string{"clear"}, Cons: []string{}, Score: 80},
	}))

	feedback := postgres.NewFeedbackRepo(pool)
	fb := domain.RoundFeedback{RoundID: "round-1", EvaluationID: "eval-1", Overview: "Solid", Pros: []string{}, Cons: []string{}, KeyImprovements: []string{}, Score: 75}
	_, err = feedback.Complete(ctx, fb)
	require.NoError(t, err)

	_, err = feedback.Complete(ctx, fb)
	require.ErrorIs(t, err, domain.ErrConflict)

	r, err = rounds.Get(ctx, "round-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoundComplete, r.Status)

	rows, err := questions.ListByRound(ctx, "round-1")
	require.NoError(t, err)
	require.Len(t, rows, 1, "rows of the stale attempt are hidden")
	assert.Equal(t, "q1", *rows[0].QuestionID)

	purged, err := postgres.NewCleanupService(pool, time.Nanosecond).PurgeOrphanedQuestionFeedback(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	verdicts := postgres.NewVerdictRepo(pool)
	_, err = verdicts.Create(ctx, domain.AggregatedVerdict{CandidateID: "cand-1", OverallScore: 75, HiringVerdict: domain.VerdictAdvance})
	require.NoError(t, err)
	_, err = verdicts.Create(ctx, domain.AggregatedVerdict{CandidateID: "cand-1", OverallScore: 10, HiringVerdict: domain.VerdictReject})
	require.ErrorIs(t, err, domain.ErrConflict)
	exists, err := verdicts.ExistsForCandidate(ctx, "cand-1")
	require.NoError(t, err)
	assert.True(t, exists)

	alignments := postgres.NewAlignmentRepo(pool)
	require.NoError(t, alignments.Create(ctx, domain.JobAlignment{CandidateID: "cand-1", AlignmentScore: 60, MatchedRequirements: []string{"Go"}}))
	a, err := alignments.GetByCandidate(ctx, "cand-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, a.MatchedRequirements)
	assert.Nil(t, a.MissingRequirements)
}
