package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

const fixtureYAML = `
jobs:
  - id: job-1
    title: Backend Engineer
    description: Go services
    files:
      - uri: gs://bucket/jd.pdf
        mime_type: application/pdf
candidates:
  - id: cand-1
    job_id: job-1
    name: Ada
rounds:
  - id: round-1
    candidate_id: cand-1
    name: Screening
    type: General
    order: 0
    status: finished
    transcript:
      - role: interviewer
        text: Why Go?
      - role: Candidate
        text: Concurrency.
    questions:
      - id: q1
        text: Why Go?
        sample_answers: [Goroutines]
`

func TestParseSeed(t *testing.T) {
	f, err := parseSeed([]byte(fixtureYAML))
	require.NoError(t, err)

	require.Len(t, f.Jobs, 1)
	assert.Equal(t, []domain.ReferenceFile{{URI: "gs://bucket/jd.pdf", MIMEType: "application/pdf"}}, f.Jobs[0].Files)
	require.Len(t, f.Candidates, 1)
	assert.Empty(t, f.Candidates[0].ApplicationFiles)

	require.Len(t, f.Rounds, 1)
	r := f.Rounds[0]
	assert.Equal(t, domain.RoundTypeGeneral, r.Round.Type)
	assert.Equal(t, domain.RoundFinished, r.Round.Status)
	assert.Equal(t, domain.RoleCandidate, r.Round.Transcript[1].Role)
	require.Len(t, r.Bank, 1)
	assert.Equal(t, []string{"Goroutines"}, r.Bank[0].SampleAnswers)
}

func TestParseSeed_Errors(t *testing.T) {
	_, err := parseSeed([]byte("jobs: ["))
	require.Error(t, err)

	_, err = parseSeed([]byte("{}"))
	require.EqualError(t, err, "fixture is empty")

	_, err = parseSeed([]byte(`
rounds:
  - id: r
    transcript:
      - role: narrator
        text: hi
`))
	require.ErrorContains(t, err, "unknown role")
}

func TestSeedFromYAML_MissingFile(t *testing.T) {
	err := seedFromYAML(context.Background(), nil, "/nonexistent/seed.yaml")
	require.ErrorContains(t, err, "seed file not found")
}
