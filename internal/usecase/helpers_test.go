package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/service/retry"
)

// handler answers one generation call. call is 1-based per task kind.
type handler func(req domain.GenerationRequest, call int) (string, error)

// fakeGenerator dispatches by task kind and records every request.
type fakeGenerator struct {
	mu       sync.Mutex
	handlers map[domain.TaskKind]handler
	calls    map[domain.TaskKind]int
	requests []domain.GenerationRequest
}

func newFakeGenerator(handlers map[domain.TaskKind]handler) *fakeGenerator {
	return &fakeGenerator{handlers: handlers, calls: map[domain.TaskKind]int{}}
}

func (f *fakeGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResponse, error) {
	f.mu.Lock()
	f.calls[req.Task]++
	n := f.calls[req.Task]
	f.requests = append(f.requests, req)
	h := f.handlers[req.Task]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.GenerationResponse{}, err
	}
	if h == nil {
		return domain.GenerationResponse{}, fmt.Errorf("no handler for %s", req.Task)
	}
	text, err := h(req, n)
	if err != nil {
		return domain.GenerationResponse{}, err
	}
	return domain.GenerationResponse{Text: text, Model: "fake", InputTokens: 10, OutputTokens: 5}, nil
}

func (f *fakeGenerator) Calls(kind domain.TaskKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeGenerator) Requests(kind domain.TaskKind) []domain.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.GenerationRequest
	for _, r := range f.requests {
		if r.Task == kind {
			out = append(out, r)
		}
	}
	return out
}

func respond(v any) handler {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return func(domain.GenerationRequest, int) (string, error) { return string(b), nil }
}

func fail(err error) handler {
	return func(domain.GenerationRequest, int) (string, error) { return "", err }
}

// instantTimer fires as soon as it is started.
type instantTimer struct{ c chan time.Time }

func (t *instantTimer) Start(time.Duration) {
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func newTestRunner(t *testing.T, gen domain.Generator) *Runner {
	t.Helper()
	prompts, err := LoadPromptCatalog()
	require.NoError(t, err)
	r, err := NewRunner(gen, prompts,
		WithRetryConfig(domain.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxJitter: 0}),
		WithRetryOptions(retry.WithTimer(func() backoff.Timer { return &instantTimer{} })),
	)
	require.NoError(t, err)
	return r
}

// roundHandlers answers every task of a successful round evaluation.
func roundHandlers() map[domain.TaskKind]handler {
	return map[domain.TaskKind]handler{
		domain.TaskOverview:        respond(map[string]any{"overview": "Solid interview."}),
		domain.TaskProsAndCons:     respond(map[string]any{"pros": []string{"clear"}, "cons": []string{"brief"}}),
		domain.TaskScore:           respond(map[string]any{"score": 78}),
		domain.TaskJobFitAnalysis:  respond(map[string]any{"job_fit_analysis": "Good fit.", "job_fit_percentage": 70}),
		domain.TaskKeyImprovements: respond(map[string]any{"key_improvements": []string{"add metrics"}}),
		domain.TaskQAExtraction: respond(map[string]any{"pairs": []map[string]string{
			{"question": "Tell me about yourself", "answer": "I build backends."},
			{"question": "Why this company?", "answer": ""},
		}}),
		domain.TaskQuestionMatch: func(req domain.GenerationRequest, _ int) (string, error) {
			if strings.Contains(req.System, "## Extracted Question\n\"Tell me about yourself\"") {
				return `{"matched_question_id": "q1", "confidence": 90}`, nil
			}
			return `{"matched_question_id": null, "confidence": 0}`, nil
		},
		domain.TaskCoreCriteria:      respond(map[string]any{"core_criteria": []string{"mentions experience"}}),
		domain.TaskCriteriaGrading:   respond(map[string]any{"criteria_met": []string{"mentions experience"}, "criteria_partially_met": []string{}, "criteria_missed": []string{}, "preliminary_score": 80}),
		domain.TaskSampleComparison:  respond(map[string]any{"strengths": []string{"concise"}, "weaknesses": []string{}}),
		domain.TaskCoachKnowledge:    respond(map[string]any{"coach_feedback": []string{}}),
		domain.TaskFeedbackSynthesis: respond(map[string]any{"pros": []string{"relevant"}, "cons": []string{}, "correctness_score": 85}),
		domain.TaskSimpleFeedback:    respond(map[string]any{"pros": []string{}, "cons": []string{"no answer"}, "score": 10}),
	}
}

func testJob() domain.Job {
	return domain.Job{
		ID:          "job-1",
		Title:       "Backend Engineer",
		Description: "Build Go services.",
		CompanyName: "Acme",
		Files:       []domain.ReferenceFile{{URI: "gs://bucket/jd.pdf", MIMEType: "application/pdf"}},
	}
}

func testRound(status domain.RoundStatus) domain.Round {
	return domain.Round{
		ID:          "round-1",
		CandidateID: "cand-1",
		JobID:       "job-1",
		Name:        "Screening",
		Type:        domain.RoundTypeGeneral,
		Status:      status,
		Transcript: []domain.Turn{
			{Role: domain.RoleInterviewer, Text: "Tell me about yourself"},
			{Role: domain.RoleCandidate, Text: "I build backends."},
			{Role: domain.RoleInterviewer, Text: "Why this company?"},
		},
	}
}

func testBank() []domain.QuestionBankEntry {
	return []domain.QuestionBankEntry{{
		QuestionID:       "q1",
		QuestionText:     "Tell me about yourself",
		AnswerGuidelines: "Mentions relevant experience.",
		SampleAnswers:    []string{"I have five years of Go experience."},
	}}
}
