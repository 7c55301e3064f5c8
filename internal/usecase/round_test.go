package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/domain/mocks"
)

type roundFixture struct {
	gen       *fakeGenerator
	rounds    *mocks.RoundRepository
	jobs      *mocks.JobRepository
	feedback  *mocks.FeedbackRepository
	questions *mocks.QuestionFeedbackRepository
	events    *mocks.EventPublisher
	svc       *RoundService

	mu     sync.Mutex
	states []domain.EvaluationState
}

func newRoundFixture(t *testing.T, handlers map[domain.TaskKind]handler) *roundFixture {
	f := &roundFixture{
		gen:       newFakeGenerator(handlers),
		rounds:    mocks.NewRoundRepository(t),
		jobs:      mocks.NewJobRepository(t),
		feedback:  mocks.NewFeedbackRepository(t),
		questions: mocks.NewQuestionFeedbackRepository(t),
		events:    mocks.NewEventPublisher(t),
	}
	runner := newTestRunner(t, f.gen)
	breakdown := NewQuestionBreakdown(runner, f.questions, 0, 2)
	f.svc = NewRoundService(f.rounds, f.jobs, f.feedback, runner, breakdown, f.events)
	f.svc.Observe = func(s domain.EvaluationState) {
		f.mu.Lock()
		f.states = append(f.states, s)
		f.mu.Unlock()
	}
	return f
}

func (f *roundFixture) expectLoad(round domain.Round) {
	f.rounds.On("Get", mock.Anything, round.ID).Return(round, nil)
	f.jobs.On("Get", mock.Anything, round.JobID).Return(testJob(), nil)
	f.rounds.On("QuestionBank", mock.Anything, round.ID).Return(testBank(), nil)
}

func TestRoundService_Evaluate_Success(t *testing.T) {
	f := newRoundFixture(t, roundHandlers())
	f.expectLoad(testRound(domain.RoundFinished))

	var inserted []domain.QuestionFeedback
	f.questions.On("InsertBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { inserted = args.Get(1).([]domain.QuestionFeedback) }).
		Return(nil).Once()

	var stored domain.RoundFeedback
	f.feedback.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(domain.RoundFeedback) }).
		Return("fb-1", nil).Once()
	f.events.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.Event) bool {
		return e.Type == domain.EventRoundCompleted && e.SubjectID == "round-1"
	})).Return(nil).Once()

	res, err := f.svc.Evaluate(context.Background(), "round-1")
	require.NoError(t, err)

	assert.Equal(t, domain.EvaluationCompleted, res.State)
	assert.Equal(t, "fb-1", res.FeedbackID)
	assert.Equal(t, 2, res.QuestionRows)
	assert.Equal(t, stored.Score, res.Score)
	assert.Equal(t, []domain.EvaluationState{domain.EvaluationPending, domain.EvaluationRunning, domain.EvaluationCompleted}, f.states)

	assert.Equal(t, "round-1", stored.RoundID)
	assert.Equal(t, res.EvaluationID, stored.EvaluationID)
	assert.Equal(t, "Solid interview.", stored.Overview)
	assert.Equal(t, []string{"clear"}, stored.Pros)
	assert.Equal(t, []string{"brief"}, stored.Cons)
	assert.Equal(t, 78, stored.Score)
	assert.Equal(t, "Good fit.", stored.JobFitAnalysis)
	assert.Equal(t, 70, stored.JobFitPercentage)
	assert.Equal(t, []string{"add metrics"}, stored.KeyImprovements)

	// 5 round tasks, extraction, 2 matches, 4 bank-aware steps, 1 simple feedback
	assert.Equal(t, 13*10, stored.InputTokens)
	assert.Equal(t, 13*5, stored.OutputTokens)
	assert.Equal(t, 0, f.gen.Calls(domain.TaskCoachKnowledge))

	require.Len(t, inserted, 2)
	byQuestion := map[string]domain.QuestionFeedback{}
	for _, r := range inserted {
		assert.Equal(t, res.EvaluationID, r.EvaluationID)
		byQuestion[r.Question] = r
	}
	matched := byQuestion["Tell me about yourself"]
	require.NotNil(t, matched.QuestionID)
	assert.Equal(t, "q1", *matched.QuestionID)
	assert.Equal(t, 85, matched.Score)
	unmatched := byQuestion["Why this company?"]
	assert.Nil(t, unmatched.QuestionID)
	assert.Equal(t, "", unmatched.Answer)
	assert.Equal(t, 10, unmatched.Score)
}

func TestRoundService_Evaluate_TaskFailureLeavesRoundUntouched(t *testing.T) {
	handlers := roundHandlers()
	handlers[domain.TaskScore] = fail(errors.New("backend unavailable"))
	f := newRoundFixture(t, handlers)
	f.expectLoad(testRound(domain.RoundFinished))
	f.questions.On("InsertBatch", mock.Anything, mock.Anything).Return(nil).Maybe()

	res, err := f.svc.Evaluate(context.Background(), "round-1")
	require.Error(t, err)

	var pe *domain.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, string(domain.TaskScore), pe.Stage)
	var ge *domain.GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, domain.TaskScore, ge.Task)

	assert.Equal(t, 3, f.gen.Calls(domain.TaskScore))
	assert.Equal(t, domain.EvaluationFailed, res.State)
	assert.Empty(t, res.FeedbackID)
	f.feedback.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestRoundService_Evaluate_SchemaViolationIsRetried(t *testing.T) {
	handlers := roundHandlers()
	handlers[domain.TaskScore] = func(_ domain.GenerationRequest, call int) (string, error) {
		if call == 1 {
			return `{"score": 140}`, nil
		}
		return `{"score": 64}`, nil
	}
	f := newRoundFixture(t, handlers)
	f.expectLoad(testRound(domain.RoundFinished))
	f.questions.On("InsertBatch", mock.Anything, mock.Anything).Return(nil).Once()
	f.feedback.On("Complete", mock.Anything, mock.MatchedBy(func(fb domain.RoundFeedback) bool {
		return fb.Score == 64
	})).Return("fb-2", nil).Once()
	f.events.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	res, err := f.svc.Evaluate(context.Background(), "round-1")
	require.NoError(t, err, "event publishing is best effort")
	assert.Equal(t, "fb-2", res.FeedbackID)
	assert.Equal(t, 2, f.gen.Calls(domain.TaskScore))
}

func TestRoundService_Evaluate_RejectsWrongStatus(t *testing.T) {
	tests := []struct {
		name   string
		status domain.RoundStatus
		want   error
	}{
		{"already complete", domain.RoundComplete, domain.ErrConflict},
		{"still in progress", domain.RoundInProgress, domain.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRoundFixture(t, roundHandlers())
			f.rounds.On("Get", mock.Anything, "round-1").Return(testRound(tt.status), nil).Once()

			_, err := f.svc.Evaluate(context.Background(), "round-1")
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.gen.Requests(domain.TaskOverview))
		})
	}
}

func TestRoundService_Evaluate_RoundNotFound(t *testing.T) {
	f := newRoundFixture(t, roundHandlers())
	f.rounds.On("Get", mock.Anything, "missing").Return(domain.Round{}, domain.ErrNotFound).Once()

	_, err := f.svc.Evaluate(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRoundService_Evaluate_ConcurrentCompletionConflicts(t *testing.T) {
	f := newRoundFixture(t, roundHandlers())
	f.expectLoad(testRound(domain.RoundFinished))
	f.questions.On("InsertBatch", mock.Anything, mock.Anything).Return(nil).Once()
	f.feedback.On("Complete", mock.Anything, mock.Anything).Return("", domain.ErrConflict).Once()

	res, err := f.svc.Evaluate(context.Background(), "round-1")
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.EvaluationFailed, res.State)
}

func TestRoundService_Evaluate_EmptyTranscript(t *testing.T) {
	f := newRoundFixture(t, roundHandlers())
	round := testRound(domain.RoundFinished)
	round.Transcript = nil
	f.expectLoad(round)
	f.feedback.On("Complete", mock.Anything, mock.Anything).Return("fb-3", nil).Once()
	f.events.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	res, err := f.svc.Evaluate(context.Background(), "round-1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.QuestionRows)
	assert.Equal(t, 0, f.gen.Calls(domain.TaskQAExtraction))
	f.questions.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
}

func TestRoundService_Evaluate_PassesJobFilesToRoundTasks(t *testing.T) {
	f := newRoundFixture(t, roundHandlers())
	f.expectLoad(testRound(domain.RoundFinished))
	f.questions.On("InsertBatch", mock.Anything, mock.Anything).Return(nil).Once()
	f.feedback.On("Complete", mock.Anything, mock.Anything).Return("fb-4", nil).Once()
	f.events.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := f.svc.Evaluate(context.Background(), "round-1")
	require.NoError(t, err)

	reqs := f.gen.Requests(domain.TaskOverview)
	require.Len(t, reqs, 1)
	assert.Equal(t, testJob().Files, reqs[0].Files)
	assert.Contains(t, reqs[0].System, "**Job Title:** Backend Engineer")
	assert.Contains(t, reqs[0].System, "INTERVIEWER: Tell me about yourself\nCANDIDATE: I build backends.")
	assert.NotNil(t, reqs[0].Schema)
}
