package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/domain/mocks"
)

type purgerFunc func(ctx context.Context) (int64, error)

func (f purgerFunc) PurgeOrphanedQuestionFeedback(ctx context.Context) (int64, error) { return f(ctx) }

func TestNewRoundSweeper_Defaults(t *testing.T) {
	s := NewRoundSweeper(mocks.NewRoundRepository(t), mocks.NewRoundQueue(t), nil, 0, 0, 0)
	require.NotNil(t, s)
	assert.Equal(t, 15*time.Minute, s.minAge)
	assert.Equal(t, 5*time.Minute, s.interval)
	assert.Equal(t, 3, s.maxSweeps)

	assert.Nil(t, NewRoundSweeper(nil, mocks.NewRoundQueue(t), nil, time.Minute, time.Minute, 1))
}

func TestRoundSweeper_SweepOnce(t *testing.T) {
	rounds := mocks.NewRoundRepository(t)
	queue := mocks.NewRoundQueue(t)
	purges := 0
	s := NewRoundSweeper(rounds, queue, purgerFunc(func(context.Context) (int64, error) {
		purges++
		return 3, nil
	}), 10*time.Minute, time.Minute, 2)

	rounds.On("ListFinishedWithoutFeedback", mock.Anything, int64(600), 2, 100).
		Return([]domain.Round{{ID: "r-0"}, {ID: "r-1"}, {ID: "r-2"}}, nil).Once()
	rounds.On("MarkSwept", mock.Anything, "r-0").Return(errors.New("db gone")).Once()
	rounds.On("MarkSwept", mock.Anything, "r-1").Return(nil).Once()
	rounds.On("MarkSwept", mock.Anything, "r-2").Return(nil).Once()
	queue.On("EnqueueRoundEvaluation", mock.Anything, domain.RoundEvaluationPayload{RoundID: "r-1", RequestedBy: "sweeper"}).
		Return("", errors.New("broker down")).Once()
	queue.On("EnqueueRoundEvaluation", mock.Anything, domain.RoundEvaluationPayload{RoundID: "r-2", RequestedBy: "sweeper"}).
		Return("t-2", nil).Once()

	s.sweepOnce(context.Background())
	assert.Equal(t, 1, purges)
}

// sweptRounds keeps sweep counters in memory the way the rounds table does.
type sweptRounds struct {
	domain.RoundRepository
	pending []string
	sweeps  map[string]int
}

func (r *sweptRounds) ListFinishedWithoutFeedback(_ domain.Context, _ int64, maxSweeps, _ int) ([]domain.Round, error) {
	var out []domain.Round
	for _, id := range r.pending {
		if r.sweeps[id] < maxSweeps {
			out = append(out, domain.Round{ID: id})
		}
	}
	return out, nil
}

func (r *sweptRounds) MarkSwept(_ domain.Context, id string) error {
	r.sweeps[id]++
	return nil
}

func TestRoundSweeper_StopsAfterMaxSweeps(t *testing.T) {
	rounds := &sweptRounds{pending: []string{"always-failing"}, sweeps: map[string]int{}}
	queue := mocks.NewRoundQueue(t)
	queue.On("EnqueueRoundEvaluation", mock.Anything, domain.RoundEvaluationPayload{RoundID: "always-failing", RequestedBy: "sweeper"}).
		Return("t", nil).Times(3)
	s := NewRoundSweeper(rounds, queue, nil, time.Minute, time.Minute, 3)

	for i := 0; i < 6; i++ {
		s.sweepOnce(context.Background())
	}
	assert.Equal(t, 3, rounds.sweeps["always-failing"])
	queue.AssertNumberOfCalls(t, "EnqueueRoundEvaluation", 3)
}

func TestRoundSweeper_ListFailureStillPurges(t *testing.T) {
	rounds := mocks.NewRoundRepository(t)
	purges := 0
	s := NewRoundSweeper(rounds, mocks.NewRoundQueue(t), purgerFunc(func(context.Context) (int64, error) {
		purges++
		return 0, errors.New("db gone")
	}), time.Minute, time.Minute, 1)
	rounds.On("ListFinishedWithoutFeedback", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db gone")).Once()

	s.sweepOnce(context.Background())
	assert.Equal(t, 1, purges)
}

func TestRoundSweeper_RunStopsOnContextDone(t *testing.T) {
	rounds := mocks.NewRoundRepository(t)
	rounds.On("ListFinishedWithoutFeedback", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.Round{}, nil).Maybe()
	s := NewRoundSweeper(rounds, mocks.NewRoundQueue(t), nil, time.Minute, 10*time.Millisecond, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}
