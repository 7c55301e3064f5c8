// Package mocks holds testify mocks for the domain ports.
package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

type cleanupT interface {
	mock.TestingT
	Cleanup(func())
}

func register(m *mock.Mock, t cleanupT) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// RoundRepository is a mock of domain.RoundRepository.
type RoundRepository struct{ mock.Mock }

// NewRoundRepository creates a RoundRepository that asserts its expectations on cleanup.
func NewRoundRepository(t cleanupT) *RoundRepository {
	m := &RoundRepository{}
	register(&m.Mock, t)
	return m
}

func (m *RoundRepository) Get(ctx domain.Context, id string) (domain.Round, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Round), args.Error(1)
}

func (m *RoundRepository) ListByCandidate(ctx domain.Context, candidateID string) ([]domain.Round, error) {
	args := m.Called(ctx, candidateID)
	out, _ := args.Get(0).([]domain.Round)
	return out, args.Error(1)
}

func (m *RoundRepository) QuestionBank(ctx domain.Context, roundID string) ([]domain.QuestionBankEntry, error) {
	args := m.Called(ctx, roundID)
	out, _ := args.Get(0).([]domain.QuestionBankEntry)
	return out, args.Error(1)
}

func (m *RoundRepository) ListFinishedWithoutFeedback(ctx domain.Context, olderThanSeconds int64, maxSweeps, limit int) ([]domain.Round, error) {
	args := m.Called(ctx, olderThanSeconds, maxSweeps, limit)
	out, _ := args.Get(0).([]domain.Round)
	return out, args.Error(1)
}

func (m *RoundRepository) MarkSwept(ctx domain.Context, roundID string) error {
	return m.Called(ctx, roundID).Error(0)
}

// CandidateRepository is a mock of domain.CandidateRepository.
type CandidateRepository struct{ mock.Mock }

func NewCandidateRepository(t cleanupT) *CandidateRepository {
	m := &CandidateRepository{}
	register(&m.Mock, t)
	return m
}

func (m *CandidateRepository) Get(ctx domain.Context, id string) (domain.Candidate, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Candidate), args.Error(1)
}

// JobRepository is a mock of domain.JobRepository.
type JobRepository struct{ mock.Mock }

func NewJobRepository(t cleanupT) *JobRepository {
	m := &JobRepository{}
	register(&m.Mock, t)
	return m
}

func (m *JobRepository) Get(ctx domain.Context, id string) (domain.Job, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Job), args.Error(1)
}

// FeedbackRepository is a mock of domain.FeedbackRepository.
type FeedbackRepository struct{ mock.Mock }

func NewFeedbackRepository(t cleanupT) *FeedbackRepository {
	m := &FeedbackRepository{}
	register(&m.Mock, t)
	return m
}

func (m *FeedbackRepository) Complete(ctx domain.Context, fb domain.RoundFeedback) (string, error) {
	args := m.Called(ctx, fb)
	return args.String(0), args.Error(1)
}

func (m *FeedbackRepository) GetByRound(ctx domain.Context, roundID string) (domain.RoundFeedback, error) {
	args := m.Called(ctx, roundID)
	return args.Get(0).(domain.RoundFeedback), args.Error(1)
}

// QuestionFeedbackRepository is a mock of domain.QuestionFeedbackRepository.
type QuestionFeedbackRepository struct{ mock.Mock }

func NewQuestionFeedbackRepository(t cleanupT) *QuestionFeedbackRepository {
	m := &QuestionFeedbackRepository{}
	register(&m.Mock, t)
	return m
}

func (m *QuestionFeedbackRepository) InsertBatch(ctx domain.Context, rows []domain.QuestionFeedback) error {
	return m.Called(ctx, rows).Error(0)
}

func (m *QuestionFeedbackRepository) ListByRound(ctx domain.Context, roundID string) ([]domain.QuestionFeedback, error) {
	args := m.Called(ctx, roundID)
	out, _ := args.Get(0).([]domain.QuestionFeedback)
	return out, args.Error(1)
}

// AlignmentRepository is a mock of domain.AlignmentRepository.
type AlignmentRepository struct{ mock.Mock }

func NewAlignmentRepository(t cleanupT) *AlignmentRepository {
	m := &AlignmentRepository{}
	register(&m.Mock, t)
	return m
}

func (m *AlignmentRepository) Create(ctx domain.Context, a domain.JobAlignment) error {
	return m.Called(ctx, a).Error(0)
}

func (m *AlignmentRepository) GetByCandidate(ctx domain.Context, candidateID string) (domain.JobAlignment, error) {
	args := m.Called(ctx, candidateID)
	return args.Get(0).(domain.JobAlignment), args.Error(1)
}

// VerdictRepository is a mock of domain.VerdictRepository.
type VerdictRepository struct{ mock.Mock }

func NewVerdictRepository(t cleanupT) *VerdictRepository {
	m := &VerdictRepository{}
	register(&m.Mock, t)
	return m
}

func (m *VerdictRepository) Create(ctx domain.Context, v domain.AggregatedVerdict) (string, error) {
	args := m.Called(ctx, v)
	return args.String(0), args.Error(1)
}

func (m *VerdictRepository) GetByCandidate(ctx domain.Context, candidateID string) (domain.AggregatedVerdict, error) {
	args := m.Called(ctx, candidateID)
	return args.Get(0).(domain.AggregatedVerdict), args.Error(1)
}

func (m *VerdictRepository) ExistsForCandidate(ctx domain.Context, candidateID string) (bool, error) {
	args := m.Called(ctx, candidateID)
	return args.Bool(0), args.Error(1)
}

// RoundQueue is a mock of domain.RoundQueue.
type RoundQueue struct{ mock.Mock }

func NewRoundQueue(t cleanupT) *RoundQueue {
	m := &RoundQueue{}
	register(&m.Mock, t)
	return m
}

func (m *RoundQueue) EnqueueRoundEvaluation(ctx domain.Context, payload domain.RoundEvaluationPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

// EventPublisher is a mock of domain.EventPublisher.
type EventPublisher struct{ mock.Mock }

func NewEventPublisher(t cleanupT) *EventPublisher {
	m := &EventPublisher{}
	register(&m.Mock, t)
	return m
}

func (m *EventPublisher) Publish(ctx domain.Context, evt domain.Event) error {
	return m.Called(ctx, evt).Error(0)
}

// Generator is a mock of domain.Generator.
type Generator struct{ mock.Mock }

func NewGenerator(t cleanupT) *Generator {
	m := &Generator{}
	register(&m.Mock, t)
	return m
}

func (m *Generator) Generate(ctx domain.Context, req domain.GenerationRequest) (domain.GenerationResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.GenerationResponse), args.Error(1)
}
