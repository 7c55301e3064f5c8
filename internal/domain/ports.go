package domain

// Repositories (ports)

type RoundRepository interface {
	Get(ctx Context, id string) (Round, error)
	ListByCandidate(ctx Context, candidateID string) ([]Round, error)
	QuestionBank(ctx Context, roundID string) ([]QuestionBankEntry, error)
	// ListFinishedWithoutFeedback returns finished rounds without feedback that
	// were finished, and last swept, more than olderThanSeconds ago and were
	// swept fewer than maxSweeps times.
	ListFinishedWithoutFeedback(ctx Context, olderThanSeconds int64, maxSweeps, limit int) ([]Round, error)
	// MarkSwept counts one sweeper re-enqueue of the round.
	MarkSwept(ctx Context, roundID string) error
}

type CandidateRepository interface {
	Get(ctx Context, id string) (Candidate, error)
}

type JobRepository interface {
	Get(ctx Context, id string) (Job, error)
}

type FeedbackRepository interface {
	// Complete inserts the round feedback and marks the round complete atomically.
	Complete(ctx Context, fb RoundFeedback) (string, error)
	GetByRound(ctx Context, roundID string) (RoundFeedback, error)
}

type QuestionFeedbackRepository interface {
	InsertBatch(ctx Context, rows []QuestionFeedback) error
	ListByRound(ctx Context, roundID string) ([]QuestionFeedback, error)
}

type AlignmentRepository interface {
	Create(ctx Context, a JobAlignment) error
	GetByCandidate(ctx Context, candidateID string) (JobAlignment, error)
}

type VerdictRepository interface {
	// Create fails with ErrConflict when a verdict already exists for the candidate.
	Create(ctx Context, v AggregatedVerdict) (string, error)
	GetByCandidate(ctx Context, candidateID string) (AggregatedVerdict, error)
	ExistsForCandidate(ctx Context, candidateID string) (bool, error)
}

// Queue (port)

type RoundQueue interface {
	EnqueueRoundEvaluation(ctx Context, payload RoundEvaluationPayload) (string, error)
}

// RoundEvaluationPayload triggers one Round Orchestrator run.
type RoundEvaluationPayload struct {
	RoundID     string `json:"round_id"`
	RequestedBy string `json:"requested_by,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// Events (port)

type EventPublisher interface {
	Publish(ctx Context, evt Event) error
}

// EventType names a domain event published for the surrounding product.
type EventType string

const (
	EventRoundCompleted EventType = "round.completed"
	EventVerdictCreated EventType = "verdict.created"
)

// Event is a tracking notification keyed by the subject id.
type Event struct {
	Type      EventType      `json:"type"`
	SubjectID string         `json:"subject_id"`
	Data      map[string]any `json:"data,omitempty"`
}
