package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrInternal          = errors.New("internal error")
)

// Role identifies the speaker of a transcript turn.
type Role string

const (
	RoleCandidate   Role = "candidate"
	RoleInterviewer Role = "interviewer"
)

// Turn is one utterance of a transcript.
type Turn struct {
	Role Role
	Text string
}

// RoundStatus is the externally owned lifecycle of an interview round.
type RoundStatus string

const (
	RoundInProgress RoundStatus = "in_progress"
	RoundFinished   RoundStatus = "finished"
	RoundComplete   RoundStatus = "complete"
)

// EvaluationState is the Round Orchestrator state machine:
// Pending -> Running -> Completed | Failed.
type EvaluationState string

const (
	EvaluationPending   EvaluationState = "pending"
	EvaluationRunning   EvaluationState = "running"
	EvaluationCompleted EvaluationState = "completed"
	EvaluationFailed    EvaluationState = "failed"
)

// RoundType distinguishes behavioural from coding rounds.
type RoundType string

const (
	RoundTypeGeneral RoundType = "general"
	RoundTypeCoding  RoundType = "coding"
)

// Round is one interview session for a candidate. Transcript is immutable once
// the round leaves RoundInProgress.
type Round struct {
	ID          string
	CandidateID string
	JobID       string
	Name        string
	Type        RoundType
	OrderIndex  int
	Status      RoundStatus
	Transcript  []Turn
	FinishedAt  *time.Time
	CreatedAt   time.Time
}

// ReferenceFile is an opaque file handle passed to the generation backend unmodified.
type ReferenceFile struct {
	URI      string
	MIMEType string
}

// JobContext describes the position a candidate is interviewed for.
type JobContext struct {
	JobID              string
	JobTitle           string
	JobDescription     string
	CompanyName        string
	CompanyDescription string
	CoachKnowledgeBase string
	Files              []ReferenceFile
}

// Job is the persisted job record.
type Job struct {
	ID                 string
	Title              string
	Description        string
	CompanyName        string
	CompanyDescription string
	CoachKnowledgeBase string
	Files              []ReferenceFile
}

// Context returns the job as prompt context.
func (j Job) Context() JobContext {
	return JobContext{
		JobID:              j.ID,
		JobTitle:           j.Title,
		JobDescription:     j.Description,
		CompanyName:        j.CompanyName,
		CompanyDescription: j.CompanyDescription,
		CoachKnowledgeBase: j.CoachKnowledgeBase,
		Files:              j.Files,
	}
}

// Candidate is an applicant for a job.
type Candidate struct {
	ID               string
	JobID            string
	Name             string
	ApplicationFiles []ReferenceFile
}

// QuestionBankEntry is a pre-authored question configured for a round.
type QuestionBankEntry struct {
	QuestionID       string
	QuestionText     string
	AnswerGuidelines string
	SampleAnswers    []string
}

// QAPair is an extracted question and answer. Never persisted directly.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuestionFeedback is the evaluation of one extracted pair.
// Score is always set; an empty Cons list is a valid outcome.
type QuestionFeedback struct {
	ID           string
	RoundID      string
	EvaluationID string
	QuestionID   *string
	Question     string
	Answer       string
	Pros         []string
	Cons         []string
	Score        int
	CreatedAt    time.Time
}

// RoundFeedback is the single evaluation record of a completed round.
type RoundFeedback struct {
	ID               string
	RoundID          string
	EvaluationID     string
	Overview         string
	Pros             []string
	Cons             []string
	JobFitAnalysis   string
	JobFitPercentage int
	Score            int
	KeyImprovements  []string
	InputTokens      int
	OutputTokens     int
	CreatedAt        time.Time
}

// JobAlignment compares a candidate against job requirements. Nil lists mean
// "not computed" and are distinct from empty lists.
type JobAlignment struct {
	CandidateID          string
	AlignmentScore       int
	MatchedRequirements  []string
	MissingRequirements  []string
	ExceededRequirements []string
	CreatedAt            time.Time
}

// HiringVerdict is the final categorical recommendation.
type HiringVerdict string

const (
	VerdictAdvance    HiringVerdict = "ADVANCE"
	VerdictReject     HiringVerdict = "REJECT"
	VerdictBorderline HiringVerdict = "BORDERLINE"
)

// ParseHiringVerdict normalizes a verdict string.
func ParseHiringVerdict(s string) (HiringVerdict, error) {
	switch v := HiringVerdict(strings.ToUpper(strings.TrimSpace(s))); v {
	case VerdictAdvance, VerdictReject, VerdictBorderline:
		return v, nil
	default:
		return "", ErrSchemaInvalid
	}
}

// AggregatedVerdict is the candidate-level recommendation. At most one per candidate.
type AggregatedVerdict struct {
	ID               string
	CandidateID      string
	OverallScore     int
	HiringVerdict    HiringVerdict
	VerdictRationale string
	CreatedAt        time.Time
}

// RoundAnalysis is the per-round view fed into aggregation.
type RoundAnalysis struct {
	RoundID    string
	Name       string
	Type       RoundType
	OrderIndex int
	Score      int
	Summary    string
	Strengths  []string
	Concerns   []string
}

// RoundTranscript pairs a round header with its turns.
type RoundTranscript struct {
	Name       string
	Type       RoundType
	OrderIndex int
	Turns      []Turn
}

// ClampScore bounds a score to [0,100].
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Context is an alias to context.Context used across ports.
type Context = context.Context
