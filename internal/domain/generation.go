package domain

// TaskKind enumerates every structured-generation task the pipeline runs.
type TaskKind string

// Round-level tasks.
const (
	TaskOverview          TaskKind = "overview"
	TaskProsAndCons       TaskKind = "pros_and_cons"
	TaskScore             TaskKind = "score"
	TaskJobFitAnalysis    TaskKind = "job_fit_analysis"
	TaskKeyImprovements   TaskKind = "key_improvements"
	TaskQuestionBreakdown TaskKind = "question_breakdown"
)

// Sub-tasks of the question breakdown chain and candidate-level tasks.
const (
	TaskQAExtraction      TaskKind = "qa_extraction"
	TaskQuestionMatch     TaskKind = "question_match"
	TaskCoreCriteria      TaskKind = "core_criteria"
	TaskCriteriaGrading   TaskKind = "criteria_grading"
	TaskSampleComparison  TaskKind = "sample_comparison"
	TaskCoachKnowledge    TaskKind = "coach_knowledge"
	TaskFeedbackSynthesis TaskKind = "feedback_synthesis"
	TaskSimpleFeedback    TaskKind = "simple_feedback"
	TaskJobAlignment      TaskKind = "job_alignment"
	TaskHiringVerdict     TaskKind = "hiring_verdict"
)

// RoundTasks is the fixed set of tasks a round evaluation joins on.
var RoundTasks = []TaskKind{
	TaskOverview,
	TaskProsAndCons,
	TaskScore,
	TaskJobFitAnalysis,
	TaskKeyImprovements,
	TaskQuestionBreakdown,
}

// SchemaType is a JSON type name.
type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeInteger SchemaType = "integer"
	TypeNumber  SchemaType = "number"
	TypeBoolean SchemaType = "boolean"
)

// Schema is the expected shape of a generation result. It is a subset of JSON
// Schema that every backend and the local validator understand.
type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
	Enum        []string
	Minimum     *float64
	Maximum     *float64
	Nullable    bool
}

// JSONSchema renders the schema as a JSON Schema document.
func (s *Schema) JSONSchema() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if s.Nullable {
		out["type"] = []string{string(s.Type), "null"}
	} else {
		out["type"] = string(s.Type)
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSONSchema()
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = append([]string(nil), s.Required...)
	}
	if s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	if len(s.Enum) > 0 {
		enum := make([]any, 0, len(s.Enum)+1)
		for _, v := range s.Enum {
			enum = append(enum, v)
		}
		if s.Nullable {
			enum = append(enum, nil)
		}
		out["enum"] = enum
	}
	if s.Minimum != nil {
		out["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		out["maximum"] = *s.Maximum
	}
	return out
}

// GenerationRequest is one call to the structured-generation backend. System
// carries the task instruction and context, Prompt the user message.
type GenerationRequest struct {
	Task   TaskKind
	System string
	Prompt string
	Files  []ReferenceFile
	Schema *Schema
}

// GenerationResponse carries the raw JSON text returned by the backend.
type GenerationResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Generator is the structured-generation backend port.
type Generator interface {
	Generate(ctx Context, req GenerationRequest) (GenerationResponse, error)
}
