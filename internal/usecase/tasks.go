package usecase

import (
	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

// Result types, one per task kind. JSON names are the schema contract.

type overviewResult struct {
	Overview string `json:"overview"`
}

type prosAndConsResult struct {
	Pros []string `json:"pros"`
	Cons []string `json:"cons"`
}

type scoreResult struct {
	Score int `json:"score"`
}

type jobFitResult struct {
	Analysis   string `json:"job_fit_analysis"`
	Percentage int    `json:"job_fit_percentage"`
}

type keyImprovementsResult struct {
	KeyImprovements []string `json:"key_improvements"`
}

// breakdownResult reports how many per-question rows were persisted.
type breakdownResult struct {
	Rows    int
	Matched int
}

type extractionResult struct {
	Pairs []domain.QAPair `json:"pairs"`
}

type matchResult struct {
	MatchedQuestionID *string `json:"matched_question_id"`
	Confidence        int     `json:"confidence"`
}

type simpleFeedbackResult struct {
	Pros  []string `json:"pros"`
	Cons  []string `json:"cons"`
	Score int      `json:"score"`
}

type coreCriteriaResult struct {
	CoreCriteria []string `json:"core_criteria"`
}

type criteriaGradingResult struct {
	CriteriaMet          []string `json:"criteria_met"`
	CriteriaPartiallyMet []string `json:"criteria_partially_met"`
	CriteriaMissed       []string `json:"criteria_missed"`
	PreliminaryScore     int      `json:"preliminary_score"`
}

type sampleComparisonResult struct {
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

type coachKnowledgeResult struct {
	CoachFeedback []string `json:"coach_feedback"`
}

type synthesisResult struct {
	Pros             []string `json:"pros"`
	Cons             []string `json:"cons"`
	CorrectnessScore int      `json:"correctness_score"`
}

type alignmentResult struct {
	AlignmentScore       int      `json:"alignment_score"`
	MatchedRequirements  []string `json:"matched_requirements"`
	MissingRequirements  []string `json:"missing_requirements"`
	ExceededRequirements []string `json:"exceeded_requirements"`
}

type verdictResult struct {
	OverallScore     int    `json:"overall_score"`
	HiringVerdict    string `json:"hiring_verdict"`
	VerdictRationale string `json:"verdict_rationale"`
}

// taskOutcome is the tagged union produced by the six round-level tasks.
// Exactly one field matching Kind is set.
type taskOutcome struct {
	Kind         domain.TaskKind
	Overview     *overviewResult
	ProsAndCons  *prosAndConsResult
	Score        *scoreResult
	JobFit       *jobFitResult
	Improvements *keyImprovementsResult
	Breakdown    *breakdownResult
}

var allTaskKinds = []domain.TaskKind{
	domain.TaskOverview,
	domain.TaskProsAndCons,
	domain.TaskScore,
	domain.TaskJobFitAnalysis,
	domain.TaskKeyImprovements,
	domain.TaskQAExtraction,
	domain.TaskQuestionMatch,
	domain.TaskCoreCriteria,
	domain.TaskCriteriaGrading,
	domain.TaskSampleComparison,
	domain.TaskCoachKnowledge,
	domain.TaskFeedbackSynthesis,
	domain.TaskSimpleFeedback,
	domain.TaskJobAlignment,
	domain.TaskHiringVerdict,
}

func bound(v float64) *float64 { return &v }

func stringSchema() *domain.Schema { return &domain.Schema{Type: domain.TypeString} }

func stringList() *domain.Schema {
	return &domain.Schema{Type: domain.TypeArray, Items: stringSchema()}
}

func nullableStringList() *domain.Schema {
	return &domain.Schema{Type: domain.TypeArray, Items: stringSchema(), Nullable: true}
}

func percent() *domain.Schema {
	return &domain.Schema{Type: domain.TypeInteger, Minimum: bound(0), Maximum: bound(100)}
}

func object(props map[string]*domain.Schema, required ...string) *domain.Schema {
	return &domain.Schema{Type: domain.TypeObject, Properties: props, Required: required}
}

// taskSchemas maps every task kind to its expected result shape.
var taskSchemas = map[domain.TaskKind]*domain.Schema{
	domain.TaskOverview: object(map[string]*domain.Schema{
		"overview": stringSchema(),
	}, "overview"),
	domain.TaskProsAndCons: object(map[string]*domain.Schema{
		"pros": stringList(),
		"cons": stringList(),
	}, "pros", "cons"),
	domain.TaskScore: object(map[string]*domain.Schema{
		"score": percent(),
	}, "score"),
	domain.TaskJobFitAnalysis: object(map[string]*domain.Schema{
		"job_fit_analysis":   stringSchema(),
		"job_fit_percentage": percent(),
	}, "job_fit_analysis", "job_fit_percentage"),
	domain.TaskKeyImprovements: object(map[string]*domain.Schema{
		"key_improvements": stringList(),
	}, "key_improvements"),
	domain.TaskQAExtraction: object(map[string]*domain.Schema{
		"pairs": {
			Type: domain.TypeArray,
			Items: object(map[string]*domain.Schema{
				"question": stringSchema(),
				"answer":   stringSchema(),
			}, "question", "answer"),
		},
	}, "pairs"),
	domain.TaskQuestionMatch: object(map[string]*domain.Schema{
		"matched_question_id": {Type: domain.TypeString, Nullable: true},
		"confidence":          percent(),
	}, "matched_question_id"),
	domain.TaskCoreCriteria: object(map[string]*domain.Schema{
		"core_criteria": stringList(),
	}, "core_criteria"),
	domain.TaskCriteriaGrading: object(map[string]*domain.Schema{
		"criteria_met":           stringList(),
		"criteria_partially_met": stringList(),
		"criteria_missed":        stringList(),
		"preliminary_score":      percent(),
	}, "criteria_met", "criteria_partially_met", "criteria_missed", "preliminary_score"),
	domain.TaskSampleComparison: object(map[string]*domain.Schema{
		"strengths":  stringList(),
		"weaknesses": stringList(),
	}, "strengths", "weaknesses"),
	domain.TaskCoachKnowledge: object(map[string]*domain.Schema{
		"coach_feedback": stringList(),
	}, "coach_feedback"),
	domain.TaskFeedbackSynthesis: object(map[string]*domain.Schema{
		"pros":              stringList(),
		"cons":              stringList(),
		"correctness_score": percent(),
	}, "pros", "cons", "correctness_score"),
	domain.TaskSimpleFeedback: object(map[string]*domain.Schema{
		"pros":  stringList(),
		"cons":  stringList(),
		"score": percent(),
	}, "pros", "cons", "score"),
	domain.TaskJobAlignment: object(map[string]*domain.Schema{
		"alignment_score":       percent(),
		"matched_requirements":  nullableStringList(),
		"missing_requirements":  nullableStringList(),
		"exceeded_requirements": nullableStringList(),
	}, "alignment_score"),
	domain.TaskHiringVerdict: object(map[string]*domain.Schema{
		"overall_score": percent(),
		"hiring_verdict": {
			Type: domain.TypeString,
			Enum: []string{string(domain.VerdictAdvance), string(domain.VerdictReject), string(domain.VerdictBorderline)},
		},
		"verdict_rationale": stringSchema(),
	}, "overall_score", "hiring_verdict", "verdict_rationale"),
}
