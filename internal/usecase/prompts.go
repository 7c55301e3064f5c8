package usecase

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// promptsYAML mirrors prompts.yaml.
type promptsYAML struct {
	Partials map[string]string     `yaml:"partials"`
	Tasks    map[string]taskPrompt `yaml:"tasks"`
}

type taskPrompt struct {
	Instruction string `yaml:"instruction"`
	User        string `yaml:"user"`
}

// PromptCatalog renders the instruction and user message of every task kind.
type PromptCatalog struct {
	tmpl *template.Template
	user map[domain.TaskKind]string
}

// promptData is the single template context shared by all task prompts.
type promptData struct {
	Job              domain.JobContext
	Candidate        domain.Candidate
	Transcript       string
	RoundsTranscript string
	Question         string
	Answer           string
	Entry            domain.QuestionBankEntry
	Bank             []domain.QuestionBankEntry
	CoreCriteria     []string
	Grading          criteriaGradingResult
	Comparison       sampleComparisonResult
	CoachFeedback    []string
	Rounds           []domain.RoundAnalysis
	Alignment        domain.JobAlignment
}

var promptFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"numbered": func(items []string) string {
		lines := make([]string, 0, len(items))
		for i, it := range items {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, it))
		}
		return strings.Join(lines, "\n")
	},
	"joinOr": func(items []string, fallback string) string {
		if len(items) == 0 {
			return fallback
		}
		return strings.Join(items, ", ")
	},
	"bullets": func(items []string) string { return bulletList(items, "None identified") },
	"bulletsOr": bulletList,
}

func bulletList(items []string, fallback string) string {
	if len(items) == 0 {
		return "- " + fallback
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, "- "+it)
	}
	return strings.Join(lines, "\n")
}

// LoadPromptCatalog parses the embedded catalog.
func LoadPromptCatalog() (*PromptCatalog, error) {
	return ParsePromptCatalog(defaultPromptsYAML)
}

// ParsePromptCatalog parses a YAML prompt catalog and checks that every task kind has a prompt.
func ParsePromptCatalog(raw []byte) (*PromptCatalog, error) {
	var doc promptsYAML
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("op=usecase.ParsePromptCatalog: %w", err)
	}
	root := template.New("prompts").Funcs(promptFuncs).Option("missingkey=error")
	for name, body := range doc.Partials {
		if _, err := root.New(name).Parse(body); err != nil {
			return nil, fmt.Errorf("op=usecase.ParsePromptCatalog: partial %s: %w", name, err)
		}
	}
	c := &PromptCatalog{tmpl: root, user: make(map[domain.TaskKind]string, len(doc.Tasks))}
	for _, kind := range allTaskKinds {
		tp, ok := doc.Tasks[string(kind)]
		if !ok || strings.TrimSpace(tp.Instruction) == "" {
			return nil, fmt.Errorf("op=usecase.ParsePromptCatalog: missing prompt for %s", kind)
		}
		if _, err := root.New(string(kind)).Parse(tp.Instruction); err != nil {
			return nil, fmt.Errorf("op=usecase.ParsePromptCatalog: task %s: %w", kind, err)
		}
		c.user[kind] = strings.TrimSpace(tp.User)
	}
	return c, nil
}

// Render returns the instruction and user message for kind.
func (c *PromptCatalog) Render(kind domain.TaskKind, data promptData) (string, string, error) {
	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, string(kind), data); err != nil {
		return "", "", fmt.Errorf("op=usecase.PromptCatalog.Render: %s: %w", kind, err)
	}
	return strings.TrimSpace(buf.String()), c.user[kind], nil
}
