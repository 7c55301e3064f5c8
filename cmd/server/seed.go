package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/interview-evaluator/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

type seedYAML struct {
	Jobs []struct {
		ID                 string     `yaml:"id"`
		Title              string     `yaml:"title"`
		Description        string     `yaml:"description"`
		CompanyName        string     `yaml:"company_name"`
		CompanyDescription string     `yaml:"company_description"`
		CoachKnowledgeBase string     `yaml:"coach_knowledge_base"`
		Files              []seedFile `yaml:"files"`
	} `yaml:"jobs"`
	Candidates []struct {
		ID               string     `yaml:"id"`
		JobID            string     `yaml:"job_id"`
		Name             string     `yaml:"name"`
		ApplicationFiles []seedFile `yaml:"application_files"`
	} `yaml:"candidates"`
	Rounds []struct {
		ID          string `yaml:"id"`
		CandidateID string `yaml:"candidate_id"`
		Name        string `yaml:"name"`
		Type        string `yaml:"type"`
		Order       int    `yaml:"order"`
		Status      string `yaml:"status"`
		Transcript  []struct {
			Role string `yaml:"role"`
			Text string `yaml:"text"`
		} `yaml:"transcript"`
		Questions []struct {
			ID               string   `yaml:"id"`
			Text             string   `yaml:"text"`
			AnswerGuidelines string   `yaml:"answer_guidelines"`
			SampleAnswers    []string `yaml:"sample_answers"`
		} `yaml:"questions"`
	} `yaml:"rounds"`
}

type seedFile struct {
	URI      string `yaml:"uri"`
	MIMEType string `yaml:"mime_type"`
}

func referenceFiles(in []seedFile) []domain.ReferenceFile {
	out := make([]domain.ReferenceFile, 0, len(in))
	for _, f := range in {
		out = append(out, domain.ReferenceFile{URI: f.URI, MIMEType: f.MIMEType})
	}
	return out
}

// parseSeed converts a YAML fixture document into a postgres.Fixture.
func parseSeed(b []byte) (postgres.Fixture, error) {
	var doc seedYAML
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return postgres.Fixture{}, fmt.Errorf("yaml parse: %w", err)
	}
	var f postgres.Fixture
	for _, j := range doc.Jobs {
		f.Jobs = append(f.Jobs, domain.Job{
			ID:                 j.ID,
			Title:              j.Title,
			Description:        j.Description,
			CompanyName:        j.CompanyName,
			CompanyDescription: j.CompanyDescription,
			CoachKnowledgeBase: j.CoachKnowledgeBase,
			Files:              referenceFiles(j.Files),
		})
	}
	for _, c := range doc.Candidates {
		f.Candidates = append(f.Candidates, domain.Candidate{
			ID:               c.ID,
			JobID:            c.JobID,
			Name:             c.Name,
			ApplicationFiles: referenceFiles(c.ApplicationFiles),
		})
	}
	for _, r := range doc.Rounds {
		sr := postgres.SeedRound{Round: domain.Round{
			ID:          r.ID,
			CandidateID: r.CandidateID,
			Name:        r.Name,
			Type:        domain.RoundType(strings.ToLower(r.Type)),
			OrderIndex:  r.Order,
			Status:      domain.RoundStatus(strings.ToLower(r.Status)),
		}}
		for i, t := range r.Transcript {
			role := domain.Role(strings.ToLower(t.Role))
			if role != domain.RoleCandidate && role != domain.RoleInterviewer {
				return postgres.Fixture{}, fmt.Errorf("round %s turn %d: unknown role %q", r.ID, i, t.Role)
			}
			sr.Round.Transcript = append(sr.Round.Transcript, domain.Turn{Role: role, Text: t.Text})
		}
		for _, q := range r.Questions {
			sr.Bank = append(sr.Bank, domain.QuestionBankEntry{
				QuestionID:       q.ID,
				QuestionText:     q.Text,
				AnswerGuidelines: q.AnswerGuidelines,
				SampleAnswers:    q.SampleAnswers,
			})
		}
		f.Rounds = append(f.Rounds, sr)
	}
	if len(f.Jobs)+len(f.Candidates)+len(f.Rounds) == 0 {
		return postgres.Fixture{}, errors.New("fixture is empty")
	}
	return f, nil
}

func seedFromYAML(ctx context.Context, pool postgres.PgxPool, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("seed file not found: %s", path)
		}
		return err
	}
	f, err := parseSeed(b)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return postgres.Seed(ctx, pool, f)
}
