package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

// NormalizeTranscript renders turns as "<ROLE>: <text>" lines in order.
// An empty transcript yields "".
func NormalizeTranscript(turns []domain.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, strings.ToUpper(string(t.Role))+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}

// FormatRoundTranscripts concatenates round transcripts under
// "### Interview Round: <name> (<type>)" headers ordered by order index.
func FormatRoundTranscripts(rounds []domain.RoundTranscript) string {
	sorted := append([]domain.RoundTranscript(nil), rounds...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OrderIndex < sorted[j].OrderIndex })

	blocks := make([]string, 0, len(sorted))
	for _, r := range sorted {
		blocks = append(blocks, fmt.Sprintf("### Interview Round: %s (%s)\n%s", r.Name, r.Type, NormalizeTranscript(r.Turns)))
	}
	return strings.Join(blocks, "\n\n")
}
