// Package stub provides a fast, deterministic generator for local runs and tests.
package stub

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

// ModelName labels responses produced by the stub.
const ModelName = "stub"

// Generator answers every request with a value synthesized from the request
// schema. Numbers sit at 70% of their allowed range, enums take their first
// value, nullable fields are null and arrays hold a single item.
type Generator struct {
	// Delay simulates backend latency.
	Delay time.Duration
}

// New returns a stub generator that answers after delay.
func New(delay time.Duration) *Generator { return &Generator{Delay: delay} }

// Generate implements domain.Generator.
func (g *Generator) Generate(ctx domain.Context, req domain.GenerationRequest) (domain.GenerationResponse, error) {
	if g.Delay > 0 {
		t := time.NewTimer(g.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return domain.GenerationResponse{}, ctx.Err()
		case <-t.C:
		}
	}
	if req.Schema == nil {
		return domain.GenerationResponse{}, fmt.Errorf("op=stub.Generate task=%s: %w: schema is required", req.Task, domain.ErrInvalidArgument)
	}
	b, err := json.Marshal(synthesize(string(req.Task), req.Schema))
	if err != nil {
		return domain.GenerationResponse{}, fmt.Errorf("op=stub.Generate task=%s: %w", req.Task, err)
	}
	return domain.GenerationResponse{
		Text:         string(b),
		Model:        ModelName,
		InputTokens:  (len(req.System) + len(req.Prompt) + 3) / 4,
		OutputTokens: (len(b) + 3) / 4,
	}, nil
}

func synthesize(name string, s *domain.Schema) any {
	if s.Nullable {
		return nil
	}
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}
	switch s.Type {
	case domain.TypeObject:
		names := make([]string, 0, len(s.Properties))
		for n := range s.Properties {
			names = append(names, n)
		}
		sort.Strings(names)
		out := make(map[string]any, len(names))
		for _, n := range names {
			out[n] = synthesize(n, s.Properties[n])
		}
		return out
	case domain.TypeArray:
		if s.Items == nil {
			return []any{}
		}
		return []any{synthesize(name, s.Items)}
	case domain.TypeInteger:
		return math.Round(number(s, 70))
	case domain.TypeNumber:
		return number(s, 0.7)
	case domain.TypeBoolean:
		return true
	default:
		return "Stub " + name
	}
}

func number(s *domain.Schema, unbounded float64) float64 {
	switch {
	case s.Minimum != nil && s.Maximum != nil:
		return *s.Minimum + 0.7*(*s.Maximum-*s.Minimum)
	case s.Maximum != nil:
		return math.Min(unbounded, *s.Maximum)
	case s.Minimum != nil:
		return math.Max(unbounded, *s.Minimum)
	default:
		return unbounded
	}
}
