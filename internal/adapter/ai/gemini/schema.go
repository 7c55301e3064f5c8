package gemini

import (
	"sort"

	"google.golang.org/genai"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

var schemaTypes = map[domain.SchemaType]genai.Type{
	domain.TypeObject:  genai.TypeObject,
	domain.TypeArray:   genai.TypeArray,
	domain.TypeString:  genai.TypeString,
	domain.TypeInteger: genai.TypeInteger,
	domain.TypeNumber:  genai.TypeNumber,
	domain.TypeBoolean: genai.TypeBoolean,
}

// toSchema converts a task schema into the response schema understood by
// the Gemini API. Property order follows Required, then the remaining names
// alphabetically, so prompts and outputs are stable between calls.
func toSchema(s *domain.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        schemaTypes[s.Type],
		Description: s.Description,
		Required:    append([]string(nil), s.Required...),
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
		Items:       toSchema(s.Items),
	}
	if s.Nullable {
		out.Nullable = genai.Ptr(true)
	}
	if len(s.Enum) > 0 {
		out.Enum = append([]string(nil), s.Enum...)
		out.Format = "enum"
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = toSchema(p)
		}
		out.PropertyOrdering = propertyOrder(s)
	}
	return out
}

func propertyOrder(s *domain.Schema) []string {
	seen := make(map[string]bool, len(s.Properties))
	order := make([]string, 0, len(s.Properties))
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; ok && !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	rest := make([]string, 0, len(s.Properties)-len(order))
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
