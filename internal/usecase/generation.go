package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/observability"
	"github.com/fairyhunter13/interview-evaluator/internal/service/retry"
)

// Runner executes generation tasks against the backend: render prompt, call
// with retry, validate against the task schema, decode.
type Runner struct {
	gen       domain.Generator
	prompts   *PromptCatalog
	schemas   map[domain.TaskKind]*gojsonschema.Schema
	retryCfg  domain.RetryConfig
	retryOpts []retry.Option
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithRetryConfig sets the per-task retry policy.
func WithRetryConfig(cfg domain.RetryConfig) RunnerOption {
	return func(r *Runner) { r.retryCfg = cfg }
}

// WithRetryOptions passes extra options (timer, jitter) to every retry call.
func WithRetryOptions(opts ...retry.Option) RunnerOption {
	return func(r *Runner) { r.retryOpts = append(r.retryOpts, opts...) }
}

// NewRunner compiles every task schema up front.
func NewRunner(gen domain.Generator, prompts *PromptCatalog, opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		gen:      gen,
		prompts:  prompts,
		schemas:  make(map[domain.TaskKind]*gojsonschema.Schema, len(taskSchemas)),
		retryCfg: domain.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(r)
	}
	for kind, s := range taskSchemas {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.JSONSchema()))
		if err != nil {
			return nil, fmt.Errorf("op=usecase.NewRunner: schema %s: %w", kind, err)
		}
		r.schemas[kind] = compiled
	}
	return r, nil
}

// tokenTally accumulates backend token usage across concurrent calls.
type tokenTally struct {
	in, out atomic.Int64
}

func (t *tokenTally) add(resp domain.GenerationResponse) {
	if t == nil {
		return
	}
	t.in.Add(int64(resp.InputTokens))
	t.out.Add(int64(resp.OutputTokens))
}

func (t *tokenTally) totals() (int, int) {
	if t == nil {
		return 0, 0
	}
	return int(t.in.Load()), int(t.out.Load())
}

// generate runs one task. Malformed or non-conforming output is retried like
// any other backend failure; exhaustion yields *domain.GenerationError.
func generate[T any](ctx context.Context, r *Runner, kind domain.TaskKind, data promptData, files []domain.ReferenceFile, tally *tokenTally) (T, error) {
	var zero T
	system, user, err := r.prompts.Render(kind, data)
	if err != nil {
		return zero, &domain.GenerationError{Task: kind, Err: err}
	}
	req := domain.GenerationRequest{
		Task:   kind,
		System: system,
		Prompt: user,
		Files:  files,
		Schema: taskSchemas[kind],
	}
	schema := r.schemas[kind]

	opts := append([]retry.Option{retry.WithConfig(r.retryCfg)}, r.retryOpts...)
	out, err := retry.Value(ctx, string(kind), func(ctx context.Context) (T, error) {
		resp, err := r.gen.Generate(ctx, req)
		if err != nil {
			return zero, err
		}
		tally.add(resp)
		return decodeValidated[T](schema, resp.Text)
	}, opts...)
	if err != nil {
		observability.LoggerFromContext(ctx).Debug("generation exhausted", "task", string(kind), "error", err)
		return zero, &domain.GenerationError{Task: kind, Err: err}
	}
	return out, nil
}

func decodeValidated[T any](schema *gojsonschema.Schema, text string) (T, error) {
	var out T
	raw := []byte(strings.TrimSpace(text))
	if len(raw) == 0 {
		return out, fmt.Errorf("%w: empty response", domain.ErrSchemaInvalid)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return out, fmt.Errorf("%w: %s", domain.ErrSchemaInvalid, strings.Join(msgs, "; "))
	}
	raw, err = integralNumbers(raw)
	if err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)
	}
	return out, nil
}

// integralNumbers rewrites integral floats such as 85.0 or 8.5e1 as integer
// literals. The schema accepts them as integers but int fields would not.
func integralNumbers(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(rewriteNumbers(v))
}

func rewriteNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = rewriteNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = rewriteNumbers(e)
		}
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return t
		}
		f, err := t.Float64()
		if err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return json.Number(strconv.FormatInt(int64(f), 10))
		}
	}
	return v
}

// nonNil turns a nil list into an empty one for fields that are never null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
