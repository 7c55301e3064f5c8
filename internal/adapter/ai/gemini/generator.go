// Package gemini implements domain.Generator on the Google Gen AI SDK with
// JSON-mode responses, a response schema per task and a fallback model.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"

	"github.com/fairyhunter13/interview-evaluator/internal/adapter/ai"
	"github.com/fairyhunter13/interview-evaluator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/observability"
	"github.com/fairyhunter13/interview-evaluator/internal/service/retry"
)

const (
	defaultModel = "gemini-2.5-flash"
	temperature  = float32(0.2)
)

var (
	// ErrCircuitOpen is reported for a model skipped because its breaker is open.
	ErrCircuitOpen = errors.New("circuit open")
	errEmpty       = errors.New("empty response")
)

// modelsAPI is the part of *genai.Models the generator calls.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures the generator. FallbackModel may be empty.
type Config struct {
	APIKey        string
	Model         string
	FallbackModel string
	// Timeout bounds a single model call; zero leaves it to the caller's context.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Generator calls the primary model and, when it fails or its circuit is
// open, the fallback model.
type Generator struct {
	models   modelsAPI
	chain    []string
	timeout  time.Duration
	breakers *ai.CircuitBreakerManager
	counter  *tokencount.Counter
}

// New creates a Gemini API client. Outgoing requests are traced through otelhttp.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("op=gemini.New: %w: api key is required", domain.ErrInvalidArgument)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	})
	if err != nil {
		return nil, fmt.Errorf("op=gemini.New: %w", err)
	}
	return newGenerator(client.Models, cfg), nil
}

func newGenerator(models modelsAPI, cfg Config) *Generator {
	primary := strings.TrimSpace(cfg.Model)
	if primary == "" {
		primary = defaultModel
	}
	chain := []string{primary}
	if fb := strings.TrimSpace(cfg.FallbackModel); fb != "" && fb != primary {
		chain = append(chain, fb)
	}
	return &Generator{
		models:   models,
		chain:    chain,
		timeout:  cfg.Timeout,
		breakers: ai.NewCircuitBreakerManager(),
		counter:  tokencount.DefaultCounter,
	}
}

// Name is the primary model, used to label metrics.
func (g *Generator) Name() string { return g.chain[0] }

// CircuitStates reports the breaker state of every model tried so far.
func (g *Generator) CircuitStates() map[string]string { return g.breakers.States() }

// Generate implements domain.Generator.
func (g *Generator) Generate(ctx domain.Context, req domain.GenerationRequest) (domain.GenerationResponse, error) {
	contents := []*genai.Content{genai.NewContentFromParts(requestParts(req), genai.RoleUser)}
	config := requestConfig(req)
	lg := observability.LoggerFromContext(ctx)

	var errs []error
	for i, model := range g.chain {
		br := g.breakers.Get(model)
		if !br.Allow() {
			errs = append(errs, fmt.Errorf("model %s: %w: %w", model, ErrCircuitOpen, domain.ErrUpstreamRateLimit))
			continue
		}
		resp, err := g.call(ctx, model, contents, config, req)
		if err == nil {
			br.RecordSuccess()
			return resp, nil
		}
		if ctx.Err() != nil {
			return domain.GenerationResponse{}, fmt.Errorf("op=gemini.Generate task=%s: %w", req.Task, err)
		}
		if !errors.Is(err, errEmpty) {
			br.RecordFailure()
		}
		errs = append(errs, err)
		if i < len(g.chain)-1 {
			lg.Warn("generation model failed, trying fallback",
				slog.String("task", string(req.Task)),
				slog.String("model", model),
				slog.String("fallback", g.chain[i+1]),
				slog.Any("error", err))
		}
	}

	err := fmt.Errorf("op=gemini.Generate task=%s: %w", req.Task, errors.Join(errs...))
	if allRejected(errs) {
		return domain.GenerationResponse{}, retry.Permanent(err)
	}
	return domain.GenerationResponse{}, err
}

func (g *Generator) call(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig, req domain.GenerationRequest) (domain.GenerationResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return domain.GenerationResponse{}, fmt.Errorf("model %s: %w", model, classify(err))
	}
	text := responseText(resp)
	if text == "" {
		return domain.GenerationResponse{}, fmt.Errorf("model %s: %w%s", model, errEmpty, emptyReason(resp))
	}
	out := domain.GenerationResponse{Text: ai.CleanJSON(text), Model: model}
	if u := resp.UsageMetadata; u != nil && (u.PromptTokenCount > 0 || u.CandidatesTokenCount > 0) {
		out.InputTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
	} else {
		est := g.counter.Estimate(req.System, req.Prompt, text)
		out.InputTokens, out.OutputTokens = est.InputTokens, est.OutputTokens
	}
	return out, nil
}

func requestParts(req domain.GenerationRequest) []*genai.Part {
	parts := make([]*genai.Part, 0, len(req.Files)+1)
	for _, f := range req.Files {
		parts = append(parts, genai.NewPartFromURI(f.URI, f.MIMEType))
	}
	return append(parts, genai.NewPartFromText(req.Prompt))
}

func requestConfig(req domain.GenerationRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toSchema(req.Schema),
		Temperature:      genai.Ptr(temperature),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return cfg
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

func emptyReason(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" {
		return fmt.Sprintf(" (prompt blocked: %s)", pf.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil && resp.Candidates[0].FinishReason != "" {
		return fmt.Sprintf(" (finish reason: %s)", resp.Candidates[0].FinishReason)
	}
	return ""
}

// errRejected marks a client error the backend will keep rejecting.
var errRejected = errors.New("request rejected")

// classify maps backend failures onto the domain taxonomy, keeping the
// original error in the chain.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
			return fmt.Errorf("%w: %w", domain.ErrUpstreamRateLimit, err)
		case apiErr.Code >= 500 || apiErr.Status == "DEADLINE_EXCEEDED":
			return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
		default:
			return fmt.Errorf("%w: %w", errRejected, err)
		}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
	}
	return err
}

func allRejected(errs []error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if !errors.Is(e, errRejected) {
			return false
		}
	}
	return true
}
