package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/interview-evaluator/internal/config"
	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/usecase"
)

// RoundEnqueuer queues round evaluations.
type RoundEnqueuer interface {
	Enqueue(ctx context.Context, roundID string) (string, error)
}

// ResultReader serves stored feedback and verdicts.
type ResultReader interface {
	RoundFeedback(ctx context.Context, roundID, ifNoneMatch string) (int, map[string]any, string, error)
	Verdict(ctx context.Context, candidateID, ifNoneMatch string) (int, map[string]any, string, error)
}

// Aggregator produces a candidate's hiring verdict.
type Aggregator interface {
	Aggregate(ctx context.Context, candidateID string) (domain.AggregatedVerdict, error)
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Enqueue    RoundEnqueuer
	Results    ResultReader
	Aggregator Aggregator
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	KafkaCheck func(ctx context.Context) error
	// Circuits reports generation backend breaker states. Open breakers do
	// not fail readiness since the fallback model may still serve.
	Circuits func() map[string]string
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, enqueue RoundEnqueuer, results ResultReader, aggregator Aggregator, dbCheck, redisCheck, kafkaCheck func(context.Context) error) *Server {
	return &Server{
		Cfg:        cfg,
		Enqueue:    enqueue,
		Results:    results,
		Aggregator: aggregator,
		DBCheck:    dbCheck,
		RedisCheck: redisCheck,
		KafkaCheck: kafkaCheck,
	}
}

func pathID(w http.ResponseWriter, r *http.Request, field string) (string, bool) {
	id := chi.URLParam(r, "id")
	if details, err := ValidateResourceID(field, id); err != nil {
		writeError(w, r, err, details)
		return "", false
	}
	return id, true
}

// EvaluateRoundHandler queues a round for evaluation.
func (s *Server) EvaluateRoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		roundID, ok := pathID(w, r, "round_id")
		if !ok {
			return
		}
		taskID, err := s.Enqueue.Enqueue(r.Context(), roundID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"round_id": roundID, "status": "queued", "task_id": taskID})
	}
}

// RoundFeedbackHandler returns a round's feedback with ETag support.
func (s *Server) RoundFeedbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		roundID, ok := pathID(w, r, "round_id")
		if !ok {
			return
		}
		status, body, etag, err := s.Results.RoundFeedback(r.Context(), roundID, r.Header.Get("If-None-Match"))
		writeConditional(w, r, status, body, etag, err)
	}
}

// CreateVerdictHandler runs the aggregation synchronously.
func (s *Server) CreateVerdictHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		candidateID, ok := pathID(w, r, "candidate_id")
		if !ok {
			return
		}
		ctx := r.Context()
		if s.Cfg.AggregateTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.Cfg.AggregateTimeout)
			defer cancel()
		}
		v, err := s.Aggregator.Aggregate(ctx, candidateID)
		if err != nil {
			writeError(w, r, fmt.Errorf("aggregate: %w", err), nil)
			return
		}
		observability.ObserveVerdict(string(v.HiringVerdict))
		writeJSON(w, http.StatusCreated, usecase.VerdictBody(v))
	}
}

// VerdictHandler returns the stored verdict and alignment.
func (s *Server) VerdictHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		candidateID, ok := pathID(w, r, "candidate_id")
		if !ok {
			return
		}
		status, body, etag, err := s.Results.Verdict(r.Context(), candidateID, r.Header.Get("If-None-Match"))
		writeConditional(w, r, status, body, etag, err)
	}
}

func writeConditional(w http.ResponseWriter, r *http.Request, status int, body map[string]any, etag string, err error) {
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	if status == http.StatusNotModified {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, body)
}

// ReadyzHandler probes the database, Redis and the Kafka brokers.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		probes := []struct {
			name  string
			check func(context.Context) error
		}{
			{"db", s.DBCheck},
			{"redis", s.RedisCheck},
			{"kafka", s.KafkaCheck},
		}
		checks := make([]usecase.ReadinessCheck, 0, len(probes))
		ok := true
		for _, p := range probes {
			if p.check == nil {
				continue
			}
			c := usecase.ReadinessCheck{Name: p.name, OK: true}
			if err := p.check(ctx); err != nil {
				c.OK, c.Details = false, err.Error()
				ok = false
			}
			checks = append(checks, c)
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		body := map[string]any{"checks": checks}
		if s.Circuits != nil {
			if states := s.Circuits(); len(states) > 0 {
				body["circuits"] = states
			}
		}
		writeJSON(w, st, body)
	}
}
