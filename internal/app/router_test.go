package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	httpserver "github.com/fairyhunter13/interview-evaluator/internal/adapter/httpserver"
	"github.com/fairyhunter13/interview-evaluator/internal/app"
	"github.com/fairyhunter13/interview-evaluator/internal/config"
	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/domain/mocks"
	"github.com/fairyhunter13/interview-evaluator/internal/usecase"
)

type aggregatorFunc func(ctx context.Context, candidateID string) (domain.AggregatedVerdict, error)

func (f aggregatorFunc) Aggregate(ctx context.Context, candidateID string) (domain.AggregatedVerdict, error) {
	return f(ctx, candidateID)
}

func TestParseOrigins(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", []string{"*"}},
		{"*", []string{"*"}},
		{"https://a.com, https://b.com", []string{"https://a.com", "https://b.com"}},
		{"  ,  ", []string{"*"}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, app.ParseOrigins(c.in), c.in)
	}
}

func newRouter(t *testing.T) (http.Handler, *mocks.RoundRepository, *mocks.RoundQueue) {
	t.Helper()
	hash, err := httpserver.HashToken("tok", httpserver.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32})
	require.NoError(t, err)
	auth, err := httpserver.NewTokenAuthenticator([]string{"ats:" + hash})
	require.NoError(t, err)

	rounds := mocks.NewRoundRepository(t)
	queue := mocks.NewRoundQueue(t)
	agg := aggregatorFunc(func(ctx context.Context, id string) (domain.AggregatedVerdict, error) {
		if _, ok := domain.PrincipalFrom(ctx); !ok {
			return domain.AggregatedVerdict{}, domain.NewPrecondition(domain.ErrUnauthenticated, "authentication required")
		}
		return domain.AggregatedVerdict{ID: "v-1", CandidateID: id, HiringVerdict: domain.VerdictAdvance}, nil
	})
	cfg := config.Config{RateLimitPerMin: 100}
	ok := func(context.Context) error { return nil }
	srv := httpserver.NewServer(cfg, usecase.NewEnqueueService(rounds, queue), nil, agg, ok, ok, ok)
	return app.BuildRouter(cfg, srv, auth), rounds, queue
}

func TestBuildRouter_HealthReadyMetrics(t *testing.T) {
	h, _, _ := newRouter(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestBuildRouter_Auth(t *testing.T) {
	h, rounds, queue := newRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/rounds/round-1/evaluate", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/candidates/cand-1/verdict", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "aggregation rejects anonymous callers itself")

	rounds.On("Get", mock.Anything, "round-1").Return(domain.Round{ID: "round-1", Status: domain.RoundFinished}, nil).Once()
	queue.On("EnqueueRoundEvaluation", mock.Anything, mock.MatchedBy(func(p domain.RoundEvaluationPayload) bool {
		return p.RequestedBy == "ats"
	})).Return("task-1", nil).Once()
	req := httptest.NewRequest(http.MethodPost, "/v1/rounds/round-1/evaluate", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	req = httptest.NewRequest(http.MethodPost, "/v1/candidates/cand-1/verdict", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestBuildReadinessChecks(t *testing.T) {
	db, red, kafka := app.BuildReadinessChecks(nil, nil, nil)
	for _, check := range []func(context.Context) error{db, red, kafka} {
		assert.Error(t, check(context.Background()))
	}

	db, _, kafka = app.BuildReadinessChecks(pingFunc(func(context.Context) error { return nil }), nil,
		pingFunc(func(context.Context) error { return errors.New("no brokers") }))
	assert.NoError(t, db(context.Background()))
	assert.EqualError(t, kafka(context.Background()), "no brokers")
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
