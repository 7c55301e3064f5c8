package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
		},
		[]string{"route", "method"},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_requests_total",
			Help: "Structured generation calls by model, task and outcome",
		},
		[]string{"model", "task", "outcome"},
	)
	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_request_duration_seconds",
			Help:    "Structured generation call duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 90},
		},
		[]string{"model", "task"},
	)
	GenerationTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_tokens_total",
			Help: "Tokens consumed by structured generation",
		},
		[]string{"model", "direction"},
	)
	GenerationThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "generation_throttled_total",
			Help: "Generation calls delayed by the shared rate limiter",
		},
	)

	RoundsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "round_evaluations_enqueued_total",
			Help: "Round evaluations handed to the queue",
		},
	)
	RoundsProcessing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "round_evaluations_processing",
			Help: "Round evaluations currently running",
		},
	)
	RoundsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "round_evaluations_finished_total",
			Help: "Round evaluations by terminal state",
		},
		[]string{"state"},
	)
	RoundScoreHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "round_score",
			Help:    "Distribution of round scores ([0,100])",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"round_type"},
	)
	RoundScoreDrift = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "round_score_drift",
			Help: "Absolute difference between the recent and baseline mean round score",
		},
		[]string{"round_type", "model"},
	)
	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hiring_verdicts_total",
			Help: "Aggregated verdicts by outcome",
		},
		[]string{"verdict"},
	)
	PipelineEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_total",
			Help: "Non-fatal pipeline events such as matching degradation and resolution fallback",
		},
		[]string{"event"},
	)
)

var registerOnce sync.Once

// InitMetrics registers every collector with the default registry. Safe to call repeatedly.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			GenerationRequestsTotal,
			GenerationDuration,
			GenerationTokensTotal,
			GenerationThrottledTotal,
			RoundsEnqueuedTotal,
			RoundsProcessing,
			RoundsFinishedTotal,
			RoundScoreHistogram,
			RoundScoreDrift,
			VerdictsTotal,
			PipelineEventsTotal,
		)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// ObserveGeneration records one backend call.
func ObserveGeneration(model, task string, dur time.Duration, inputTokens, outputTokens int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	GenerationRequestsTotal.WithLabelValues(model, task, outcome).Inc()
	GenerationDuration.WithLabelValues(model, task).Observe(dur.Seconds())
	if inputTokens > 0 {
		GenerationTokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		GenerationTokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

func EnqueueRound() { RoundsEnqueuedTotal.Inc() }

func StartProcessingRound() { RoundsProcessing.Inc() }

func CompleteRound() {
	RoundsProcessing.Dec()
	RoundsFinishedTotal.WithLabelValues("completed").Inc()
}

func FailRound() {
	RoundsProcessing.Dec()
	RoundsFinishedTotal.WithLabelValues("failed").Inc()
}

// ObserveRoundScore records the score of a completed round.
func ObserveRoundScore(roundType string, score int) {
	if score >= 0 && score <= 100 {
		RoundScoreHistogram.WithLabelValues(roundType).Observe(float64(score))
	}
}

func ObserveVerdict(verdict string) { VerdictsTotal.WithLabelValues(verdict).Inc() }

// CountPipelineEvent counts a degraded-but-successful pipeline step.
func CountPipelineEvent(event string) { PipelineEventsTotal.WithLabelValues(event).Inc() }
