// Package main provides the worker application entry point.
// The worker evaluates interview rounds consumed from the Redpanda queue.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/interview-evaluator/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/interview-evaluator/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/interview-evaluator/internal/app"
	"github.com/fairyhunter13/interview-evaluator/internal/config"
	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv), slog.Int("concurrency", cfg.WorkerConcurrency))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid redis url", slog.Any("error", err))
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	// The worker's producer publishes events, redeliveries and dead letters
	// under its own transactional id so it never fences the server's.
	producer, err := redpanda.NewProducer(ctx, redpanda.ProducerConfig{
		Brokers:         cfg.KafkaBrokers,
		TransactionalID: "interview-evaluator-worker",
		RoundTopic:      cfg.RoundTopic,
		EventsTopic:     cfg.EventsTopic,
	})
	if err != nil {
		slog.Error("queue producer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer producer.Close()

	gen, model, err := app.BuildGenerator(ctx, cfg, rdb)
	if err != nil {
		slog.Error("generator init failed", slog.Any("error", err))
		os.Exit(1)
	}
	pipeline, err := app.BuildPipeline(cfg, pool, gen, producer, producer)
	if err != nil {
		slog.Error("pipeline init failed", slog.Any("error", err))
		os.Exit(1)
	}
	pipeline.Rounds.Observe = observeState

	drift := observability.NewScoreDriftMonitor(50, 10)
	handler := roundHandler(pipeline.Rounds, cfg.RoundTimeout, func(res usecase.RoundResult) {
		observability.ObserveRoundScore(string(res.RoundType), res.Score)
		drift.Record(string(res.RoundType), model, res.Score)
	})

	consumer, err := redpanda.NewConsumer(redpanda.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Group:   cfg.ConsumerGroup,
		Topic:   cfg.RoundTopic,
		Workers: cfg.WorkerConcurrency,
	}, handler, producer)
	if err != nil {
		slog.Error("redpanda consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer consumer.Close()

	sweeper := app.NewRoundSweeper(postgres.NewRoundRepo(pool), producer,
		postgres.NewCleanupService(pool, 0), cfg.RoundSweepAge, cfg.RoundSweepInterval, cfg.RoundSweepMaxAttempts)

	metricsSrv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metricsMux(consumer.Healthy), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("worker metrics listening", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("worker stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("worker stopped")
}

func metricsMux(healthy func() bool) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// roundEvaluator is the part of usecase.RoundService the handler needs.
type roundEvaluator interface {
	Evaluate(ctx context.Context, roundID string) (usecase.RoundResult, error)
}

// roundHandler adapts the round orchestrator to the consumer. Each delivery
// gets its own deadline; onSuccess sees every completed evaluation.
func roundHandler(rounds roundEvaluator, timeout time.Duration, onSuccess func(usecase.RoundResult)) redpanda.Handler {
	return func(ctx context.Context, p domain.RoundEvaluationPayload) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		res, err := rounds.Evaluate(ctx, p.RoundID)
		if err != nil {
			return err
		}
		if onSuccess != nil {
			onSuccess(res)
		}
		return nil
	}
}

func observeState(st domain.EvaluationState) {
	switch st {
	case domain.EvaluationRunning:
		observability.StartProcessingRound()
	case domain.EvaluationCompleted:
		observability.CompleteRound()
	case domain.EvaluationFailed:
		observability.FailRound()
	}
}
