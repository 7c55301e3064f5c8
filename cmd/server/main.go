// Command server starts the interview evaluator HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/interview-evaluator/internal/adapter/httpserver"
	"github.com/fairyhunter13/interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/interview-evaluator/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/interview-evaluator/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/interview-evaluator/internal/app"
	"github.com/fairyhunter13/interview-evaluator/internal/config"
)

func main() {
	if len(os.Args) == 3 && os.Args[1] == "hash-token" {
		os.Exit(hashToken(os.Stdout, os.Args[2]))
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP, generation and round instrumentation.
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

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		slog.Error("db migrate failed", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.SeedFile != "" {
		if err := seedFromYAML(ctx, pool, cfg.SeedFile); err != nil {
			slog.Error("seeding failed", slog.String("file", cfg.SeedFile), slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("fixture seeded", slog.String("file", cfg.SeedFile))
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid redis url", slog.Any("error", err))
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	producer, err := redpanda.NewProducer(ctx, redpanda.ProducerConfig{
		Brokers:         cfg.KafkaBrokers,
		TransactionalID: "interview-evaluator-server",
		RoundTopic:      cfg.RoundTopic,
		EventsTopic:     cfg.EventsTopic,
	})
	if err != nil {
		slog.Error("redpanda producer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer producer.Close()

	gen, model, err := app.BuildGenerator(ctx, cfg, rdb)
	if err != nil {
		slog.Error("generator init failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("generation backend ready", slog.String("backend", cfg.AIBackend), slog.String("model", model))

	pipeline, err := app.BuildPipeline(cfg, pool, gen, producer, producer)
	if err != nil {
		slog.Error("pipeline init failed", slog.Any("error", err))
		os.Exit(1)
	}

	auth, err := httpserver.NewTokenAuthenticator(cfg.APITokens)
	if err != nil {
		slog.Error("api token config invalid", slog.Any("error", err))
		os.Exit(1)
	}
	if len(cfg.APITokens) == 0 {
		slog.Warn("no API tokens configured; every /v1 request will be rejected")
	}

	dbCheck, redisCheck, kafkaCheck := app.BuildReadinessChecks(pool, rdb, producer)
	srv := httpserver.NewServer(cfg, pipeline.Enqueue, pipeline.Results, pipeline.Aggregation, dbCheck, redisCheck, kafkaCheck)
	srv.Circuits = gen.CircuitStates
	handler := app.BuildRouter(cfg, srv, auth)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}

// hashToken prints the argon2id hash to paste into API_TOKENS as subject:hash.
func hashToken(w io.Writer, token string) int {
	if token == "" {
		fmt.Fprintln(os.Stderr, "usage: server hash-token <token>")
		return 2
	}
	h, err := httpserver.HashToken(token, httpserver.DefaultArgon2Params)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintln(w, h)
	return 0
}
