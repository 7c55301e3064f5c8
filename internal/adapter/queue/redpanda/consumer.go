package redpanda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
	"github.com/fairyhunter13/interview-evaluator/internal/observability"
)

// Handler evaluates one round. A nil error acknowledges the message.
type Handler func(ctx context.Context, payload domain.RoundEvaluationPayload) error

// consumerClient is the part of *kgo.Client the consumer uses.
type consumerClient interface {
	PollFetches(ctx context.Context) kgo.Fetches
	MarkCommitRecords(rs ...*kgo.Record)
	CommitMarkedOffsets(ctx context.Context) error
	Close()
}

var _ consumerClient = (*kgo.Client)(nil)

// recordSink publishes redeliveries and dead letters.
type recordSink interface {
	produce(ctx context.Context, recs ...*kgo.Record) error
}

// ConsumerConfig configures NewConsumer.
type ConsumerConfig struct {
	Brokers []string
	Group   string
	Topic   string
	Workers int
	// MaxDeliveries counts the first delivery.
	MaxDeliveries int
	// RedeliveryDelay is the wait before the second delivery; it doubles per delivery.
	RedeliveryDelay time.Duration
}

func (c *ConsumerConfig) setDefaults() {
	if c.Topic == "" {
		c.Topic = DefaultRoundTopic
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 3
	}
	if c.RedeliveryDelay <= 0 {
		c.RedeliveryDelay = 30 * time.Second
	}
}

// Consumer runs the handler for every round message on a fixed worker pool.
// Each partition is pinned to one worker, so records of a partition are
// handled and marked in offset order.
type Consumer struct {
	client  consumerClient
	sink    recordSink
	handler Handler
	tracer  *kotel.Tracer
	cfg     ConsumerConfig
	poller  *AdaptivePoller
	now     func() time.Time
}

// NewConsumer joins the consumer group. Redeliveries and dead letters are
// produced through producer.
func NewConsumer(cfg ConsumerConfig, handler Handler, producer *Producer) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: %w: no seed brokers provided", domain.ErrInvalidArgument)
	}
	if cfg.Group == "" {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: %w: missing consumer group", domain.ErrInvalidArgument)
	}
	if handler == nil || producer == nil {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: %w: handler and producer are required", domain.ErrInvalidArgument)
	}
	cfg.setDefaults()

	tracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.RequireStableFetchOffsets(),
		kgo.AutoCommitMarks(),
		kgo.AutoCommitInterval(time.Second),
		kgo.SessionTimeout(30*time.Second),
		kgo.HeartbeatInterval(3*time.Second),
		kgo.FetchMaxWait(5*time.Second),
		kgo.WithHooks(kotel.NewKotel(kotel.WithTracer(tracer)).Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: %w", err)
	}
	c := newConsumer(client, producer, handler, cfg)
	c.tracer = tracer
	slog.Info("redpanda consumer created",
		slog.String("group_id", cfg.Group),
		slog.String("topic", cfg.Topic),
		slog.Int("workers", cfg.Workers))
	return c, nil
}

func newConsumer(client consumerClient, sink recordSink, handler Handler, cfg ConsumerConfig) *Consumer {
	cfg.setDefaults()
	return &Consumer{
		client:  client,
		sink:    sink,
		handler: handler,
		cfg:     cfg,
		poller:  NewAdaptivePoller(500 * time.Millisecond),
		now:     time.Now,
	}
}

// Run polls until ctx ends, then drains the workers and commits what they
// acknowledged.
func (c *Consumer) Run(ctx context.Context) error {
	lanes := make([]chan *kgo.Record, c.cfg.Workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan *kgo.Record)
		wg.Add(1)
		go func(records <-chan *kgo.Record) {
			defer wg.Done()
			for rec := range records {
				c.handle(ctx, rec)
			}
		}(lanes[i])
	}
	defer func() {
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := c.client.CommitMarkedOffsets(commitCtx); err != nil {
			slog.Warn("failed to commit offsets on shutdown", slog.Any("error", err))
		}
	}()

	for {
		if d := c.poller.NextInterval(); d > 0 {
			if err := sleepCtx(ctx, d); err != nil {
				return nil
			}
		}
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				slog.Error("fetch error",
					slog.String("topic", fe.Topic),
					slog.Int("partition", int(fe.Partition)),
					slog.Any("error", fe.Err))
			}
			c.poller.RecordFailure()
		} else {
			c.poller.RecordSuccess()
		}
		stopped := false
		fetches.EachRecord(func(rec *kgo.Record) {
			if stopped {
				return
			}
			select {
			case lanes[laneOf(rec.Partition, len(lanes))] <- rec:
			case <-ctx.Done():
				stopped = true
			}
		})
		if stopped {
			return nil
		}
	}
}

// handle runs one delivery. Records are marked for commit once the outcome
// is settled: success, terminal rejection, redelivery or dead letter.
// Deliveries interrupted by shutdown stay unmarked and are consumed again.
func (c *Consumer) handle(ctx context.Context, rec *kgo.Record) {
	var span trace.Span
	if c.tracer != nil {
		_, span = c.tracer.WithProcessSpan(rec)
	} else {
		_, span = otel.Tracer("queue.consumer").Start(ctx, "round.evaluate")
	}
	defer span.End()
	ctx = trace.ContextWithSpan(ctx, span)

	lg := observability.LoggerFromContext(ctx).With(
		slog.String("topic", rec.Topic),
		slog.Int("partition", int(rec.Partition)),
		slog.Int64("offset", rec.Offset),
	)

	d, err := decodeRoundRecord(rec)
	if err != nil {
		lg.Error("malformed round message, moving to dead-letter topic", slog.Any("error", err))
		c.deadLetter(ctx, lg, rec, "MALFORMED", err)
		c.client.MarkCommitRecords(rec)
		return
	}

	lg = lg.With(slog.String("round_id", d.Payload.RoundID), slog.Int("attempt", d.Attempt))
	if d.Payload.RequestID != "" {
		ctx = observability.ContextWithRequestID(ctx, d.Payload.RequestID)
		lg = lg.With(slog.String("request_id", d.Payload.RequestID))
	}
	ctx = observability.ContextWithLogger(ctx, lg)
	span.SetAttributes(attribute.String("round.id", d.Payload.RoundID), attribute.Int("round.attempt", d.Attempt))

	if wait := d.NotBefore.Sub(c.now()); wait > 0 {
		lg.Info("delaying redelivered round", slog.Duration("wait", wait))
		if err := sleepCtx(ctx, wait); err != nil {
			return
		}
	}

	err = c.handler(ctx, d.Payload)
	if err == nil {
		c.client.MarkCommitRecords(rec)
		return
	}
	if ctx.Err() != nil {
		lg.Warn("round evaluation interrupted by shutdown", slog.Any("error", err))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "round evaluation failed")

	code := classifyFailureCode(err)
	switch {
	case terminal(code):
		lg.Warn("round evaluation rejected", slog.String("failure_code", code), slog.Any("error", err))
	case redeliverable(code) && d.Attempt < c.cfg.MaxDeliveries:
		c.redeliver(ctx, lg, rec, d, code, err)
	default:
		lg.Error("round evaluation failed, moving to dead-letter topic", slog.String("failure_code", code), slog.Any("error", err))
		c.deadLetter(ctx, lg, rec, code, err)
	}
	c.client.MarkCommitRecords(rec)
}

func (c *Consumer) redeliver(ctx context.Context, lg *slog.Logger, rec *kgo.Record, d roundDelivery, code string, cause error) {
	delay := c.cfg.RedeliveryDelay << uint(d.Attempt-1)
	next, err := roundRecord(c.cfg.Topic, d.Payload, d.Attempt+1, c.now().Add(delay))
	if err == nil {
		err = c.sink.produce(ctx, next)
	}
	if err != nil {
		lg.Error("failed to schedule redelivery", slog.Any("error", err))
		c.deadLetter(ctx, lg, rec, code, errors.Join(cause, err))
		return
	}
	lg.Warn("round evaluation redelivery scheduled",
		slog.String("failure_code", code),
		slog.Int("next_attempt", d.Attempt+1),
		slog.Duration("delay", delay),
		slog.Any("error", cause))
}

func (c *Consumer) deadLetter(ctx context.Context, lg *slog.Logger, rec *kgo.Record, code string, cause error) {
	if err := c.sink.produce(ctx, deadLetter(DeadLetterTopic(c.cfg.Topic), rec, code, cause)); err != nil {
		lg.Error("failed to produce dead letter", slog.Any("error", err))
	}
}

// Healthy reports whether the last fetch from the brokers succeeded.
func (c *Consumer) Healthy() bool { return c.poller.IsHealthy() }

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func laneOf(partition int32, lanes int) int {
	if partition < 0 {
		partition = -partition
	}
	return int(partition) % lanes
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
