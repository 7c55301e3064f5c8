// Package redpanda carries round-evaluation work and domain events over
// Redpanda (Kafka API) with franz-go.
//
// Round messages are produced transactionally and consumed by a consumer group
// with read-committed isolation. Evaluations that fail because the generation
// backend is throttled or slow are redelivered with a growing delay and end on
// a dead-letter topic once the redelivery budget is spent.
package redpanda

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

const (
	// DefaultRoundTopic carries round-evaluation messages.
	DefaultRoundTopic = "round-evaluations"
	// DefaultEventsTopic carries domain events.
	DefaultEventsTopic = "interview-events"
)

// DeadLetterTopic names the dead-letter topic of topic.
func DeadLetterTopic(topic string) string { return topic + ".dlq" }

// producerClient is the part of *kgo.Client the producer uses.
type producerClient interface {
	BeginTransaction() error
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	EndTransaction(ctx context.Context, commit kgo.TransactionEndTry) error
	Ping(ctx context.Context) error
	Close()
}

var _ producerClient = (*kgo.Client)(nil)

// ProducerConfig configures NewProducer.
type ProducerConfig struct {
	Brokers         []string
	TransactionalID string
	RoundTopic      string
	EventsTopic     string
	// Partitions of the round topic; the worker pool consumes them in parallel.
	Partitions int32
}

// Producer publishes round-evaluation messages and domain events. It
// implements domain.RoundQueue and domain.EventPublisher.
type Producer struct {
	client      producerClient
	roundTopic  string
	eventsTopic string
	txLock      chan struct{}
	now         func() time.Time
}

var (
	_ domain.RoundQueue     = (*Producer)(nil)
	_ domain.EventPublisher = (*Producer)(nil)
)

func kotelHooks() kgo.Opt {
	tracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	return kgo.WithHooks(kotel.NewKotel(kotel.WithTracer(tracer)).Hooks()...)
}

// NewProducer connects a transactional producer and makes sure the round,
// dead-letter and event topics exist.
func NewProducer(ctx context.Context, cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewProducer: %w: no seed brokers provided", domain.ErrInvalidArgument)
	}
	if cfg.TransactionalID == "" {
		cfg.TransactionalID = "interview-evaluator-producer"
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 8
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.TransactionalID(cfg.TransactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kotelHooks(),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewProducer: %w", err)
	}
	p := newProducer(client, cfg.RoundTopic, cfg.EventsTopic)
	if err := ensureTopics(ctx, client,
		TopicSpec{Name: p.roundTopic, Partitions: cfg.Partitions, ReplicationFactor: 1},
		TopicSpec{Name: DeadLetterTopic(p.roundTopic), Partitions: 1, ReplicationFactor: 1},
		TopicSpec{Name: p.eventsTopic, Partitions: 1, ReplicationFactor: 1},
	); err != nil {
		slog.Warn("failed to ensure topics, continuing with existing ones", slog.Any("error", err))
	}
	slog.Info("redpanda producer created",
		slog.Any("brokers", cfg.Brokers),
		slog.String("round_topic", p.roundTopic),
		slog.String("events_topic", p.eventsTopic))
	return p, nil
}

func newProducer(client producerClient, roundTopic, eventsTopic string) *Producer {
	if roundTopic == "" {
		roundTopic = DefaultRoundTopic
	}
	if eventsTopic == "" {
		eventsTopic = DefaultEventsTopic
	}
	return &Producer{
		client:      client,
		roundTopic:  roundTopic,
		eventsTopic: eventsTopic,
		txLock:      make(chan struct{}, 1),
		now:         time.Now,
	}
}

// EnqueueRoundEvaluation publishes the first attempt of a round evaluation
// and returns the round id as the task id.
func (p *Producer) EnqueueRoundEvaluation(ctx domain.Context, payload domain.RoundEvaluationPayload) (string, error) {
	rec, err := roundRecord(p.roundTopic, payload, 1, time.Time{})
	if err != nil {
		return "", fmt.Errorf("op=redpanda.EnqueueRoundEvaluation: %w", err)
	}
	if err := p.produce(ctx, rec); err != nil {
		return "", fmt.Errorf("op=redpanda.EnqueueRoundEvaluation round_id=%s: %w", payload.RoundID, err)
	}
	observability.EnqueueRound()
	slog.InfoContext(ctx, "round evaluation enqueued", slog.String("round_id", payload.RoundID), slog.String("topic", p.roundTopic))
	return payload.RoundID, nil
}

// Publish implements domain.EventPublisher.
func (p *Producer) Publish(ctx domain.Context, evt domain.Event) error {
	rec, err := eventRecord(p.eventsTopic, evt)
	if err != nil {
		return fmt.Errorf("op=redpanda.Publish: %w", err)
	}
	if err := p.produce(ctx, rec); err != nil {
		return fmt.Errorf("op=redpanda.Publish type=%s subject_id=%s: %w", evt.Type, evt.SubjectID, err)
	}
	return nil
}

// produce writes records in one transaction. Transactions on a client are
// serialized; concurrent callers queue on txLock.
func (p *Producer) produce(ctx context.Context, recs ...*kgo.Record) error {
	select {
	case p.txLock <- struct{}{}:
		defer func() { <-p.txLock }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.client.BeginTransaction(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := p.client.ProduceSync(ctx, recs...).FirstErr(); err != nil {
		if abortErr := p.client.EndTransaction(context.WithoutCancel(ctx), kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return fmt.Errorf("produce: %w", err)
	}
	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping checks broker connectivity for readiness.
func (p *Producer) Ping(ctx context.Context) error { return p.client.Ping(ctx) }

// Close releases the client.
func (p *Producer) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
