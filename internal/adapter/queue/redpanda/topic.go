package redpanda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// TopicSpec describes a topic created at startup.
type TopicSpec struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
}

// requester is the admin surface of *kgo.Client.
type requester interface {
	Request(ctx context.Context, req kmsg.Request) (kmsg.Response, error)
}

var _ requester = (*kgo.Client)(nil)

// ensureTopics creates the given topics, treating TOPIC_ALREADY_EXISTS as success.
func ensureTopics(ctx context.Context, client requester, topics ...TopicSpec) error {
	req := kmsg.NewPtrCreateTopicsRequest()
	req.TimeoutMillis = 30000
	for _, t := range topics {
		if t.Name == "" {
			return fmt.Errorf("op=redpanda.ensureTopics: topic name cannot be empty")
		}
		if t.Partitions <= 0 || t.ReplicationFactor <= 0 {
			return fmt.Errorf("op=redpanda.ensureTopics topic=%s: partitions and replication factor must be positive", t.Name)
		}
		rt := kmsg.NewCreateTopicsRequestTopic()
		rt.Topic = t.Name
		rt.NumPartitions = t.Partitions
		rt.ReplicationFactor = t.ReplicationFactor
		req.Topics = append(req.Topics, rt)
	}
	if len(req.Topics) == 0 {
		return nil
	}

	resp, err := client.Request(ctx, req)
	if err != nil {
		return fmt.Errorf("op=redpanda.ensureTopics: %w", err)
	}
	created, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("op=redpanda.ensureTopics: unexpected response type %T", resp)
	}
	var errs []error
	for _, t := range created.Topics {
		err := kerr.ErrorForCode(t.ErrorCode)
		switch {
		case err == nil:
			slog.Info("topic created", slog.String("topic", t.Topic), slog.Int("partitions", int(t.NumPartitions)))
		case errors.Is(err, kerr.TopicAlreadyExists):
			slog.Debug("topic already exists", slog.String("topic", t.Topic))
		default:
			msg := ""
			if t.ErrorMessage != nil {
				msg = *t.ErrorMessage
			}
			errs = append(errs, fmt.Errorf("topic %s: %w %s", t.Topic, err, msg))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("op=redpanda.ensureTopics: %w", errors.Join(errs...))
	}
	return nil
}
