package redpanda

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

// Record headers.
const (
	headerRoundID    = "round_id"
	headerRequestID  = "request_id"
	headerAttempt    = "attempt"
	headerNotBefore  = "not_before"
	headerEventType  = "event_type"
	headerFailure    = "failure_code"
	headerFailureMsg = "failure_message"
)

// roundRecord builds the message for one round evaluation. Rounds are keyed by
// id so that redeliveries of a round stay on one partition.
func roundRecord(topic string, p domain.RoundEvaluationPayload, attempt int, notBefore time.Time) (*kgo.Record, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal round payload: %w", err)
	}
	rec := &kgo.Record{
		Topic: topic,
		Key:   []byte(p.RoundID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: headerRoundID, Value: []byte(p.RoundID)},
			{Key: headerAttempt, Value: []byte(strconv.Itoa(attempt))},
		},
	}
	if p.RequestID != "" {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: headerRequestID, Value: []byte(p.RequestID)})
	}
	if !notBefore.IsZero() {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: headerNotBefore, Value: []byte(strconv.FormatInt(notBefore.UnixMilli(), 10))})
	}
	return rec, nil
}

// roundDelivery is a decoded round message.
type roundDelivery struct {
	Payload   domain.RoundEvaluationPayload
	Attempt   int
	NotBefore time.Time
}

func decodeRoundRecord(rec *kgo.Record) (roundDelivery, error) {
	var d roundDelivery
	if err := json.Unmarshal(rec.Value, &d.Payload); err != nil {
		return d, fmt.Errorf("%w: decode round payload: %v", domain.ErrInvalidArgument, err)
	}
	if d.Payload.RoundID == "" {
		return d, fmt.Errorf("%w: round payload without round_id", domain.ErrInvalidArgument)
	}
	d.Attempt = 1
	if v, ok := header(rec, headerAttempt); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			d.Attempt = n
		}
	}
	if v, ok := header(rec, headerNotBefore); ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			d.NotBefore = time.UnixMilli(ms)
		}
	}
	return d, nil
}

func eventRecord(topic string, evt domain.Event) (*kgo.Record, error) {
	b, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return &kgo.Record{
		Topic:   topic,
		Key:     []byte(evt.SubjectID),
		Value:   b,
		Headers: []kgo.RecordHeader{{Key: headerEventType, Value: []byte(evt.Type)}},
	}, nil
}

// deadLetter copies rec onto the dead-letter topic with the failure attached.
func deadLetter(topic string, rec *kgo.Record, code string, cause error) *kgo.Record {
	headers := make([]kgo.RecordHeader, 0, len(rec.Headers)+2)
	for _, h := range rec.Headers {
		if h.Key != headerFailure && h.Key != headerFailureMsg {
			headers = append(headers, h)
		}
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	headers = append(headers,
		kgo.RecordHeader{Key: headerFailure, Value: []byte(code)},
		kgo.RecordHeader{Key: headerFailureMsg, Value: []byte(msg)},
	)
	return &kgo.Record{Topic: topic, Key: rec.Key, Value: rec.Value, Headers: headers}
}

func header(rec *kgo.Record, key string) (string, bool) {
	for _, h := range rec.Headers {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}
