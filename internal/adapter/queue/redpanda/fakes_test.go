package redpanda

import (
	"context"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

type fakeProducerClient struct {
	mu         sync.Mutex
	produced   []*kgo.Record
	beginErr   error
	produceErr error
	commitErr  error
	ends       []kgo.TransactionEndTry
	pingErr    error
	closed     bool
}

func (f *fakeProducerClient) BeginTransaction() error { return f.beginErr }

func (f *fakeProducerClient) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.produceErr == nil {
			f.produced = append(f.produced, r)
		}
		out = append(out, kgo.ProduceResult{Record: r, Err: f.produceErr})
	}
	return out
}

func (f *fakeProducerClient) EndTransaction(_ context.Context, try kgo.TransactionEndTry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, try)
	if try == kgo.TryCommit {
		return f.commitErr
	}
	return nil
}

func (f *fakeProducerClient) Ping(context.Context) error { return f.pingErr }

func (f *fakeProducerClient) Close() { f.closed = true }

func (f *fakeProducerClient) records() []*kgo.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*kgo.Record(nil), f.produced...)
}

// fakeConsumerClient serves the queued fetches, then blocks until ctx ends.
type fakeConsumerClient struct {
	mu        sync.Mutex
	fetches   []kgo.Fetches
	marked    []*kgo.Record
	committed bool
	closed    bool
}

func (f *fakeConsumerClient) PollFetches(ctx context.Context) kgo.Fetches {
	f.mu.Lock()
	if len(f.fetches) > 0 {
		next := f.fetches[0]
		f.fetches = f.fetches[1:]
		f.mu.Unlock()
		return next
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kgo.Fetches{}
}

func (f *fakeConsumerClient) MarkCommitRecords(rs ...*kgo.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, rs...)
}

func (f *fakeConsumerClient) CommitMarkedOffsets(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = true
	return nil
}

func (f *fakeConsumerClient) Close() { f.closed = true }

func (f *fakeConsumerClient) markedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.marked)
}

func fetchOf(topic string, recs ...*kgo.Record) kgo.Fetches {
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      topic,
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: recs}},
	}}}}
}

// fakeAdmin answers CreateTopics requests.
type fakeAdmin struct {
	req  *kmsg.CreateTopicsRequest
	resp *kmsg.CreateTopicsResponse
	err  error
}

func (f *fakeAdmin) Request(_ context.Context, req kmsg.Request) (kmsg.Response, error) {
	f.req, _ = req.(*kmsg.CreateTopicsRequest)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}
