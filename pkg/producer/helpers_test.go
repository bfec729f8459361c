package producer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ava-labs/stream-producer/pkg/streamclient"
)

// fakeClient records every request and answers PutRecords with respond.
// A nil respond accepts every entry.
type fakeClient struct {
	mu       sync.Mutex
	requests [][]streamclient.Entry
	respond  func(call int, req *streamclient.PutRecordsRequest) (*streamclient.PutRecordsResponse, error)
}

func (c *fakeClient) PutRecord(_ context.Context, _ string, entry streamclient.Entry) (streamclient.Ack, error) {
	return streamclient.Ack{ShardID: "shardId-000000000000", SequenceNumber: entry.PartitionKey}, nil
}

func (c *fakeClient) PutRecords(_ context.Context, req *streamclient.PutRecordsRequest) (*streamclient.PutRecordsResponse, error) {
	c.mu.Lock()
	entries := append([]streamclient.Entry(nil), req.Records...)
	c.requests = append(c.requests, entries)
	call := len(c.requests)
	respond := c.respond
	c.mu.Unlock()

	if respond == nil {
		return allOK(len(req.Records)), nil
	}
	return respond(call, req)
}

func (c *fakeClient) calls() [][]streamclient.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]streamclient.Entry(nil), c.requests...)
}

func (c *fakeClient) delivered() int {
	n := 0
	for _, req := range c.calls() {
		n += len(req)
	}
	return n
}

func allOK(n int) *streamclient.PutRecordsResponse {
	results := make([]streamclient.Result, n)
	for i := range results {
		results[i] = streamclient.Result{ShardID: "shardId-000000000000", SequenceNumber: fmt.Sprint(i)}
	}
	return streamclient.NewPutRecordsResponse(results)
}

// recordingHandler captures every failure notification.
type recordingHandler struct {
	mu             sync.Mutex
	recordFailures [][]FailedRecord
	retries        []notification
	failures       []notification
}

type notification struct {
	err     error
	records []Record
}

func (h *recordingHandler) OnRecordFailure(failed []FailedRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recordFailures = append(h.recordFailures, failed)
}

func (h *recordingHandler) OnRequestRetry(err error, records []Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retries = append(h.retries, notification{err: err, records: records})
}

func (h *recordingHandler) OnRequestFailure(err error, records []Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, notification{err: err, records: records})
}

func (h *recordingHandler) snapshot() (recordFailures [][]FailedRecord, retries, failures []notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]FailedRecord(nil), h.recordFailures...),
		append([]notification(nil), h.retries...),
		append([]notification(nil), h.failures...)
}

// scriptedSource replays items in order; a nil item is a poll timeout. Once
// the script runs out every poll returns the shutdown signal.
type scriptedSource struct {
	items []*Record
	polls []time.Duration
}

func (s *scriptedSource) poll(timeout time.Duration) (*Record, bool) {
	s.polls = append(s.polls, timeout)
	if len(s.items) == 0 {
		return shutdownSignal, true
	}
	item := s.items[0]
	s.items = s.items[1:]
	if item == nil {
		return nil, false
	}
	return item, true
}

func (s *scriptedSource) size() int {
	return len(s.items)
}

func testRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{Key: fmt.Sprintf("key-%d", i), Data: []byte(fmt.Sprintf("data-%d", i))}
	}
	return records
}

func script(records []Record) []*Record {
	items := make([]*Record, len(records))
	for i := range records {
		items[i] = &records[i]
	}
	return items
}

func keysOf(entries []streamclient.Entry) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.PartitionKey
	}
	return keys
}

func recordKeys(records []Record) []string {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	return keys
}

func testConfig() Config {
	return Config{
		QueueSize:     100,
		SendSize:      10,
		SendEvery:     time.Hour,
		WorkerCount:   1,
		Retries:       2,
		RetryInterval: time.Millisecond,
	}
}

func newTestWorker(t *testing.T, src source, client streamclient.Client, h FailureHandler, cfg Config) *worker {
	t.Helper()
	return newWorker(0, "test-stream", src, client, h, zaptest.NewLogger(t).Sugar(), nil, cfg)
}

// metricValue sums every sample of the named counter or gauge in reg.
func metricValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}
