package producer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ava-labs/stream-producer/pkg/streamclient"
)

// SyncProducer writes records to a stream on the caller's goroutine. It does
// no retries; the caller sees every outcome.
type SyncProducer struct {
	stream   string
	client   streamclient.Client
	log      *zap.SugaredLogger
	sendSize int
	sem      *semaphore.Weighted
}

// NewSyncProducer creates a SyncProducer that sends at most sendSize records
// per request and keeps at most concurrency PutAll requests in flight.
func NewSyncProducer(
	log *zap.SugaredLogger,
	stream string,
	client streamclient.Client,
	sendSize int,
	concurrency int64,
) (*SyncProducer, error) {
	switch {
	case log == nil:
		return nil, ErrInvalidLogger
	case stream == "":
		return nil, ErrInvalidStream
	case client == nil:
		return nil, ErrInvalidClient
	case sendSize <= 0 || sendSize > streamclient.MaxRecordsPerRequest:
		return nil, fmt.Errorf("%w: got %d, limit %d", ErrInvalidSendSize, sendSize, streamclient.MaxRecordsPerRequest)
	case concurrency <= 0:
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, concurrency)
	}

	return &SyncProducer{
		stream:   stream,
		client:   client,
		log:      log,
		sendSize: sendSize,
		sem:      semaphore.NewWeighted(concurrency),
	}, nil
}

// Put writes a single record.
func (p *SyncProducer) Put(ctx context.Context, key string, data []byte) (streamclient.Ack, error) {
	ack, err := p.client.PutRecord(ctx, p.stream, streamclient.Entry{PartitionKey: key, Data: data})
	if err != nil {
		return streamclient.Ack{}, fmt.Errorf("put record to %s: %w", p.stream, err)
	}
	return ack, nil
}

// PutAll writes records in requests of up to sendSize. It returns the records
// the service rejected, in input order, and an error joining the failures of
// requests that did not complete. Records of a failed request are not in the
// returned slice.
func (p *SyncProducer) PutAll(ctx context.Context, records []Record) ([]FailedRecord, error) {
	var chunks [][]Record
	for start := 0; start < len(records); start += p.sendSize {
		chunks = append(chunks, records[start:min(start+p.sendSize, len(records))])
	}

	failed := make([][]FailedRecord, len(chunks))
	errs := make([]error, len(chunks))
	var wg sync.WaitGroup

	for i, chunk := range chunks {
		if err := p.acquire(ctx); err != nil {
			for j := i; j < len(chunks); j++ {
				errs[j] = fmt.Errorf("chunk %d: %w", j, err)
			}
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.sem.Release(1)
			failed[i], errs[i] = p.putChunk(ctx, i, chunk)
		}()
	}
	wg.Wait()

	var out []FailedRecord
	for _, f := range failed {
		out = append(out, f...)
	}
	if len(out) > 0 {
		p.log.Warnw("put records returned failures", "stream", p.stream, "failed", len(out), "records", len(records))
	}
	return out, errors.Join(errs...)
}

// acquire fails once ctx is done even if a slot is free.
func (p *SyncProducer) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.sem.Acquire(ctx, 1)
}

func (p *SyncProducer) putChunk(ctx context.Context, idx int, chunk []Record) ([]FailedRecord, error) {
	resp, err := p.client.PutRecords(ctx, streamclient.NewPutRecordsRequest(p.stream, toEntries(chunk)))
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", idx, err)
	}
	if resp == nil || len(resp.Records) != len(chunk) {
		return nil, fmt.Errorf("chunk %d: %w", idx, streamclient.ErrMismatchedResponse)
	}

	var failed []FailedRecord
	for i, res := range resp.Records {
		if res.Failed() {
			failed = append(failed, FailedRecord{
				Record:       chunk[i],
				ErrorCode:    res.ErrorCode,
				ErrorMessage: res.ErrorMessage,
			})
		}
	}
	return failed, nil
}
