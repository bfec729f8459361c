package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/ava-labs/stream-producer/pkg/metrics"
	"github.com/ava-labs/stream-producer/pkg/streamclient"
)

// flush sends the buffer and resets it. Records that could not be delivered
// are reported to the failure handler in a single call.
func (w *worker) flush(ctx context.Context) {
	batch := w.buffer
	w.buffer = make([]Record, 0, w.sendSize)
	w.inflight = batch
	w.state = StateFlushing
	start := time.Now()

	failed := w.putRecords(ctx, batch)
	if len(failed) > 0 {
		for _, f := range failed {
			w.metrics.IncRecordFailure(f.ErrorCode)
		}
		w.log.Warnw("records failed after retries",
			"worker", w.id,
			"stream", w.stream,
			"failed", len(failed),
			"batchSize", len(batch),
		)
		w.inflight = nil
		w.handler.OnRecordFailure(failed)
	}

	w.metrics.ObserveFlush(len(batch), time.Since(start).Seconds())
	w.inflight = nil
	w.lastFlushAt = time.Now()
	w.state = StateRunning
}

// putRecords delivers records, resending transient failures while the retry
// budget lasts. Request-level give-ups are reported directly; the returned
// slice holds the records that failed individually.
//
// The budget is shared by both kinds of retry and is decremented before
// each retry, so a flush makes at most max(1, retries) requests. Logged
// retry counts are the budget remaining after the decrement.
func (w *worker) putRecords(ctx context.Context, records []Record) []FailedRecord {
	var failed []FailedRecord
	remaining := w.retries
	pending := records

	for attempt := 1; ; attempt++ {
		resp, err := w.send(ctx, pending)
		if err != nil {
			remaining--
			if !streamclient.IsRetryable(err) || remaining <= 0 {
				w.log.Errorw("put records request failed",
					"worker", w.id,
					"stream", w.stream,
					"records", len(pending),
					"attempts", attempt,
					"error", err,
				)
				w.giveUp(err, pending, failed)
				return failed
			}

			w.log.Debugw("put records request failed, retrying",
				"worker", w.id,
				"stream", w.stream,
				"records", len(pending),
				"retriesRemaining", remaining,
				"error", err,
			)
			w.metrics.IncRetry(metrics.RetryRequest)
			w.handler.OnRequestRetry(err, pending)
			if err := w.sleep(ctx); err != nil {
				w.giveUp(err, pending, failed)
				return failed
			}
			continue
		}

		retry, rejected := classify(pending, resp.Records)
		failed = append(failed, rejected...)
		w.metrics.AddRecordsDelivered(len(pending) - len(retry) - len(rejected))
		if len(retry) == 0 {
			return failed
		}

		remaining--
		if remaining <= 0 {
			w.log.Warnw("retry budget exhausted",
				"worker", w.id,
				"stream", w.stream,
				"retryable", len(retry),
				"attempts", attempt,
			)
			return append(failed, retry...)
		}

		w.log.Debugw("resending throttled records",
			"worker", w.id,
			"stream", w.stream,
			"records", len(retry),
			"retriesRemaining", remaining,
		)
		w.metrics.IncRetry(metrics.RetryRecord)
		if err := w.sleep(ctx); err != nil {
			return append(failed, retry...)
		}
		pending = recordsOf(retry)
	}
}

func (w *worker) send(ctx context.Context, records []Record) (*streamclient.PutRecordsResponse, error) {
	req := streamclient.NewPutRecordsRequest(w.stream, toEntries(records))

	start := time.Now()
	resp, err := w.client.PutRecords(ctx, req)
	w.metrics.RecordPutRecords(err, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Records) != len(records) {
		got := 0
		if resp != nil {
			got = len(resp.Records)
		}
		return nil, fmt.Errorf("%w: sent %d, got %d", streamclient.ErrMismatchedResponse, len(records), got)
	}
	return resp, nil
}

// giveUp reports records as failed. From here on the worker only holds the
// individually rejected records, which flush reports next.
func (w *worker) giveUp(err error, records []Record, rejected []FailedRecord) {
	w.inflight = recordsOf(rejected)
	w.metrics.IncRequestFailure()
	w.handler.OnRequestFailure(err, records)
}

func (w *worker) sleep(ctx context.Context) error {
	t := time.NewTimer(w.retryInterval)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// classify splits the rejected entries of a response into those worth
// resending and those that will never succeed. results must be aligned with
// records.
func classify(records []Record, results []streamclient.Result) (retry, rejected []FailedRecord) {
	for i, res := range results {
		if !res.Failed() {
			continue
		}
		f := FailedRecord{
			Record:       records[i],
			ErrorCode:    res.ErrorCode,
			ErrorMessage: res.ErrorMessage,
		}
		if streamclient.IsRetryableCode(res.ErrorCode) {
			retry = append(retry, f)
		} else {
			rejected = append(rejected, f)
		}
	}
	return retry, rejected
}
