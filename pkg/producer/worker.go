package producer

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/stream-producer/pkg/metrics"
	"github.com/ava-labs/stream-producer/pkg/streamclient"
)

// State is the lifecycle state of a worker.
type State int

const (
	StateRunning State = iota
	StateFlushing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFlushing:
		return "flushing"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// worker drains the shared queue into its own buffer and flushes the buffer
// to the stream. All fields below the configuration block are owned by the
// worker goroutine.
type worker struct {
	id      int
	stream  string
	queue   source
	client  streamclient.Client
	handler FailureHandler
	log     *zap.SugaredLogger
	metrics *metrics.Metrics

	sendSize      int
	sendEvery     time.Duration
	retries       int
	retryInterval time.Duration

	buffer          []Record
	inflight        []Record
	lastFlushAt     time.Time
	shutdownPending bool
	state           State
}

func newWorker(
	id int,
	stream string,
	q source,
	client streamclient.Client,
	handler FailureHandler,
	log *zap.SugaredLogger,
	m *metrics.Metrics,
	cfg Config,
) *worker {
	return &worker{
		id:            id,
		stream:        stream,
		queue:         q,
		client:        client,
		handler:       handler,
		log:           log,
		metrics:       m,
		sendSize:      cfg.SendSize,
		sendEvery:     cfg.SendEvery,
		retries:       cfg.Retries,
		retryInterval: cfg.RetryInterval,
		buffer:        make([]Record, 0, cfg.SendSize),
		lastFlushAt:   time.Now(),
		state:         StateRunning,
	}
}

// run executes the worker loop until the worker consumes a shutdown signal.
// It returns false if the loop died with a panic before that happened; the
// panic is logged and the records the worker held are reported as failed.
func (w *worker) run(ctx context.Context) (terminated bool) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorw("producer worker died",
				"worker", w.id,
				"stream", w.stream,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			w.metrics.IncWorkerPanics()
			w.abandon(fmt.Errorf("%w: %v", ErrWorkerPanic, r))
			w.state = StateTerminated
			terminated = w.shutdownPending
		}
	}()

	w.loop(ctx)
	return true
}

func (w *worker) loop(ctx context.Context) {
	for {
		wait := max(0, time.Until(w.lastFlushAt.Add(w.sendEvery)))
		item, ok := w.queue.poll(wait)
		w.metrics.SetQueueDepth(w.queue.size())

		received := false
		switch {
		case !ok:
		case item == shutdownSignal:
			w.shutdownPending = true
		default:
			w.buffer = append(w.buffer, *item)
			received = true
		}

		switch {
		case len(w.buffer) > 0 && (len(w.buffer) >= w.sendSize || !received || w.shutdownPending):
			w.flush(ctx)
		case !ok:
			// Nothing buffered and nothing arrived: start a fresh window
			// instead of polling with a zero timeout.
			w.lastFlushAt = time.Now()
		}

		if w.shutdownPending {
			w.state = StateTerminated
			w.log.Debugw("producer worker terminated", "worker", w.id, "stream", w.stream)
			return
		}
	}
}

// reset prepares a worker whose loop panicked to run again.
func (w *worker) reset() {
	w.buffer = make([]Record, 0, w.sendSize)
	w.inflight = nil
	w.lastFlushAt = time.Now()
	w.state = StateRunning
}

// abandon reports every record the worker still holds. Records of a batch that
// was mid-flush may already have been delivered; records already handed to
// the failure handler are not held.
func (w *worker) abandon(cause error) {
	records := make([]Record, 0, len(w.inflight)+len(w.buffer))
	records = append(records, w.inflight...)
	records = append(records, w.buffer...)
	w.inflight = nil
	w.buffer = nil
	if len(records) == 0 {
		return
	}

	w.log.Errorw("abandoning buffered records", "worker", w.id, "records", len(records), "error", cause)
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorw("failure handler panicked while reporting abandoned records",
				"worker", w.id,
				"records", len(records),
				"panic", r,
			)
		}
	}()
	w.handler.OnRequestFailure(cause, records)
}
