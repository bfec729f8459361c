package producer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/stream-producer/pkg/metrics"
	"github.com/ava-labs/stream-producer/pkg/streamclient"
)

// Producer accepts records from any number of goroutines and delivers them to
// a stream in batches using a fixed pool of workers.
//
// Put and PutAll block while the queue is full. Delivery failures are never
// returned to the caller; they are reported to the FailureHandler.
type Producer struct {
	stream  string
	cfg     Config
	client  streamclient.Client
	handler FailureHandler
	log     *zap.SugaredLogger
	metrics *metrics.Metrics // nil if metrics disabled

	mu       sync.RWMutex
	shutdown bool
	queue    *workQueue
	stopping atomic.Bool // mirrors shutdown for readers that must not wait on mu

	wg   sync.WaitGroup
	done chan struct{}
}

// Option configures the Producer.
type Option func(*Producer)

// WithFailureHandler sets the handler notified of delivery failures.
func WithFailureHandler(h FailureHandler) Option {
	return func(p *Producer) {
		if h != nil {
			p.handler = h
		}
	}
}

// WithMetrics enables metrics collection for the producer and its workers.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Producer) {
		p.metrics = m
	}
}

// New validates its arguments and starts cfg.WorkerCount workers. ctx bounds
// remote calls and retry sleeps; cancelling it does not stop the workers, use
// Shutdown for that.
func New(
	ctx context.Context,
	log *zap.SugaredLogger,
	stream string,
	client streamclient.Client,
	cfg Config,
	opts ...Option,
) (*Producer, error) {
	switch {
	case log == nil:
		return nil, ErrInvalidLogger
	case stream == "":
		return nil, ErrInvalidStream
	case client == nil:
		return nil, ErrInvalidClient
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid producer config: %w", err)
	}

	p := &Producer{
		stream:  stream,
		cfg:     cfg,
		client:  client,
		handler: NoopFailureHandler{},
		log:     log,
		queue:   newWorkQueue(cfg.QueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(cfg.WorkerCount)
	for i := range cfg.WorkerCount {
		w := newWorker(i, stream, p.queue, client, p.handler, log, p.metrics, cfg)
		go p.supervise(ctx, w)
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()

	log.Infow("producer started",
		"stream", stream,
		"workers", cfg.WorkerCount,
		"queueSize", cfg.QueueSize,
		"sendSize", cfg.SendSize,
		"sendEvery", cfg.SendEvery,
		"retries", cfg.Retries,
	)
	return p, nil
}

// supervise runs w until it terminates, restarting it after a panic when the
// producer is configured to do so.
func (p *Producer) supervise(ctx context.Context, w *worker) {
	defer p.wg.Done()
	p.metrics.IncWorkersRunning()
	defer p.metrics.DecWorkersRunning()

	for !w.run(ctx) {
		if !p.cfg.RestartWorkers {
			p.log.Warnw("producer worker stopped after panic, running with reduced concurrency",
				"worker", w.id,
				"stream", p.stream,
			)
			return
		}
		p.log.Infow("restarting producer worker", "worker", w.id, "stream", p.stream)
		w.reset()
	}
}

// Put enqueues one record. It returns false without enqueuing if the producer
// has been shut down or every worker has stopped.
func (p *Producer) Put(key string, data []byte) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.shutdown || !p.queue.put(&Record{Key: key, Data: data}, p.done) {
		p.metrics.IncPutsRejected()
		return false
	}
	p.metrics.AddRecordsEnqueued(1)
	return true
}

// PutAll enqueues records in order. Either every record is enqueued or, if the
// producer has been shut down, none is.
func (p *Producer) PutAll(records []Record) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.shutdown {
		p.metrics.IncPutsRejected()
		return false
	}
	for i := range records {
		r := records[i]
		if !p.queue.put(&r, p.done) {
			// Every worker is gone; whatever was enqueued is stranded.
			p.log.Errorw("no running workers, dropping records",
				"stream", p.stream,
				"enqueued", i,
				"dropped", len(records)-i,
			)
			p.metrics.AddRecordsEnqueued(i)
			p.metrics.IncPutsRejected()
			return false
		}
	}
	p.metrics.AddRecordsEnqueued(len(records))
	return true
}

// Shutdown stops the producer from accepting records and tells each worker to
// flush and exit once it has drained the records queued before the call.
// Calling it again has no further effect.
//
// If block is true it waits up to timeout for the workers and reports whether
// they all terminated. Otherwise it reports whether they already have.
func (p *Producer) Shutdown(block bool, timeout time.Duration) bool {
	p.mu.Lock()
	first := !p.shutdown
	if first {
		p.shutdown = true
		p.stopping.Store(true)
		for range p.cfg.WorkerCount {
			if !p.queue.put(shutdownSignal, p.done) {
				break
			}
		}
	}
	p.mu.Unlock()

	if first {
		p.log.Infow("producer shutting down", "stream", p.stream, "queued", p.queue.size())
	}
	if block {
		return p.Await(timeout)
	}
	return p.terminated()
}

// Await waits up to timeout for every worker to terminate and reports whether
// they did. A non-positive timeout only checks.
func (p *Producer) Await(timeout time.Duration) bool {
	if timeout <= 0 {
		return p.terminated()
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.done:
		return true
	case <-t.C:
		return false
	}
}

func (p *Producer) terminated() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// IsShutdown reports whether Shutdown has been called.
func (p *Producer) IsShutdown() bool {
	return p.stopping.Load()
}

// QueueSize returns the number of records waiting to be claimed by a worker.
func (p *Producer) QueueSize() int {
	return p.queue.size()
}

func (p *Producer) Stream() string {
	return p.stream
}
