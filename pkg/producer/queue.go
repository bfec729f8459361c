package producer

import (
	"sync/atomic"
	"time"
)

// source is the worker's view of the shared queue.
type source interface {
	// poll waits up to timeout for the next item. A non-positive timeout
	// only takes an item that is already available.
	poll(timeout time.Duration) (*Record, bool)
	size() int
}

// workQueue is a bounded FIFO shared by every caller (put) and every worker
// (poll). Each item is handed to exactly one worker.
type workQueue struct {
	items   chan *Record
	signals atomic.Int64 // shutdown signals counted in items
}

func newWorkQueue(capacity int) *workQueue {
	return &workQueue{items: make(chan *Record, capacity)}
}

// put blocks while the queue is full, giving up once done is closed. A nil
// done never gives up. It reports whether r was enqueued.
func (q *workQueue) put(r *Record, done <-chan struct{}) bool {
	select {
	case <-done:
		return false
	default:
	}

	if r == shutdownSignal {
		q.signals.Add(1)
	}
	select {
	case q.items <- r:
		return true
	case <-done:
		if r == shutdownSignal {
			q.signals.Add(-1)
		}
		return false
	}
}

func (q *workQueue) poll(timeout time.Duration) (*Record, bool) {
	if timeout <= 0 {
		select {
		case r := <-q.items:
			return q.claimed(r), true
		default:
			return nil, false
		}
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case r := <-q.items:
		return q.claimed(r), true
	case <-t.C:
		return nil, false
	}
}

func (q *workQueue) claimed(r *Record) *Record {
	if r == shutdownSignal {
		q.signals.Add(-1)
	}
	return r
}

// size counts queued records, leaving out shutdown signals.
func (q *workQueue) size() int {
	return max(0, len(q.items)-int(q.signals.Load()))
}
