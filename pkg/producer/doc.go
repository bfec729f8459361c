// Package producer batches (partition key, payload) records and delivers them
// to a remote stream through a streamclient.Client.
//
// Producer is the asynchronous, thread-safe entry point. Callers Put records
// into a bounded work queue; a fixed pool of workers drains the queue, each
// into its own buffer, and flushes a buffer when it reaches SendSize, when
// no record arrived within SendEvery, or on shutdown. Flushes retry transient
// failures and report everything that could not be delivered to a
// FailureHandler. Put blocks while the queue is full.
//
// Shutdown is cooperative: it stops admission and enqueues one shutdown
// signal per worker behind any queued records, so every record accepted
// before Shutdown is flushed before the workers exit.
//
// SyncProducer is the synchronous counterpart for callers that want to wait
// on each request.
package producer
