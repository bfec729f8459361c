package producer

import "errors"

var (
	ErrInvalidLogger        = errors.New("invalid logger: must not be nil")
	ErrInvalidStream        = errors.New("invalid stream: must not be empty")
	ErrInvalidClient        = errors.New("invalid client: must not be nil")
	ErrInvalidQueueSize     = errors.New("invalid queue size: must be greater than 0")
	ErrInvalidSendSize      = errors.New("invalid send size: must be between 1 and the service limit")
	ErrInvalidSendEvery     = errors.New("invalid send interval: must be greater than 0")
	ErrInvalidWorkerCount   = errors.New("invalid worker count: must be greater than 0")
	ErrInvalidRetries       = errors.New("invalid retries: must not be negative")
	ErrInvalidRetryInterval = errors.New("invalid retry interval: must be greater than 0")
	ErrInvalidConcurrency   = errors.New("invalid concurrency: must be greater than 0")

	// ErrWorkerPanic is reported to the failure handler, together with the
	// records a worker still held, when a worker loop dies with a panic.
	ErrWorkerPanic = errors.New("producer worker panicked")
)
