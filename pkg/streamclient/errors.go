package streamclient

import (
	"context"
	"errors"
	"fmt"
)

// Service-defined per-entry error codes that indicate a transient condition.
const (
	ErrCodeThroughputExceeded = "ProvisionedThroughputExceededException"
	ErrCodeInternalFailure    = "InternalFailure"
)

// IsRetryableCode reports whether an entry rejected with code may be resent.
func IsRetryableCode(code string) bool {
	switch code {
	case ErrCodeThroughputExceeded, ErrCodeInternalFailure:
		return true
	default:
		return false
	}
}

// Error is a request-level failure returned by a Client. Retryable tells the
// producer whether the same request may be sent again.
type Error struct {
	Op        string
	Err       error
	Retryable bool
}

// NewError wraps err for operation op.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Op, kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable classifies a request-level error. Only errors wrapping an
// *Error marked retryable are retried; context cancellation never is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
