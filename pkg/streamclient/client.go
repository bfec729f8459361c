package streamclient

import (
	"context"
	"errors"
	"fmt"
)

// MaxRecordsPerRequest is the service hard limit on entries in a single
// multi-record put.
const MaxRecordsPerRequest = 500

var (
	ErrEmptyStream        = errors.New("invalid request: stream must not be empty")
	ErrEmptyRequest       = errors.New("invalid request: must contain at least one record")
	ErrTooManyRecords     = fmt.Errorf("invalid request: more than %d records", MaxRecordsPerRequest)
	ErrMismatchedResponse = errors.New("response records do not match request records")
)

// Entry is a single record on the wire.
type Entry struct {
	PartitionKey string
	Data         []byte
}

// Ack acknowledges a successful single-record put.
type Ack struct {
	ShardID        string
	SequenceNumber string
}

// Result is the outcome of one entry of a multi-record put.
// A Result with an empty ErrorCode was accepted by the service.
type Result struct {
	ShardID        string
	SequenceNumber string
	ErrorCode      string
	ErrorMessage   string
}

// Failed reports whether the service rejected the entry.
func (r Result) Failed() bool {
	return r.ErrorCode != ""
}

// PutRecordsRequest is a multi-record put against a single stream.
type PutRecordsRequest struct {
	Stream  string
	Records []Entry
}

// NewPutRecordsRequest builds a request preserving the order of entries.
func NewPutRecordsRequest(stream string, entries []Entry) *PutRecordsRequest {
	return &PutRecordsRequest{
		Stream:  stream,
		Records: entries,
	}
}

// Validate checks the request against the service limits.
func (r *PutRecordsRequest) Validate() error {
	if r.Stream == "" {
		return ErrEmptyStream
	}
	if len(r.Records) == 0 {
		return ErrEmptyRequest
	}
	if len(r.Records) > MaxRecordsPerRequest {
		return fmt.Errorf("%w: got %d", ErrTooManyRecords, len(r.Records))
	}
	return nil
}

// PutRecordsResponse holds per-entry results aligned with the request.
type PutRecordsResponse struct {
	FailedCount int
	Records     []Result
}

// NewPutRecordsResponse builds a response and computes FailedCount.
func NewPutRecordsResponse(results []Result) *PutRecordsResponse {
	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	return &PutRecordsResponse{
		FailedCount: failed,
		Records:     results,
	}
}

// Client is the remote stream service.
type Client interface {
	// PutRecord synchronously writes a single record.
	PutRecord(ctx context.Context, stream string, entry Entry) (Ack, error)

	// PutRecords writes a batch of records. A nil error means the request
	// itself succeeded; individual entries may still have failed and are
	// flagged in the response.
	PutRecords(ctx context.Context, req *PutRecordsRequest) (*PutRecordsResponse, error)
}
