// Package codec packs many small records into fewer, larger stream records
// and unpacks them again on the consumer side.
package codec

import (
	"bytes"
	"errors"
	"fmt"
)

// Codec names accepted by New.
const (
	NameNone      = "none"
	NameDelimited = "delimited"
	NameGzip      = "gzip"
)

var (
	ErrEmptyDelimiter          = errors.New("delimiter must not be empty")
	ErrInvalidTargetSize       = errors.New("target size must be greater than 0")
	ErrRecordContainsDelimiter = errors.New("record contains the delimiter")
	ErrUnknownCodec            = errors.New("unknown codec")
)

// BatchCodec aggregates records into blobs. Write and Flush are stateful and
// not safe for concurrent use; Read is.
type BatchCodec interface {
	// Write adds record to the current blob. When record would push the
	// current blob past the target size, the current blob is completed and
	// returned first, and record starts the next one. It returns nil when no
	// blob is complete yet.
	Write(record []byte) ([]byte, error)

	// Flush completes and returns the current blob, or nil if it is empty.
	Flush() ([]byte, error)

	// Read splits a blob produced by this codec back into records.
	Read(blob []byte) ([][]byte, error)
}

// New returns the codec called name, or nil for NameNone.
func New(name string, targetSize int, delim []byte) (BatchCodec, error) {
	switch name {
	case NameNone, "":
		return nil, nil
	case NameDelimited:
		return NewDelimited(targetSize, delim)
	case NameGzip:
		return NewGzipDelimited(targetSize, delim)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

func validate(targetSize int, delim []byte) error {
	if targetSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTargetSize, targetSize)
	}
	if len(delim) == 0 {
		return ErrEmptyDelimiter
	}
	return nil
}

// split drops the empty tail left by the final delimiter.
func split(data, delim []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	parts := bytes.Split(data, delim)
	if len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	return parts
}
