package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/ava-labs/stream-producer/pkg/codec"
	"github.com/ava-labs/stream-producer/pkg/producer"
)

// maxLineSize matches the largest record Kinesis accepts.
const maxLineSize = 1 << 20

var (
	recordDelimiter = []byte("\n")

	errProducerStopped = errors.New("producer is no longer accepting records")
)

// keyFunc returns fixed for every record when it is set, and otherwise a hex
// xxhash of the record data so identical payloads land on the same shard.
func keyFunc(fixed string) func(data []byte) string {
	if fixed != "" {
		return func([]byte) string { return fixed }
	}
	return func(data []byte) string {
		return strconv.FormatUint(xxhash.Sum64(data), 16)
	}
}

// readLines scans r on its own goroutine so a blocked read never holds up
// shutdown. Exactly one value is sent on the error channel before the line
// channel is closed.
func readLines(ctx context.Context, r io.Reader) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)

		s := bufio.NewScanner(r)
		s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for s.Scan() {
			select {
			case lines <- bytes.Clone(s.Bytes()):
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		errc <- s.Err()
	}()
	return lines, errc
}

// pipeline feeds input lines to a producer, optionally packing them with a
// batch codec first.
type pipeline struct {
	put   func(key string, data []byte) bool
	codec codec.BatchCodec // nil sends every line as its own record
	key   func(data []byte) string
	log   *zap.SugaredLogger

	lines   int
	records int
}

func newPipeline(
	put func(key string, data []byte) bool,
	bc codec.BatchCodec,
	key func(data []byte) string,
	log *zap.SugaredLogger,
) *pipeline {
	return &pipeline{put: put, codec: bc, key: key, log: log}
}

// run consumes lines until the channel closes or ctx is done, then flushes
// the codec. It returns the read error, if any, or ctx.Err() when stopped
// early.
func (pl *pipeline) run(ctx context.Context, lines <-chan []byte, errc <-chan error) error {
	defer func() {
		pl.log.Infow("input pipeline stopped", "lines", pl.lines, "records", pl.records)
	}()

	for {
		select {
		case <-ctx.Done():
			if err := pl.flush(); err != nil {
				return err
			}
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := pl.flush(); err != nil {
					return err
				}
				if err := <-errc; err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				return nil
			}
			if err := pl.write(line); err != nil {
				return err
			}
		}
	}
}

func (pl *pipeline) write(line []byte) error {
	if len(line) == 0 {
		return nil
	}
	pl.lines++

	if pl.codec == nil {
		return pl.send(line)
	}
	blob, err := pl.codec.Write(line)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if blob != nil {
		return pl.send(blob)
	}
	return nil
}

func (pl *pipeline) flush() error {
	if pl.codec == nil {
		return nil
	}
	blob, err := pl.codec.Flush()
	if err != nil {
		return fmt.Errorf("failed to flush codec: %w", err)
	}
	if blob != nil {
		return pl.send(blob)
	}
	return nil
}

func (pl *pipeline) send(data []byte) error {
	if !pl.put(pl.key(data), data) {
		return errProducerStopped
	}
	pl.records++
	return nil
}

// failureCounter tallies records that were given up on.
type failureCounter struct {
	records  atomic.Int64
	requests atomic.Int64
}

var _ producer.FailureHandler = (*failureCounter)(nil)

func (c *failureCounter) OnRecordFailure(failed []producer.FailedRecord) {
	c.records.Add(int64(len(failed)))
}

func (c *failureCounter) OnRequestRetry(error, []producer.Record) {}

func (c *failureCounter) OnRequestFailure(_ error, records []producer.Record) {
	c.requests.Add(1)
	c.records.Add(int64(len(records)))
}
