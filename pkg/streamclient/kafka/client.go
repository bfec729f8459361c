package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/ava-labs/stream-producer/pkg/streamclient"
)

const (
	opPutRecord  = "PutRecord"
	opPutRecords = "PutRecords"

	queueFullRetryDelay = 100 * time.Millisecond
)

var errNoDeliveryReport = errors.New("no delivery report received")

// Client writes stream records to the Kafka topic named after the stream.
// It is safe for concurrent use.
//
// Background goroutines process producer events and logs. Close MUST be
// called to stop them and flush in-flight messages.
type Client struct {
	producer     *kafka.Producer
	log          *zap.SugaredLogger
	flushTimeout time.Duration

	errCh      chan error
	eventsDone chan struct{}
	logsDone   chan struct{}
	closedCh   chan struct{}
	once       sync.Once
}

var _ streamclient.Client = (*Client)(nil)

// New creates a Kafka-backed stream client. ctx controls the lifetime of the
// background goroutines.
func New(ctx context.Context, cfg Config, log *zap.SugaredLogger) (*Client, error) {
	return newClient(ctx, cfg.ConfigMap(), cfg.FlushTimeout, log)
}

func newClient(ctx context.Context, conf *kafka.ConfigMap, flushTimeout time.Duration, log *zap.SugaredLogger) (*Client, error) {
	p, err := kafka.NewProducer(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logsEnabled, err := conf.Get("go.logs.channel.enable", false)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to get go.logs.channel.enable: %w", err)
	}
	if flushTimeout <= 0 {
		flushTimeout = DefaultFlushTimeout
	}

	c := &Client{
		producer:     p,
		log:          log,
		flushTimeout: flushTimeout,
		errCh:        make(chan error, 1),
		eventsDone:   make(chan struct{}),
		logsDone:     make(chan struct{}),
		closedCh:     make(chan struct{}),
	}

	if enabled, _ := logsEnabled.(bool); enabled {
		go c.forwardLogs(ctx)
	} else {
		close(c.logsDone)
	}
	go c.monitorEvents(ctx)

	return c, nil
}

// PutRecord produces one message and waits for its delivery report. The ack
// carries the partition as the shard and the offset as the sequence number.
func (c *Client) PutRecord(ctx context.Context, stream string, entry streamclient.Entry) (streamclient.Ack, error) {
	deliveryCh := make(chan kafka.Event, 1)
	msg := newMessage(stream, entry, nil)

	if err := c.produce(ctx, msg, deliveryCh); err != nil {
		return streamclient.Ack{}, classify(opPutRecord, err)
	}

	select {
	case <-ctx.Done():
		return streamclient.Ack{}, streamclient.NewError(opPutRecord, ctx.Err(), false)
	case ev := <-deliveryCh:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return streamclient.Ack{}, streamclient.NewError(opPutRecord, fmt.Errorf("unexpected delivery event: %T", ev), false)
		}
		if err := m.TopicPartition.Error; err != nil {
			return streamclient.Ack{}, classify(opPutRecord, fmt.Errorf("delivery failed: %w", err))
		}
		return ackOf(m), nil
	}
}

// PutRecords produces every entry and waits for all delivery reports.
// Entries that could not be enqueued or delivered are flagged in the response
// with a code derived from the Kafka error.
func (c *Client) PutRecords(ctx context.Context, req *streamclient.PutRecordsRequest) (*streamclient.PutRecordsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, streamclient.NewError(opPutRecords, err, false)
	}

	results := make([]streamclient.Result, len(req.Records))
	deliveryCh := make(chan kafka.Event, len(req.Records))
	pending := 0

	for i, entry := range req.Records {
		err := c.produce(ctx, newMessage(req.Stream, entry, i), deliveryCh)
		switch {
		case err == nil:
			// Stays failed unless its delivery report arrives.
			results[i] = failedResult(errNoDeliveryReport)
			pending++
		case ctx.Err() != nil:
			return nil, streamclient.NewError(opPutRecords, ctx.Err(), false)
		default:
			results[i] = failedResult(err)
		}
	}

	if err := awaitReports(ctx, c.log, deliveryCh, results, pending); err != nil {
		return nil, streamclient.NewError(opPutRecords, err, false)
	}
	return streamclient.NewPutRecordsResponse(results), nil
}

// awaitReports consumes pending delivery reports and records each outcome in
// the result of the entry named by the message's Opaque index. A report that
// cannot be matched to an entry is logged and leaves that entry failed.
func awaitReports(
	ctx context.Context,
	log *zap.SugaredLogger,
	deliveryCh <-chan kafka.Event,
	results []streamclient.Result,
	pending int,
) error {
	for ; pending > 0; pending-- {
		var ev kafka.Event
		select {
		case <-ctx.Done():
			// Reports still outstanding go to deliveryCh, which is buffered
			// for every entry and never closed.
			return ctx.Err()
		case ev = <-deliveryCh:
		}

		m, ok := ev.(*kafka.Message)
		if !ok {
			log.Warnw("unexpected delivery event", "type", fmt.Sprintf("%T", ev))
			continue
		}
		i, ok := m.Opaque.(int)
		if !ok || i < 0 || i >= len(results) {
			log.Warnw("delivery report without entry index", "opaque", m.Opaque)
			continue
		}
		if err := m.TopicPartition.Error; err != nil {
			results[i] = failedResult(err)
			continue
		}
		ack := ackOf(m)
		results[i] = streamclient.Result{ShardID: ack.ShardID, SequenceNumber: ack.SequenceNumber}
	}
	return nil
}

// Close stops background goroutines and flushes pending messages for up to
// the configured flush timeout; messages still pending after that are lost.
// Calling Close more than once does nothing.
func (c *Client) Close() {
	c.once.Do(func() {
		c.log.Info("closing kafka client")
		defer close(c.errCh)

		close(c.closedCh)
		<-c.eventsDone
		<-c.logsDone

		if pending := c.producer.Flush(int(c.flushTimeout.Milliseconds())); pending > 0 {
			c.log.Warnw("flush incomplete, messages will be lost", "pending", pending)
		}
		c.producer.Close()
		c.log.Info("kafka client closed")
	})
}

// Errors returns a channel that receives at most one fatal error. It is
// closed by Close. After an error the client is unusable.
func (c *Client) Errors() <-chan error {
	return c.errCh
}

// produce enqueues msg, waiting while the local queue is full.
func (c *Client) produce(ctx context.Context, msg *kafka.Message, deliveryCh chan kafka.Event) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.producer.Produce(msg, deliveryCh)
		var kafkaErr kafka.Error
		if err == nil || !errors.As(err, &kafkaErr) || kafkaErr.Code() != kafka.ErrQueueFull {
			return err
		}

		c.log.Debugw("producer queue full, retrying", "delay", queueFullRetryDelay)
		t := time.NewTimer(queueFullRetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) forwardLogs(ctx context.Context) {
	defer close(c.logsDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closedCh:
			return
		case l, ok := <-c.producer.Logs():
			if !ok {
				return
			}
			c.log.Debugw("librdkafka", "level", l.Level, "tag", l.Tag, "message", l.Message)
		}
	}
}

func (c *Client) monitorEvents(ctx context.Context) {
	defer close(c.eventsDone)
	for {
		select {
		case <-ctx.Done():
			c.log.Info("stopping kafka event monitoring, context done")
			return
		case <-c.closedCh:
			return
		case ev, ok := <-c.producer.Events():
			if !ok {
				c.reportFatal(errors.New("kafka producer event channel closed"))
				return
			}

			switch e := ev.(type) {
			case kafka.Error:
				if e.IsFatal() || e.Code() == kafka.ErrAllBrokersDown {
					c.reportFatal(fmt.Errorf("fatal kafka error %#x: %w", int(e.Code()), e))
					return
				}
				c.log.Warnw("kafka error", "code", e.Code(), "error", e)
			case kafka.Stats:
				c.log.Debugw("kafka stats", "stats", e.String())
			case *kafka.Message:
				c.log.Warnw("delivery report on the shared event channel", "topicPartition", e.TopicPartition)
			default:
				c.log.Debugw("ignoring kafka event", "event", e)
			}
		}
	}
}

func (c *Client) reportFatal(err error) {
	select {
	case c.errCh <- err:
	default:
		c.log.Warnw("error channel full, dropping error", "error", err)
	}
}

func newMessage(topic string, entry streamclient.Entry, opaque interface{}) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:    []byte(entry.PartitionKey),
		Value:  entry.Data,
		Opaque: opaque,
	}
}

func ackOf(m *kafka.Message) streamclient.Ack {
	return streamclient.Ack{
		ShardID:        "partition-" + strconv.Itoa(int(m.TopicPartition.Partition)),
		SequenceNumber: strconv.FormatInt(int64(m.TopicPartition.Offset), 10),
	}
}
