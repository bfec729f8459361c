package kafka

import (
	"errors"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/ava-labs/stream-producer/pkg/streamclient"
)

// errCodeUnknown flags an entry that failed with an error that is not a
// kafka.Error.
const errCodeUnknown = "KafkaUnknownError"

func classify(op string, err error) error {
	return streamclient.NewError(op, err, isTransient(err))
}

// isTransient reports whether a Kafka error is worth retrying: librdkafka
// marks it retriable, or it is a timeout, a broker or leader being
// unavailable, or an ISR shortfall.
func isTransient(err error) bool {
	var ke kafka.Error
	if !errors.As(err, &ke) {
		return false
	}
	if ke.IsFatal() {
		return false
	}
	if ke.IsRetriable() {
		return true
	}

	switch ke.Code() {
	case kafka.ErrQueueFull,
		kafka.ErrMsgTimedOut,
		kafka.ErrTimedOut,
		kafka.ErrRequestTimedOut,
		kafka.ErrTransport,
		kafka.ErrAllBrokersDown,
		kafka.ErrBrokerNotAvailable,
		kafka.ErrLeaderNotAvailable,
		kafka.ErrNotLeaderForPartition,
		kafka.ErrNotEnoughReplicas,
		kafka.ErrNotEnoughReplicasAfterAppend,
		kafka.ErrNetworkException:
		return true
	default:
		return false
	}
}

// failedResult maps a per-message failure onto the stream's error codes so
// the producer classifies it: a full local queue is throttling, other
// transient errors are internal failures, anything else keeps the Kafka
// error description as its code.
func failedResult(err error) streamclient.Result {
	var ke kafka.Error
	if !errors.As(err, &ke) {
		return streamclient.Result{ErrorCode: errCodeUnknown, ErrorMessage: err.Error()}
	}

	code := ke.Code().String()
	switch {
	case ke.Code() == kafka.ErrQueueFull:
		code = streamclient.ErrCodeThroughputExceeded
	case isTransient(ke):
		code = streamclient.ErrCodeInternalFailure
	case code == "":
		code = errCodeUnknown
	}
	return streamclient.Result{ErrorCode: code, ErrorMessage: ke.Error()}
}
