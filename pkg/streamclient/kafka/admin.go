package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

const metadataTimeout = 10 * time.Second

// TopicConfig describes the topic backing a stream.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

func (tc TopicConfig) Validate() error {
	if tc.Name == "" {
		return errors.New("topic name cannot be empty")
	}
	if tc.NumPartitions <= 0 {
		return fmt.Errorf("number of partitions must be > 0, got %d", tc.NumPartitions)
	}
	if tc.ReplicationFactor <= 0 {
		return fmt.Errorf("replication factor must be > 0, got %d", tc.ReplicationFactor)
	}
	return nil
}

// EnsureTopic creates the topic if it does not exist. An existing topic is
// left as is; a partition count below the configured one is only logged since
// growing it would remap partition keys.
func EnsureTopic(ctx context.Context, cfg Config, topic TopicConfig, log *zap.SugaredLogger) error {
	if err := topic.Validate(); err != nil {
		return fmt.Errorf("invalid topic config: %w", err)
	}

	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": cfg.BootstrapServers})
	if err != nil {
		return fmt.Errorf("failed to create kafka admin client: %w", err)
	}
	defer admin.Close()

	metadata, err := admin.GetMetadata(&topic.Name, false, int(metadataTimeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to get metadata for topic %q: %w", topic.Name, err)
	}

	existing, ok := metadata.Topics[topic.Name]
	if ok && existing.Error.Code() == kafka.ErrNoError {
		if len(existing.Partitions) != topic.NumPartitions {
			log.Warnw("topic partition count differs from config",
				"topic", topic.Name,
				"current", len(existing.Partitions),
				"configured", topic.NumPartitions,
			)
		}
		return nil
	}
	if ok && existing.Error.Code() != kafka.ErrUnknownTopicOrPart {
		return fmt.Errorf("topic %q has error: %w", topic.Name, existing.Error)
	}

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             topic.Name,
		NumPartitions:     topic.NumPartitions,
		ReplicationFactor: topic.ReplicationFactor,
	}})
	if err != nil {
		return fmt.Errorf("failed to create topic %q: %w", topic.Name, err)
	}
	for _, r := range results {
		switch r.Error.Code() {
		case kafka.ErrNoError:
			log.Infow("created topic",
				"topic", r.Topic,
				"partitions", topic.NumPartitions,
				"replicationFactor", topic.ReplicationFactor,
			)
		case kafka.ErrTopicAlreadyExists:
			log.Infow("topic already exists", "topic", r.Topic)
		default:
			return fmt.Errorf("failed to create topic %q: %w", r.Topic, r.Error)
		}
	}
	return nil
}
