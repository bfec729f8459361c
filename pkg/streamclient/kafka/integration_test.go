//go:build integration
// +build integration

package kafka

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/ava-labs/stream-producer/pkg/streamclient"
)

const (
	kafkaImage     = "confluentinc/cp-kafka:7.5.0"
	startupTimeout = 60 * time.Second
)

func setupKafka(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        kafkaImage,
		ExposedPorts: []string{"9093/tcp"},
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.PortBindings = map[nat.Port][]nat.PortBinding{
				"9093/tcp": {{HostIP: "127.0.0.1", HostPort: "9093"}},
			}
		},
		Env: map[string]string{
			"KAFKA_LISTENERS":                                "PLAINTEXT://0.0.0.0:9093,BROKER://0.0.0.0:9092,CONTROLLER://0.0.0.0:9094",
			"KAFKA_ADVERTISED_LISTENERS":                     "PLAINTEXT://localhost:9093,BROKER://localhost:9092",
			"KAFKA_LISTENER_SECURITY_PROTOCOL_MAP":           "CONTROLLER:PLAINTEXT,BROKER:PLAINTEXT,PLAINTEXT:PLAINTEXT",
			"KAFKA_INTER_BROKER_LISTENER_NAME":               "BROKER",
			"KAFKA_CONTROLLER_LISTENER_NAMES":                "CONTROLLER",
			"KAFKA_CONTROLLER_QUORUM_VOTERS":                 "1@localhost:9094",
			"KAFKA_PROCESS_ROLES":                            "broker,controller",
			"KAFKA_NODE_ID":                                  "1",
			"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR":         "1",
			"KAFKA_TRANSACTION_STATE_LOG_REPLICATION_FACTOR": "1",
			"KAFKA_TRANSACTION_STATE_LOG_MIN_ISR":            "1",
			"KAFKA_GROUP_INITIAL_REBALANCE_DELAY_MS":         "0",
			"KAFKA_AUTO_CREATE_TOPICS_ENABLE":                "false",
			"CLUSTER_ID":                                     "MkU3OEVBNTcwNTJENDM2Qk",
		},
		WaitingFor: wait.ForLog("Kafka Server started").WithStartupTimeout(startupTimeout),
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	// Give the broker time to settle before creating topics
	time.Sleep(5 * time.Second)
	return "localhost:9093"
}

func consumeAll(t *testing.T, brokers, topic string, n int) []*kafka.Message {
	t.Helper()
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"group.id":          "verify-" + topic,
		"auto.offset.reset": "earliest",
	})
	require.NoError(t, err)
	defer consumer.Close()
	require.NoError(t, consumer.SubscribeTopics([]string{topic}, nil))

	var msgs []*kafka.Message
	deadline := time.Now().Add(30 * time.Second)
	for len(msgs) < n && time.Now().Before(deadline) {
		msg, err := consumer.ReadMessage(time.Second)
		if err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestIntegration_PutRecordsAndPutRecord(t *testing.T) {
	brokers := setupKafka(t)
	log := zaptest.NewLogger(t).Sugar()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg := Config{
		BootstrapServers:  brokers,
		ClientID:          "integration",
		Acks:              "all",
		Linger:            time.Millisecond,
		MessageTimeout:    10 * time.Second,
		FlushTimeout:      5 * time.Second,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}
	const topic = "orders"
	require.NoError(t, EnsureTopic(ctx, cfg, cfg.TopicConfig(topic), log))
	// Second call sees the existing topic
	require.NoError(t, EnsureTopic(ctx, cfg, cfg.TopicConfig(topic), log))

	c, err := New(ctx, cfg, log)
	require.NoError(t, err)
	defer c.Close()

	entries := make([]streamclient.Entry, 20)
	for i := range entries {
		entries[i] = streamclient.Entry{PartitionKey: fmt.Sprintf("key-%d", i%4), Data: []byte(fmt.Sprintf("value-%d", i))}
	}
	resp, err := c.PutRecords(ctx, streamclient.NewPutRecordsRequest(topic, entries))
	require.NoError(t, err)
	assert.Zero(t, resp.FailedCount)
	require.Len(t, resp.Records, len(entries))
	for _, r := range resp.Records {
		assert.NotEmpty(t, r.ShardID)
		assert.NotEmpty(t, r.SequenceNumber)
	}

	ack, err := c.PutRecord(ctx, topic, streamclient.Entry{PartitionKey: "single", Data: []byte("one")})
	require.NoError(t, err)
	assert.Contains(t, ack.ShardID, "partition-")

	msgs := consumeAll(t, brokers, topic, len(entries)+1)
	require.Len(t, msgs, len(entries)+1)

	values := make(map[string]bool)
	for _, m := range msgs {
		values[string(m.Value)] = true
	}
	for _, e := range entries {
		assert.True(t, values[string(e.Data)], "missing %s", e.Data)
	}
	assert.True(t, values["one"])
}

func TestIntegration_UnknownTopicIsFlagged(t *testing.T) {
	brokers := setupKafka(t)
	log := zaptest.NewLogger(t).Sugar()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	c, err := New(ctx, Config{
		BootstrapServers: brokers,
		Acks:             "all",
		MessageTimeout:   3 * time.Second,
		FlushTimeout:     time.Second,
	}, log)
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.PutRecords(ctx, streamclient.NewPutRecordsRequest("does-not-exist", []streamclient.Entry{
		{PartitionKey: "k", Data: []byte("v")},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.FailedCount)
	assert.True(t, resp.Records[0].Failed())
}
