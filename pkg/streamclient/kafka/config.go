package kafka

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// DefaultFlushTimeout bounds how long Close waits for in-flight messages.
const DefaultFlushTimeout = 15 * time.Second

// Config holds the settings of the Kafka backend. Each stream maps to a topic
// of the same name.
type Config struct {
	BootstrapServers  string        `env:"KAFKA_BOOTSTRAP_SERVERS"    envDefault:"localhost:9092"`  // Kafka broker addresses
	ClientID          string        `env:"KAFKA_CLIENT_ID"            envDefault:"stream-producer"` // Client id reported to the brokers
	Acks              string        `env:"KAFKA_ACKS"                 envDefault:"all"`             // Required acknowledgements: "0", "1" or "all"
	Linger            time.Duration `env:"KAFKA_LINGER"               envDefault:"5ms"`             // librdkafka batching delay
	MessageTimeout    time.Duration `env:"KAFKA_MESSAGE_TIMEOUT"      envDefault:"30s"`             // Local delivery timeout per message
	FlushTimeout      time.Duration `env:"KAFKA_FLUSH_TIMEOUT"        envDefault:"15s"`             // Max time Close waits for in-flight messages
	EnableLogs        bool          `env:"KAFKA_ENABLE_LOGS"          envDefault:"false"`           // Forward librdkafka logs to the logger
	CreateTopic       bool          `env:"KAFKA_CREATE_TOPIC"         envDefault:"false"`           // Create the topic on startup if missing
	NumPartitions     int           `env:"KAFKA_NUM_PARTITIONS"       envDefault:"1"`               // Partitions for a created topic
	ReplicationFactor int           `env:"KAFKA_REPLICATION_FACTOR"   envDefault:"1"`               // Replication factor for a created topic
}

// LoadConfig loads Kafka configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse kafka config: %w", err)
	}
	return cfg, nil
}

// ConfigMap converts the config to librdkafka producer settings.
func (c Config) ConfigMap() *kafka.ConfigMap {
	cm := &kafka.ConfigMap{
		"bootstrap.servers":      c.BootstrapServers,
		"client.id":              c.ClientID,
		"acks":                   c.Acks,
		"linger.ms":              int(c.Linger.Milliseconds()),
		"go.logs.channel.enable": c.EnableLogs,
	}
	if c.MessageTimeout > 0 {
		_ = cm.SetKey("message.timeout.ms", int(c.MessageTimeout.Milliseconds()))
	}
	return cm
}

// TopicConfig returns the settings used to create topic.
func (c Config) TopicConfig(topic string) TopicConfig {
	return TopicConfig{
		Name:              topic,
		NumPartitions:     c.NumPartitions,
		ReplicationFactor: c.ReplicationFactor,
	}
}
