package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/ava-labs/stream-producer/pkg/codec"
	"github.com/ava-labs/stream-producer/pkg/producer"
	"github.com/ava-labs/stream-producer/pkg/streamclient/kafka"
	"github.com/ava-labs/stream-producer/pkg/streamclient/kinesis"
)

const (
	backendKinesis = "kinesis"
	backendKafka   = "kafka"

	// defaultCodecTargetSize keeps a packed record under the 1 MiB Kinesis
	// limit with room left for the partition key.
	defaultCodecTargetSize = 1<<20 - 256
)

var codecNames = []string{codec.NameNone, codec.NameDelimited, codec.NameGzip}

// BackendConfig selects and configures the stream service
type BackendConfig struct {
	Verbose      bool
	Backend      string
	Stream       string
	PartitionKey string

	Kinesis kinesis.Config
	Kafka   kafka.Config
}

// RunConfig holds all configuration for the run command
type RunConfig struct {
	BackendConfig

	// Input settings
	Input           string
	Codec           string
	CodecTargetSize int

	// Producer settings
	Producer        producer.Config
	ShutdownTimeout time.Duration

	// Metrics settings
	MetricsHost   string
	MetricsPort   int
	Environment   string
	Region        string
	CloudProvider string
}

// MetricsAddr returns the formatted metrics address
func (c *RunConfig) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// PutConfig holds all configuration for the put command
type PutConfig struct {
	BackendConfig

	SendSize    int
	Concurrency int64
}

// buildBackendConfig reads the shared flags and loads the selected backend's
// settings from the environment
func buildBackendConfig(c *cli.Context) (BackendConfig, error) {
	cfg := BackendConfig{
		Verbose:      c.Bool("verbose"),
		Backend:      c.String("backend"),
		Stream:       c.String("stream"),
		PartitionKey: c.String("partition-key"),
	}

	if path := c.String("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return BackendConfig{}, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	var err error
	switch cfg.Backend {
	case backendKinesis:
		cfg.Kinesis, err = kinesis.LoadConfig()
	case backendKafka:
		cfg.Kafka, err = kafka.LoadConfig()
	default:
		return BackendConfig{}, fmt.Errorf("invalid backend %q: must be %s or %s", cfg.Backend, backendKinesis, backendKafka)
	}
	if err != nil {
		return BackendConfig{}, err
	}
	return cfg, nil
}

// buildRunConfig builds a RunConfig from CLI context flags
func buildRunConfig(c *cli.Context) (*RunConfig, error) {
	backend, err := buildBackendConfig(c)
	if err != nil {
		return nil, err
	}

	cfg := &RunConfig{
		BackendConfig:   backend,
		Input:           c.String("input"),
		Codec:           c.String("codec"),
		CodecTargetSize: c.Int("codec-target-size"),
		Producer: producer.Config{
			QueueSize:      c.Int("queue-size"),
			SendSize:       c.Int("send-size"),
			SendEvery:      c.Duration("send-every"),
			WorkerCount:    c.Int("worker-count"),
			Retries:        c.Int("retries"),
			RetryInterval:  c.Duration("retry-interval"),
			RestartWorkers: c.Bool("restart-workers"),
		},
		ShutdownTimeout: c.Duration("shutdown-timeout"),
		MetricsHost:     c.String("metrics-host"),
		MetricsPort:     c.Int("metrics-port"),
		Environment:     c.String("environment"),
		Region:          c.String("region"),
		CloudProvider:   c.String("cloud-provider"),
	}

	if !slices.Contains(codecNames, cfg.Codec) {
		return nil, fmt.Errorf("invalid codec %q: must be one of %v", cfg.Codec, codecNames)
	}
	if cfg.Codec != codec.NameNone && cfg.CodecTargetSize <= 0 {
		return nil, fmt.Errorf("codec target size must be greater than 0, got %d", cfg.CodecTargetSize)
	}
	if err := cfg.Producer.Validate(); err != nil {
		return nil, fmt.Errorf("invalid producer config: %w", err)
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("shutdown timeout must be greater than 0, got %s", cfg.ShutdownTimeout)
	}
	return cfg, nil
}

// buildPutConfig builds a PutConfig from CLI context flags
func buildPutConfig(c *cli.Context) (*PutConfig, error) {
	backend, err := buildBackendConfig(c)
	if err != nil {
		return nil, err
	}
	return &PutConfig{
		BackendConfig: backend,
		SendSize:      c.Int("send-size"),
		Concurrency:   c.Int64("concurrency"),
	}, nil
}
