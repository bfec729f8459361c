package producer

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ava-labs/stream-producer/pkg/streamclient"
)

// Default producer settings
const (
	DefaultQueueSize     = 1000
	DefaultSendSize      = streamclient.MaxRecordsPerRequest
	DefaultSendEvery     = time.Second
	DefaultWorkerCount   = 3
	DefaultRetries       = 5
	DefaultRetryInterval = time.Second
)

// Config holds the tunables of an asynchronous Producer.
type Config struct {
	QueueSize      int           `env:"PRODUCER_QUEUE_SIZE"      envDefault:"1000"`  // Capacity of the shared work queue
	SendSize       int           `env:"PRODUCER_SEND_SIZE"       envDefault:"500"`   // Max records per outbound batch
	SendEvery      time.Duration `env:"PRODUCER_SEND_EVERY"      envDefault:"1s"`    // Max time a non-empty buffer may sit unflushed
	WorkerCount    int           `env:"PRODUCER_WORKER_COUNT"    envDefault:"3"`     // Number of worker goroutines
	Retries        int           `env:"PRODUCER_RETRIES"         envDefault:"5"`     // Retry budget per flush
	RetryInterval  time.Duration `env:"PRODUCER_RETRY_INTERVAL"  envDefault:"1s"`    // Sleep between retries
	RestartWorkers bool          `env:"PRODUCER_RESTART_WORKERS" envDefault:"false"` // Restart a worker whose loop panicked
}

// DefaultConfig returns a Config with the default settings.
func DefaultConfig() Config {
	return Config{
		QueueSize:     DefaultQueueSize,
		SendSize:      DefaultSendSize,
		SendEvery:     DefaultSendEvery,
		WorkerCount:   DefaultWorkerCount,
		Retries:       DefaultRetries,
		RetryInterval: DefaultRetryInterval,
	}
}

// LoadConfig loads producer configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse producer config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: got %d", ErrInvalidQueueSize, c.QueueSize)
	case c.SendSize <= 0 || c.SendSize > streamclient.MaxRecordsPerRequest:
		return fmt.Errorf("%w: got %d, limit %d", ErrInvalidSendSize, c.SendSize, streamclient.MaxRecordsPerRequest)
	case c.SendEvery <= 0:
		return fmt.Errorf("%w: got %s", ErrInvalidSendEvery, c.SendEvery)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, c.WorkerCount)
	case c.Retries < 0:
		return fmt.Errorf("%w: got %d", ErrInvalidRetries, c.Retries)
	case c.RetryInterval <= 0:
		return fmt.Errorf("%w: got %s", ErrInvalidRetryInterval, c.RetryInterval)
	}
	return nil
}
