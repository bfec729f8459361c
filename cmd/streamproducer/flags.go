package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/stream-producer/pkg/codec"
	"github.com/ava-labs/stream-producer/pkg/producer"
)

// commonFlags are shared by every command
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
			Value:   false,
		},
		&cli.StringFlag{
			Name:     "stream",
			Aliases:  []string{"s"},
			Usage:    "The stream (or Kafka topic) to write to",
			EnvVars:  []string{"STREAM_NAME"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "The stream service to write to (kinesis or kafka). Connection settings come from KINESIS_* or KAFKA_* variables",
			EnvVars: []string{"STREAM_BACKEND"},
			Value:   backendKinesis,
		},
		&cli.StringFlag{
			Name:    "env-file",
			Usage:   "A .env file to load before reading KINESIS_* or KAFKA_* settings. Variables already set take precedence",
			EnvVars: []string{"ENV_FILE"},
		},
		&cli.StringFlag{
			Name:    "partition-key",
			Aliases: []string{"k"},
			Usage:   "The partition key for every record. If not specified, a hash of the record data is used",
			EnvVars: []string{"PARTITION_KEY"},
		},
	}
}

// runFlags returns all CLI flags for the run command
func runFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "The file to read records from, one per line. Use - for stdin",
			EnvVars: []string{"INPUT"},
			Value:   "-",
		},
		&cli.StringFlag{
			Name:    "codec",
			Usage:   "Pack several lines into each record (none, delimited or gzip)",
			EnvVars: []string{"CODEC"},
			Value:   codec.NameNone,
		},
		&cli.IntFlag{
			Name:    "codec-target-size",
			Usage:   "The maximum size in bytes of a packed record",
			EnvVars: []string{"CODEC_TARGET_SIZE"},
			Value:   defaultCodecTargetSize,
		},
		&cli.IntFlag{
			Name:    "queue-size",
			Aliases: []string{"q"},
			Usage:   "The capacity of the producer work queue",
			EnvVars: []string{"PRODUCER_QUEUE_SIZE"},
			Value:   producer.DefaultQueueSize,
		},
		&cli.IntFlag{
			Name:    "send-size",
			Usage:   "The maximum number of records per request",
			EnvVars: []string{"PRODUCER_SEND_SIZE"},
			Value:   producer.DefaultSendSize,
		},
		&cli.DurationFlag{
			Name:    "send-every",
			Usage:   "The longest a partial batch waits before it is sent",
			EnvVars: []string{"PRODUCER_SEND_EVERY"},
			Value:   producer.DefaultSendEvery,
		},
		&cli.IntFlag{
			Name:    "worker-count",
			Aliases: []string{"w"},
			Usage:   "The number of producer workers",
			EnvVars: []string{"PRODUCER_WORKER_COUNT"},
			Value:   producer.DefaultWorkerCount,
		},
		&cli.IntFlag{
			Name:    "retries",
			Aliases: []string{"r"},
			Usage:   "The retry budget of each batch",
			EnvVars: []string{"PRODUCER_RETRIES"},
			Value:   producer.DefaultRetries,
		},
		&cli.DurationFlag{
			Name:    "retry-interval",
			Usage:   "The pause before each retry",
			EnvVars: []string{"PRODUCER_RETRY_INTERVAL"},
			Value:   producer.DefaultRetryInterval,
		},
		&cli.BoolFlag{
			Name:    "restart-workers",
			Usage:   "Restart a worker after it panics instead of running with one fewer",
			EnvVars: []string{"PRODUCER_RESTART_WORKERS"},
		},
		&cli.DurationFlag{
			Name:    "shutdown-timeout",
			Aliases: []string{"t"},
			Usage:   "How long to wait for queued records to be delivered on exit",
			EnvVars: []string{"SHUTDOWN_TIMEOUT"},
			Value:   30 * time.Second,
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Aliases: []string{"m"},
			Usage:   "Port for Prometheus metrics server",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "environment",
			Aliases: []string{"E"},
			Usage:   "Deployment environment for metrics labels (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
			Value:   "",
		},
		&cli.StringFlag{
			Name:    "region",
			Aliases: []string{"R"},
			Usage:   "Cloud region for metrics labels (e.g., 'us-east-1')",
			EnvVars: []string{"REGION"},
			Value:   "",
		},
		&cli.StringFlag{
			Name:    "cloud-provider",
			Aliases: []string{"P"},
			Usage:   "Cloud provider for metrics labels (e.g., 'aws', 'oci', 'gcp')",
			EnvVars: []string{"CLOUD_PROVIDER"},
			Value:   "",
		},
	)
}

// putFlags returns all CLI flags for the put command
func putFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.IntFlag{
			Name:    "send-size",
			Usage:   "The maximum number of records per request",
			EnvVars: []string{"PRODUCER_SEND_SIZE"},
			Value:   producer.DefaultSendSize,
		},
		&cli.Int64Flag{
			Name:    "concurrency",
			Aliases: []string{"c"},
			Usage:   "The maximum number of requests in flight",
			EnvVars: []string{"CONCURRENCY"},
			Value:   4,
		},
	)
}
