package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/stream-producer/pkg/streamclient"
	"github.com/ava-labs/stream-producer/pkg/streamclient/kafka"
	"github.com/ava-labs/stream-producer/pkg/streamclient/kinesis"
)

// backend is a connected stream client together with what its owner has to
// watch and release.
type backend struct {
	client streamclient.Client
	errs   <-chan error // fatal client errors, nil when the client has none
	close  func()
}

func newBackend(ctx context.Context, cfg BackendConfig, log *zap.SugaredLogger) (*backend, error) {
	switch cfg.Backend {
	case backendKinesis:
		c, err := kinesis.NewFromConfig(ctx, cfg.Kinesis, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create kinesis client: %w", err)
		}
		return &backend{client: c, close: func() {}}, nil

	case backendKafka:
		if cfg.Kafka.CreateTopic {
			if err := kafka.EnsureTopic(ctx, cfg.Kafka, cfg.Kafka.TopicConfig(cfg.Stream), log); err != nil {
				return nil, fmt.Errorf("failed to ensure kafka topic exists: %w", err)
			}
		}
		c, err := kafka.New(ctx, cfg.Kafka, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka client: %w", err)
		}
		return &backend{client: c, errs: c.Errors(), close: c.Close}, nil

	default:
		return nil, fmt.Errorf("invalid backend %q", cfg.Backend)
	}
}
