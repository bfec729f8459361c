package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/stream-producer/pkg/codec"
	"github.com/ava-labs/stream-producer/pkg/metrics"
	"github.com/ava-labs/stream-producer/pkg/producer"
	"github.com/ava-labs/stream-producer/pkg/utils"
)

// abandonGrace bounds the wait for workers after in-flight calls have been
// cancelled.
const abandonGrace = 5 * time.Second

func run(c *cli.Context) error {
	// Build configuration from CLI flags
	cfg, err := buildRunConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose, "stream", cfg.Stream, "backend", cfg.Backend)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"input", cfg.Input,
		"codec", cfg.Codec,
		"codecTargetSize", cfg.CodecTargetSize,
		"partitionKey", cfg.PartitionKey,
		"queueSize", cfg.Producer.QueueSize,
		"sendSize", cfg.Producer.SendSize,
		"sendEvery", cfg.Producer.SendEvery,
		"workerCount", cfg.Producer.WorkerCount,
		"retries", cfg.Producer.Retries,
		"retryInterval", cfg.Producer.RetryInterval,
		"restartWorkers", cfg.Producer.RestartWorkers,
		"shutdownTimeout", cfg.ShutdownTimeout,
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"environment", cfg.Environment,
		"region", cfg.Region,
		"cloudProvider", cfg.CloudProvider,
	)

	bc, err := codec.New(cfg.Codec, cfg.CodecTargetSize, recordDelimiter)
	if err != nil {
		return fmt.Errorf("failed to create codec: %w", err)
	}

	input, err := openInput(cfg.Input)
	if err != nil {
		return err
	}
	defer input.Close()

	// Initialize Prometheus metrics with labels for multi-instance filtering
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{
		Stream:        cfg.Stream,
		Environment:   cfg.Environment,
		Region:        cfg.Region,
		CloudProvider: cfg.CloudProvider,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	// Remote calls run on their own context so queued records can still be
	// delivered after a signal arrives.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	b, err := newBackend(workCtx, cfg.BackendConfig, sugar)
	if err != nil {
		return err
	}
	defer b.close()

	undelivered := &failureCounter{}
	p, err := producer.New(workCtx, sugar, cfg.Stream, b.client, cfg.Producer,
		producer.WithFailureHandler(producer.MultiFailureHandler{
			producer.NewLogFailureHandler(sugar),
			undelivered,
		}),
		producer.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	// Start metrics server
	metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry, func() bool { return !p.IsShutdown() })
	metricsErrCh := metricsServer.Start()
	sugar.Infof("metrics server listening on http://%s/metrics", metricsServer.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	inputDone := make(chan struct{})
	g.Go(func() error {
		defer close(inputDone)
		lines, errc := readLines(gctx, input)
		return newPipeline(p.Put, bc, keyFunc(cfg.PartitionKey), sugar).run(gctx, lines, errc)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-inputDone:
			return nil
		case err := <-metricsErrCh:
			if err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		}
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-inputDone:
			return nil
		case err, ok := <-b.errs:
			if !ok {
				return nil
			}
			return err
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		sugar.Infow("exiting due to context cancellation")
		err = nil
	} else if err != nil {
		sugar.Errorw("run failed", "error", err)
	}

	if !p.Shutdown(true, cfg.ShutdownTimeout) {
		sugar.Warnw("producer did not drain before the shutdown timeout, abandoning queued records",
			"timeout", cfg.ShutdownTimeout,
			"queued", p.QueueSize(),
		)
		cancelWork()
		if !p.Await(abandonGrace) {
			sugar.Errorw("producer workers still running after cancellation")
		}
	}

	// Gracefully shutdown metrics server
	sugar.Info("shutting down metrics server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
		sugar.Warnw("metrics server shutdown error", "error", shutdownErr)
	}

	if n := undelivered.records.Load(); n > 0 {
		sugar.Warnw("records were not delivered",
			"records", n,
			"failedRequests", undelivered.requests.Load(),
		)
		if err == nil {
			err = fmt.Errorf("%d records were not delivered", n)
		}
	}

	sugar.Info("shutdown complete")
	return err
}

// openInput opens path for reading, or stdin for "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" || path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}
