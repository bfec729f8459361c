package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/stream-producer/pkg/producer"
	"github.com/ava-labs/stream-producer/pkg/utils"
)

func put(c *cli.Context) error {
	cfg, err := buildPutConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}
	if c.NArg() == 0 {
		return errors.New("at least one record is required")
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose, "stream", cfg.Stream, "backend", cfg.Backend)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := newBackend(ctx, cfg.BackendConfig, sugar)
	if err != nil {
		return err
	}
	defer b.close()

	sp, err := producer.NewSyncProducer(sugar, cfg.Stream, b.client, cfg.SendSize, cfg.Concurrency)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	records := recordsFromArgs(c.Args().Slice(), keyFunc(cfg.PartitionKey))
	failed, err := sp.PutAll(ctx, records)
	for _, f := range failed {
		sugar.Warnw("record rejected",
			"partitionKey", f.Key,
			"errorCode", f.ErrorCode,
			"errorMessage", f.ErrorMessage,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to put records: %w", err)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d records rejected", len(failed), len(records))
	}

	sugar.Infow("records delivered", "records", len(records))
	return nil
}

func recordsFromArgs(args []string, key func([]byte) string) []producer.Record {
	records := make([]producer.Record, len(args))
	for i, arg := range args {
		data := []byte(arg)
		records[i] = producer.Record{Key: key(data), Data: data}
	}
	return records
}
