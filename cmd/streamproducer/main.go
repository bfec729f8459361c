package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "streamproducer",
		Usage: "Write records to a Kinesis stream or Kafka topic",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Stream newline-delimited records from a file or stdin through the batching producer",
				Flags:  runFlags(),
				Action: run,
			},
			{
				Name:      "put",
				Usage:     "Synchronously write each argument as one record",
				ArgsUsage: "RECORD [RECORD...]",
				Flags:     putFlags(),
				Action:    put,
			},
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
