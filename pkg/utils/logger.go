package utils

import (
	"fmt"

	"go.uber.org/zap"
)

const loggerName = "stream-producer"

// NewSugaredLogger creates a sugared logger based on the verbose flag.
// If verbose is true, it creates a development logger, otherwise a production logger.
// Every entry carries the given key/value fields.
func NewSugaredLogger(verbose bool, fields ...any) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	kind := "production"
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		kind = "development"
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s logger: %w", kind, err)
	}
	return l.Named(loggerName).Sugar().With(fields...), nil
}
