// Package logger provides structured logging for Warden.
//
// This package wraps Uber's zap logger to provide high-performance,
// structured logging with configurable log levels. It initializes a global
// logger instance for use throughout the Warden service.
//
// # Usage
//
// After initialization, use the global Log variable:
//
//	logger.Log.Info("acl created",
//	    zap.String("resource", resource.Key()),
//	    zap.String("owner", resource.Owner),
//	)
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log = zap.NewNop()

// InitLogger builds the global logger at the given level. The level string
// is validated here, once; a bad value fails instead of silently degrading
// to info.
func InitLogger(level string) error {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logger: invalid level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = log
	return nil
}
