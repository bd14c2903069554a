// Package logging builds the structured logger shared across the
// ingestion daemon.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-mode zap logger tagged with the given
// service name, so every log line can be attributed to the emitting
// component when components run concurrently.
func New(service string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger.Sugar().With("service", service)
}

// Noop returns a logger that discards everything, for use in tests
// that don't care about log output.
func Noop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
