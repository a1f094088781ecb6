// Package telemetry builds the process logger and the prometheus metrics
// shared by the server components.
package telemetry

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/baseplate/tracker/config"
)

// NewLogger creates the root logger. Format "console" writes human readable
// lines; anything else writes JSON.
func NewLogger(cfg config.LogConfig) zerolog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	writer := out
	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(writer).With().Timestamp().Logger().Level(parseLogLevel(cfg.Level))
}

// Component returns a child logger tagged with component.
func Component(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// FromContext returns the request logger stored in ctx, or a disabled logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
