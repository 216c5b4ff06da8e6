// Package logger configures the process-wide zerolog logger.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string // trace, debug, info, warn, error
	Format     string // json, console
	TimeFormat string // Go layout; empty means RFC3339
	Output     string // stdout, stderr, or file path
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "console",
		TimeFormat: time.RFC3339,
		Output:     "stdout",
	}
}

// Setup initializes the global logger with the provided configuration.
func Setup(config LogConfig) error {
	output, err := openOutput(config.Output)
	if err != nil {
		return err
	}
	l, err := New(config, output)
	if err != nil {
		return err
	}
	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}
	log.Logger = l
	return nil
}

// New builds a logger writing to w. The level is applied to the returned
// logger only, not globally.
func New(config LogConfig, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if config.Level != "" {
		var err error
		if level, err = zerolog.ParseLevel(strings.ToLower(config.Level)); err != nil {
			return zerolog.Logger{}, fmt.Errorf("parsing log level: %w", err)
		}
	}

	switch strings.ToLower(config.Format) {
	case "json":
		// JSON format is the default for zerolog
	default:
		timeFormat := config.TimeFormat
		if timeFormat == "" {
			timeFormat = time.RFC3339
		}
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return file, nil
}

// GetLogger returns the global logger.
func GetLogger() zerolog.Logger {
	return log.Logger
}

// WithContext returns the logger attached to ctx, or the global logger.
func WithContext(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// WithComponent returns a logger with a component field
func WithComponent(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// WithCorrelationID returns a logger with a correlation ID field
func WithCorrelationID(l zerolog.Logger, id string) zerolog.Logger {
	if id == "" {
		return l
	}
	return l.With().Str("correlation_id", id).Logger()
}
