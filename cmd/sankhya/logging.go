package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/abnerjacobsen/das-sankhya/internal/config"
	"github.com/abnerjacobsen/das-sankhya/internal/logger"
)

// logOutput returns the writer for the configured output.
// Anything other than stdout or stderr is a file path rotated by lumberjack.
func logOutput(cfg config.LoggingConfig) io.WriteCloser {
	switch cfg.Output {
	case "stdout":
		return nopCloser{os.Stdout}
	case "stderr":
		return nopCloser{os.Stderr}
	default:
		return &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.Rotation.MaxSizeMB,
			MaxBackups: cfg.Rotation.MaxBackups,
			MaxAge:     cfg.Rotation.MaxAgeDays,
			Compress:   cfg.Rotation.Compress,
		}
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// setupLogger initializes the global logger from cfg.
// verbose forces the debug level. The returned func closes the output.
func setupLogger(cfg *config.Config, verbose bool) (func(), error) {
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	if verbose {
		level = logger.DebugLevel
	}

	out := logOutput(cfg.Logging)
	logger.Init(level, cfg.Logging.Format, out)
	l := logger.Get()

	// Set up sanitize patterns if configured
	if len(cfg.Logging.SanitizePatterns) > 0 {
		if err := l.SetSanitizePatterns(cfg.Logging.SanitizePatterns); err != nil {
			out.Close()
			return nil, fmt.Errorf("invalid sanitize pattern: %w", err)
		}
	}

	// Set component-specific log levels if configured
	for component, levelStr := range cfg.Logging.ComponentLevels {
		componentLevel, err := logger.ParseLevel(levelStr)
		if err != nil {
			l.Warn("invalid component log level", logger.Fields{
				"component": component,
				"level":     levelStr,
				"error":     err.Error(),
			})
			continue
		}
		l.SetComponentLevel(component, componentLevel)
	}

	l.SetEnrichment(logger.Enrichment{
		CorrelationIDLength:   cfg.Logging.CorrelationIDLength,
		RequestIDLength:       cfg.Logging.RequestIDLength,
		IncludeIdempotencyKey: cfg.Logging.IncludeIdempotencyKey,
		IdempotencyKeyLength:  cfg.Logging.IdempotencyKeyLength,
	})

	return func() { _ = out.Close() }, nil
}
