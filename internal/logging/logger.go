// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/study-analytics-engine/internal/domain"
)

// Field names shared across packages.
const (
	FieldPatientID       = "patient_id"
	FieldDisease         = "disease"
	FieldRange           = "range"
	FieldSnapshotVersion = "snapshot_version"
	FieldComponent       = "component"
)

// New creates a logger from cfg. The returned closer releases the output
// file, if one was opened; it is a no-op for stdout and stderr.
func New(cfg domain.LoggingConfig) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	var closer io.Closer = nopCloser{}
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		logger.SetOutput(os.Stderr)
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "discard":
		logger.SetOutput(io.Discard)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(f)
		closer = f
	}

	return logger, closer, nil
}

// Component returns an entry tagged with the subsystem name.
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField(FieldComponent, name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
