// Package logging builds the structured loggers shared by the CLI and the server.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pders01/repour/internal/config"
)

// New returns a logger writing to w at the configured level
func New(cfg config.Log, w io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "repour",
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	}), nil
}

// Output opens the configured log destination. An empty path logs to stderr.
// The returned close func is always safe to call.
func Output(cfg config.Log) (io.Writer, func() error, error) {
	if cfg.Path == "" {
		return os.Stderr, func() error { return nil }, nil
	}

	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.Path, err)
	}
	return io.MultiWriter(os.Stderr, f), f.Close, nil
}

// Discard returns a logger that drops everything, for tests
func Discard() *log.Logger {
	return log.New(io.Discard)
}
