package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pders01/repour/internal/config"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.Log{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", "tag", "repour-abc")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "repour-abc") {
		t.Errorf("expected warn message with key/value, got %q", out)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	if _, err := New(config.Log{Level: "chatty"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestOutputFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "repour-log-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "repour.log")
	w, closeFn, err := Output(config.Log{Level: "info", Path: path})
	if err != nil {
		t.Fatalf("Output failed: %v", err)
	}

	logger, err := New(config.Log{Level: "info"}, w)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("captured")
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if !strings.Contains(string(content), "captured") {
		t.Errorf("expected log line in file, got %q", content)
	}
}
