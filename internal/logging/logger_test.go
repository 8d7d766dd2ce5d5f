package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"herdscreen/internal/config"
	"herdscreen/internal/logging"
	"herdscreen/internal/services"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigWritesStateLog(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg, "")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Debug("debug message")

	if !strings.Contains(readLog(t, cfg.LogPath()), "debug message") {
		t.Fatal("expected debug line in state log")
	}
}

func TestNewFromConfigLevelOverride(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg, "error")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Error("shown")

	content := readLog(t, cfg.LogPath())
	if strings.Contains(content, "hidden") || !strings.Contains(content, "shown") {
		t.Fatalf("level override not applied: %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	var out bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &out})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "monitor").With("job_id", "j-1")
	logger.WithGroup("poll").Info("poll complete", logging.String("step", "Filtering rows"), logging.Int("attempt", 2))

	content := out.String()
	for _, want := range []string{"INFO monitor: poll complete", "job_id=j-1", `poll.step="Filtering rows"`, "poll.attempt=2"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", content)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	var out bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Console: &out})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("backend slow", logging.Error(errors.New("timeout")))

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "backend slow" || entry["error"] != "timeout" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var out bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &out})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "job-7")
	ctx = services.WithRequestID(ctx, "req-1")
	logging.WithContext(ctx, logger).Info("submitted")

	content := out.String()
	if !strings.Contains(content, "job_id=job-7") || !strings.Contains(content, "correlation_id=req-1") {
		t.Fatalf("expected context fields, got %q", content)
	}
}

func TestWarnWithImpact(t *testing.T) {
	var out bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &out})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithImpact(logger, "close signal failed", "close_signal", "backend keeps running")
	logging.WarnWithImpact(nil, "ignored", "x", "y")

	content := out.String()
	if !strings.Contains(content, "event_type=close_signal") || !strings.Contains(content, `impact="backend keeps running"`) {
		t.Fatalf("unexpected output %q", content)
	}
}

func TestFileReceivesJSONWhileConsoleStaysReadable(t *testing.T) {
	var console bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "state", "herdscreen.log")
	logger, err := logging.New(logging.Options{Level: "info", Console: &console, FilePath: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "batch").Info("job finished", logging.Int("matched", 42))

	if !strings.Contains(console.String(), "INFO batch: job finished matched=42") {
		t.Fatalf("unexpected console output %q", console.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &entry); err != nil {
		t.Fatalf("decode file log: %v", err)
	}
	if entry["component"] != "batch" || entry["msg"] != "job finished" || entry["matched"] != float64(42) {
		t.Fatalf("unexpected file entry %v", entry)
	}
}

func TestErrorAttrOmitsNil(t *testing.T) {
	var out bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Console: &out})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("done", logging.Error(nil))
	if strings.Contains(out.String(), "error=") {
		t.Fatalf("nil error should be omitted: %q", out.String())
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("nop logger should never be enabled")
	}
	logger.Error("nothing")
}
