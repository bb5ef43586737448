package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/simonhq/focus/cmd/focus/cli/paths"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     slog.Level
	}{
		{"empty defaults to INFO", "", slog.LevelInfo},
		{"DEBUG lowercase", "debug", slog.LevelDebug},
		{"DEBUG uppercase", "DEBUG", slog.LevelDebug},
		{"INFO lowercase", "info", slog.LevelInfo},
		{"WARN lowercase", "warn", slog.LevelWarn},
		{"ERROR uppercase", "ERROR", slog.LevelError},
		{"invalid defaults to INFO", "invalid", slog.LevelInfo},
		{"warning alias", "warning", slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLogLevel(tt.envValue)
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestInit_CreatesLogFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv(paths.EnvConfigDir, tmpDir)

	err := Init()
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Info(context.Background(), "test message")
	Close()

	logPath := filepath.Join(tmpDir, "logs", "focus.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte("test message")) {
		t.Errorf("log file does not contain message: %s", data)
	}
	resetLogger()
}

func TestLog_ContextAttrsExtracted(t *testing.T) {
	var buf bytes.Buffer

	mu.Lock()
	logger = createLogger(&buf, slog.LevelDebug)
	mu.Unlock()
	defer resetLogger()

	ctx := context.Background()
	ctx = WithSession(ctx, "sess-1")
	ctx = WithComponent(ctx, "worker")
	ctx = WithJob(ctx, "job-9")

	Info(ctx, "claimed", slog.String("kind", "session_process"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}

	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want sess-1", entry["session_id"])
	}
	if entry["component"] != "worker" {
		t.Errorf("component = %v, want worker", entry["component"])
	}
	if entry["job_id"] != "job-9" {
		t.Errorf("job_id = %v, want job-9", entry["job_id"])
	}
	if entry["kind"] != "session_process" {
		t.Errorf("kind = %v, want session_process", entry["kind"])
	}
}

func TestLog_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	mu.Lock()
	logger = createLogger(&buf, slog.LevelWarn)
	mu.Unlock()
	defer resetLogger()

	Debug(context.Background(), "should not appear")
	Info(context.Background(), "also filtered")
	Warn(context.Background(), "visible warning")

	out := buf.String()
	if bytes.Contains(buf.Bytes(), []byte("should not appear")) {
		t.Errorf("DEBUG message leaked through WARN filter: %s", out)
	}
	if !bytes.Contains(buf.Bytes(), []byte("visible warning")) {
		t.Errorf("WARN message missing: %s", out)
	}
}
