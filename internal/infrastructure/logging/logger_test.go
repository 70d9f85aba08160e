package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_Format(t *testing.T) {
	tests := []struct {
		format string
		prefix string
	}{
		{"json", "{"},
		{"", "{"},
		{"text", "time="},
		{"TEXT", "time="},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			newLogger(config.LoggingConfig{Level: "info", Format: tt.format}, "dev", &buf).Info("tick")
			if !strings.HasPrefix(buf.String(), tt.prefix) {
				t.Errorf("output %q does not start with %q", buf.String(), tt.prefix)
			}
		})
	}
}

func TestLogger_WithSharesNoFile(t *testing.T) {
	var buf bytes.Buffer
	parent := newLogger(config.LoggingConfig{Level: "info"}, "dev", &buf)
	child := parent.With("component", "runner")

	child.Info("started")
	if !strings.Contains(buf.String(), `"component":"runner"`) {
		t.Errorf("child attrs missing: %s", buf.String())
	}
	if err := child.Close(); err != nil {
		t.Errorf("child Close() error = %v", err)
	}
}

func TestNewLogger_DefaultFieldsAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, "1.2.3", &buf)

	logger.Info("mqtt connecting", "broker", "tcp://broker:1883", "password", "hunter2", "Token", "abc")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	want := map[string]any{
		"msg":      "mqtt connecting",
		"service":  "virtuaplant",
		"version":  "1.2.3",
		"broker":   "tcp://broker:1883",
		"password": redacted,
		"Token":    redacted,
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if strings.Contains(buf.String(), "hunter2") {
		t.Error("secret value reached the output")
	}
}

func TestNew_FileFanout(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "plant.log")

	logger := newLogger(config.LoggingConfig{
		Level:  "info",
		Format: "text",
		File:   config.FileLoggingConfig{Path: path, Level: "debug"},
	}, "1.2.3", &console)

	logger.Debug("tick detail")
	logger.Info("fill complete", "trigger_id", 4)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// Console honours its own level; the file takes debug too.
	if strings.Contains(console.String(), "tick detail") {
		t.Error("console should not contain debug records")
	}
	if !strings.Contains(console.String(), "fill complete") {
		t.Error("console missing info record")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("file has %d records, want 2:\n%s", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("file record is not JSON: %v", err)
	}
	if entry["service"] != "virtuaplant" || entry["version"] != "1.2.3" {
		t.Errorf("file record default fields = %v/%v", entry["service"], entry["version"])
	}
}

func TestNew_FileUnavailable(t *testing.T) {
	var console bytes.Buffer

	// A regular file where a directory is expected cannot be created.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	logger := newLogger(config.LoggingConfig{
		Level: "info",
		File:  config.FileLoggingConfig{Path: filepath.Join(blocker, "plant.log")},
	}, "dev", &console)
	defer logger.Close()

	if !strings.Contains(console.String(), "log file unavailable") {
		t.Errorf("expected fallback warning, got %q", console.String())
	}
}
