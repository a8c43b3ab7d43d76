package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"debug lowercase", "debug", slog.LevelDebug},
		{"debug uppercase", "DEBUG", slog.LevelDebug},
		{"info lowercase", "info", slog.LevelInfo},
		{"warn lowercase", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error uppercase", "ERROR", slog.LevelError},
		{"empty string", "", slog.LevelInfo},
		{"invalid value", "invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetup_WritesJSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "nested", "paira.log")
	cleanup, err := Setup(path, slog.LevelInfo)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	slog.Info("hello", "component", "test")
	slog.Debug("filtered out")
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %s", len(lines), data)
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "hello" || rec["component"] != "test" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestSetupMulti_WritesBoth(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var extra bytes.Buffer
	path := filepath.Join(t.TempDir(), "paira.log")
	cleanup, err := SetupMulti(path, &extra, slog.LevelDebug)
	if err != nil {
		t.Fatalf("SetupMulti() error = %v", err)
	}
	slog.Debug("both")
	cleanup()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"both"`) {
		t.Errorf("log file missing record: %s", data)
	}
	if !strings.Contains(extra.String(), `"both"`) {
		t.Errorf("extra writer missing record: %s", extra.String())
	}
}

func TestLogPanic_Recovers(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	var recovered any
	func() {
		defer LogPanic("test-goroutine", func(r any) { recovered = r })
		panic("kaboom")
	}()

	if recovered != "kaboom" {
		t.Errorf("onRecover got %v, want kaboom", recovered)
	}
	if !strings.Contains(buf.String(), "test-goroutine") {
		t.Errorf("panic log missing goroutine name: %s", buf.String())
	}
}

func TestNewConsoleLogger_Level(t *testing.T) {
	logger := NewConsoleLogger(slog.LevelWarn)
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be filtered at warn level")
	}
	if !logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should pass at warn level")
	}
}
