package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/services"
)

func TestNewFromConfigCreatesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "montage.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsSourceForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller", logging.String("material_id", "matA"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if strings.Contains(text, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", text)
	}
	if !strings.Contains(text, "material_id=matA") {
		t.Fatalf("expected attribute in output, got %q", text)
	}
}

func TestConsoleLoggerRendersSubjectFromContext(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-subject.log")
	base, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithStage(context.Background(), "rendering")
	ctx = services.WithPass(ctx, "base")
	logger := logging.NewComponentLogger(logging.WithContext(ctx, base), "renderer")
	logger.Info("ffmpeg started")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "[rendering/base] renderer: ffmpeg started") {
		t.Fatalf("unexpected console line %q", content)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "snippet not found", "alignment_mismatch")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(content, &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record["msg"] != "snippet not found" || record["level"] != "warn" {
		t.Fatalf("unexpected record %v", record)
	}
	if record[logging.FieldEventType] != "alignment_mismatch" {
		t.Fatalf("expected event type, got %v", record)
	}
	if _, ok := record[logging.FieldImpact]; !ok {
		t.Fatalf("expected impact field, got %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestFormatSubject(t *testing.T) {
	tests := []struct {
		stage, pass, want string
	}{
		{"", "", ""},
		{"planning", "", "[planning]"},
		{"", "subtitles", "[subtitles]"},
		{"rendering", "base", "[rendering/base]"},
	}
	for _, tt := range tests {
		if got := logging.FormatSubject(tt.stage, tt.pass); got != tt.want {
			t.Fatalf("FormatSubject(%q,%q) = %q, want %q", tt.stage, tt.pass, got, tt.want)
		}
	}
}
