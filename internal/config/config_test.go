package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"montage/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("MONTAGE_WORK_DIR", "")
	t.Setenv("MONTAGE_FFMPEG", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "montage", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.FFmpeg.Binary != "ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary %q", cfg.FFmpeg.Binary)
	}
	if cfg.Subtitles.MinCueDuration != 0.8 {
		t.Fatalf("unexpected min cue duration %v", cfg.Subtitles.MinCueDuration)
	}
	if cfg.Composition.BoxWidth != 665 || cfg.Composition.BoxHeight != 435 {
		t.Fatalf("unexpected overlay box %dx%d", cfg.Composition.BoxWidth, cfg.Composition.BoxHeight)
	}
	if cfg.HistoryPath() != filepath.Join(tempHome, ".local", "share", "montage", "logs", "history.db") {
		t.Fatalf("unexpected history path %q", cfg.HistoryPath())
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("MONTAGE_WORK_DIR", "")

	configPath := filepath.Join(tempHome, "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"work_dir": "~/scratch",
		},
		"subtitles": map[string]any{
			"max_chars_per_line": 36,
			"font_size":          18,
		},
		"logging": map[string]any{
			"format": "JSON",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution %q exists=%v", resolved, exists)
	}
	if cfg.Paths.WorkDir != filepath.Join(tempHome, "scratch") {
		t.Fatalf("unexpected work dir %q", cfg.Paths.WorkDir)
	}
	if cfg.Subtitles.MaxCharsPerLine != 36 || cfg.Subtitles.FontSize != 18 {
		t.Fatalf("subtitle overrides not applied: %+v", cfg.Subtitles)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased format, got %q", cfg.Logging.Format)
	}
	if cfg.Subtitles.MinCueDuration != 0.8 {
		t.Fatalf("expected default min cue duration to survive, got %v", cfg.Subtitles.MinCueDuration)
	}
}

func TestEnvFileProvidesBinaryOverride(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("MONTAGE_WORK_DIR", "")
	envPath := filepath.Join(tempHome, "montage.env")
	if err := os.WriteFile(envPath, []byte("MONTAGE_FFMPEG=/opt/ffmpeg/bin/ffmpeg\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	configPath := filepath.Join(tempHome, "config.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\nenv_file = \""+envPath+"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	// godotenv never overrides variables that are already set.
	t.Setenv("MONTAGE_FFMPEG", "")
	os.Unsetenv("MONTAGE_FFMPEG")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.FFmpeg.Binary != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("expected env override, got %q", cfg.FFmpeg.Binary)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"prefix", func(c *config.Config) { c.Composition.MatchPrefixChars = 5 }, "match_prefix_chars"},
		{"box", func(c *config.Config) { c.Composition.BoxWidth = 0 }, "box_width"},
		{"y fraction", func(c *config.Config) { c.Composition.YFraction = 1.5 }, "y_fraction"},
		{"line", func(c *config.Config) { c.Subtitles.MaxCharsPerLine = 4 }, "max_chars_per_line"},
		{"crf", func(c *config.Config) { c.FFmpeg.CRF = 70 }, "crf"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if decoded.Composition.BoxWidth != 665 {
		t.Fatalf("unexpected sample box width %d", decoded.Composition.BoxWidth)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected overwrite refusal")
	}
}
