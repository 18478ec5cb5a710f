package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	EnvFile   string `toml:"env_file"`
}

// FFmpeg contains the transcoder invocation settings shared by every render pass.
type FFmpeg struct {
	Binary              string `toml:"binary"`
	FFprobeBinary       string `toml:"ffprobe_binary"`
	VideoCodec          string `toml:"video_codec"`
	AudioCodec          string `toml:"audio_codec"`
	Preset              string `toml:"preset"`
	CRF                 int    `toml:"crf"`
	PixelFormat         string `toml:"pixel_format"`
	DiagnosticTailBytes int    `toml:"diagnostic_tail_bytes"`
}

// Composition contains overlay geometry and timeline matching settings.
type Composition struct {
	BoxWidth         int     `toml:"box_width"`
	BoxHeight        int     `toml:"box_height"`
	YFraction        float64 `toml:"y_fraction"`
	MatchPrefixChars int     `toml:"match_prefix_chars"`
}

// Subtitles contains cue layout, timing, and burn-in style settings.
type Subtitles struct {
	BurnIn           bool    `toml:"burn_in"`
	MaxCharsPerLine  int     `toml:"max_chars_per_line"`
	LineOverflow     float64 `toml:"line_overflow"`
	MinCueDuration   float64 `toml:"min_cue_duration"`
	MatchPrefixChars int     `toml:"match_prefix_chars"`
	FontSize         int     `toml:"font_size"`
	PrimaryColour    string  `toml:"primary_colour"`
	BackColour       string  `toml:"back_colour"`
	Outline          int     `toml:"outline"`
	Shadow           int     `toml:"shadow"`
}

// Assets contains material acquisition settings.
type Assets struct {
	Concurrency    int    `toml:"concurrency"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	S3Region       string `toml:"s3_region"`
	S3Profile      string `toml:"s3_profile"`
	S3UsePathStyle bool   `toml:"s3_use_path_style"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// History contains configuration for the render ledger.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for montage.
//
// Configuration sections by subsystem:
//   - Paths: work, output, and log directories
//   - FFmpeg: transcoder binaries, codecs, and diagnostics capture
//   - Composition: overlay box geometry and snippet matching
//   - Subtitles: cue layout rules and burn-in style
//   - Assets: material download concurrency and S3 access
//   - Logging: log format and level
//   - History: SQLite render ledger
type Config struct {
	Paths       Paths       `toml:"paths"`
	FFmpeg      FFmpeg      `toml:"ffmpeg"`
	Composition Composition `toml:"composition"`
	Subtitles   Subtitles   `toml:"subtitles"`
	Assets      Assets      `toml:"assets"`
	Logging     Logging     `toml:"logging"`
	History     History     `toml:"history"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/montage/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("montage.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the work, output, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the render ledger database path.
func (c *Config) HistoryPath() string {
	if strings.TrimSpace(c.History.Path) != "" {
		return c.History.Path
	}
	return filepath.Join(c.Paths.LogDir, "history.db")
}

// CreateSample writes the sample configuration to path, refusing to overwrite
// an existing file.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file %q already exists", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
