package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

func (c *Config) normalize() error {
	if err := c.loadEnvFile(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFFmpeg()
	c.normalizeSubtitles()
	c.normalizeAssets()
	c.normalizeLogging()
	return nil
}

// loadEnvFile reads KEY=VALUE pairs (AWS credentials, binary overrides) from
// the configured env file. Variables already present in the environment win.
func (c *Config) loadEnvFile() error {
	path := strings.TrimSpace(c.Paths.EnvFile)
	if path == "" {
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("paths.env_file: %w", err)
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("paths.env_file: %w", err)
	}
	if err := godotenv.Load(expanded); err != nil {
		return fmt.Errorf("load env file %s: %w", expanded, err)
	}
	c.Paths.EnvFile = expanded
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("MONTAGE_WORK_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.WorkDir = value
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.History.Path) != "" {
		if c.History.Path, err = expandPath(c.History.Path); err != nil {
			return fmt.Errorf("history.path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeFFmpeg() {
	if value, ok := os.LookupEnv("MONTAGE_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.FFmpeg.Binary = value
	}
	if value, ok := os.LookupEnv("MONTAGE_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.FFmpeg.FFprobeBinary = value
	}
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
	c.FFmpeg.VideoCodec = strings.TrimSpace(c.FFmpeg.VideoCodec)
	if c.FFmpeg.VideoCodec == "" {
		c.FFmpeg.VideoCodec = defaultVideoCodec
	}
	c.FFmpeg.AudioCodec = strings.TrimSpace(c.FFmpeg.AudioCodec)
	if c.FFmpeg.AudioCodec == "" {
		c.FFmpeg.AudioCodec = defaultAudioCodec
	}
	c.FFmpeg.PixelFormat = strings.TrimSpace(c.FFmpeg.PixelFormat)
	if c.FFmpeg.DiagnosticTailBytes <= 0 {
		c.FFmpeg.DiagnosticTailBytes = defaultDiagnosticTailBytes
	}
}

func (c *Config) normalizeSubtitles() {
	if c.Subtitles.LineOverflow <= 0 {
		c.Subtitles.LineOverflow = defaultLineOverflow
	}
	if c.Subtitles.MinCueDuration <= 0 {
		c.Subtitles.MinCueDuration = defaultMinCueDuration
	}
	c.Subtitles.PrimaryColour = strings.TrimSpace(c.Subtitles.PrimaryColour)
	c.Subtitles.BackColour = strings.TrimSpace(c.Subtitles.BackColour)
}

func (c *Config) normalizeAssets() {
	if c.Assets.S3Region == "" {
		if value, ok := os.LookupEnv("AWS_REGION"); ok {
			c.Assets.S3Region = strings.TrimSpace(value)
		}
	}
	if c.Assets.Concurrency <= 0 {
		c.Assets.Concurrency = defaultAssetConcurrency
	}
	if c.Assets.TimeoutSeconds <= 0 {
		c.Assets.TimeoutSeconds = defaultAssetTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
