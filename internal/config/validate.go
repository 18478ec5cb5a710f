package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateComposition(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateComposition() error {
	if c.Composition.BoxWidth <= 0 || c.Composition.BoxHeight <= 0 {
		return errors.New("composition.box_width and composition.box_height must be positive")
	}
	if c.Composition.YFraction < 0 || c.Composition.YFraction >= 1 {
		return errors.New("composition.y_fraction must be in [0, 1)")
	}
	if err := validatePrefix("composition.match_prefix_chars", c.Composition.MatchPrefixChars); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	if c.Subtitles.MaxCharsPerLine < 10 {
		return errors.New("subtitles.max_chars_per_line must be at least 10")
	}
	if c.Subtitles.LineOverflow < 1 || c.Subtitles.LineOverflow > 2 {
		return errors.New("subtitles.line_overflow must be between 1 and 2")
	}
	if c.Subtitles.FontSize <= 0 {
		return errors.New("subtitles.font_size must be positive")
	}
	if err := validatePrefix("subtitles.match_prefix_chars", c.Subtitles.MatchPrefixChars); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if c.FFmpeg.CRF < 0 || c.FFmpeg.CRF > 51 {
		return errors.New("ffmpeg.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func validatePrefix(key string, value int) error {
	if value < 20 || value > 50 {
		return fmt.Errorf("%s must be between 20 and 50", key)
	}
	return nil
}
