package subtitles

import (
	"fmt"
	"strings"

	"montage/internal/config"
)

// Style is the libass override applied when burning subtitles.
type Style struct {
	FontSize      int
	PrimaryColour string
	BackColour    string
	Outline       int
	Shadow        int
}

// StyleFromConfig reads the burn-in style from the subtitles config section.
func StyleFromConfig(cfg config.Subtitles) Style {
	return Style{
		FontSize:      cfg.FontSize,
		PrimaryColour: cfg.PrimaryColour,
		BackColour:    cfg.BackColour,
		Outline:       cfg.Outline,
		Shadow:        cfg.Shadow,
	}
}

// ForceStyle renders the style as a force_style value. Empty colours are
// omitted so libass keeps its own defaults.
func (s Style) ForceStyle() string {
	parts := make([]string, 0, 5)
	if s.FontSize > 0 {
		parts = append(parts, fmt.Sprintf("FontSize=%d", s.FontSize))
	}
	if c := strings.TrimSpace(s.PrimaryColour); c != "" {
		parts = append(parts, "PrimaryColour="+c)
	}
	parts = append(parts, fmt.Sprintf("Outline=%d", s.Outline))
	parts = append(parts, fmt.Sprintf("Shadow=%d", s.Shadow))
	if c := strings.TrimSpace(s.BackColour); c != "" {
		parts = append(parts, "BackColour="+c)
	}
	return strings.Join(parts, ",")
}
