package pipeline

import (
	"path/filepath"
	"strings"

	"montage/internal/config"
	"montage/internal/manifest"
	"montage/internal/textutil"
)

// Outputs lists the artifact paths for one request.
type Outputs struct {
	// Final is the deliverable video.
	Final string `json:"final"`
	// Base is the composed video before subtitle burn-in. It equals Final
	// when no subtitle pass runs.
	Base      string `json:"base"`
	Subtitles string `json:"subtitles"`
	BurnIn    bool   `json:"burn_in"`
}

// ResolveOutputs derives artifact paths from the manifest and config. An
// explicit output wins; otherwise the base video name is reused under the
// configured output directory.
func ResolveOutputs(cfg *config.Config, m *manifest.Manifest, override string) Outputs {
	final := strings.TrimSpace(override)
	if final == "" {
		final = m.Output
	}
	if final == "" {
		stem := strings.TrimSuffix(filepath.Base(m.BaseVideo), filepath.Ext(m.BaseVideo))
		final = filepath.Join(cfg.Paths.OutputDir, textutil.SanitizeFileName(stem)+"-montage.mp4")
	}
	if filepath.Ext(final) == "" {
		final += ".mp4"
	}

	stem := strings.TrimSuffix(final, filepath.Ext(final))
	out := Outputs{
		Final:     final,
		Base:      final,
		Subtitles: m.SubtitlesOutput,
		BurnIn:    m.ShouldBurnSubtitles(cfg.Subtitles.BurnIn),
	}
	if out.Subtitles == "" {
		out.Subtitles = stem + ".srt"
	}
	if out.BurnIn {
		out.Base = stem + ".base" + filepath.Ext(final)
	}
	return out
}
