package pipeline

import (
	"path/filepath"
	"testing"

	"montage/internal/manifest"
	"montage/internal/testsupport"
)

func TestResolveOutputs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	burnOff := false

	tests := []struct {
		name     string
		manifest manifest.Manifest
		override string
		burnIn   bool
		want     Outputs
	}{
		{
			name:     "explicit output with burn-in",
			manifest: manifest.Manifest{BaseVideo: "/in/base.mp4", Output: "/out/final.mp4"},
			burnIn:   true,
			want:     Outputs{Final: "/out/final.mp4", Base: "/out/final.base.mp4", Subtitles: "/out/final.srt", BurnIn: true},
		},
		{
			name:     "derived from base video",
			manifest: manifest.Manifest{BaseVideo: "/in/My Clip.mov"},
			burnIn:   false,
			want: Outputs{
				Final:     filepath.Join(cfg.Paths.OutputDir, "My Clip-montage.mp4"),
				Base:      filepath.Join(cfg.Paths.OutputDir, "My Clip-montage.mp4"),
				Subtitles: filepath.Join(cfg.Paths.OutputDir, "My Clip-montage.srt"),
			},
		},
		{
			name:     "override and manifest burn flag",
			manifest: manifest.Manifest{BaseVideo: "/in/b.mp4", Output: "/out/x.mp4", BurnSubtitles: &burnOff, SubtitlesOutput: "/subs/x.srt"},
			override: "/cli/y",
			burnIn:   true,
			want:     Outputs{Final: "/cli/y.mp4", Base: "/cli/y.mp4", Subtitles: "/subs/x.srt"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.Subtitles.BurnIn = tt.burnIn
			got := ResolveOutputs(cfg, &tt.manifest, tt.override)
			if got != tt.want {
				t.Fatalf("ResolveOutputs = %#v, want %#v", got, tt.want)
			}
		})
	}
}
