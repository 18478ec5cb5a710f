package composition

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Kind classifies a material asset.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".mkv": true, ".webm": true, ".avi": true, ".gif": true,
}

// KindForPath infers the asset kind from a file extension. Anything that is
// not a known video container is treated as a still image.
func KindForPath(path string) Kind {
	if videoExtensions[strings.ToLower(filepath.Ext(path))] {
		return KindVideo
	}
	return KindImage
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindImage || k == KindVideo
}

// Asset is a material available on local disk.
type Asset struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Kind Kind   `json:"kind"`
}

// Input roles.
const (
	RoleBase     = "base"
	RoleAudio    = "audio"
	RoleMaterial = "material"
)

// Input is one ffmpeg -i source.
type Input struct {
	Path    string `json:"path"`
	Role    string `json:"role"`
	AssetID string `json:"asset_id,omitempty"`
}

// Overlay describes one material window on the output.
type Overlay struct {
	MaterialID string  `json:"material_id"`
	Input      int     `json:"input"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Label      string  `json:"label"`
}

// Encoding holds output codec settings.
type Encoding struct {
	VideoCodec  string `json:"video_codec"`
	AudioCodec  string `json:"audio_codec"`
	Preset      string `json:"preset"`
	CRF         int    `json:"crf"`
	PixelFormat string `json:"pixel_format"`
}

// Plan is a complete, deterministic description of one composition pass.
type Plan struct {
	Inputs      []Input   `json:"inputs"`
	FilterGraph string    `json:"filter_graph,omitempty"`
	VideoLabel  string    `json:"video_label"`
	AudioLabel  string    `json:"audio_label"`
	Overlays    []Overlay `json:"overlays"`
	PassThrough bool      `json:"pass_through"`
	// Duration is the output length in seconds; zero when neither input
	// duration is known.
	Duration float64  `json:"duration"`
	Encoding Encoding `json:"encoding"`
}

// Args renders the ffmpeg argument list writing to output.
func (p Plan) Args(output string) []string {
	args := []string{"-hide_banner", "-nostdin", "-y"}
	for _, in := range p.Inputs {
		args = append(args, "-i", in.Path)
	}
	if p.FilterGraph != "" {
		args = append(args, "-filter_complex", p.FilterGraph)
	}
	args = append(args, "-map", p.VideoLabel, "-map", p.AudioLabel)
	args = append(args, p.Encoding.Args()...)
	if p.Duration > 0 {
		args = append(args, "-t", FormatSeconds(p.Duration))
	}
	args = append(args, "-shortest", "-movflags", "+faststart", output)
	return args
}

// Args renders the codec flags. Empty fields are left to ffmpeg defaults.
func (e Encoding) Args() []string {
	var args []string
	if e.VideoCodec != "" {
		args = append(args, "-c:v", e.VideoCodec)
	}
	if e.Preset != "" {
		args = append(args, "-preset", e.Preset)
	}
	if e.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(e.CRF))
	}
	if e.PixelFormat != "" {
		args = append(args, "-pix_fmt", e.PixelFormat)
	}
	if e.AudioCodec != "" {
		args = append(args, "-c:a", e.AudioCodec)
	}
	return args
}

// CommandLine renders args for logs and dry runs, quoting arguments that
// contain shell metacharacters.
func CommandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, binary)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " '\";[]()=,$") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// FormatSeconds renders a time with millisecond precision.
func FormatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// OutputDuration is the shorter of the known (positive) durations, or zero.
func OutputDuration(videoSeconds, audioSeconds float64) float64 {
	switch {
	case videoSeconds > 0 && audioSeconds > 0:
		return min(videoSeconds, audioSeconds)
	case videoSeconds > 0:
		return videoSeconds
	case audioSeconds > 0:
		return audioSeconds
	default:
		return 0
	}
}
