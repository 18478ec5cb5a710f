package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"montage/internal/alignment"
	"montage/internal/composition"
	"montage/internal/services"
	"montage/internal/timeline"
)

// Material is an overlay source referenced by segments.
type Material struct {
	ID     string           `json:"id"`
	Source string           `json:"source"`
	Kind   composition.Kind `json:"kind"`
	// KindInferred is set when Kind came from the file extension and may be
	// corrected once the file is probed.
	KindInferred bool `json:"-"`
}

// Manifest is a validated composition request.
type Manifest struct {
	BaseVideo      string
	NarrationAudio string
	NarrationText  string
	// Alignment is decoded but not validated; an unusable payload degrades
	// timing instead of failing the request.
	Alignment       *alignment.Payload
	Segments        []timeline.Segment
	Materials       []Material
	Output          string
	BurnSubtitles   *bool
	SubtitlesOutput string
	AudioDuration   float64
	// Dir is the directory relative paths were resolved against.
	Dir string
}

type wireManifest struct {
	BaseVideo       string          `json:"base_video"`
	NarrationAudio  string          `json:"narration_audio"`
	NarrationText   string          `json:"narration_text"`
	Alignment       json.RawMessage `json:"alignment"`
	AlignmentFile   string          `json:"alignment_file"`
	Segments        json.RawMessage `json:"segments"`
	SegmentsFile    string          `json:"segments_file"`
	Materials       []Material      `json:"materials"`
	Output          string          `json:"output"`
	BurnSubtitles   *bool           `json:"burn_subtitles"`
	SubtitlesOutput string          `json:"subtitles_output"`
	AudioDuration   float64         `json:"audio_duration"`
}

// Load reads a manifest file. The format follows the extension: .yaml and
// .yml are YAML, everything else is JSON.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "manifest", "load", path, err)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "load", "resolve manifest directory", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "manifest", "load", "malformed yaml", err)
		}
	}
	return Parse(data, dir)
}

// Parse decodes a JSON manifest, resolving relative paths against dir.
func Parse(data []byte, dir string) (*Manifest, error) {
	var wire wireManifest
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&wire); err != nil {
		return nil, services.Wrap(services.ErrValidation, "manifest", "parse", "malformed manifest", err)
	}

	m := &Manifest{
		BaseVideo:       resolvePath(dir, wire.BaseVideo),
		NarrationAudio:  resolvePath(dir, wire.NarrationAudio),
		NarrationText:   strings.TrimSpace(wire.NarrationText),
		Output:          resolvePath(dir, wire.Output),
		BurnSubtitles:   wire.BurnSubtitles,
		SubtitlesOutput: resolvePath(dir, wire.SubtitlesOutput),
		AudioDuration:   wire.AudioDuration,
		Dir:             dir,
	}

	var err error
	if m.Alignment, err = loadAlignment(dir, wire); err != nil {
		return nil, err
	}
	if m.Segments, err = loadSegments(dir, wire); err != nil {
		return nil, err
	}
	if m.Materials, err = normalizeMaterials(dir, wire.Materials); err != nil {
		return nil, err
	}
	if m.NarrationText == "" && m.Alignment != nil {
		m.NarrationText = m.Alignment.Text()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the fields every request needs.
func (m *Manifest) Validate() error {
	var missing []string
	if m.BaseVideo == "" {
		missing = append(missing, "base_video")
	}
	if m.NarrationAudio == "" {
		missing = append(missing, "narration_audio")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "manifest", "validate",
			"missing required fields: "+strings.Join(missing, ", "), nil)
	}
	if m.AudioDuration < 0 {
		return services.Wrap(services.ErrValidation, "manifest", "validate", "audio_duration must not be negative", nil)
	}
	return nil
}

// MaterialByID returns the material with id.
func (m *Manifest) MaterialByID(id string) (Material, bool) {
	for _, mat := range m.Materials {
		if mat.ID == id {
			return mat, true
		}
	}
	return Material{}, false
}

// ShouldBurnSubtitles applies the manifest override over the configured default.
func (m *Manifest) ShouldBurnSubtitles(configured bool) bool {
	if m.BurnSubtitles != nil {
		return *m.BurnSubtitles
	}
	return configured
}

func loadAlignment(dir string, wire wireManifest) (*alignment.Payload, error) {
	raw := []byte(wire.Alignment)
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if wire.AlignmentFile == "" {
			return nil, nil
		}
		path := resolvePath(dir, wire.AlignmentFile)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrNotFound, "manifest", "alignment", path, err)
		}
		raw = data
	} else if wire.AlignmentFile != "" {
		return nil, services.Wrap(services.ErrValidation, "manifest", "alignment",
			"alignment and alignment_file are mutually exclusive", nil)
	}
	payload, err := alignment.Decode(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "manifest", "alignment", "malformed alignment", err)
	}
	return &payload, nil
}

func loadSegments(dir string, wire wireManifest) ([]timeline.Segment, error) {
	raw := bytes.TrimSpace(wire.Segments)
	inline := len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
	switch {
	case inline && wire.SegmentsFile != "":
		return nil, services.Wrap(services.ErrValidation, "manifest", "segments",
			"segments and segments_file are mutually exclusive", nil)
	case inline:
		return timeline.ParseSegments(raw)
	case wire.SegmentsFile != "":
		return timeline.LoadSegments(resolvePath(dir, wire.SegmentsFile))
	default:
		return nil, nil
	}
}

func normalizeMaterials(dir string, materials []Material) ([]Material, error) {
	seen := make(map[string]struct{}, len(materials))
	out := make([]Material, 0, len(materials))
	for i, mat := range materials {
		mat.ID = strings.TrimSpace(mat.ID)
		mat.Source = strings.TrimSpace(mat.Source)
		switch {
		case mat.ID == "":
			return nil, services.Wrap(services.ErrValidation, "manifest", "materials",
				fmt.Sprintf("material %d has no id", i+1), nil)
		case strings.EqualFold(mat.ID, timeline.MissingMaterial):
			return nil, services.Wrap(services.ErrValidation, "manifest", "materials",
				fmt.Sprintf("material id %q is reserved", mat.ID), nil)
		case mat.Source == "":
			return nil, services.Wrap(services.ErrValidation, "manifest", "materials",
				fmt.Sprintf("material %q has no source", mat.ID), nil)
		}
		if _, dup := seen[mat.ID]; dup {
			return nil, services.Wrap(services.ErrValidation, "manifest", "materials",
				fmt.Sprintf("duplicate material id %q", mat.ID), nil)
		}
		seen[mat.ID] = struct{}{}

		if !IsRemote(mat.Source) {
			mat.Source = resolvePath(dir, strings.TrimPrefix(mat.Source, "file://"))
		}
		if mat.Kind == "" {
			mat.Kind = composition.KindForPath(sourcePath(mat.Source))
			mat.KindInferred = true
		}
		if !mat.Kind.Valid() {
			return nil, services.Wrap(services.ErrValidation, "manifest", "materials",
				fmt.Sprintf("material %q has unknown kind %q", mat.ID, mat.Kind), nil)
		}
		out = append(out, mat)
	}
	return out, nil
}

// IsRemote reports whether source must be downloaded.
func IsRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "s3://")
}

// sourcePath strips any query string so extension inference sees the path.
func sourcePath(source string) string {
	if i := strings.IndexAny(source, "?#"); i >= 0 && IsRemote(source) {
		return source[:i]
	}
	return source
}

func resolvePath(dir, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if filepath.IsAbs(path) || dir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("empty document")
	}
	return json.Marshal(doc)
}
