package timeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"montage/internal/services"
)

type segmentDocument struct {
	Segments []Segment `json:"segments" yaml:"segments"`
}

// ParseSegments decodes a segment list from JSON or YAML. Both a bare list
// and an object with a "segments" key are accepted. Empty material ids are
// normalised to MissingMaterial.
func ParseSegments(data []byte) ([]Segment, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, services.Wrap(services.ErrValidation, "timeline", "parse segments", "document is empty", nil)
	}

	var segments []Segment
	var err error
	if trimmed[0] == '[' || trimmed[0] == '{' {
		segments, err = decodeJSONSegments(trimmed)
	} else {
		segments, err = decodeYAMLSegments(trimmed)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "timeline", "parse segments", "malformed document", err)
	}
	if err := ValidateSegments(segments); err != nil {
		return nil, err
	}
	for i := range segments {
		segments[i].MaterialID = normalizeMaterial(strings.TrimSpace(segments[i].MaterialID))
	}
	return segments, nil
}

// LoadSegments reads and parses a segment file.
func LoadSegments(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "timeline", "load segments", path, err)
	}
	return ParseSegments(data)
}

// ValidateSegments rejects segments without a usable snippet.
func ValidateSegments(segments []Segment) error {
	for i, seg := range segments {
		if strings.TrimSpace(seg.TextSnippet) == "" {
			return services.Wrap(services.ErrValidation, "timeline", "validate segments",
				fmt.Sprintf("segment %d has an empty text_snippet", i+1), nil)
		}
	}
	return nil
}

func decodeJSONSegments(data []byte) ([]Segment, error) {
	if data[0] == '[' {
		var segments []Segment
		if err := json.Unmarshal(data, &segments); err != nil {
			return nil, err
		}
		return segments, nil
	}
	var doc segmentDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Segments, nil
}

func decodeYAMLSegments(data []byte) ([]Segment, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("no yaml document")
	}
	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var segments []Segment
		if err := root.Decode(&segments); err != nil {
			return nil, err
		}
		return segments, nil
	}
	var doc segmentDocument
	if err := root.Decode(&doc); err != nil {
		return nil, err
	}
	return doc.Segments, nil
}
