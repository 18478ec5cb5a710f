package timeline

import "strings"

// MissingMaterial marks a segment that has no visual material.
const MissingMaterial = "MISSING"

// Segment associates a narration snippet with a material.
type Segment struct {
	TextSnippet string `json:"text_snippet" yaml:"text_snippet"`
	MaterialID  string `json:"material_id" yaml:"material_id"`
	Rationale   string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// HasMaterial reports whether the segment references a material.
func (s Segment) HasMaterial() bool {
	id := strings.TrimSpace(s.MaterialID)
	return id != "" && id != MissingMaterial
}

// Entry is a segment placed on the audio timeline.
type Entry struct {
	Start       float64 `json:"start_time"`
	End         float64 `json:"end_time"`
	TextSnippet string  `json:"text_snippet"`
	MaterialID  string  `json:"material_id"`
	Rationale   string  `json:"rationale,omitempty"`
}

// HasMaterial reports whether the entry references a material.
func (e Entry) HasMaterial() bool {
	id := strings.TrimSpace(e.MaterialID)
	return id != "" && id != MissingMaterial
}

// Report summarises how a timeline was produced.
type Report struct {
	Segments int    `json:"segments"`
	Matched  int    `json:"matched"`
	Dropped  int    `json:"dropped"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

// Timeline is the ordered result of mapping segments to time.
type Timeline struct {
	Entries  []Entry `json:"entries"`
	Duration float64 `json:"duration"`
	Report   Report  `json:"report"`
}

// MaterialIDs returns the distinct material ids referenced by the timeline
// in order of first use.
func (t Timeline) MaterialIDs() []string {
	seen := make(map[string]struct{}, len(t.Entries))
	ids := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		if !e.HasMaterial() {
			continue
		}
		if _, ok := seen[e.MaterialID]; ok {
			continue
		}
		seen[e.MaterialID] = struct{}{}
		ids = append(ids, e.MaterialID)
	}
	return ids
}
