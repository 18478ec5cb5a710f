package history

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a composition request.
type Status string

const (
	StatusPlanning           Status = "planning"
	StatusRenderingBase      Status = "rendering_base"
	StatusRenderingSubtitles Status = "rendering_subtitles"
	StatusDone               Status = "done"
	StatusFailed             Status = "failed"
)

// transitions lists the legal moves. There is no re-entry and no retry edge.
var transitions = map[Status][]Status{
	StatusPlanning:           {StatusRenderingBase, StatusFailed},
	StatusRenderingBase:      {StatusRenderingSubtitles, StatusDone, StatusFailed},
	StatusRenderingSubtitles: {StatusDone, StatusFailed},
}

// ParseStatus converts a stored string to a Status.
func ParseStatus(value string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	switch s {
	case StatusPlanning, StatusRenderingBase, StatusRenderingSubtitles, StatusDone, StatusFailed:
		return s, true
	}
	return "", false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Summary carries the per-request outcome counters.
type Summary struct {
	Segments       int     `json:"segments"`
	Matched        int     `json:"matched"`
	Dropped        int     `json:"dropped"`
	FallbackReason string  `json:"fallback_reason,omitempty"`
	Overlays       int     `json:"overlays"`
	Cues           int     `json:"cues"`
	OutputDuration float64 `json:"output_duration"`
}

// Record is one row of the render ledger.
type Record struct {
	ID            string    `json:"id"`
	ManifestPath  string    `json:"manifest_path,omitempty"`
	OutputPath    string    `json:"output_path"`
	SubtitlesPath string    `json:"subtitles_path,omitempty"`
	Status        Status    `json:"status"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	Summary       Summary   `json:"summary"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Transition is one recorded state change.
type Transition struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
