package alignment

import (
	"encoding/json"
	"fmt"
	"math"

	"montage/internal/services"
)

// Payload is the character-level timing produced by the speech service.
type Payload struct {
	Characters    []string  `json:"characters"`
	Starts        []float64 `json:"character_start_times_seconds"`
	Ends          []float64 `json:"character_end_times_seconds"`
	AudioDuration float64   `json:"audio_duration"`
}

type wirePayload struct {
	Characters      []string     `json:"characters"`
	Starts          []float64    `json:"character_start_times_seconds"`
	Ends            []float64    `json:"character_end_times_seconds"`
	AudioDuration   float64      `json:"audio_duration"`
	DurationSeconds float64      `json:"duration_seconds"`
	Alignment       *wirePayload `json:"alignment"`
}

// Parse decodes a payload in either the flat shape or the nested
// {"alignment": {...}, "audio_duration": n} shape and validates it.
// When no duration is reported the last character end time is used.
func Parse(data []byte) (*Payload, error) {
	p, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return FromWire(p)
}

// Decode flattens either payload shape without validating it. Structural
// problems surface later when an Index is built, so callers can degrade
// instead of rejecting the whole request.
func Decode(data []byte) (Payload, error) {
	var wire wirePayload
	if err := json.Unmarshal(data, &wire); err != nil {
		return Payload{}, services.Wrap(services.ErrInvalidAlignment, "alignment", "decode", "malformed json", err)
	}
	p := wire.flatten()
	if p.AudioDuration <= 0 && len(p.Ends) > 0 {
		p.AudioDuration = p.Ends[len(p.Ends)-1]
	}
	return p, nil
}

// FromWire validates an already decoded payload, filling the duration from
// the character timings when it is missing.
func FromWire(p Payload) (*Payload, error) {
	if p.AudioDuration <= 0 && len(p.Ends) > 0 {
		p.AudioDuration = p.Ends[len(p.Ends)-1]
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (w wirePayload) flatten() Payload {
	p := Payload{
		Characters:    w.Characters,
		Starts:        w.Starts,
		Ends:          w.Ends,
		AudioDuration: firstPositive(w.AudioDuration, w.DurationSeconds),
	}
	if w.Alignment != nil {
		inner := w.Alignment.flatten()
		if len(p.Characters) == 0 {
			p.Characters = inner.Characters
			p.Starts = inner.Starts
			p.Ends = inner.Ends
		}
		p.AudioDuration = firstPositive(p.AudioDuration, inner.AudioDuration)
	}
	return p
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// Validate checks the structural invariants: equal-length arrays, finite
// non-negative times, non-decreasing starts and start <= end per character.
func (p *Payload) Validate() error {
	if p == nil {
		return services.Wrap(services.ErrInvalidAlignment, "alignment", "validate", "payload is nil", nil)
	}
	n := len(p.Characters)
	if n == 0 {
		return services.Wrap(services.ErrInvalidAlignment, "alignment", "validate", "no characters", nil)
	}
	if len(p.Starts) != n || len(p.Ends) != n {
		return services.Wrap(services.ErrInvalidAlignment, "alignment", "validate",
			fmt.Sprintf("array lengths differ (characters=%d starts=%d ends=%d)", n, len(p.Starts), len(p.Ends)), nil)
	}
	for i := 0; i < n; i++ {
		start, end := p.Starts[i], p.Ends[i]
		if !finite(start) || !finite(end) || start < 0 || end < 0 {
			return services.Wrap(services.ErrInvalidAlignment, "alignment", "validate",
				fmt.Sprintf("character %d has invalid time", i), nil)
		}
		if start > end {
			return services.Wrap(services.ErrInvalidAlignment, "alignment", "validate",
				fmt.Sprintf("character %d starts after it ends (%.3f > %.3f)", i, start, end), nil)
		}
		if i > 0 && start < p.Starts[i-1] {
			return services.Wrap(services.ErrInvalidAlignment, "alignment", "validate",
				fmt.Sprintf("character %d starts before character %d", i, i-1), nil)
		}
	}
	if !finite(p.AudioDuration) || p.AudioDuration <= 0 {
		return services.Wrap(services.ErrInvalidAlignment, "alignment", "validate", "audio duration must be positive", nil)
	}
	return nil
}

// Text returns the concatenated characters.
func (p *Payload) Text() string {
	if p == nil {
		return ""
	}
	size := 0
	for _, c := range p.Characters {
		size += len(c)
	}
	buf := make([]byte, 0, size)
	for _, c := range p.Characters {
		buf = append(buf, c...)
	}
	return string(buf)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
