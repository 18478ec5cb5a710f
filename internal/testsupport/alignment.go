package testsupport

import (
	"montage/internal/alignment"
)

// UniformAlignment returns a payload where every rune of text lasts step
// seconds, back to back from zero. The audio duration is the last end time
// unless duration is positive.
func UniformAlignment(text string, step, duration float64) *alignment.Payload {
	runes := []rune(text)
	p := &alignment.Payload{
		Characters: make([]string, len(runes)),
		Starts:     make([]float64, len(runes)),
		Ends:       make([]float64, len(runes)),
	}
	for i, r := range runes {
		p.Characters[i] = string(r)
		p.Starts[i] = float64(i) * step
		p.Ends[i] = float64(i+1) * step
	}
	p.AudioDuration = duration
	if p.AudioDuration <= 0 {
		p.AudioDuration = float64(len(runes)) * step
	}
	return p
}
