package timeline

import (
	"context"
	"fmt"
	"log/slog"

	"montage/internal/alignment"
	"montage/internal/logging"
	"montage/internal/services"
)

// Mapper resolves segments against alignment data.
type Mapper struct {
	prefixChars int
	logger      *slog.Logger
}

// NewMapper constructs a mapper. prefixChars bounds snippet matching and
// falls back to alignment.DefaultPrefixChars when <= 0.
func NewMapper(prefixChars int, logger *slog.Logger) *Mapper {
	return &Mapper{
		prefixChars: prefixChars,
		logger:      logging.NewComponentLogger(logger, "timeline"),
	}
}

// Map places segments on the audio timeline. payload may be nil, in which
// case the segments are spread evenly. duration overrides the payload's
// audio duration when positive.
//
// Segments whose snippet cannot be located are dropped. Start times are
// non-decreasing, every end lies in [start, duration] and the last entry ends
// exactly at duration.
func (m *Mapper) Map(ctx context.Context, segments []Segment, payload *alignment.Payload, duration float64) (Timeline, error) {
	logger := logging.WithContext(ctx, m.logger)

	if duration <= 0 && payload != nil {
		duration = payload.AudioDuration
	}
	if duration <= 0 {
		return Timeline{}, services.Wrap(services.ErrValidation, "timeline", "map", "audio duration must be positive", nil)
	}
	if len(segments) == 0 {
		return Timeline{Duration: duration}, nil
	}

	if payload == nil {
		logger.Info("no alignment payload; distributing segments evenly",
			logging.Int("segments", len(segments)),
			logging.Float64("duration", duration),
		)
		return EvenlyDistributed(segments, duration, "no alignment"), nil
	}

	idx, err := alignment.NewIndex(payload, m.prefixChars)
	if err != nil {
		logging.WarnWithContext(logger, "alignment unusable; distributing segments evenly", "invalid_alignment",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the speech service alignment payload"),
			logging.String(logging.FieldImpact, "overlay timing is approximate"),
		)
		return EvenlyDistributed(segments, duration, "invalid alignment"), nil
	}

	entries, report := m.mapWithIndex(logger, segments, idx, duration)
	if len(entries) == 0 {
		logging.WarnWithContext(logger, "no segment matched the alignment; distributing segments evenly", "timeline_degraded",
			logging.Int("segments", len(segments)),
			logging.String(logging.FieldErrorHint, "verify the segments were cut from the narration text"),
			logging.String(logging.FieldImpact, "overlay timing is approximate"),
		)
		tl := EvenlyDistributed(segments, duration, "no matches")
		tl.Report.Dropped = report.Dropped
		return tl, nil
	}

	logger.Info("timeline mapped",
		logging.Int("segments", report.Segments),
		logging.Int("matched", report.Matched),
		logging.Int("dropped", report.Dropped),
	)
	return Timeline{Entries: entries, Duration: duration, Report: report}, nil
}

func (m *Mapper) mapWithIndex(logger *slog.Logger, segments []Segment, idx *alignment.Index, duration float64) ([]Entry, Report) {
	report := Report{Segments: len(segments)}
	entries := make([]Entry, 0, len(segments))
	cursor := idx.NewCursor()

	for i, seg := range segments {
		match, ok := cursor.Next(seg.TextSnippet)
		if !ok {
			report.Dropped++
			err := services.Wrap(services.ErrAlignmentMismatch, "timeline", "map",
				fmt.Sprintf("segment %d not found in narration", i+1), nil)
			logging.WarnWithContext(logger, "segment dropped", "alignment_mismatch",
				logging.Int("segment", i+1),
				logging.String("snippet", truncate(alignment.NormalizeSnippet(seg.TextSnippet), idx.PrefixChars())),
				logging.String("material_id", seg.MaterialID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "snippet text differs from the spoken narration"),
				logging.String(logging.FieldImpact, "material is not shown for this segment"),
			)
			continue
		}
		report.Matched++

		end := match.End
		if i+1 < len(segments) {
			if next, ok := cursor.Peek(segments[i+1].TextSnippet); ok {
				end = next.Start
			}
		}
		start := clamp(match.Start, 0, duration)
		entries = append(entries, Entry{
			Start:       start,
			End:         clamp(end, start, duration),
			TextSnippet: seg.TextSnippet,
			MaterialID:  normalizeMaterial(seg.MaterialID),
			Rationale:   seg.Rationale,
		})
		logger.Debug("segment mapped",
			logging.Int("segment", i+1),
			logging.Float64("start", start),
			logging.Float64("end", entries[len(entries)-1].End),
			logging.String("material_id", seg.MaterialID),
		)
	}

	if len(entries) > 0 {
		entries[len(entries)-1].End = duration
	}
	return entries, report
}

// EvenlyDistributed divides duration into equal slots, one per segment, in
// input order. The last entry ends exactly at duration.
func EvenlyDistributed(segments []Segment, duration float64, reason string) Timeline {
	tl := Timeline{
		Duration: duration,
		Report:   Report{Segments: len(segments), Fallback: true, Reason: reason},
	}
	if len(segments) == 0 || duration <= 0 {
		return tl
	}
	slot := duration / float64(len(segments))
	tl.Entries = make([]Entry, 0, len(segments))
	for i, seg := range segments {
		end := float64(i+1) * slot
		if i == len(segments)-1 {
			end = duration
		}
		tl.Entries = append(tl.Entries, Entry{
			Start:       float64(i) * slot,
			End:         end,
			TextSnippet: seg.TextSnippet,
			MaterialID:  normalizeMaterial(seg.MaterialID),
			Rationale:   seg.Rationale,
		})
	}
	return tl
}

func normalizeMaterial(id string) string {
	if (Segment{MaterialID: id}).HasMaterial() {
		return id
	}
	return MissingMaterial
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
