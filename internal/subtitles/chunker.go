package subtitles

import (
	"context"
	"log/slog"
	"strings"

	"montage/internal/alignment"
	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/services"
)

const (
	minSentenceWords = 3
	maxSentenceWords = 7
	defaultChunkSize = 4
	maxQuotedChunk   = 12
)

// preferredSizes are tried in order when no sentence end is close.
var preferredSizes = []int{5, 4, 6, 3}

// Options controls cue layout and timing.
type Options struct {
	MaxCharsPerLine int
	LineOverflow    float64
	MinCueDuration  float64
	PrefixChars     int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Subtitles)
}

// OptionsFromConfig extracts chunker options from the subtitles config section.
func OptionsFromConfig(cfg config.Subtitles) Options {
	return Options{
		MaxCharsPerLine: cfg.MaxCharsPerLine,
		LineOverflow:    cfg.LineOverflow,
		MinCueDuration:  cfg.MinCueDuration,
		PrefixChars:     cfg.MatchPrefixChars,
	}
}

// Chunker builds timed cues from narration text.
type Chunker struct {
	opts   Options
	logger *slog.Logger
}

// NewChunker constructs a chunker, filling unset options from the defaults.
func NewChunker(opts Options, logger *slog.Logger) *Chunker {
	def := config.Default().Subtitles
	if opts.MaxCharsPerLine <= 0 {
		opts.MaxCharsPerLine = def.MaxCharsPerLine
	}
	if opts.LineOverflow < 1 {
		opts.LineOverflow = def.LineOverflow
	}
	if opts.MinCueDuration <= 0 {
		opts.MinCueDuration = def.MinCueDuration
	}
	if opts.PrefixChars <= 0 {
		opts.PrefixChars = def.MatchPrefixChars
	}
	return &Chunker{opts: opts, logger: logging.NewComponentLogger(logger, "subtitles")}
}

// ChunkWords groups words into cue-sized runs.
func (c *Chunker) ChunkWords(words []string) [][]string {
	if len(words) == 0 {
		return nil
	}
	depths := quoteDepths(words)
	var chunks [][]string
	for i := 0; i < len(words); {
		n := chunkSize(words, depths, i)
		chunks = append(chunks, words[i:i+n])
		i += n
	}
	return chunks
}

func chunkSize(words []string, depths []int, i int) int {
	remaining := len(words) - i
	if remaining <= minSentenceWords {
		return remaining
	}
	closed := func(n int) bool {
		return n == remaining || depths[i+n-1] == 0
	}

	for n := minSentenceWords; n <= maxSentenceWords && n <= remaining; n++ {
		if endsSentence(words[i+n-1]) && closed(n) {
			return n
		}
	}

	fallback := 0
	for _, n := range preferredSizes {
		if n > remaining || !closed(n) {
			continue
		}
		if n < remaining && (IsNonBreaking(words[i+n-1]) || IsNonBreaking(words[i+n])) {
			continue
		}
		if left := remaining - n; left == 1 || left == 2 {
			if fallback == 0 {
				fallback = n
			}
			continue
		}
		return n
	}
	if fallback != 0 {
		return fallback
	}

	size := min(defaultChunkSize, remaining)
	if closed(size) {
		return size
	}
	// The default boundary falls inside a quotation; run on until it closes.
	limit := min(maxQuotedChunk, remaining)
	for n := size + 1; n <= limit; n++ {
		if closed(n) {
			return n
		}
	}
	return limit
}

// Chunk splits text into timed cues. payload may be nil, in which case every
// cue is timed proportionally. duration overrides the payload's audio
// duration when positive.
func (c *Chunker) Chunk(ctx context.Context, text string, payload *alignment.Payload, duration float64) ([]Cue, error) {
	logger := logging.WithContext(ctx, c.logger)

	if duration <= 0 && payload != nil {
		duration = payload.AudioDuration
	}
	if duration <= 0 {
		return nil, services.Wrap(services.ErrValidation, "subtitles", "chunk", "audio duration must be positive", nil)
	}

	words := strings.Fields(alignment.NormalizeSnippet(text))
	if len(words) == 0 {
		return nil, nil
	}

	var cursor *alignment.Cursor
	if payload != nil {
		idx, err := alignment.NewIndex(payload, c.opts.PrefixChars)
		if err != nil {
			logging.WarnWithContext(logger, "alignment unusable; timing cues proportionally", "invalid_alignment",
				logging.Error(err),
				logging.String(logging.FieldImpact, "subtitle timing is approximate"),
			)
		} else {
			cursor = idx.NewCursor()
		}
	}

	chunks := c.ChunkWords(words)
	cues := make([]Cue, 0, len(chunks))
	wordPos := 0
	prevStart := 0.0
	misses := 0

	for i, chunk := range chunks {
		start := alignment.ProportionalTime(wordPos, len(words), duration)
		end := alignment.ProportionalTime(wordPos+len(chunk), len(words), duration)
		wordPos += len(chunk)

		if cursor != nil {
			if m, ok := cursor.Next(joinWords(chunk)); ok {
				start, end = m.Start, m.End
			} else {
				misses++
				logger.Debug("cue not found in alignment; using proportional timing",
					logging.Int("cue", i+1),
					logging.String("text", joinWords(chunk)),
				)
			}
		}

		start = min(max(start, prevStart), duration)
		end = min(max(end, start+c.opts.MinCueDuration), duration)
		prevStart = start

		cues = append(cues, Cue{
			Index: i + 1,
			Start: start,
			End:   end,
			Lines: SplitLines(chunk, c.opts.MaxCharsPerLine, c.opts.LineOverflow),
		})
	}

	if misses > 0 {
		logging.WarnWithContext(logger, "some cues used proportional timing", "alignment_mismatch",
			logging.Int("cues", len(cues)),
			logging.Int("proportional", misses),
			logging.String(logging.FieldErrorHint, "narration text differs from the aligned speech"),
			logging.String(logging.FieldImpact, "subtitle timing is approximate for some cues"),
		)
	}
	logger.Info("subtitle cues built",
		logging.Int("cues", len(cues)),
		logging.Int("words", len(words)),
		logging.Bool("aligned", cursor != nil),
	)
	return cues, nil
}
