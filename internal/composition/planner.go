package composition

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/services"
	"montage/internal/timeline"
)

// Geometry positions overlays on the base video.
type Geometry struct {
	BoxWidth  int
	BoxHeight int
	YFraction float64
}

// Request collects planner inputs.
type Request struct {
	BaseVideo      string
	NarrationAudio string
	Entries        []timeline.Entry
	Assets         map[string]Asset
	// VideoDuration and AudioDuration are in seconds; zero means unknown.
	VideoDuration float64
	AudioDuration float64
}

// Planner turns timelines into composition plans.
type Planner struct {
	geometry Geometry
	encoding Encoding
	logger   *slog.Logger
}

// NewPlanner constructs a planner from configuration.
func NewPlanner(cfg *config.Config, logger *slog.Logger) *Planner {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return &Planner{
		geometry: Geometry{
			BoxWidth:  cfg.Composition.BoxWidth,
			BoxHeight: cfg.Composition.BoxHeight,
			YFraction: cfg.Composition.YFraction,
		},
		encoding: Encoding{
			VideoCodec:  cfg.FFmpeg.VideoCodec,
			AudioCodec:  cfg.FFmpeg.AudioCodec,
			Preset:      cfg.FFmpeg.Preset,
			CRF:         cfg.FFmpeg.CRF,
			PixelFormat: cfg.FFmpeg.PixelFormat,
		},
		logger: logging.NewComponentLogger(logger, "planner"),
	}
}

type window struct {
	entry timeline.Entry
	asset Asset
	start float64
	end   float64
}

// Plan builds a composition plan. Entries referencing unknown materials are
// skipped; without any usable entry the plan passes the base video through
// with the narration audio.
func (p *Planner) Plan(ctx context.Context, req Request) (Plan, error) {
	logger := logging.WithContext(ctx, p.logger)

	if strings.TrimSpace(req.BaseVideo) == "" {
		return Plan{}, services.Wrap(services.ErrValidation, "planning", "plan", "base video is required", nil)
	}
	if strings.TrimSpace(req.NarrationAudio) == "" {
		return Plan{}, services.Wrap(services.ErrValidation, "planning", "plan", "narration audio is required", nil)
	}

	duration := OutputDuration(req.VideoDuration, req.AudioDuration)
	windows := p.resolveWindows(logger, req, duration)

	plan := Plan{
		Inputs: []Input{
			{Path: req.BaseVideo, Role: RoleBase},
			{Path: req.NarrationAudio, Role: RoleAudio},
		},
		AudioLabel: "1:a:0",
		Duration:   duration,
		Encoding:   p.encoding,
	}

	if len(windows) == 0 {
		plan.PassThrough = true
		plan.VideoLabel = "0:v:0"
		plan.Overlays = []Overlay{}
		logger.Info("no overlays resolved; using pass-through composition",
			logging.Int("entries", len(req.Entries)),
			logging.Float64("duration", duration),
		)
		return plan, nil
	}

	inputIndex := make(map[string]int)
	var order []Asset
	uses := make(map[string][]int)
	for k, w := range windows {
		if _, ok := inputIndex[w.asset.ID]; !ok {
			inputIndex[w.asset.ID] = len(plan.Inputs)
			plan.Inputs = append(plan.Inputs, Input{Path: w.asset.Path, Role: RoleMaterial, AssetID: w.asset.ID})
			order = append(order, w.asset)
		}
		uses[w.asset.ID] = append(uses[w.asset.ID], k)
	}

	var parts []string
	for _, asset := range order {
		parts = append(parts, p.sourceChain(inputIndex[asset.ID], asset, uses[asset.ID], windows)...)
	}

	prev := "[0:v]"
	plan.Overlays = make([]Overlay, 0, len(windows))
	for k, w := range windows {
		out := fmt.Sprintf("[v%d]", k)
		parts = append(parts, fmt.Sprintf("%s[m%d]overlay=(W-w)/2:H*%s:enable='between(t,%s,%s)'%s",
			prev, k, formatFraction(p.geometry.YFraction), FormatSeconds(w.start), FormatSeconds(w.end), out))
		plan.Overlays = append(plan.Overlays, Overlay{
			MaterialID: w.asset.ID,
			Input:      inputIndex[w.asset.ID],
			Start:      w.start,
			End:        w.end,
			Label:      out,
		})
		prev = out
	}

	plan.FilterGraph = strings.Join(parts, ";")
	plan.VideoLabel = prev

	logger.Info("composition planned",
		logging.Int("entries", len(req.Entries)),
		logging.Int("overlays", len(plan.Overlays)),
		logging.Int("materials", len(order)),
		logging.Float64("duration", duration),
	)
	return plan, nil
}

// resolveWindows keeps entries with known materials, orders them by start
// and assigns each its visible window: until the next kept entry starts, or
// for the last one until its own end (the output end when that is unset).
func (p *Planner) resolveWindows(logger *slog.Logger, req Request, duration float64) []window {
	kept := make([]window, 0, len(req.Entries))
	for i, e := range req.Entries {
		if !e.HasMaterial() {
			continue
		}
		asset, ok := req.Assets[e.MaterialID]
		if !ok || strings.TrimSpace(asset.Path) == "" {
			err := services.Wrap(services.ErrUnknownMaterial, "planning", "resolve material",
				fmt.Sprintf("entry %d references %q", i+1, e.MaterialID), nil)
			logging.WarnWithContext(logger, "overlay skipped", "unknown_material",
				logging.Int("entry", i+1),
				logging.String("material_id", e.MaterialID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "add the material to the request or fix the segment's material_id"),
				logging.String(logging.FieldImpact, "no overlay is shown for this entry"),
			)
			continue
		}
		if asset.ID == "" {
			asset.ID = e.MaterialID
		}
		kept = append(kept, window{entry: e, asset: asset})
	}
	sort.SliceStable(kept, func(a, b int) bool { return kept[a].entry.Start < kept[b].entry.Start })

	windows := kept[:0]
	for k := range kept {
		w := kept[k]
		w.start = w.entry.Start
		if k+1 < len(kept) {
			w.end = kept[k+1].entry.Start
		} else {
			w.end = w.entry.End
			if w.end <= w.start && duration > 0 {
				w.end = duration
			}
		}
		if duration > 0 {
			w.start = min(w.start, duration)
			w.end = min(w.end, duration)
		}
		if w.end <= w.start {
			logger.Debug("overlay window is empty; skipping",
				logging.String("material_id", w.asset.ID),
				logging.Float64("start", w.start),
			)
			continue
		}
		windows = append(windows, w)
	}
	return windows
}

// sourceChain scales an asset once and fans it out to one labelled branch
// per overlay. Video assets are re-timed per branch so playback starts when
// the overlay appears.
func (p *Planner) sourceChain(input int, asset Asset, overlayIdx []int, windows []window) []string {
	chain := fmt.Sprintf("[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease",
		input, p.geometry.BoxWidth, p.geometry.BoxHeight)

	branch := func(k int) string {
		if asset.Kind == KindVideo {
			return fmt.Sprintf("[s%d]", k)
		}
		return fmt.Sprintf("[m%d]", k)
	}

	var labels strings.Builder
	for _, k := range overlayIdx {
		labels.WriteString(branch(k))
	}
	if len(overlayIdx) > 1 {
		chain += ",split=" + strconv.Itoa(len(overlayIdx))
	}
	parts := []string{chain + labels.String()}

	if asset.Kind == KindVideo {
		for _, k := range overlayIdx {
			parts = append(parts, fmt.Sprintf("[s%d]setpts=PTS-STARTPTS+%s/TB[m%d]", k, FormatSeconds(windows[k].start), k))
		}
	}
	return parts
}

func formatFraction(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
