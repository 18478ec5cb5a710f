package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"montage/internal/assets"
	"montage/internal/composition"
	"montage/internal/config"
	"montage/internal/deps"
	"montage/internal/fileutil"
	"montage/internal/history"
	"montage/internal/logging"
	"montage/internal/manifest"
	"montage/internal/media/ffprobe"
	"montage/internal/preflight"
	"montage/internal/render"
	"montage/internal/services"
	"montage/internal/subtitles"
	"montage/internal/timeline"
)

// Renderer executes composition passes.
type Renderer interface {
	Render(ctx context.Context, plan composition.Plan, dest string) error
	BurnSubtitles(ctx context.Context, source, srtPath, dest string) error
}

// MaterialFetcher resolves manifest materials to local files.
type MaterialFetcher interface {
	Fetch(ctx context.Context, materials []manifest.Material, dir string) (assets.Result, error)
}

// Request is one composition job.
type Request struct {
	Manifest     *manifest.Manifest
	ManifestPath string
	// Output overrides the manifest output path when set.
	Output string
}

// Prepared holds everything computed during planning.
type Prepared struct {
	RequestID      string            `json:"request_id"`
	Outputs        Outputs           `json:"outputs"`
	VideoDuration  float64           `json:"video_duration"`
	AudioDuration  float64           `json:"audio_duration"`
	Timeline       timeline.Timeline `json:"timeline"`
	Assets         assets.Result     `json:"assets"`
	Plan           composition.Plan  `json:"plan"`
	Cues           []subtitles.Cue   `json:"cues"`
	SubtitleIssues []string          `json:"subtitle_issues,omitempty"`
	materialsDir   string
}

// TemporaryAssets lists the IDs of materials that were downloaded for this
// request. Their files are deleted by Cleanup.
func (p *Prepared) TemporaryAssets() []string {
	if p.materialsDir == "" {
		return nil
	}
	prefix := p.materialsDir + string(filepath.Separator)
	var ids []string
	for id, asset := range p.Assets.Assets {
		if strings.HasPrefix(asset.Path, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Result reports the outcome of Compose.
type Result struct {
	Prepared
	Status history.Status `json:"status"`
}

// Composer runs composition requests.
type Composer struct {
	cfg      *config.Config
	logger   *slog.Logger
	mapper   *timeline.Mapper
	chunker  *subtitles.Chunker
	planner  *composition.Planner
	renderer Renderer
	fetcher  MaterialFetcher
	inspect  ffprobe.Inspector
	store    *history.Store
	checks   func(context.Context, *config.Config) []preflight.Result
	newID    func() string
}

// Option customises a Composer.
type Option func(*Composer)

// WithRenderer replaces the ffmpeg renderer.
func WithRenderer(r Renderer) Option {
	return func(c *Composer) { c.renderer = r }
}

// WithFetcher replaces the material fetcher.
func WithFetcher(f MaterialFetcher) Option {
	return func(c *Composer) { c.fetcher = f }
}

// WithInspector replaces the ffprobe inspector.
func WithInspector(inspect ffprobe.Inspector) Option {
	return func(c *Composer) { c.inspect = inspect }
}

// WithHistory persists transitions to store.
func WithHistory(store *history.Store) Option {
	return func(c *Composer) { c.store = store }
}

// WithoutPreflight skips environment checks.
func WithoutPreflight() Option {
	return func(c *Composer) { c.checks = nil }
}

// WithIDGenerator replaces the request id source.
func WithIDGenerator(fn func() string) Option {
	return func(c *Composer) { c.newID = fn }
}

// NewComposer wires the default services from configuration.
func NewComposer(cfg *config.Config, logger *slog.Logger, opts ...Option) *Composer {
	c := &Composer{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "pipeline"),
		mapper:  timeline.NewMapper(cfg.Composition.MatchPrefixChars, logger),
		chunker: subtitles.NewChunker(subtitles.OptionsFromConfig(cfg.Subtitles), logger),
		planner: composition.NewPlanner(cfg, logger),
		inspect: ffprobe.Inspect,
		checks:  preflight.RunAll,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.renderer == nil {
		c.renderer = render.NewRenderer(cfg, logger)
	}
	if c.fetcher == nil {
		c.fetcher = assets.NewFetcher(cfg, logger)
	}
	return c
}

// Prepare runs the planning stage without rendering: durations, timeline,
// materials, composition plan and subtitle cues. The SRT is written.
func (c *Composer) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	if req.Manifest == nil {
		return nil, services.Wrap(services.ErrValidation, "planning", "prepare", "manifest is required", nil)
	}
	id := c.newID()
	ctx = services.WithRequestID(ctx, id)
	ctx = services.WithStage(ctx, string(history.StatusPlanning))
	return c.prepare(ctx, id, req)
}

func (c *Composer) prepare(ctx context.Context, id string, req Request) (_ *Prepared, err error) {
	logger := logging.WithContext(ctx, c.logger)
	m := req.Manifest

	if c.checks != nil {
		if summary := preflight.Summary(c.checks(ctx, c.cfg)); summary != "" {
			return nil, services.Wrap(services.ErrConfiguration, "planning", "preflight", summary, nil)
		}
	}

	prep := &Prepared{
		RequestID:    id,
		Outputs:      ResolveOutputs(c.cfg, m, req.Output),
		materialsDir: filepath.Join(c.cfg.Paths.WorkDir, "materials-"+id),
	}
	prep.VideoDuration, prep.AudioDuration = c.durations(ctx, m)
	if prep.AudioDuration <= 0 {
		return nil, services.Wrap(services.ErrValidation, "planning", "durations",
			"narration duration unknown (set audio_duration, provide alignment, or install ffprobe)", nil)
	}

	tl, err := c.mapper.Map(ctx, m.Segments, m.Alignment, prep.AudioDuration)
	if err != nil {
		return nil, err
	}
	prep.Timeline = tl

	// Downloads never outlive a failed preparation.
	defer func() {
		if err != nil {
			c.removeMaterials(ctx, prep.materialsDir)
		}
	}()
	needed := neededMaterials(m, tl)
	fetched, err := c.fetcher.Fetch(ctx, needed, prep.materialsDir)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "planning", "materials", "fetch materials", err)
	}
	c.confirmKinds(ctx, logger, needed, &fetched)
	prep.Assets = fetched
	c.reportUnknownMaterials(logger, m, tl)

	plan, err := c.planner.Plan(ctx, composition.Request{
		BaseVideo:      m.BaseVideo,
		NarrationAudio: m.NarrationAudio,
		Entries:        tl.Entries,
		Assets:         fetched.Assets,
		VideoDuration:  prep.VideoDuration,
		AudioDuration:  prep.AudioDuration,
	})
	if err != nil {
		return nil, err
	}
	prep.Plan = plan

	if err := c.writeSubtitles(ctx, logger, m, prep); err != nil {
		return nil, err
	}
	return prep, nil
}

// Compose runs the whole request.
func (c *Composer) Compose(ctx context.Context, req Request) (*Result, error) {
	if req.Manifest == nil {
		return nil, services.Wrap(services.ErrValidation, "planning", "compose", "manifest is required", nil)
	}
	id := c.newID()
	ctx = services.WithRequestID(ctx, id)
	run := &run{composer: c, id: id, status: history.StatusPlanning}
	run.start(ctx, req)

	planCtx := services.WithStage(ctx, string(history.StatusPlanning))
	prep, err := c.prepare(planCtx, id, req)
	if err != nil {
		return run.fail(planCtx, nil, err)
	}
	defer c.Cleanup(planCtx, prep)
	result := &Result{Prepared: *prep}

	baseCtx := services.WithStage(ctx, string(history.StatusRenderingBase))
	run.advance(baseCtx, history.StatusRenderingBase, "")
	if err := c.renderer.Render(baseCtx, prep.Plan, prep.Outputs.Base); err != nil {
		return run.fail(baseCtx, result, err)
	}

	if prep.Outputs.BurnIn {
		subCtx := services.WithStage(ctx, string(history.StatusRenderingSubtitles))
		if len(prep.Cues) == 0 {
			logging.WarnWithContext(logging.WithContext(subCtx, c.logger), "no subtitle cues; skipping burn-in", "subtitles_skipped",
				logging.String(logging.FieldImpact, "final video has no burned subtitles"),
			)
			if err := fileutil.MoveFile(prep.Outputs.Base, prep.Outputs.Final); err != nil {
				return run.fail(subCtx, result, err)
			}
		} else {
			run.advance(subCtx, history.StatusRenderingSubtitles, "")
			if err := c.renderer.BurnSubtitles(subCtx, prep.Outputs.Base, prep.Outputs.Subtitles, prep.Outputs.Final); err != nil {
				return run.fail(subCtx, result, err)
			}
			if err := c.degrade(subCtx, "intermediate render left on disk", removeIntermediate(prep.Outputs.Base)); err != nil {
				return run.fail(subCtx, result, err)
			}
		}
	}

	run.advance(ctx, history.StatusDone, "")
	run.summarize(ctx, prep)
	result.Status = history.StatusDone
	return result, nil
}

func (c *Composer) durations(ctx context.Context, m *manifest.Manifest) (video, audio float64) {
	logger := logging.WithContext(ctx, c.logger)
	probe := func(path string) float64 {
		if c.inspect == nil {
			return 0
		}
		res, err := c.inspect(ctx, deps.ResolveFFprobePath(c.cfg.FFmpeg.FFprobeBinary), path)
		if err != nil {
			logging.WarnWithContext(logger, "ffprobe failed; duration unknown", "probe_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "output length falls back to the other input"),
			)
			return 0
		}
		return res.DurationSeconds()
	}

	video = probe(m.BaseVideo)
	switch {
	case m.AudioDuration > 0:
		audio = m.AudioDuration
	default:
		audio = probe(m.NarrationAudio)
		if audio <= 0 && m.Alignment != nil {
			audio = m.Alignment.AudioDuration
		}
	}
	logger.Info("durations resolved",
		logging.Float64("video_seconds", video),
		logging.Float64("audio_seconds", audio),
		logging.Float64("output_seconds", composition.OutputDuration(video, audio)),
	)
	return video, audio
}

func (c *Composer) writeSubtitles(ctx context.Context, logger *slog.Logger, m *manifest.Manifest, prep *Prepared) error {
	text := strings.TrimSpace(m.NarrationText)
	if text == "" {
		logger.Info("no narration text; subtitles skipped")
		return nil
	}
	// Cues are timed against the narration, then cut at the end of the
	// output video.
	limit := composition.OutputDuration(prep.VideoDuration, prep.AudioDuration)
	cues, err := c.chunker.Chunk(ctx, text, m.Alignment, prep.AudioDuration)
	if err != nil {
		return err
	}
	trimmed := subtitles.TrimCues(cues, limit)
	if dropped := len(cues) - len(trimmed); dropped > 0 {
		logger.Info("subtitle cues past the video end dropped",
			logging.Int("dropped", dropped),
			logging.Float64("output_seconds", limit),
		)
	}
	cues = trimmed
	prep.Cues = cues
	if len(cues) == 0 {
		return nil
	}
	if err := subtitles.WriteSRT(prep.Outputs.Subtitles, cues); err != nil {
		return services.Wrap(services.ErrConfiguration, "planning", "write subtitles", prep.Outputs.Subtitles, err)
	}
	prep.SubtitleIssues = subtitles.ValidateSRTContent(prep.Outputs.Subtitles, limit)
	if len(prep.SubtitleIssues) > 0 {
		logging.WarnWithContext(logger, "subtitle validation reported issues", "subtitle_validation",
			logging.String("issues", strings.Join(prep.SubtitleIssues, "; ")),
			logging.String(logging.FieldImpact, "subtitles may display incorrectly"),
		)
	}
	logger.Info("subtitles written",
		logging.String("path", prep.Outputs.Subtitles),
		logging.Int("cues", len(cues)),
	)
	return nil
}

// reportUnknownMaterials logs segments whose material id the manifest does
// not declare at all.
func (c *Composer) reportUnknownMaterials(logger *slog.Logger, m *manifest.Manifest, tl timeline.Timeline) {
	for _, id := range tl.MaterialIDs() {
		if _, ok := m.MaterialByID(id); ok {
			continue
		}
		err := services.Wrap(services.ErrUnknownMaterial, "planning", "materials", id, nil)
		logging.WarnWithContext(logger, "segment references an undeclared material", "unknown_material",
			logging.String("material_id", id),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the base video shows for that segment"),
		)
	}
}

// Cleanup removes downloaded materials. Compose calls it; callers of Prepare
// call it once they are done with the plan.
func (c *Composer) Cleanup(ctx context.Context, prep *Prepared) {
	if prep == nil {
		return
	}
	c.removeMaterials(ctx, prep.materialsDir)
}

func (c *Composer) removeMaterials(ctx context.Context, dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		_ = c.degrade(ctx, "material cleanup failed",
			services.Wrap(services.ErrResourceCleanup, "pipeline", "cleanup", dir, err))
	}
}

// removeIntermediate deletes the base render once the subtitled output
// exists.
func removeIntermediate(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrResourceCleanup, "pipeline", "cleanup", path, err)
	}
	return nil
}

// degrade logs recoverable errors as warnings and swallows them. Anything
// else is returned for the caller to abort on.
func (c *Composer) degrade(ctx context.Context, msg string, err error) error {
	if err == nil || !services.Recoverable(err) {
		return err
	}
	logging.WarnWithContext(logging.WithContext(ctx, c.logger), msg, "resource_cleanup",
		logging.Error(err),
		logging.String(logging.FieldImpact, "temporary files remain on disk"),
	)
	return nil
}

// confirmKinds probes materials whose kind was guessed from the file name
// and corrects it when ffprobe disagrees.
func (c *Composer) confirmKinds(ctx context.Context, logger *slog.Logger, materials []manifest.Material, fetched *assets.Result) {
	if c.inspect == nil {
		return
	}
	binary := deps.ResolveFFprobePath(c.cfg.FFmpeg.FFprobeBinary)
	for _, mat := range materials {
		asset, ok := fetched.Assets[mat.ID]
		if !ok || !mat.KindInferred {
			continue
		}
		res, err := c.inspect(ctx, binary, asset.Path)
		if err != nil || res.VideoStreamCount() == 0 {
			logger.Debug("material kind not confirmed",
				logging.String("material_id", mat.ID),
				logging.String("kind", string(asset.Kind)),
			)
			continue
		}
		kind := composition.KindVideo
		if res.IsStillImage() {
			kind = composition.KindImage
		}
		if kind == asset.Kind {
			continue
		}
		logger.Info("material kind corrected by probe",
			logging.String("material_id", mat.ID),
			logging.String("inferred", string(asset.Kind)),
			logging.String("probed", string(kind)),
		)
		asset.Kind = kind
		fetched.Assets[mat.ID] = asset
	}
}

// neededMaterials keeps only materials the timeline references.
func neededMaterials(m *manifest.Manifest, tl timeline.Timeline) []manifest.Material {
	ids := tl.MaterialIDs()
	out := make([]manifest.Material, 0, len(ids))
	for _, id := range ids {
		if mat, ok := m.MaterialByID(id); ok {
			out = append(out, mat)
		}
	}
	return out
}

// run tracks the state machine of one Compose call.
type run struct {
	composer *Composer
	id       string
	status   history.Status
}

func (r *run) start(ctx context.Context, req Request) {
	logger := logging.WithContext(ctx, r.composer.logger)
	logger.Info("composition request started",
		logging.String(logging.FieldEventType, "request_started"),
		logging.String("manifest", req.ManifestPath),
	)
	if r.composer.store == nil {
		return
	}
	outputs := ResolveOutputs(r.composer.cfg, req.Manifest, req.Output)
	subs := ""
	if strings.TrimSpace(req.Manifest.NarrationText) != "" {
		subs = outputs.Subtitles
	}
	if _, err := r.composer.store.Create(ctx, history.Record{
		ID:            r.id,
		ManifestPath:  req.ManifestPath,
		OutputPath:    outputs.Final,
		SubtitlesPath: subs,
	}); err != nil {
		r.historyFailed(logger, err)
	}
}

func (r *run) advance(ctx context.Context, to history.Status, message string) {
	logger := logging.WithContext(ctx, r.composer.logger)
	if !history.CanTransition(r.status, to) {
		logging.ErrorWithContext(logger, "illegal state transition", "state_machine",
			logging.String("from", string(r.status)),
			logging.String("to", string(to)),
		)
		return
	}
	logger.Info("state transition",
		logging.String(logging.FieldEventType, "state_transition"),
		logging.String("from", string(r.status)),
		logging.String("to", string(to)),
	)
	r.status = to
	if r.composer.store != nil {
		if err := r.composer.store.Advance(ctx, r.id, to, message); err != nil {
			r.historyFailed(logger, err)
		}
	}
}

func (r *run) fail(ctx context.Context, result *Result, err error) (*Result, error) {
	logger := logging.WithContext(ctx, r.composer.logger)
	recoverable := services.Recoverable(err)
	impact := "request aborted; earlier artifacts are kept"
	if recoverable {
		impact = "request aborted on an input issue; fix the manifest and rerun"
	}
	attrs := []logging.Attr{
		logging.String("from", string(r.status)),
		logging.Error(err),
		logging.Bool("recoverable", recoverable),
		logging.String(logging.FieldImpact, impact),
	}
	if perr, ok := render.AsProcessError(err); ok {
		attrs = append(attrs, logging.Int("exit_code", perr.ExitCode))
	}
	logging.ErrorWithContext(logger, "composition request failed", "request_failed", attrs...)
	r.advance(ctx, history.StatusFailed, err.Error())
	if result != nil {
		result.Status = history.StatusFailed
		r.summarize(ctx, &result.Prepared)
	}
	return result, err
}

func (r *run) summarize(ctx context.Context, prep *Prepared) {
	if r.composer.store == nil || prep == nil {
		return
	}
	report := prep.Timeline.Report
	sum := history.Summary{
		Segments:       report.Segments,
		Matched:        report.Matched,
		Dropped:        report.Dropped,
		FallbackReason: report.Reason,
		Overlays:       len(prep.Plan.Overlays),
		Cues:           len(prep.Cues),
		OutputDuration: prep.Plan.Duration,
	}
	if err := r.composer.store.SetSummary(ctx, r.id, sum); err != nil {
		r.historyFailed(logging.WithContext(ctx, r.composer.logger), err)
	}
}

func (r *run) historyFailed(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "history update failed", "history_write",
		logging.Error(err),
		logging.String(logging.FieldImpact, "the render ledger is incomplete for this request"),
	)
}
