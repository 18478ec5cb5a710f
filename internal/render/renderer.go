package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"montage/internal/composition"
	"montage/internal/config"
	"montage/internal/deps"
	"montage/internal/fileutil"
	"montage/internal/logging"
	"montage/internal/services"
	"montage/internal/subtitles"
)

// Pass names.
const (
	PassBase      = "base"
	PassSubtitles = "subtitles"
)

// CommandRunner executes name with args and returns the captured stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Renderer runs composition and subtitle passes.
type Renderer struct {
	binary    string
	workDir   string
	tailBytes int
	style     subtitles.Style
	encoding  composition.Encoding
	logger    *slog.Logger
	run       CommandRunner
}

// NewRenderer constructs a renderer from configuration.
func NewRenderer(cfg *config.Config, logger *slog.Logger) *Renderer {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return &Renderer{
		binary:    deps.ResolveFFmpegPath(cfg.FFmpeg.Binary),
		workDir:   cfg.Paths.WorkDir,
		tailBytes: cfg.FFmpeg.DiagnosticTailBytes,
		style:     subtitles.StyleFromConfig(cfg.Subtitles),
		encoding: composition.Encoding{
			VideoCodec:  cfg.FFmpeg.VideoCodec,
			Preset:      cfg.FFmpeg.Preset,
			CRF:         cfg.FFmpeg.CRF,
			PixelFormat: cfg.FFmpeg.PixelFormat,
		},
		logger: logging.NewComponentLogger(logger, "renderer"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (r *Renderer) WithCommandRunner(run CommandRunner) {
	if r != nil && run != nil {
		r.run = run
	}
}

// Render executes plan and moves the result to dest.
func (r *Renderer) Render(ctx context.Context, plan composition.Plan, dest string) error {
	if strings.TrimSpace(dest) == "" {
		return services.Wrap(services.ErrValidation, "render", "render", "destination is required", nil)
	}
	return r.runPass(ctx, PassBase, dest, func(_ *Workspace, out string) ([]string, error) {
		return plan.Args(out), nil
	}, logging.Int("overlays", len(plan.Overlays)), logging.Bool("pass_through", plan.PassThrough))
}

// BurnSubtitles renders source with srtPath burned in and writes dest. The
// audio stream is copied untouched.
func (r *Renderer) BurnSubtitles(ctx context.Context, source, srtPath, dest string) error {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(srtPath) == "" || strings.TrimSpace(dest) == "" {
		return services.Wrap(services.ErrValidation, "render", "burn subtitles", "source, subtitles and destination are required", nil)
	}
	if _, err := os.Stat(srtPath); err != nil {
		return services.Wrap(services.ErrNotFound, "render", "burn subtitles", "subtitle file missing", err)
	}
	return r.runPass(ctx, PassSubtitles, dest, func(ws *Workspace, out string) ([]string, error) {
		// The filter option syntax is fragile with arbitrary paths, so the
		// file is read from a fixed name inside the workspace.
		local := ws.Path("subtitles.srt")
		if err := fileutil.CopyFile(srtPath, local); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "render", "burn subtitles", "stage subtitle file", err)
		}
		return r.subtitleArgs(source, local, out), nil
	}, logging.String("subtitles", srtPath))
}

func (r *Renderer) subtitleArgs(source, srtPath, out string) []string {
	filter := fmt.Sprintf("subtitles=%s:force_style='%s'", escapeFilterPath(srtPath), r.style.ForceStyle())
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", source, "-vf", filter}
	args = append(args, r.encoding.Args()...)
	args = append(args, "-c:a", "copy", "-movflags", "+faststart", out)
	return args
}

func (r *Renderer) runPass(ctx context.Context, pass, dest string, build func(ws *Workspace, out string) ([]string, error), attrs ...logging.Attr) error {
	ctx = services.WithPass(ctx, pass)
	logger := logging.WithContext(ctx, r.logger)

	ws, err := NewWorkspace(r.workDir, pass, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = ws.Close()
	}()

	ext := filepath.Ext(dest)
	if ext == "" {
		ext = ".mp4"
	}
	out := ws.Path(pass + ext)
	args, err := build(ws, out)
	if err != nil {
		return err
	}

	logger.Info("ffmpeg pass started", logging.Args(append([]logging.Attr{
		logging.String("destination", dest),
		logging.String("workspace", ws.Dir),
	}, attrs...)...)...)
	logger.Debug("ffmpeg command", logging.String("command", composition.CommandLine(r.binary, args)))

	started := time.Now()
	stderr, runErr := r.run(ctx, r.binary, args...)
	if runErr != nil {
		perr := &ProcessError{
			Pass:        pass,
			ExitCode:    exitCode(runErr),
			Diagnostics: tail(stderr, r.tailBytes),
			Args:        args,
			Err:         runErr,
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			perr.Err = errors.Join(runErr, ctxErr)
		}
		logging.ErrorWithContext(logger, "ffmpeg pass failed", "render_process_failed",
			logging.Int("exit_code", perr.ExitCode),
			logging.String("diagnostics", perr.Diagnostics),
			logging.String(logging.FieldErrorHint, "inspect the diagnostics for the failing filter or input"),
		)
		return perr
	}
	if !fileutil.NonEmptyFile(out) {
		return &ProcessError{
			Pass:        pass,
			ExitCode:    0,
			Diagnostics: "ffmpeg exited cleanly but produced no output\n" + tail(stderr, r.tailBytes),
			Args:        args,
		}
	}
	if err := fileutil.MoveFile(out, dest); err != nil {
		return services.Wrap(services.ErrConfiguration, "render", pass, "move output into place", err)
	}

	logger.Info("ffmpeg pass completed",
		logging.String(logging.FieldEventType, "render_pass_complete"),
		logging.String("destination", dest),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// escapeFilterPath quotes a path for use as a filter option value.
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	return "'" + replacer.Replace(path) + "'"
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}
