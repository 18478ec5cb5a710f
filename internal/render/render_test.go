package render

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"montage/internal/composition"
	"montage/internal/logging"
	"montage/internal/services"
	"montage/internal/testsupport"
)

type recordedCall struct {
	name string
	args []string
}

// writingRunner records the invocation and writes a small file at the output
// path, which ffmpeg always receives as its final argument.
func writingRunner(calls *[]recordedCall) CommandRunner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedCall{name: name, args: append([]string(nil), args...)})
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("rendered"), 0o644); err != nil {
			return nil, err
		}
		return []byte("frame=  10 fps=0.0\n"), nil
	}
}

func passThroughPlan() composition.Plan {
	return composition.Plan{
		Inputs: []composition.Input{
			{Path: "/media/base.mp4", Role: composition.RoleBase},
			{Path: "/media/voice.mp3", Role: composition.RoleAudio},
		},
		VideoLabel:  "0:v",
		AudioLabel:  "1:a",
		PassThrough: true,
		Duration:    12,
	}
}

func assertWorkDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected workspaces to be removed, found %d entries", len(entries))
	}
}

func TestRenderMovesOutputAndRemovesWorkspace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dest := filepath.Join(cfg.Paths.OutputDir, "final.mp4")

	var calls []recordedCall
	r := NewRenderer(cfg, logging.NewNop())
	r.WithCommandRunner(writingRunner(&calls))

	if err := r.Render(context.Background(), passThroughPlan(), dest); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(data) != "rendered" {
		t.Fatalf("unexpected dest contents %q", data)
	}
	if len(calls) != 1 {
		t.Fatalf("expected one ffmpeg call, got %d", len(calls))
	}
	joined := strings.Join(calls[0].args, " ")
	for _, want := range []string{"-i /media/base.mp4", "-i /media/voice.mp3", "-map 0:v", "-map 1:a", "-t 12.000", "-shortest"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	assertWorkDirEmpty(t, cfg.Paths.WorkDir)
}

func TestRenderProcessFailureCarriesDiagnostics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.FFmpeg.DiagnosticTailBytes = 32
	dest := filepath.Join(cfg.Paths.OutputDir, "final.mp4")

	exitErr := exec.Command("sh", "-c", "exit 3").Run()
	if exitErr == nil {
		t.Fatal("expected shell to exit non-zero")
	}
	stderr := strings.Repeat("noise line\n", 20) + "Error: invalid filter graph"

	r := NewRenderer(cfg, logging.NewNop())
	r.WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte(stderr), exitErr
	})

	err := r.Render(context.Background(), passThroughPlan(), dest)
	if err == nil {
		t.Fatal("expected render failure")
	}
	if !errors.Is(err, services.ErrRenderProcess) {
		t.Fatalf("expected ErrRenderProcess, got %v", err)
	}
	perr, ok := AsProcessError(err)
	if !ok {
		t.Fatalf("expected *ProcessError, got %T", err)
	}
	if perr.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", perr.ExitCode)
	}
	if perr.Pass != PassBase {
		t.Fatalf("pass = %q", perr.Pass)
	}
	if len(perr.Diagnostics) > 32 {
		t.Fatalf("diagnostics not truncated: %d bytes", len(perr.Diagnostics))
	}
	if !strings.HasSuffix(perr.Diagnostics, "invalid filter graph") {
		t.Fatalf("diagnostics lost the tail: %q", perr.Diagnostics)
	}
	if !strings.Contains(err.Error(), "exited with code 3") {
		t.Fatalf("unexpected error text: %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("destination should not exist after failure")
	}
	assertWorkDirEmpty(t, cfg.Paths.WorkDir)
}

func TestRenderEmptyOutputIsProcessError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	r := NewRenderer(cfg, logging.NewNop())
	r.WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, nil
	})

	err := r.Render(context.Background(), passThroughPlan(), filepath.Join(cfg.Paths.OutputDir, "out.mp4"))
	if !errors.Is(err, services.ErrRenderProcess) {
		t.Fatalf("expected ErrRenderProcess, got %v", err)
	}
}

func TestRenderCleanupFailureIsNonFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dest := filepath.Join(cfg.Paths.OutputDir, "final.mp4")

	var attempted []string
	original := removeAll
	removeAll = func(path string) error {
		attempted = append(attempted, path)
		return errors.New("device busy")
	}
	t.Cleanup(func() { removeAll = original })

	var calls []recordedCall
	r := NewRenderer(cfg, logging.NewNop())
	r.WithCommandRunner(writingRunner(&calls))

	if err := r.Render(context.Background(), passThroughPlan(), dest); err != nil {
		t.Fatalf("cleanup failure should not fail the render: %v", err)
	}
	if len(attempted) != 1 {
		t.Fatalf("expected one cleanup attempt, got %d", len(attempted))
	}
	if !strings.HasPrefix(filepath.Base(attempted[0]), "montage-base-") {
		t.Fatalf("unexpected workspace name %s", attempted[0])
	}
}

func TestWorkspaceCloseReportsCleanupMarker(t *testing.T) {
	original := removeAll
	removeAll = func(string) error { return errors.New("permission denied") }
	t.Cleanup(func() { removeAll = original })

	ws, err := NewWorkspace(t.TempDir(), PassSubtitles, logging.NewNop())
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	if err := ws.Close(); !errors.Is(err, services.ErrResourceCleanup) {
		t.Fatalf("expected ErrResourceCleanup, got %v", err)
	}
}

func TestBurnSubtitlesArgs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srt := testsupport.WriteText(t, t.TempDir(), "narration.srt", "1\n00:00:00,000 --> 00:00:01,000\nПривет\n")
	source := filepath.Join(cfg.Paths.OutputDir, "base.mp4")
	dest := filepath.Join(cfg.Paths.OutputDir, "final.mp4")

	var calls []recordedCall
	var staged string
	r := NewRenderer(cfg, logging.NewNop())
	r.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		for _, a := range args {
			if strings.HasPrefix(a, "subtitles=") {
				// The staged copy only exists while the pass runs.
				dir := filepath.Dir(args[len(args)-1])
				data, err := os.ReadFile(filepath.Join(dir, "subtitles.srt"))
				if err != nil {
					t.Errorf("staged subtitles missing: %v", err)
				}
				staged = string(data)
			}
		}
		return writingRunner(&calls)(ctx, name, args...)
	})

	if err := r.BurnSubtitles(context.Background(), source, srt, dest); err != nil {
		t.Fatalf("BurnSubtitles returned error: %v", err)
	}
	if !strings.Contains(staged, "Привет") {
		t.Fatalf("staged subtitle content mismatch: %q", staged)
	}
	args := calls[0].args
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-i "+source) {
		t.Fatalf("source input missing: %s", joined)
	}
	if !strings.Contains(joined, "-c:a copy") {
		t.Fatalf("audio should be copied: %s", joined)
	}
	var filter string
	for i, a := range args {
		if a == "-vf" && i+1 < len(args) {
			filter = args[i+1]
		}
	}
	if !strings.Contains(filter, "subtitles.srt") || !strings.Contains(filter, "force_style='FontSize=") {
		t.Fatalf("unexpected filter %q", filter)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("dest missing: %v", err)
	}
	assertWorkDirEmpty(t, cfg.Paths.WorkDir)
}

func TestBurnSubtitlesMissingFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	r := NewRenderer(cfg, logging.NewNop())
	err := r.BurnSubtitles(context.Background(), "in.mp4", filepath.Join(t.TempDir(), "none.srt"), "out.mp4")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEscapeFilterPath(t *testing.T) {
	got := escapeFilterPath(`/tmp/a:b/it's.srt`)
	want := `'/tmp/a\:b/it\'s.srt'`
	if got != want {
		t.Fatalf("escapeFilterPath = %s, want %s", got, want)
	}
}

func TestTailRespectsRuneBoundary(t *testing.T) {
	data := []byte("ошибка")
	got := tail(data, 5)
	if !strings.HasSuffix("ошибка", got) || got == "" {
		t.Fatalf("tail split a rune: %q", got)
	}
}
