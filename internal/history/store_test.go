package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"montage/internal/history"
	"montage/internal/services"
	"montage/internal/testsupport"
)

func TestCreateAndAdvanceThroughHappyPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	rec, err := store.Create(ctx, history.Record{ID: "req-1", ManifestPath: "/req/request.json", OutputPath: "/out/final.mp4"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if rec.Status != history.StatusPlanning {
		t.Fatalf("new record status = %s", rec.Status)
	}

	steps := []history.Status{history.StatusRenderingBase, history.StatusRenderingSubtitles, history.StatusDone}
	for _, step := range steps {
		if err := store.Advance(ctx, "req-1", step, ""); err != nil {
			t.Fatalf("Advance to %s failed: %v", step, err)
		}
	}
	if err := store.SetSummary(ctx, "req-1", history.Summary{Segments: 2, Matched: 1, Dropped: 0, Overlays: 1, Cues: 3, OutputDuration: 12}); err != nil {
		t.Fatalf("SetSummary failed: %v", err)
	}

	got, err := store.Get(ctx, "req-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != history.StatusDone || got.Summary.Cues != 3 || got.Summary.OutputDuration != 12 {
		t.Fatalf("unexpected record %#v", got)
	}
	if got.ManifestPath != "/req/request.json" || got.SubtitlesPath != "" {
		t.Fatalf("unexpected paths %#v", got)
	}

	trans, err := store.Transitions(ctx, "req-1")
	if err != nil {
		t.Fatalf("Transitions failed: %v", err)
	}
	want := []history.Status{history.StatusPlanning, history.StatusRenderingBase, history.StatusRenderingSubtitles, history.StatusDone}
	if len(trans) != len(want) {
		t.Fatalf("expected %d transitions, got %d", len(want), len(trans))
	}
	for i, tr := range trans {
		if tr.Status != want[i] {
			t.Fatalf("transition %d = %s, want %s", i, tr.Status, want[i])
		}
	}
}

func TestAdvanceRejectsIllegalMoves(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if _, err := store.Create(ctx, history.Record{ID: "req-2", OutputPath: "/out/a.mp4"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Advance(ctx, "req-2", history.StatusDone, ""); !errors.Is(err, history.ErrInvalidTransition) {
		t.Fatalf("planning -> done should be rejected, got %v", err)
	}
	if err := store.Advance(ctx, "req-2", history.StatusFailed, "ffmpeg exited with code 1"); err != nil {
		t.Fatalf("planning -> failed should be allowed: %v", err)
	}
	if err := store.Advance(ctx, "req-2", history.StatusRenderingBase, ""); !errors.Is(err, history.ErrInvalidTransition) {
		t.Fatalf("terminal state must not be re-entered, got %v", err)
	}
	rec, err := store.Get(ctx, "req-2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.ErrorMessage != "ffmpeg exited with code 1" {
		t.Fatalf("error message = %q", rec.ErrorMessage)
	}
	if err := store.Advance(ctx, "nope", history.StatusFailed, ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.Create(ctx, history.Record{ID: id, OutputPath: "/out/" + id + ".mp4"}); err != nil {
			t.Fatalf("Create %s failed: %v", id, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	records, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 || records[0].ID != "c" || records[1].ID != "b" {
		t.Fatalf("unexpected order %#v", records)
	}
}

func TestFailInterrupted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if _, err := store.Create(ctx, history.Record{ID: "stale", OutputPath: "/out/s.mp4"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Advance(ctx, "stale", history.StatusRenderingBase, ""); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if _, err := store.Create(ctx, history.Record{ID: "finished", OutputPath: "/out/f.mp4"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Advance(ctx, "finished", history.StatusFailed, "boom"); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	n, err := store.FailInterrupted(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("FailInterrupted failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 interrupted record, got %d", n)
	}
	rec, _ := store.Get(ctx, "stale")
	if rec.Status != history.StatusFailed || rec.ErrorMessage != history.InterruptedReason {
		t.Fatalf("unexpected stale record %#v", rec)
	}
	done, _ := store.Get(ctx, "finished")
	if done.ErrorMessage != "boom" {
		t.Fatalf("terminal record should be untouched, got %#v", done)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := first.Create(context.Background(), history.Record{ID: "x", OutputPath: "/o.mp4"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_ = first.Close()

	second := testsupport.MustOpenHistory(t, cfg)
	if _, err := second.Get(context.Background(), "x"); err != nil {
		t.Fatalf("record lost after reopen: %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to history.Status
		want     bool
	}{
		{history.StatusPlanning, history.StatusRenderingBase, true},
		{history.StatusRenderingBase, history.StatusDone, true},
		{history.StatusRenderingBase, history.StatusPlanning, false},
		{history.StatusDone, history.StatusFailed, false},
		{history.StatusFailed, history.StatusPlanning, false},
	}
	for _, tt := range tests {
		if got := history.CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%s, %s) = %v", tt.from, tt.to, got)
		}
	}
	if _, ok := history.ParseStatus("RENDERING_BASE"); !ok {
		t.Fatal("ParseStatus should be case-insensitive")
	}
}

func TestResolveIDPrefix(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"abc-111", "abc-222", "def_333"} {
		if _, err := store.Create(ctx, history.Record{ID: id, OutputPath: "/out/" + id + ".mp4"}); err != nil {
			t.Fatalf("Create %s failed: %v", id, err)
		}
	}

	if got, err := store.ResolveID(ctx, "abc-2"); err != nil || got != "abc-222" {
		t.Fatalf("ResolveID(abc-2) = %q, %v", got, err)
	}
	if _, err := store.ResolveID(ctx, "abc"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ambiguous prefix to be a validation error, got %v", err)
	}
	if _, err := store.ResolveID(ctx, "zzz"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// LIKE wildcards in the prefix match literally.
	if _, err := store.ResolveID(ctx, "def%"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected literal %% to miss, got %v", err)
	}
	if got, err := store.ResolveID(ctx, "def_"); err != nil || got != "def_333" {
		t.Fatalf("ResolveID(def_) = %q, %v", got, err)
	}
}
