package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"montage/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrRenderProcess, "render", "base", "ffmpeg exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrRenderProcess) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"render", "base", "ffmpeg exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}

func TestRecoverableClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"mismatch", services.Wrap(services.ErrAlignmentMismatch, "timeline", "map", "snippet", nil), true},
		{"invalid alignment", fmt.Errorf("parse: %w", services.ErrInvalidAlignment), true},
		{"unknown material", services.ErrUnknownMaterial, true},
		{"cleanup", services.ErrResourceCleanup, true},
		{"render", services.Wrap(services.ErrRenderProcess, "render", "base", "", nil), false},
		{"validation", services.ErrValidation, false},
		{"plain", errors.New("io"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Recoverable(tt.err); got != tt.want {
				t.Fatalf("Recoverable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestKindLabels(t *testing.T) {
	if got := services.Kind(services.Wrap(services.ErrRenderProcess, "render", "", "", nil)); got != "render_process" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := services.Kind(errors.New("x")); got != "unknown" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := services.Kind(nil); got != "" {
		t.Fatalf("unexpected kind %q", got)
	}
}
