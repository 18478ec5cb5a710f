package services

import (
	"errors"
	"fmt"
	"strings"
)

// Markers for the composition core. Component level markers describe
// failures the pipeline degrades around; process level markers abort the
// current render pass.
var (
	ErrAlignmentMismatch = errors.New("alignment mismatch")
	ErrInvalidAlignment  = errors.New("invalid alignment payload")
	ErrUnknownMaterial   = errors.New("unknown material reference")
	ErrRenderProcess     = errors.New("render process failure")
	ErrResourceCleanup   = errors.New("resource cleanup failure")

	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Recoverable reports whether err describes a degradation the pipeline
// continues through (reduced precision timing, skipped overlays, leaked temp
// files) rather than a failure that aborts the render pass.
func Recoverable(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrAlignmentMismatch),
		errors.Is(err, ErrInvalidAlignment),
		errors.Is(err, ErrUnknownMaterial),
		errors.Is(err, ErrResourceCleanup):
		return true
	default:
		return false
	}
}

// Kind returns a short stable label for the first marker matched by err.
// It is used as the persisted failure class in the render history.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRenderProcess):
		return "render_process"
	case errors.Is(err, ErrInvalidAlignment):
		return "invalid_alignment"
	case errors.Is(err, ErrAlignmentMismatch):
		return "alignment_mismatch"
	case errors.Is(err, ErrUnknownMaterial):
		return "unknown_material"
	case errors.Is(err, ErrResourceCleanup):
		return "resource_cleanup"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
