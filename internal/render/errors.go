package render

import (
	"errors"
	"fmt"
	"strings"

	"montage/internal/services"
)

// ProcessError reports a failed ffmpeg pass.
type ProcessError struct {
	Pass        string
	ExitCode    int
	Diagnostics string
	Args        []string
	Err         error
}

func (e *ProcessError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s pass", services.ErrRenderProcess, e.Pass)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " exited with code %d", e.ExitCode)
	} else if e.Err != nil {
		fmt.Fprintf(&b, " failed: %v", e.Err)
	}
	if line := lastLine(e.Diagnostics); line != "" {
		b.WriteString(": ")
		b.WriteString(line)
	}
	return b.String()
}

// Unwrap exposes both the taxonomy marker and the underlying cause.
func (e *ProcessError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrRenderProcess}
	}
	return []error{services.ErrRenderProcess, e.Err}
}

// AsProcessError extracts a *ProcessError from err.
func AsProcessError(err error) (*ProcessError, bool) {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// tail keeps the last limit bytes of data, starting on a UTF-8 boundary.
func tail(data []byte, limit int) string {
	if limit <= 0 || len(data) <= limit {
		return strings.TrimSpace(string(data))
	}
	cut := data[len(data)-limit:]
	for len(cut) > 0 && cut[0]&0xC0 == 0x80 {
		cut = cut[1:]
	}
	return strings.TrimSpace(string(cut))
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
