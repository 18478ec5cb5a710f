package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ResolveFFmpegPath returns the ffmpeg binary to execute, defaulting to
// "ffmpeg" on PATH.
func ResolveFFmpegPath(configured string) string {
	return resolve(configured, "ffmpeg")
}

// ResolveFFprobePath returns the ffprobe binary to execute, defaulting to
// "ffprobe" on PATH.
func ResolveFFprobePath(configured string) string {
	return resolve(configured, "ffprobe")
}

func resolve(configured, fallback string) string {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		configured = fallback
	}
	if strings.ContainsRune(configured, '/') {
		return configured
	}
	if resolved, err := exec.LookPath(configured); err == nil {
		return resolved
	}
	return configured
}

// CheckFilter reports whether the ffmpeg build lists the named filter.
// Subtitle burn-in needs "subtitles", which is only present when ffmpeg is
// built with libass.
func CheckFilter(ctx context.Context, ffmpegBinary, filter string) Status {
	binary := ResolveFFmpegPath(ffmpegBinary)
	status := Status{
		Name:        fmt.Sprintf("FFmpeg %s filter", filter),
		Command:     binary,
		Description: "Required for subtitle burn-in",
		Optional:    true,
	}
	output, err := exec.CommandContext(ctx, binary, "-hide_banner", "-filters").Output()
	if err != nil {
		status.Detail = fmt.Sprintf("list filters: %v", err)
		return status
	}
	if hasFilter(output, filter) {
		status.Available = true
		return status
	}
	status.Detail = fmt.Sprintf("filter %q not compiled in", filter)
	return status
}

func hasFilter(listing []byte, filter string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(listing))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// Rows look like: " ... subtitles  V->V  Render text subtitles ..."
		if len(fields) >= 2 && fields[1] == filter {
			return true
		}
	}
	return false
}
