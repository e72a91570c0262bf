// Package media probes and slices audio/video files so arbitrarily long
// recordings fit the transcription provider's per-call duration limit.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"ragbot/internal/domain"
)

// Prober reports the total duration of a media file.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// FFProbe shells out to ffprobe for container-level duration metadata.
type FFProbe struct {
	// Binary overrides the ffprobe executable name, mainly for tests.
	Binary string
}

func (p *FFProbe) binary() string {
	if p.Binary != "" {
		return p.Binary
	}
	return "ffprobe"
}

// Duration returns the file's total duration. It fails with a
// MediaProbeError rather than guessing when metadata is unreadable.
func (p *FFProbe) Duration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, p.binary(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, &domain.MediaProbeError{Path: path, Err: err}
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || secs <= 0 {
		return 0, &domain.MediaProbeError{Path: path, Err: fmt.Errorf("unparseable duration %q", strings.TrimSpace(string(out)))}
	}
	return time.Duration(secs * float64(time.Second)), nil
}
