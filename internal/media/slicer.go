package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"ragbot/internal/domain"
)

// Slicer extracts the audio for one time range of a media file.
type Slicer interface {
	Cut(ctx context.Context, path string, slice domain.AudioSlice) ([]byte, error)
}

// FFmpeg cuts slices by re-encoding the requested range to mono 16 kHz
// MP3, the cheapest shape the transcription endpoint accepts.
type FFmpeg struct {
	Binary string
}

func (f *FFmpeg) binary() string {
	if f.Binary != "" {
		return f.Binary
	}
	return "ffmpeg"
}

func (f *FFmpeg) Cut(ctx context.Context, path string, slice domain.AudioSlice) ([]byte, error) {
	var out bytes.Buffer
	var errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, f.binary(),
		"-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(slice.Start),
		"-to", formatSeconds(slice.End),
		"-i", path,
		"-vn", "-ac", "1", "-ar", "16000",
		"-f", "mp3", "pipe:1",
	)
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(errBuf.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("ffmpeg cut %s [%s-%s]: %s", path, slice.Start, slice.End, detail)
	}
	return out.Bytes(), nil
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
