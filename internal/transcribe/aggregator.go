package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"ragbot/internal/domain"
	"ragbot/internal/media"
	"ragbot/internal/retryable"
)

// Aggregator transcribes a whole media file slice by slice and stitches
// the parts into one transcript. Slices are processed strictly in order;
// the overlap regions are kept as-is and the chunker downstream tolerates
// the mild duplication they cause.
type Aggregator struct {
	prober      media.Prober
	segmenter   *media.Segmenter
	slicer      media.Slicer
	transcriber Transcriber
	retry       retryable.Policy
	language    string
	log         *slog.Logger
}

func NewAggregator(prober media.Prober, segmenter *media.Segmenter, slicer media.Slicer, transcriber Transcriber, retry retryable.Policy, language string, log *slog.Logger) *Aggregator {
	return &Aggregator{
		prober:      prober,
		segmenter:   segmenter,
		slicer:      slicer,
		transcriber: transcriber,
		retry:       retry,
		language:    language,
		log:         log,
	}
}

// Result is one file's stitched transcript. FailedSlices lists slice
// indices that exhausted their retries; their positions carry a marker in
// the transcript instead of text.
type Result struct {
	Transcript   string
	Slices       int
	FailedSlices []int
}

// Partial reports whether any slice failed to transcribe.
func (r Result) Partial() bool { return len(r.FailedSlices) > 0 }

// TranscribeFile probes, slices and transcribes path. A probe failure
// aborts the file; a slice failure only degrades it.
func (a *Aggregator) TranscribeFile(ctx context.Context, path string) (Result, error) {
	total, err := a.prober.Duration(ctx, path)
	if err != nil {
		return Result{}, err
	}
	slices, err := a.segmenter.Plan(total)
	if err != nil {
		return Result{}, err
	}

	name := filepath.Base(path)
	var parts []string
	var failed []int
	for _, slice := range slices {
		text, err := a.transcribeSlice(ctx, path, name, slice)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			a.log.WarnContext(ctx, "slice transcription failed",
				"file", name, "slice", slice.Index, "error", err)
			failed = append(failed, slice.Index)
			parts = append(parts, fmt.Sprintf("[transcript unavailable for segment %d]", slice.Index))
			continue
		}
		parts = append(parts, strings.TrimSpace(text))
	}
	return Result{
		Transcript:   strings.Join(parts, " "),
		Slices:       len(slices),
		FailedSlices: failed,
	}, nil
}

func (a *Aggregator) transcribeSlice(ctx context.Context, path, name string, slice domain.AudioSlice) (string, error) {
	var text string
	err := retryable.Do(ctx, a.retry, retryable.Transient, func(ctx context.Context) error {
		audio, err := a.slicer.Cut(ctx, path, slice)
		if err != nil {
			return err
		}
		sliceName := fmt.Sprintf("%s.part%d.mp3", name, slice.Index)
		text, err = a.transcriber.Transcribe(ctx, audio, sliceName, a.language)
		return err
	})
	if err != nil {
		return "", &domain.TranscriptionError{Path: path, Slice: slice.Index, Err: err}
	}
	return text, nil
}
