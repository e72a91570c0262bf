package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/internal/domain"
	"ragbot/internal/media"
	"ragbot/internal/retryable"
)

type fakeProber struct {
	total time.Duration
	err   error
}

func (p *fakeProber) Duration(ctx context.Context, path string) (time.Duration, error) {
	return p.total, p.err
}

type fakeSlicer struct{}

func (fakeSlicer) Cut(ctx context.Context, path string, slice domain.AudioSlice) ([]byte, error) {
	return []byte(fmt.Sprintf("audio-%d", slice.Index)), nil
}

type fakeTranscriber struct {
	calls     []string
	failures  map[int]int // slice index -> remaining failures
	failIndex map[int]bool
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error) {
	var idx int
	fmt.Sscanf(string(audio), "audio-%d", &idx)
	f.calls = append(f.calls, string(audio))
	if f.failIndex[idx] {
		return "", fmt.Errorf("provider unavailable")
	}
	if f.failures[idx] > 0 {
		f.failures[idx]--
		return "", fmt.Errorf("transient failure")
	}
	return fmt.Sprintf("segment %d text", idx), nil
}

func testAggregator(t *testing.T, total time.Duration, tr Transcriber) *Aggregator {
	t.Helper()
	seg, err := media.NewSegmenter(1300*time.Second, 10*time.Second)
	require.NoError(t, err)
	policy := retryable.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAggregator(&fakeProber{total: total}, seg, fakeSlicer{}, tr, policy, "", log)
}

func TestAggregator_StitchesInOrder(t *testing.T) {
	tr := &fakeTranscriber{}
	a := testAggregator(t, 3000*time.Second, tr)

	res, err := a.TranscribeFile(context.Background(), "talk.mp3")
	require.NoError(t, err)
	assert.False(t, res.Partial())
	assert.Equal(t, 3, res.Slices)
	assert.Equal(t, "segment 0 text segment 1 text segment 2 text", res.Transcript)
	// strictly sequential submission order
	assert.Equal(t, []string{"audio-0", "audio-1", "audio-2"}, tr.calls)
}

func TestAggregator_RetriesTransientSliceFailure(t *testing.T) {
	tr := &fakeTranscriber{failures: map[int]int{1: 2}}
	a := testAggregator(t, 3000*time.Second, tr)

	res, err := a.TranscribeFile(context.Background(), "talk.mp3")
	require.NoError(t, err)
	assert.False(t, res.Partial())
	assert.Contains(t, res.Transcript, "segment 1 text")
}

func TestAggregator_MarksExhaustedSlice(t *testing.T) {
	tr := &fakeTranscriber{failIndex: map[int]bool{1: true}}
	a := testAggregator(t, 3000*time.Second, tr)

	res, err := a.TranscribeFile(context.Background(), "talk.mp3")
	require.NoError(t, err)
	assert.True(t, res.Partial())
	assert.Equal(t, []int{1}, res.FailedSlices)
	assert.Equal(t, "segment 0 text [transcript unavailable for segment 1] segment 2 text", res.Transcript)
}

func TestAggregator_ProbeFailureAbortsFile(t *testing.T) {
	seg, err := media.NewSegmenter(1300*time.Second, 10*time.Second)
	require.NoError(t, err)
	probeErr := &domain.MediaProbeError{Path: "bad.mp4", Err: fmt.Errorf("no metadata")}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewAggregator(&fakeProber{err: probeErr}, seg, fakeSlicer{}, &fakeTranscriber{}, retryable.Policy{MaxAttempts: 1}, "", log)

	_, err = a.TranscribeFile(context.Background(), "bad.mp4")
	var mpe *domain.MediaProbeError
	require.ErrorAs(t, err, &mpe)
}

func TestAggregator_ShortFileSingleCall(t *testing.T) {
	tr := &fakeTranscriber{}
	a := testAggregator(t, 600*time.Second, tr)

	res, err := a.TranscribeFile(context.Background(), "short.mp3")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Slices)
	assert.Equal(t, []string{"audio-0"}, tr.calls)
}
