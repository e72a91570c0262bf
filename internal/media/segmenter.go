package media

import (
	"fmt"
	"time"

	"ragbot/internal/domain"
)

// Segmenter plans how a file of a given duration is cut into transcribable
// slices. A file that already fits the limit is never split.
type Segmenter struct {
	maxSlice time.Duration
	overlap  time.Duration
}

func NewSegmenter(maxSlice, overlap time.Duration) (*Segmenter, error) {
	if maxSlice <= 0 {
		return nil, fmt.Errorf("max slice duration must be positive, got %s", maxSlice)
	}
	if overlap < 0 || overlap >= maxSlice {
		return nil, fmt.Errorf("slice overlap %s must be in [0, %s)", overlap, maxSlice)
	}
	return &Segmenter{maxSlice: maxSlice, overlap: overlap}, nil
}

// Plan covers [0, total) with ordered slices. Slices never exceed the
// maximum, consecutive slices overlap by exactly the configured amount,
// and the final slice is clamped to the file's end.
func (s *Segmenter) Plan(total time.Duration) ([]domain.AudioSlice, error) {
	if total <= 0 {
		return nil, fmt.Errorf("total duration must be positive, got %s", total)
	}
	if total <= s.maxSlice {
		return []domain.AudioSlice{{Index: 0, Start: 0, End: total}}, nil
	}
	step := s.maxSlice - s.overlap
	var slices []domain.AudioSlice
	for start := time.Duration(0); start < total; start += step {
		end := start + s.maxSlice
		if end > total {
			end = total
		}
		slices = append(slices, domain.AudioSlice{Index: len(slices), Start: start, End: end})
		if end == total {
			break
		}
	}
	return slices, nil
}
