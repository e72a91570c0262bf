package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSegmenter_Validation(t *testing.T) {
	_, err := NewSegmenter(0, 0)
	assert.Error(t, err)

	_, err = NewSegmenter(100*time.Second, 100*time.Second)
	assert.Error(t, err)

	_, err = NewSegmenter(100*time.Second, -time.Second)
	assert.Error(t, err)

	_, err = NewSegmenter(100*time.Second, 10*time.Second)
	assert.NoError(t, err)
}

func TestSegmenter_ShortFileSingleSlice(t *testing.T) {
	seg, err := NewSegmenter(1300*time.Second, 10*time.Second)
	require.NoError(t, err)

	for _, total := range []time.Duration{time.Second, 500 * time.Second, 1300 * time.Second} {
		slices, err := seg.Plan(total)
		require.NoError(t, err)
		require.Len(t, slices, 1)
		assert.Equal(t, time.Duration(0), slices[0].Start)
		assert.Equal(t, total, slices[0].End)
	}
}

func TestSegmenter_LongFile(t *testing.T) {
	// 3000s at max 1300s / overlap 10s -> [0,1300) [1290,2590) [2580,3000)
	seg, err := NewSegmenter(1300*time.Second, 10*time.Second)
	require.NoError(t, err)

	slices, err := seg.Plan(3000 * time.Second)
	require.NoError(t, err)
	require.Len(t, slices, 3)

	assert.Equal(t, time.Duration(0), slices[0].Start)
	assert.Equal(t, 1300*time.Second, slices[0].End)
	assert.Equal(t, 1290*time.Second, slices[1].Start)
	assert.Equal(t, 2590*time.Second, slices[1].End)
	assert.Equal(t, 2580*time.Second, slices[2].Start)
	assert.Equal(t, 3000*time.Second, slices[2].End)
	assert.Equal(t, 420*time.Second, slices[2].Duration())
}

func TestSegmenter_CoverageAndOverlap(t *testing.T) {
	maxSlice := 1300 * time.Second
	overlap := 10 * time.Second
	seg, err := NewSegmenter(maxSlice, overlap)
	require.NoError(t, err)

	for _, total := range []time.Duration{1301 * time.Second, 2600 * time.Second, 7777 * time.Second} {
		slices, err := seg.Plan(total)
		require.NoError(t, err)
		require.NotEmpty(t, slices)

		assert.Equal(t, time.Duration(0), slices[0].Start)
		assert.Equal(t, total, slices[len(slices)-1].End)
		for i, s := range slices {
			assert.Equal(t, i, s.Index)
			assert.LessOrEqual(t, s.Duration(), maxSlice)
			if i > 0 {
				prev := slices[i-1]
				// no gap, exact configured overlap
				assert.Equal(t, overlap, prev.End-s.Start)
			}
		}
	}
}

func TestSegmenter_InvalidTotal(t *testing.T) {
	seg, err := NewSegmenter(100*time.Second, 10*time.Second)
	require.NoError(t, err)
	_, err = seg.Plan(0)
	assert.Error(t, err)
}
