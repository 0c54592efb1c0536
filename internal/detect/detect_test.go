package detect

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdComparisonsAreStrict(t *testing.T) {
	assert.False(t, MotionExceeds(10000, 10000), "score equal to threshold is not motion")
	assert.True(t, MotionExceeds(10001, 10000))
	assert.False(t, MotionExceeds(9999, 10000))

	assert.False(t, SoundExceeds(0.03, 0.03), "rms equal to threshold is not sound")
	assert.True(t, SoundExceeds(0.0301, 0.03))
	assert.False(t, SoundExceeds(0.0, 0.03))
}

func TestGrayscalePassthrough(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 4, 4))
	assert.Same(t, g, Grayscale(g))
}

func TestGrayscaleConvertsRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(1, 0, color.RGBA{A: 255})

	g := Grayscale(img)
	assert.Equal(t, uint8(255), g.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), g.GrayAt(1, 0).Y)
}

func TestDiffScoreIdenticalFrames(t *testing.T) {
	a := image.NewGray(image.Rect(0, 0, 8, 8))
	b := image.NewGray(image.Rect(0, 0, 8, 8))

	score, err := DiffScore(a, b, 30)
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestDiffScoreCountsChangedPixels(t *testing.T) {
	prev := image.NewGray(image.Rect(0, 0, 8, 8))
	cur := image.NewGray(image.Rect(0, 0, 8, 8))
	cur.SetGray(0, 0, color.Gray{Y: 200})
	cur.SetGray(3, 5, color.Gray{Y: 100})
	cur.SetGray(7, 7, color.Gray{Y: 31})

	score, err := DiffScore(prev, cur, 30)
	require.NoError(t, err)
	assert.Equal(t, float64(3)*255, score, "each changed pixel contributes 255")
}

func TestDiffScorePixelThresholdIsStrict(t *testing.T) {
	prev := image.NewGray(image.Rect(0, 0, 2, 2))
	cur := image.NewGray(image.Rect(0, 0, 2, 2))
	cur.SetGray(0, 0, color.Gray{Y: 30}) // exactly at the pixel threshold
	cur.SetGray(1, 1, color.Gray{Y: 31})

	score, err := DiffScore(prev, cur, 30)
	require.NoError(t, err)
	assert.Equal(t, 255.0, score, "a per-pixel delta equal to the threshold does not count")
}

func TestDiffScoreDimensionMismatch(t *testing.T) {
	prev := image.NewGray(image.Rect(0, 0, 8, 8))
	cur := image.NewGray(image.Rect(0, 0, 4, 4))

	_, err := DiffScore(prev, cur, 30)
	assert.ErrorIs(t, err, ErrFrameMismatch)
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.Zero(t, RMS([]float32{}))
	assert.InDelta(t, 0.5, RMS([]float32{0.5, -0.5, 0.5, -0.5}), 1e-9)
	assert.InDelta(t, 1.0, RMS([]float32{1, 1, 1}), 1e-9)
}
