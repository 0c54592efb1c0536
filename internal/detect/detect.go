// Package detect provides the numeric detection primitives: the frame-diff
// motion score, the audio RMS amplitude, and the threshold comparisons that
// turn them into boolean signals.
package detect

import (
	"errors"
	"image"
	"image/color"
	"math"
)

// ErrFrameMismatch is returned when consecutive frames differ in geometry and
// cannot be compared. Callers treat it as a non-fatal warning and keep the
// previous detection flag.
var ErrFrameMismatch = errors.New("frame dimensions changed between samples")

// MotionExceeds reports whether a frame-diff score counts as motion.
// The comparison is strictly greater-than: a score exactly at the threshold
// is not motion.
func MotionExceeds(score, threshold float64) bool {
	return score > threshold
}

// SoundExceeds reports whether an RMS amplitude counts as sound. Strictly
// greater-than, same as MotionExceeds.
func SoundExceeds(rms, threshold float64) bool {
	return rms > threshold
}

// Grayscale converts a frame to 8-bit luma. Frames already in grayscale are
// returned as-is.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma, on the 16-bit channel values.
			luma := (299*r + 587*g + 114*bl) / 1000
			gray.SetGray(x, y, color.Gray{Y: uint8(luma >> 8)})
		}
	}
	return gray
}

// DiffScore computes the motion magnitude between two consecutive grayscale
// frames: absolute per-pixel difference, binarized against pixelThreshold,
// summed. Each changed pixel contributes 255 to the score, so the result is
// directly comparable with thresholds calibrated on binary-mask sums.
func DiffScore(prev, cur *image.Gray, pixelThreshold uint8) (float64, error) {
	if prev.Bounds() != cur.Bounds() {
		return 0, ErrFrameMismatch
	}

	b := prev.Bounds()
	var changed int
	for y := 0; y < b.Dy(); y++ {
		po := y * prev.Stride
		co := y * cur.Stride
		for x := 0; x < b.Dx(); x++ {
			d := int(prev.Pix[po+x]) - int(cur.Pix[co+x])
			if d < 0 {
				d = -d
			}
			if uint8(d) > pixelThreshold {
				changed++
			}
		}
	}
	return float64(changed) * 255, nil
}

// RMS computes the root-mean-square amplitude of a PCM buffer. An empty
// buffer has zero amplitude.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
