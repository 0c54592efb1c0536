package config

import (
	"math"
	"sync/atomic"
)

// Thresholds exposes the two detection thresholds for lock-free reads on the
// sensor hot paths. Both loops read a threshold on every sample, so these are
// atomics rather than a shared mutex.
type Thresholds struct {
	motion atomic.Uint64
	sound  atomic.Uint64
}

// NewThresholds seeds runtime thresholds from the loaded configuration.
func NewThresholds(d DetectionConfig) *Thresholds {
	t := &Thresholds{}
	t.SetMotion(d.MotionThreshold)
	t.SetSound(d.SoundThreshold)
	return t
}

func (t *Thresholds) Motion() float64 { return math.Float64frombits(t.motion.Load()) }
func (t *Thresholds) Sound() float64  { return math.Float64frombits(t.sound.Load()) }

func (t *Thresholds) SetMotion(v float64) { t.motion.Store(math.Float64bits(v)) }
func (t *Thresholds) SetSound(v float64)  { t.sound.Store(math.Float64bits(v)) }
