// Package sensor contains the continuously running detection workers: the
// motion loop polling the camera and the audio loop draining the
// microphone.
package sensor

import "sync/atomic"

// Flags holds the latest instantaneous sensor readings, overwritten on
// every sample. Consumed by the UI surface and the trigger logic; no
// history is retained.
type Flags struct {
	motion atomic.Bool
	sound  atomic.Bool
}

// NewFlags returns cleared flags.
func NewFlags() *Flags { return &Flags{} }

func (f *Flags) SetMotion(v bool) { f.motion.Store(v) }
func (f *Flags) SetSound(v bool)  { f.sound.Store(v) }
func (f *Flags) Motion() bool     { return f.motion.Load() }
func (f *Flags) Sound() bool      { return f.sound.Load() }

// Reset clears both flags, used when detection stops.
func (f *Flags) Reset() {
	f.motion.Store(false)
	f.sound.Store(false)
}
