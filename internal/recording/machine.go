// Package recording implements the evidence-recording state machine: a
// bounded episode during which the audio callback accumulates raw buffers
// and the frame sampler captures stills.
package recording

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the recording lifecycle state. The machine is deliberately a
// two-state enum rather than a bool so an episode cannot be half-started.
type State int

const (
	// StateIdle means no episode is active.
	StateIdle State = iota
	// StateRecording means an episode is accumulating evidence.
	StateRecording
)

func (s State) String() string {
	if s == StateRecording {
		return "recording"
	}
	return "idle"
}

// FlushFunc receives the episode's accumulated audio buffers, in arrival
// order, when the episode expires. Called outside the machine lock.
type FlushFunc func(start time.Time, buffers [][]float32)

// Machine owns the single recording episode. At most one episode is active
// at a time; Start while recording is a no-op. Appends (audio callback,
// frame sampler) and the expiry flush are mutually exclusive.
type Machine struct {
	mu         sync.Mutex
	state      State
	duration   time.Duration
	startTime  time.Time
	audioBuf   [][]float32
	imagePaths []string

	flush  FlushFunc
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewMachine creates an idle machine. flush may be nil when audio evidence
// is not being persisted (e.g. no microphone).
func NewMachine(duration time.Duration, flush FlushFunc, logger *zap.SugaredLogger) *Machine {
	return &Machine{
		duration: duration,
		flush:    flush,
		logger:   logger,
		now:      time.Now,
	}
}

// Start transitions Idle → Recording, clearing the evidence buffers and
// capturing the start time. Returns true if a new episode began; calling
// Start while an episode is active leaves it untouched.
func (m *Machine) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateRecording {
		return false
	}
	m.state = StateRecording
	m.startTime = m.now()
	m.audioBuf = nil
	m.imagePaths = nil
	m.logger.Infow("recording episode started", "duration", m.duration)
	return true
}

// Active reports whether an episode is in progress.
func (m *Machine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateRecording
}

// StartTime returns the start of the current or most recent episode.
func (m *Machine) StartTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startTime
}

// AppendAudio adds one raw PCM buffer to the active episode. Buffers are
// copied because the audio device may reuse the backing array. Appends while
// idle are dropped.
func (m *Machine) AppendAudio(buf []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRecording {
		return
	}
	cp := make([]float32, len(buf))
	copy(cp, buf)
	m.audioBuf = append(m.audioBuf, cp)
}

// NoteImage records the path of a still captured during the episode.
func (m *Machine) NoteImage(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRecording {
		return
	}
	m.imagePaths = append(m.imagePaths, path)
}

// ImageCount returns the number of stills captured in the current episode.
func (m *Machine) ImageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.imagePaths)
}

// CheckExpiry transitions Recording → Idle once the episode duration has
// elapsed, handing the accumulated audio to the flush callback. Both the
// audio loop (after each buffer) and the frame sampler call this, so an
// episode ends even if one of the devices has gone quiet. Returns true when
// a transition occurred.
func (m *Machine) CheckExpiry() bool {
	m.mu.Lock()
	if m.state != StateRecording || m.now().Sub(m.startTime) < m.duration {
		m.mu.Unlock()
		return false
	}

	start := m.startTime
	buffers := m.audioBuf
	images := len(m.imagePaths)
	m.state = StateIdle
	m.audioBuf = nil
	m.imagePaths = nil
	m.mu.Unlock()

	m.logger.Infow("recording episode complete",
		"audio_buffers", len(buffers),
		"images", images)
	if m.flush != nil {
		m.flush(start, buffers)
	}
	return true
}

// Abort drops an in-progress episode without flushing. Used at shutdown,
// where a partial flush is not guaranteed.
func (m *Machine) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRecording {
		m.logger.Warnw("recording episode abandoned at shutdown",
			"elapsed", m.now().Sub(m.startTime))
	}
	m.state = StateIdle
	m.audioBuf = nil
	m.imagePaths = nil
}
