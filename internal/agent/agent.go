// Package agent coordinates the sensing station: it owns the sensor loop
// lifecycle, the shared detection state, and device teardown.
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/sentry/internal/alert"
	"github.com/mikeyg42/sentry/internal/capture"
	"github.com/mikeyg42/sentry/internal/config"
	"github.com/mikeyg42/sentry/internal/evidence"
	"github.com/mikeyg42/sentry/internal/gate"
	"github.com/mikeyg42/sentry/internal/metrics"
	"github.com/mikeyg42/sentry/internal/recording"
	"github.com/mikeyg42/sentry/internal/report"
	"github.com/mikeyg42/sentry/internal/sensor"
)

// ErrNoCamera is returned when detection is started without a camera.
var ErrNoCamera = errors.New("camera not available")

// RunState is the coordinator lifecycle state.
type RunState int

const (
	// StateStopped means no sensor loops are running.
	StateStopped RunState = iota
	// StateRunning means the detection workers are live.
	StateRunning
)

// quiesceTimeout bounds how long StopDetection waits for in-flight device
// operations before releasing handles anyway.
const quiesceTimeout = 500 * time.Millisecond

// Agent wires the pipeline together and exposes the start/stop/submit
// entry points shared by the control API and the remote command poller.
type Agent struct {
	cfg        *config.Config
	thresholds *config.Thresholds
	camera     capture.Camera
	mic        capture.Microphone

	flags    *sensor.Flags
	gate     *gate.Gate
	machine  *recording.Machine
	capturer *evidence.Capturer
	reporter *report.Reporter
	alerts   *alert.Log
	hub      *alert.Hub
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger

	mu     sync.Mutex
	state  RunState
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New assembles the coordinator. camera and mic may be nil; detection then
// refuses to start (camera) or runs without the audio sensor (mic).
func New(cfg *config.Config, thresholds *config.Thresholds, camera capture.Camera, mic capture.Microphone,
	flags *sensor.Flags, g *gate.Gate, machine *recording.Machine, capturer *evidence.Capturer,
	reporter *report.Reporter, alerts *alert.Log, hub *alert.Hub, m *metrics.Metrics,
	logger *zap.SugaredLogger) *Agent {
	return &Agent{
		cfg:        cfg,
		thresholds: thresholds,
		camera:     camera,
		mic:        mic,
		flags:      flags,
		gate:       g,
		machine:    machine,
		capturer:   capturer,
		reporter:   reporter,
		alerts:     alerts,
		hub:        hub,
		metrics:    m,
		logger:     logger,
	}
}

// StartDetection spawns the sensor loops. Idempotent: starting while
// running is a no-op.
func (a *Agent) StartDetection() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateRunning {
		return nil
	}
	if a.camera == nil {
		return ErrNoCamera
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.state = StateRunning
	a.metrics.DetectionActive.Set(1)
	a.alerts.Add("Detection system activated")
	a.logger.Infow("detection started")

	motionLoop := sensor.NewMotionLoop(a.camera, a.thresholds, a.gate, a.reporter,
		a.flags, a.alerts, a.metrics, a.logger,
		a.cfg.Detection.PixelThreshold, a.cfg.Detection.MotionPollInterval)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		motionLoop.Run(ctx)
	}()

	if a.mic != nil {
		audioLoop := sensor.NewAudioLoop(a.mic.Buffers(), a.thresholds, a.gate, a.reporter,
			a.machine, a.flags, a.alerts, a.metrics, a.logger)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			audioLoop.Run(ctx)
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sampleFrames(ctx, motionLoop)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.broadcastStatus(ctx)
	}()

	return nil
}

// StopDetection signals the workers, waits briefly for them to quiesce,
// and abandons any in-progress recording episode.
func (a *Agent) StopDetection() {
	a.mu.Lock()
	if a.state != StateRunning {
		a.mu.Unlock()
		return
	}
	a.state = StateStopped
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	cancel()
	waitTimeout(&a.wg, quiesceTimeout)

	a.machine.Abort()
	a.flags.Reset()
	a.metrics.DetectionActive.Set(0)
	a.alerts.Add("Detection system deactivated")
	a.logger.Infow("detection stopped")
}

// SubmitReport forwards a manual report to the reporter.
func (a *Agent) SubmitReport(incidentType, description string) error {
	return a.reporter.SubmitReport(incidentType, description)
}

// Running reports whether detection is active.
func (a *Agent) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == StateRunning
}

// Status snapshots the state the UI renders.
func (a *Agent) Status() alert.Status {
	return alert.Status{
		Running:   a.Running(),
		Motion:    a.flags.Motion(),
		Sound:     a.flags.Sound(),
		Recording: a.machine.Active(),
	}
}

// sampleFrames captures the current camera frame as image evidence at a
// fixed cadence while an episode is active, and drives episode expiry so
// recordings end even when the microphone is silent or absent.
func (a *Agent) sampleFrames(ctx context.Context, motion *sensor.MotionLoop) {
	ticker := time.NewTicker(a.cfg.Detection.FrameSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !a.machine.Active() {
			continue
		}
		if frame := motion.LatestFrame(); frame != nil {
			if path, err := a.capturer.CaptureImage("motion", frame); err == nil {
				a.machine.NoteImage(path)
			}
		}
		a.machine.CheckExpiry()
	}
}

// broadcastStatus pushes a status snapshot to UI clients once a second.
// Best-effort display refresh; never blocks detection.
func (a *Agent) broadcastStatus(ctx context.Context) {
	if a.hub == nil {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := a.Status()
			a.hub.Broadcast(alert.Message{Type: "status", Status: &s})
		}
	}
}

// Close stops detection and releases the devices in fixed order: audio
// stream first, then the camera. Each release is guarded so a failure in
// one does not prevent the next.
func (a *Agent) Close() {
	a.StopDetection()

	if a.mic != nil {
		if err := a.mic.Close(); err != nil {
			a.logger.Warnw("microphone release failed", "error", err)
		}
	}
	if a.camera != nil {
		if err := a.camera.Close(); err != nil {
			a.logger.Warnw("camera release failed", "error", err)
		}
	}
}

// waitTimeout waits for wg up to d, returning true if it finished in time.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
