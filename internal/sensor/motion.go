package sensor

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/sentry/internal/alert"
	"github.com/mikeyg42/sentry/internal/capture"
	"github.com/mikeyg42/sentry/internal/config"
	"github.com/mikeyg42/sentry/internal/detect"
	"github.com/mikeyg42/sentry/internal/gate"
	"github.com/mikeyg42/sentry/internal/metrics"
)

// Reporter fires an auto-report after a trigger wins the cooldown gate.
type Reporter interface {
	AutoReport(eventType, description string)
}

// MotionLoop polls the camera, scores consecutive grayscale frames, and
// fires through the cooldown gate on motion. It also retains the most
// recent frame for the evidence sampler.
type MotionLoop struct {
	camera     capture.Camera
	thresholds *config.Thresholds
	gate       *gate.Gate
	reporter   Reporter
	flags      *Flags
	alerts     *alert.Log
	metrics    *metrics.Metrics
	logger     *zap.SugaredLogger

	pixelThreshold uint8
	pollInterval   time.Duration
	now            func() time.Time

	mu     sync.Mutex
	latest image.Image
}

// NewMotionLoop wires the motion worker.
func NewMotionLoop(camera capture.Camera, thresholds *config.Thresholds, g *gate.Gate, reporter Reporter,
	flags *Flags, alerts *alert.Log, m *metrics.Metrics, logger *zap.SugaredLogger,
	pixelThreshold uint8, pollInterval time.Duration) *MotionLoop {
	return &MotionLoop{
		camera:         camera,
		thresholds:     thresholds,
		gate:           g,
		reporter:       reporter,
		flags:          flags,
		alerts:         alerts,
		metrics:        m,
		logger:         logger,
		pixelThreshold: pixelThreshold,
		pollInterval:   pollInterval,
		now:            time.Now,
	}
}

// Run polls until ctx is cancelled or the camera fails. A frame read
// failure ends this loop only; the audio sensor and the reporting pipeline
// keep operating.
func (l *MotionLoop) Run(ctx context.Context) {
	frame, err := l.camera.ReadFrame()
	if err != nil {
		l.deviceError(err)
		return
	}
	l.storeLatest(frame)
	prev := detect.Grayscale(frame)

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := l.camera.ReadFrame()
		if err != nil {
			l.deviceError(err)
			return
		}
		l.storeLatest(frame)
		cur := detect.Grayscale(frame)
		l.metrics.FramesProcessed.Inc()

		score, err := detect.DiffScore(prev, cur, l.pixelThreshold)
		prev = cur
		if err != nil {
			// Non-fatal numeric failure; keep the previous flag value.
			l.logger.Warnw("frame diff failed", "error", err)
			continue
		}

		motion := detect.MotionExceeds(score, l.thresholds.Motion())
		l.flags.SetMotion(motion)
		if !motion {
			continue
		}

		if !l.gate.TryAcquire(l.now()) {
			l.metrics.TriggersSuppressed.Inc()
			continue
		}
		l.metrics.TriggersFired.Inc()
		l.reporter.AutoReport("Motion detected",
			fmt.Sprintf("Frame difference exceeded threshold (%.0f)", score))
	}
}

// LatestFrame returns the most recently captured frame, or nil before the
// first read.
func (l *MotionLoop) LatestFrame() image.Image {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest
}

func (l *MotionLoop) storeLatest(img image.Image) {
	l.mu.Lock()
	l.latest = img
	l.mu.Unlock()
}

func (l *MotionLoop) deviceError(err error) {
	l.flags.SetMotion(false)
	l.alerts.Addf("Motion detection error: %v", err)
	l.logger.Errorw("motion loop stopped on device error", "error", err)
}
