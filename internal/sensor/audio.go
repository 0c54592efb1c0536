package sensor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/sentry/internal/alert"
	"github.com/mikeyg42/sentry/internal/config"
	"github.com/mikeyg42/sentry/internal/detect"
	"github.com/mikeyg42/sentry/internal/gate"
	"github.com/mikeyg42/sentry/internal/metrics"
	"github.com/mikeyg42/sentry/internal/recording"
)

// AudioLoop drains the microphone's buffer channel, scores each buffer,
// fires through the cooldown gate on a rising sound edge, and feeds the
// active recording episode.
type AudioLoop struct {
	buffers    <-chan []float32
	thresholds *config.Thresholds
	gate       *gate.Gate
	reporter   Reporter
	machine    *recording.Machine
	flags      *Flags
	alerts     *alert.Log
	metrics    *metrics.Metrics
	logger     *zap.SugaredLogger

	now func() time.Time
}

// NewAudioLoop wires the audio worker to a microphone buffer channel.
func NewAudioLoop(buffers <-chan []float32, thresholds *config.Thresholds, g *gate.Gate, reporter Reporter,
	machine *recording.Machine, flags *Flags, alerts *alert.Log, m *metrics.Metrics,
	logger *zap.SugaredLogger) *AudioLoop {
	return &AudioLoop{
		buffers:    buffers,
		thresholds: thresholds,
		gate:       g,
		reporter:   reporter,
		machine:    machine,
		flags:      flags,
		alerts:     alerts,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Run consumes buffers until ctx is cancelled or the device channel closes.
// A closed channel is a device error for this sensor only.
func (l *AudioLoop) Run(ctx context.Context) {
	prevSound := false

	for {
		select {
		case <-ctx.Done():
			return
		case buf, ok := <-l.buffers:
			if !ok {
				l.flags.SetSound(false)
				l.alerts.Add("Sound detection error: audio stream ended")
				l.logger.Errorw("audio loop stopped, device stream closed")
				return
			}
			l.process(buf, &prevSound)
		}
	}
}

// process scores one buffer. Triggering happens on the rising edge only, so
// a sustained loud environment produces one candidate per onset rather than
// one per buffer.
func (l *AudioLoop) process(buf []float32, prevSound *bool) {
	l.metrics.AudioBuffers.Inc()

	rms := detect.RMS(buf)
	sound := detect.SoundExceeds(rms, l.thresholds.Sound())
	l.flags.SetSound(sound)

	if sound && !*prevSound {
		if l.gate.TryAcquire(l.now()) {
			l.metrics.TriggersFired.Inc()
			l.reporter.AutoReport("Loud noise detected",
				fmt.Sprintf("Sound level exceeded threshold (%.2f)", rms))
		} else {
			l.metrics.TriggersSuppressed.Inc()
		}
	}
	*prevSound = sound

	// Feed the active episode and let it expire; both are no-ops while
	// idle.
	l.machine.AppendAudio(buf)
	l.machine.CheckExpiry()
}
