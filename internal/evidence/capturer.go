package evidence

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/sentry/internal/alert"
	"github.com/mikeyg42/sentry/internal/metrics"
)

// Uploader forwards one locally persisted evidence file to the remote
// tracker. Implemented by the tracker client.
type Uploader interface {
	UploadEvidence(ctx context.Context, incidentID int, kind Kind, timestamp time.Time, path string) error
}

// Capturer ties local persistence to the rate-limited remote forward.
// Every item is saved locally first; the upload is attempted only when the
// budget grants a slot, and an upload failure is a warning that leaves the
// item on disk with the budget untouched.
type Capturer struct {
	store    *Store
	budget   *Budget
	uploader Uploader
	alerts   *alert.Log
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger

	uploadTimeout time.Duration
}

// NewCapturer wires the evidence path. uploader may be nil to run fully
// offline.
func NewCapturer(store *Store, budget *Budget, uploader Uploader, alerts *alert.Log, m *metrics.Metrics, logger *zap.SugaredLogger) *Capturer {
	return &Capturer{
		store:         store,
		budget:        budget,
		uploader:      uploader,
		alerts:        alerts,
		metrics:       m,
		logger:        logger,
		uploadTimeout: 15 * time.Second,
	}
}

// CaptureImage persists a frame as image evidence and forwards it if the
// budget allows. Returns the local path; persistence failure is reported to
// the caller, but detection continues either way.
func (c *Capturer) CaptureImage(prefix string, img image.Image) (string, error) {
	path, err := c.store.SaveImage(prefix, img)
	if err != nil {
		c.alerts.Addf("Failed to save image: %v", err)
		c.logger.Warnw("image evidence persist failed", "error", err)
		return "", err
	}
	c.metrics.EvidenceSaved.WithLabelValues(string(KindImage)).Inc()
	c.alerts.Addf("Evidence saved: %s", path)
	c.forward(KindImage, path)
	return path, nil
}

// CaptureAudio flushes a recording episode's buffers to a WAV file and
// forwards it if the budget allows. Empty episodes (no microphone input)
// are skipped.
func (c *Capturer) CaptureAudio(prefix string, buffers [][]float32, sampleRate int) (string, error) {
	if len(buffers) == 0 {
		return "", nil
	}
	path, err := c.store.SaveAudioWAV(prefix, buffers, sampleRate)
	if err != nil {
		c.alerts.Addf("Failed to save audio: %v", err)
		c.logger.Warnw("audio evidence persist failed", "error", err)
		return "", err
	}
	c.metrics.EvidenceSaved.WithLabelValues(string(KindAudio)).Inc()
	c.alerts.Addf("Audio evidence saved: %s", path)
	c.forward(KindAudio, path)
	return path, nil
}

// forward attempts the remote upload under the budget. No retry: a failed
// item stays local only.
func (c *Capturer) forward(kind Kind, path string) {
	if c.uploader == nil {
		return
	}
	res, ok := c.budget.Reserve(kind)
	if !ok {
		c.metrics.EvidenceSuppressed.WithLabelValues(string(kind)).Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.uploadTimeout)
	defer cancel()

	if err := c.uploader.UploadEvidence(ctx, res.Incident(), kind, time.Now(), path); err != nil {
		res.Rollback()
		c.metrics.TrackerErrors.Inc()
		c.logger.Warnw("evidence upload failed",
			"kind", kind,
			"incident", res.Incident(),
			"path", path,
			"error", err)
		return
	}
	c.metrics.EvidenceUploaded.WithLabelValues(string(kind)).Inc()
	c.logger.Infow("evidence uploaded",
		"kind", kind,
		"incident", res.Incident(),
		"path", path)
}
