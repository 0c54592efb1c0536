package evidence

import (
	"context"
	"errors"
	"image"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikeyg42/sentry/internal/alert"
	"github.com/mikeyg42/sentry/internal/metrics"
)

type fakeUploader struct {
	calls []uploadCall
	err   error
}

type uploadCall struct {
	incident int
	kind     Kind
	path     string
}

func (u *fakeUploader) UploadEvidence(_ context.Context, incidentID int, kind Kind, _ time.Time, path string) error {
	u.calls = append(u.calls, uploadCall{incident: incidentID, kind: kind, path: path})
	return u.err
}

func newTestCapturer(t *testing.T, uploader Uploader) (*Capturer, *Budget, *time.Time) {
	t.Helper()
	store, err := NewStore(t.TempDir(), nil, zap.NewNop().Sugar())
	require.NoError(t, err)

	budget, now := newTestBudget()
	c := NewCapturer(store, budget, uploader, alert.NewLog(nil), metrics.New(), zap.NewNop().Sugar())
	return c, budget, now
}

func TestCaptureImageForwardsUnderOpenIncident(t *testing.T) {
	uploader := &fakeUploader{}
	c, budget, _ := newTestCapturer(t, uploader)
	budget.Open(42)

	path, err := c.CaptureImage("motion", image.NewGray(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)
	require.Len(t, uploader.calls, 1)
	assert.Equal(t, 42, uploader.calls[0].incident)
	assert.Equal(t, KindImage, uploader.calls[0].kind)
	assert.Equal(t, path, uploader.calls[0].path)
}

func TestCaptureImageSavesLocallyWhenBudgetClosed(t *testing.T) {
	uploader := &fakeUploader{}
	c, _, _ := newTestCapturer(t, uploader)

	path, err := c.CaptureImage("motion", image.NewGray(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)
	assert.Empty(t, uploader.calls, "no open incident, no upload")

	_, err = os.Stat(path)
	assert.NoError(t, err, "the local copy is written regardless")
}

func TestUploadFailureRollsBackBudget(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("tracker down")}
	c, budget, _ := newTestCapturer(t, uploader)
	budget.Open(42)

	_, err := c.CaptureImage("motion", image.NewGray(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err, "upload failure is not a capture failure")

	images, _ := budget.Sent()
	assert.Zero(t, images, "the failed upload released its slot")
}

func TestCaptureAudioSkipsEmptyEpisodes(t *testing.T) {
	uploader := &fakeUploader{}
	c, budget, _ := newTestCapturer(t, uploader)
	budget.Open(42)

	path, err := c.CaptureAudio("sound", nil, 44100)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Empty(t, uploader.calls)
}

func TestCaptureAudioForwards(t *testing.T) {
	uploader := &fakeUploader{}
	c, budget, _ := newTestCapturer(t, uploader)
	budget.Open(42)

	buffers := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	path, err := c.CaptureAudio("sound", buffers, 44100)
	require.NoError(t, err)
	require.Len(t, uploader.calls, 1)
	assert.Equal(t, KindAudio, uploader.calls[0].kind)
	assert.Equal(t, path, uploader.calls[0].path)
}
