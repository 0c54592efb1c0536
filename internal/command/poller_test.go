package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeSource struct {
	status string
	err    error
}

func (s *fakeSource) DetectionStatus(context.Context) (string, error) {
	return s.status, s.err
}

type fakeController struct {
	running  bool
	starts   int
	stops    int
	startErr error
}

func (c *fakeController) StartDetection() error {
	c.starts++
	if c.startErr != nil {
		return c.startErr
	}
	c.running = true
	return nil
}

func (c *fakeController) StopDetection() {
	c.stops++
	c.running = false
}

func (c *fakeController) Running() bool { return c.running }

func newTestPoller(source StatusSource, ctrl Controller) *Poller {
	return NewPoller(source, ctrl, 5*time.Second, zap.NewNop().Sugar())
}

func TestPollStartsWhenIdle(t *testing.T) {
	ctrl := &fakeController{}
	p := newTestPoller(&fakeSource{status: "start"}, ctrl)

	p.poll(context.Background())
	assert.Equal(t, 1, ctrl.starts)
	assert.True(t, ctrl.running)

	// Already running; the flag is level-triggered, not edge-triggered.
	p.poll(context.Background())
	assert.Equal(t, 1, ctrl.starts)
}

func TestPollStopsWhenRunning(t *testing.T) {
	ctrl := &fakeController{running: true}
	p := newTestPoller(&fakeSource{status: "stop"}, ctrl)

	p.poll(context.Background())
	assert.Equal(t, 1, ctrl.stops)
	assert.False(t, ctrl.running)

	p.poll(context.Background())
	assert.Equal(t, 1, ctrl.stops)
}

func TestPollFetchFailureKeepsState(t *testing.T) {
	ctrl := &fakeController{running: true}
	p := newTestPoller(&fakeSource{err: errors.New("tracker down")}, ctrl)

	p.poll(context.Background())
	assert.Zero(t, ctrl.starts)
	assert.Zero(t, ctrl.stops)
	assert.True(t, ctrl.running)
}

func TestPollUnknownStatusIgnored(t *testing.T) {
	ctrl := &fakeController{}
	p := newTestPoller(&fakeSource{status: "maybe"}, ctrl)

	p.poll(context.Background())
	assert.Zero(t, ctrl.starts)
	assert.Zero(t, ctrl.stops)
}

func TestPollStartRejected(t *testing.T) {
	ctrl := &fakeController{startErr: errors.New("camera not available")}
	p := newTestPoller(&fakeSource{status: "start"}, ctrl)

	p.poll(context.Background())
	assert.Equal(t, 1, ctrl.starts)
	assert.False(t, ctrl.running, "a rejected start leaves the station idle")
}

func TestRunStopsOnCancel(t *testing.T) {
	p := NewPoller(&fakeSource{status: "stop"}, &fakeController{}, time.Millisecond, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on context cancellation")
	}
}
