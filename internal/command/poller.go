// Package command polls the tracker's remote start/stop flag and drives the
// same detection entry points as the local control API.
package command

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Controller is the subset of the agent the poller drives.
type Controller interface {
	StartDetection() error
	StopDetection()
	Running() bool
}

// StatusSource fetches the remote flag. Implemented by the tracker client.
type StatusSource interface {
	DetectionStatus(ctx context.Context) (string, error)
}

// Poller checks the remote flag at a fixed interval. Fetch failures are
// logged and the previous state stands; the poller never stops on error.
type Poller struct {
	source   StatusSource
	ctrl     Controller
	interval time.Duration
	logger   *zap.SugaredLogger
}

// NewPoller creates a poller.
func NewPoller(source StatusSource, ctrl Controller, interval time.Duration, logger *zap.SugaredLogger) *Poller {
	return &Poller{
		source:   source,
		ctrl:     ctrl,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	status, err := p.source.DetectionStatus(reqCtx)
	if err != nil {
		p.logger.Warnw("detection-status poll failed", "error", err)
		return
	}

	switch status {
	case "start":
		if !p.ctrl.Running() {
			if err := p.ctrl.StartDetection(); err != nil {
				p.logger.Warnw("remote start rejected", "error", err)
			} else {
				p.logger.Infow("detection started by remote command")
			}
		}
	case "stop":
		if p.ctrl.Running() {
			p.ctrl.StopDetection()
			p.logger.Infow("detection stopped by remote command")
		}
	default:
		p.logger.Warnw("unknown detection-status value", "status", status)
	}
}
