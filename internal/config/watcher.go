package config

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchThresholds monitors the config file and applies changed detection
// thresholds to t without restarting the agent. Only the two thresholds are
// hot-reloaded; everything else requires a restart. Returns immediately; the
// watcher runs until ctx is cancelled. If fsnotify cannot watch the file
// (missing, unsupported filesystem) the watcher is skipped with a warning.
func WatchThresholds(ctx context.Context, path string, t *Thresholds, logger *zap.SugaredLogger) {
	if path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnw("config watcher unavailable", "error", err)
		return
	}
	if err := watcher.Add(path); err != nil {
		logger.Warnw("cannot watch config file", "path", path, "error", err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				// Editors often write in two events; let the file settle.
				time.Sleep(100 * time.Millisecond)
				reload(path, t, logger)
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnw("config watcher error", "error", werr)
			}
		}
	}()
}

func reload(path string, t *Thresholds, logger *zap.SugaredLogger) {
	cfg, err := Load(path)
	if err != nil {
		logger.Warnw("config reload rejected", "path", path, "error", err)
		return
	}
	t.SetMotion(cfg.Detection.MotionThreshold)
	t.SetSound(cfg.Detection.SoundThreshold)
	logger.Infow("detection thresholds reloaded",
		"motion_threshold", cfg.Detection.MotionThreshold,
		"sound_threshold", cfg.Detection.SoundThreshold)
}
