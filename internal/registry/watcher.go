package registry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"clearance-monitor/internal/notify"
)

// Watcher periodically scans the registry and emits DETECTOR_OFFLINE for
// detectors that have gone stale since the previous sweep. It only drives
// notifications: the active/inactive classification itself is always
// computed on demand from the stored heartbeat.
type Watcher struct {
	registry *Registry
	notifier *notify.Notifier
	interval time.Duration
	logger   *zap.Logger

	offline map[string]bool
}

func NewWatcher(registry *Registry, notifier *notify.Notifier, interval time.Duration, logger *zap.Logger) *Watcher {
	return &Watcher{
		registry: registry,
		notifier: notifier,
		interval: interval,
		logger:   logger,
		offline:  make(map[string]bool),
	}
}

func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) sweep(ctx context.Context) {
	dets, err := w.registry.List(ctx)
	if err != nil {
		w.logger.Error("liveness sweep failed", zap.Error(err))
		return
	}

	seen := make(map[string]bool, len(dets))
	for _, det := range dets {
		seen[det.DeviceID] = true
		if !det.Active && !w.offline[det.DeviceID] {
			w.offline[det.DeviceID] = true
			w.notifier.DetectorStatusChange(det.DeviceID, det.Location, false)
		} else if det.Active && w.offline[det.DeviceID] {
			delete(w.offline, det.DeviceID)
		}
	}

	// Forget deleted detectors so re-registration starts clean.
	for id := range w.offline {
		if !seen[id] {
			delete(w.offline, id)
		}
	}
}
