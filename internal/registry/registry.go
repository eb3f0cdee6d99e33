// Package registry owns the authoritative set of known detectors and the
// liveness classification derived from their heartbeat timestamps.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clearance-monitor/internal/domain"
	"clearance-monitor/internal/metrics"
	"clearance-monitor/internal/notify"
	"clearance-monitor/internal/store"
)

type Registry struct {
	detectors        store.DetectorStore
	violations       store.ViolationStore
	notifier         *notify.Notifier
	heartbeatTimeout time.Duration
	defaultClearance float64
	logger           *zap.Logger
}

func New(
	detectors store.DetectorStore,
	violations store.ViolationStore,
	notifier *notify.Notifier,
	heartbeatTimeout time.Duration,
	defaultClearance float64,
	logger *zap.Logger,
) *Registry {
	return &Registry{
		detectors:        detectors,
		violations:       violations,
		notifier:         notifier,
		heartbeatTimeout: heartbeatTimeout,
		defaultClearance: defaultClearance,
		logger:           logger,
	}
}

// Register creates the detector on first sight of its device ID. A second
// registration for the same ID returns the existing record unchanged,
// whatever location or clearance it carries.
func (r *Registry) Register(ctx context.Context, deviceID, location string, clearanceHeight float64) (*domain.Detector, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if clearanceHeight <= 0 {
		clearanceHeight = r.defaultClearance
	}
	if clearanceHeight <= 0 {
		return nil, fmt.Errorf("clearance height must be positive, got %v", clearanceHeight)
	}

	det, created, err := r.detectors.GetOrCreate(ctx, &domain.Detector{
		DeviceID:        deviceID,
		Location:        location,
		ClearanceHeight: clearanceHeight,
	})
	if err != nil {
		return nil, fmt.Errorf("register detector %s: %w", deviceID, err)
	}

	if created {
		r.logger.Info("registered new detector",
			zap.String("device_id", deviceID),
			zap.String("location", location),
			zap.Float64("clearance_height", det.ClearanceHeight),
		)
		r.notifier.DetectorStatusChange(det.DeviceID, det.Location, true)
	} else {
		r.logger.Info("detector already registered", zap.String("device_id", deviceID))
	}

	return r.withLiveness(det, time.Now()), nil
}

// Get returns the detector with its derived active flag filled in.
func (r *Registry) Get(ctx context.Context, deviceID string) (*domain.Detector, error) {
	det, err := r.detectors.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return r.withLiveness(det, time.Now()), nil
}

// List returns all detectors with their derived active flags filled in.
func (r *Registry) List(ctx context.Context) ([]*domain.Detector, error) {
	dets, err := r.detectors.List(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for i, det := range dets {
		dets[i] = r.withLiveness(det, now)
	}
	return dets, nil
}

// Active returns the detectors whose last heartbeat is within the timeout.
func (r *Registry) Active(ctx context.Context) ([]*domain.Detector, error) {
	return r.listByLiveness(ctx, true)
}

// Inactive returns the detectors whose last heartbeat is older than the
// timeout. There is no background expiry: staleness is computed here, on
// demand, from the stored timestamp.
func (r *Registry) Inactive(ctx context.Context) ([]*domain.Detector, error) {
	return r.listByLiveness(ctx, false)
}

func (r *Registry) listByLiveness(ctx context.Context, active bool) ([]*domain.Detector, error) {
	dets, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := dets[:0]
	for _, det := range dets {
		if det.Active == active {
			out = append(out, det)
		}
	}
	return out, nil
}

// UpdateHeartbeat stamps the detector's last heartbeat with the current
// time. Unknown devices are ignored without error, since heartbeats can
// race ahead of registration. When the touch revives a detector that had
// gone stale, a DETECTOR_ONLINE event is emitted.
func (r *Registry) UpdateHeartbeat(ctx context.Context, deviceID string) error {
	now := time.Now()
	prev, err := r.detectors.TouchHeartbeat(ctx, deviceID, now)
	if errors.Is(err, store.ErrDetectorNotFound) {
		r.logger.Debug("heartbeat for unregistered device", zap.String("device_id", deviceID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("update heartbeat %s: %w", deviceID, err)
	}

	metrics.HeartbeatsProcessed.Inc()
	r.logger.Debug("updated heartbeat", zap.String("device_id", deviceID))

	if prev.Before(now.Add(-r.heartbeatTimeout)) {
		det, err := r.detectors.Get(ctx, deviceID)
		location := ""
		if err == nil {
			location = det.Location
		}
		r.notifier.DetectorStatusChange(deviceID, location, true)
	}
	return nil
}

// Delete removes the detector and every violation that references it, then
// raises a system alert.
func (r *Registry) Delete(ctx context.Context, deviceID string) error {
	if _, err := r.detectors.Get(ctx, deviceID); err != nil {
		return err
	}

	removed, err := r.violations.DeleteByDevice(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("delete violations for %s: %w", deviceID, err)
	}
	if err := r.detectors.Delete(ctx, deviceID); err != nil {
		return fmt.Errorf("delete detector %s: %w", deviceID, err)
	}

	r.logger.Info("deleted detector",
		zap.String("device_id", deviceID),
		zap.Int("violations_removed", removed),
	)
	r.notifier.SystemAlert(fmt.Sprintf("Detector %s has been deleted from the system", deviceID))
	return nil
}

// HeartbeatTimeout exposes the configured liveness timeout.
func (r *Registry) HeartbeatTimeout() time.Duration {
	return r.heartbeatTimeout
}

func (r *Registry) withLiveness(det *domain.Detector, now time.Time) *domain.Detector {
	det.Active = det.ActiveAt(now, r.heartbeatTimeout)
	return det
}
