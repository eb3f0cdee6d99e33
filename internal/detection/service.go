// Package detection turns readings into violation records and manages the
// violation lifecycle.
package detection

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clearance-monitor/internal/domain"
	"clearance-monitor/internal/metrics"
	"clearance-monitor/internal/notify"
	"clearance-monitor/internal/store"
)

type Service struct {
	detectors  store.DetectorStore
	violations store.ViolationStore
	notifier   *notify.Notifier
	logger     *zap.Logger
}

func NewService(
	detectors store.DetectorStore,
	violations store.ViolationStore,
	notifier *notify.Notifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		detectors:  detectors,
		violations: violations,
		notifier:   notifier,
		logger:     logger,
	}
}

// ProcessReading checks a reading against the owning detector's clearance.
// It returns (nil, nil) when the height is within clearance, which is the
// common case, not an error. When the reading exceeds clearance it creates exactly
// one violation record and emits a NEW_VIOLATION event. Unknown detectors
// fail with store.ErrDetectorNotFound.
//
// Duplicate deliveries of the same reading are not deduplicated: each
// delivery above clearance produces its own record.
func (s *Service) ProcessReading(ctx context.Context, reading *domain.HeightReading) (*domain.Violation, error) {
	det, err := s.detectors.Get(ctx, reading.DeviceID)
	if err != nil {
		return nil, err
	}

	if reading.Height <= det.ClearanceHeight {
		s.logger.Debug("no violation, height within clearance",
			zap.String("device_id", reading.DeviceID),
			zap.Float64("height", reading.Height),
			zap.Float64("clearance", det.ClearanceHeight),
		)
		return nil, nil
	}

	detectedAt := reading.Timestamp
	if detectedAt.IsZero() {
		detectedAt = time.Now()
	}

	excess := reading.Height - det.ClearanceHeight
	v, err := s.violations.Create(ctx, &domain.Violation{
		DeviceID:        det.DeviceID,
		Location:        det.Location,
		DetectedHeight:  reading.Height,
		ClearanceHeight: det.ClearanceHeight,
		ExcessHeight:    excess,
		Severity:        domain.ClassifySeverity(excess),
		Status:          domain.StatusDetected,
		DetectedAt:      detectedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("record violation for %s: %w", det.DeviceID, err)
	}

	metrics.ViolationsDetected.WithLabelValues(string(v.Severity)).Inc()
	s.logger.Warn("violation detected",
		zap.String("device_id", det.DeviceID),
		zap.String("location", det.Location),
		zap.Float64("height", reading.Height),
		zap.Float64("clearance", det.ClearanceHeight),
		zap.Float64("excess", v.ExcessHeight),
		zap.String("severity", string(v.Severity)),
	)

	s.notifier.NewViolation(v)
	return v, nil
}

// Acknowledge transitions the violation to the given status (ACKNOWLEDGED
// when empty), stamps the acknowledgement time, replaces the notes, and
// emits one VIOLATION_ACK event. Re-acknowledging overwrites the timestamp
// and notes. Unknown IDs fail with store.ErrViolationNotFound and emit
// nothing.
func (s *Service) Acknowledge(ctx context.Context, violationID int64, notes string, status domain.Status) (*domain.Violation, error) {
	if status == "" {
		status = domain.StatusAcknowledged
	}

	v, err := s.violations.SetStatus(ctx, violationID, status, notes, time.Now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("violation acknowledged",
		zap.Int64("violation_id", violationID),
		zap.String("status", string(status)),
	)
	s.notifier.ViolationAcknowledged(v)
	return v, nil
}

// Pending returns DETECTED violations, worst and most recent first.
func (s *Service) Pending(ctx context.Context) ([]*domain.Violation, error) {
	return s.violations.Pending(ctx)
}

func (s *Service) ByDevice(ctx context.Context, deviceID string) ([]*domain.Violation, error) {
	return s.violations.ByDevice(ctx, deviceID)
}

func (s *Service) ByStatus(ctx context.Context, status domain.Status) ([]*domain.Violation, error) {
	return s.violations.ByStatus(ctx, status)
}

func (s *Service) BySeverity(ctx context.Context, severity domain.Severity) ([]*domain.Violation, error) {
	return s.violations.BySeverity(ctx, severity)
}

func (s *Service) ByDateRange(ctx context.Context, start, end time.Time) ([]*domain.Violation, error) {
	return s.violations.ByDetectedBetween(ctx, start, end)
}
