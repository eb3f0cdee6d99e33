package store

import (
	"context"
	"errors"
	"time"

	"clearance-monitor/internal/domain"
)

var (
	ErrDetectorNotFound  = errors.New("detector not found")
	ErrViolationNotFound = errors.New("violation not found")
)

// DetectorStore is the durable keyed store for detectors. Implementations
// must make read-modify-write operations (GetOrCreate, TouchHeartbeat)
// atomic per device so racing messages for the same device never lose an
// update.
type DetectorStore interface {
	// GetOrCreate registers the detector if its device ID is unseen and
	// returns the stored record. Registration is first-write-wins: an
	// existing record is returned unchanged. The created flag reports
	// whether a new record was inserted.
	GetOrCreate(ctx context.Context, det *domain.Detector) (*domain.Detector, bool, error)

	Get(ctx context.Context, deviceID string) (*domain.Detector, error)

	List(ctx context.Context) ([]*domain.Detector, error)

	// TouchHeartbeat sets the detector's last heartbeat and returns the
	// previous value. Returns ErrDetectorNotFound for unknown devices.
	TouchHeartbeat(ctx context.Context, deviceID string, at time.Time) (time.Time, error)

	// Delete removes the detector. Violations are removed separately via
	// ViolationStore.DeleteByDevice.
	Delete(ctx context.Context, deviceID string) error
}

// ViolationStore is the lifecycle-managed collection of violation records.
// IDs are assigned by the store and increase monotonically.
type ViolationStore interface {
	// Create assigns an ID and CreatedAt and appends the record.
	Create(ctx context.Context, v *domain.Violation) (*domain.Violation, error)

	Get(ctx context.Context, id int64) (*domain.Violation, error)

	// SetStatus transitions the record to the given status, stamping
	// AcknowledgedAt and replacing Notes. Returns ErrViolationNotFound
	// for unknown IDs. The update is a single atomic operation.
	SetStatus(ctx context.Context, id int64, status domain.Status, notes string, at time.Time) (*domain.Violation, error)

	ByDevice(ctx context.Context, deviceID string) ([]*domain.Violation, error)
	ByStatus(ctx context.Context, status domain.Status) ([]*domain.Violation, error)
	BySeverity(ctx context.Context, severity domain.Severity) ([]*domain.Violation, error)
	ByDetectedBetween(ctx context.Context, start, end time.Time) ([]*domain.Violation, error)

	// Pending returns DETECTED violations ordered by severity descending,
	// then detection time descending, so the worst and most recent
	// violations surface first.
	Pending(ctx context.Context) ([]*domain.Violation, error)

	// DeleteByDevice removes every violation owned by the device and
	// returns how many were removed.
	DeleteByDevice(ctx context.Context, deviceID string) (int, error)

	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status domain.Status) (int, error)
	CountDetectedSince(ctx context.Context, since time.Time) (int, error)
	CountPendingBySeverity(ctx context.Context, severity domain.Severity) (int, error)
}
