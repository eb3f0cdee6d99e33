package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clearance-monitor/internal/domain"
)

// PostgresStore owns the pgx pool and exposes the detector and violation
// stores backed by it. Every mutation is a single statement, so per-device
// races resolve inside the database without explicit locking here.
type PostgresStore struct {
	pool       *pgxpool.Pool
	Detectors  *PostgresDetectorStore
	Violations *PostgresViolationStore
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{
		pool:       pool,
		Detectors:  &PostgresDetectorStore{pool: pool},
		Violations: &PostgresViolationStore{pool: pool},
	}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type PostgresDetectorStore struct {
	pool *pgxpool.Pool
}

const detectorColumns = `device_id, location, clearance_height, last_heartbeat, created_at, updated_at`

func (s *PostgresDetectorStore) GetOrCreate(ctx context.Context, det *domain.Detector) (*domain.Detector, bool, error) {
	hb := det.LastHeartbeat
	if hb.IsZero() {
		hb = time.Now()
	}

	// ON CONFLICT DO NOTHING keeps registration first-write-wins even when
	// two registrations for the same device race.
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO detectors (device_id, location, clearance_height, last_heartbeat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (device_id) DO NOTHING
	`, det.DeviceID, det.Location, det.ClearanceHeight, hb)
	if err != nil {
		return nil, false, fmt.Errorf("insert detector %s: %w", det.DeviceID, err)
	}

	stored, err := s.Get(ctx, det.DeviceID)
	if err != nil {
		return nil, false, err
	}
	return stored, tag.RowsAffected() > 0, nil
}

func (s *PostgresDetectorStore) Get(ctx context.Context, deviceID string) (*domain.Detector, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+detectorColumns+` FROM detectors WHERE device_id = $1`, deviceID)
	return scanDetector(row)
}

func (s *PostgresDetectorStore) List(ctx context.Context) ([]*domain.Detector, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+detectorColumns+` FROM detectors ORDER BY device_id`)
	if err != nil {
		return nil, fmt.Errorf("list detectors: %w", err)
	}
	defer rows.Close()

	var out []*domain.Detector
	for rows.Next() {
		det, err := scanDetector(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, det)
	}
	return out, rows.Err()
}

func (s *PostgresDetectorStore) TouchHeartbeat(ctx context.Context, deviceID string, at time.Time) (time.Time, error) {
	var prev time.Time
	err := s.pool.QueryRow(ctx, `
		UPDATE detectors d
		SET last_heartbeat = $2, updated_at = $2
		FROM (SELECT device_id, last_heartbeat FROM detectors WHERE device_id = $1 FOR UPDATE) old
		WHERE d.device_id = old.device_id
		RETURNING old.last_heartbeat
	`, deviceID, at).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrDetectorNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("touch heartbeat %s: %w", deviceID, err)
	}
	return prev, nil
}

func (s *PostgresDetectorStore) Delete(ctx context.Context, deviceID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM detectors WHERE device_id = $1`, deviceID)
	if err != nil {
		return fmt.Errorf("delete detector %s: %w", deviceID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDetectorNotFound
	}
	return nil
}

type PostgresViolationStore struct {
	pool *pgxpool.Pool
}

const violationColumns = `id, device_id, location, detected_height, clearance_height, excess_height,
	severity, status, notes, detected_at, acknowledged_at, created_at`

func (s *PostgresViolationStore) Create(ctx context.Context, v *domain.Violation) (*domain.Violation, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO violations
			(device_id, location, detected_height, clearance_height, excess_height,
			 severity, status, notes, detected_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING `+violationColumns,
		v.DeviceID, v.Location, v.DetectedHeight, v.ClearanceHeight, v.ExcessHeight,
		string(v.Severity), string(v.Status), v.Notes, v.DetectedAt)
	return scanViolation(row)
}

func (s *PostgresViolationStore) Get(ctx context.Context, id int64) (*domain.Violation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+violationColumns+` FROM violations WHERE id = $1`, id)
	return scanViolation(row)
}

func (s *PostgresViolationStore) SetStatus(ctx context.Context, id int64, status domain.Status, notes string, at time.Time) (*domain.Violation, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE violations
		SET status = $2, notes = $3, acknowledged_at = $4
		WHERE id = $1
		RETURNING `+violationColumns,
		id, string(status), notes, at)
	v, err := scanViolation(row)
	if errors.Is(err, ErrViolationNotFound) {
		return nil, ErrViolationNotFound
	}
	return v, err
}

func (s *PostgresViolationStore) ByDevice(ctx context.Context, deviceID string) ([]*domain.Violation, error) {
	return s.queryViolations(ctx,
		`SELECT `+violationColumns+` FROM violations WHERE device_id = $1 ORDER BY id`, deviceID)
}

func (s *PostgresViolationStore) ByStatus(ctx context.Context, status domain.Status) ([]*domain.Violation, error) {
	return s.queryViolations(ctx,
		`SELECT `+violationColumns+` FROM violations WHERE status = $1 ORDER BY id`, string(status))
}

func (s *PostgresViolationStore) BySeverity(ctx context.Context, severity domain.Severity) ([]*domain.Violation, error) {
	return s.queryViolations(ctx,
		`SELECT `+violationColumns+` FROM violations WHERE severity = $1 ORDER BY id`, string(severity))
}

func (s *PostgresViolationStore) ByDetectedBetween(ctx context.Context, start, end time.Time) ([]*domain.Violation, error) {
	return s.queryViolations(ctx,
		`SELECT `+violationColumns+` FROM violations WHERE detected_at BETWEEN $1 AND $2 ORDER BY id`,
		start, end)
}

func (s *PostgresViolationStore) Pending(ctx context.Context) ([]*domain.Violation, error) {
	return s.queryViolations(ctx, `
		SELECT `+violationColumns+` FROM violations
		WHERE status = 'DETECTED'
		ORDER BY CASE severity
			WHEN 'CRITICAL' THEN 3
			WHEN 'HIGH' THEN 2
			WHEN 'MEDIUM' THEN 1
			ELSE 0
		END DESC, detected_at DESC`)
}

func (s *PostgresViolationStore) DeleteByDevice(ctx context.Context, deviceID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM violations WHERE device_id = $1`, deviceID)
	if err != nil {
		return 0, fmt.Errorf("delete violations for %s: %w", deviceID, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresViolationStore) Count(ctx context.Context) (int, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM violations`)
}

func (s *PostgresViolationStore) CountByStatus(ctx context.Context, status domain.Status) (int, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM violations WHERE status = $1`, string(status))
}

func (s *PostgresViolationStore) CountDetectedSince(ctx context.Context, since time.Time) (int, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM violations WHERE detected_at >= $1`, since)
}

func (s *PostgresViolationStore) CountPendingBySeverity(ctx context.Context, severity domain.Severity) (int, error) {
	return s.countWhere(ctx,
		`SELECT COUNT(*) FROM violations WHERE status = 'DETECTED' AND severity = $1`, string(severity))
}

func (s *PostgresViolationStore) queryViolations(ctx context.Context, query string, args ...any) ([]*domain.Violation, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Violation
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresViolationStore) countWhere(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count violations: %w", err)
	}
	return n, nil
}

func scanDetector(row pgx.Row) (*domain.Detector, error) {
	var det domain.Detector
	err := row.Scan(&det.DeviceID, &det.Location, &det.ClearanceHeight,
		&det.LastHeartbeat, &det.CreatedAt, &det.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDetectorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan detector: %w", err)
	}
	return &det, nil
}

func scanViolation(row pgx.Row) (*domain.Violation, error) {
	var (
		v        domain.Violation
		severity string
		status   string
	)
	err := row.Scan(&v.ID, &v.DeviceID, &v.Location, &v.DetectedHeight, &v.ClearanceHeight,
		&v.ExcessHeight, &severity, &status, &v.Notes, &v.DetectedAt, &v.AcknowledgedAt, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrViolationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan violation: %w", err)
	}
	v.Severity = domain.Severity(severity)
	v.Status = domain.Status(status)
	return &v, nil
}
