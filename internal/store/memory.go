package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"clearance-monitor/internal/domain"
)

// MemoryDetectorStore keeps detectors in a mutex-guarded map. All
// read-modify-write paths run under one lock, which serializes racing
// updates for the same device while staying cheap at this scale.
type MemoryDetectorStore struct {
	mu        sync.RWMutex
	detectors map[string]*domain.Detector
}

func NewMemoryDetectorStore() *MemoryDetectorStore {
	return &MemoryDetectorStore{detectors: make(map[string]*domain.Detector)}
}

func (s *MemoryDetectorStore) GetOrCreate(_ context.Context, det *domain.Detector) (*domain.Detector, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.detectors[det.DeviceID]; ok {
		return copyDetector(existing), false, nil
	}

	now := time.Now()
	stored := copyDetector(det)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if stored.LastHeartbeat.IsZero() {
		stored.LastHeartbeat = now
	}
	s.detectors[det.DeviceID] = stored
	return copyDetector(stored), true, nil
}

func (s *MemoryDetectorStore) Get(_ context.Context, deviceID string) (*domain.Detector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	det, ok := s.detectors[deviceID]
	if !ok {
		return nil, ErrDetectorNotFound
	}
	return copyDetector(det), nil
}

func (s *MemoryDetectorStore) List(_ context.Context) ([]*domain.Detector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Detector, 0, len(s.detectors))
	for _, det := range s.detectors {
		out = append(out, copyDetector(det))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (s *MemoryDetectorStore) TouchHeartbeat(_ context.Context, deviceID string, at time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	det, ok := s.detectors[deviceID]
	if !ok {
		return time.Time{}, ErrDetectorNotFound
	}
	prev := det.LastHeartbeat
	det.LastHeartbeat = at
	det.UpdatedAt = at
	return prev, nil
}

func (s *MemoryDetectorStore) Delete(_ context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.detectors[deviceID]; !ok {
		return ErrDetectorNotFound
	}
	delete(s.detectors, deviceID)
	return nil
}

func copyDetector(d *domain.Detector) *domain.Detector {
	c := *d
	return &c
}

// MemoryViolationStore keeps violations in a mutex-guarded map with a
// monotonically increasing ID counter.
type MemoryViolationStore struct {
	mu         sync.RWMutex
	violations map[int64]*domain.Violation
	nextID     int64
}

func NewMemoryViolationStore() *MemoryViolationStore {
	return &MemoryViolationStore{violations: make(map[int64]*domain.Violation), nextID: 1}
}

func (s *MemoryViolationStore) Create(_ context.Context, v *domain.Violation) (*domain.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyViolation(v)
	stored.ID = s.nextID
	s.nextID++
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.violations[stored.ID] = stored
	return copyViolation(stored), nil
}

func (s *MemoryViolationStore) Get(_ context.Context, id int64) (*domain.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.violations[id]
	if !ok {
		return nil, ErrViolationNotFound
	}
	return copyViolation(v), nil
}

func (s *MemoryViolationStore) SetStatus(_ context.Context, id int64, status domain.Status, notes string, at time.Time) (*domain.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.violations[id]
	if !ok {
		return nil, ErrViolationNotFound
	}
	v.Status = status
	v.Notes = notes
	ackAt := at
	v.AcknowledgedAt = &ackAt
	return copyViolation(v), nil
}

func (s *MemoryViolationStore) ByDevice(_ context.Context, deviceID string) ([]*domain.Violation, error) {
	return s.filter(func(v *domain.Violation) bool { return v.DeviceID == deviceID }), nil
}

func (s *MemoryViolationStore) ByStatus(_ context.Context, status domain.Status) ([]*domain.Violation, error) {
	return s.filter(func(v *domain.Violation) bool { return v.Status == status }), nil
}

func (s *MemoryViolationStore) BySeverity(_ context.Context, severity domain.Severity) ([]*domain.Violation, error) {
	return s.filter(func(v *domain.Violation) bool { return v.Severity == severity }), nil
}

func (s *MemoryViolationStore) ByDetectedBetween(_ context.Context, start, end time.Time) ([]*domain.Violation, error) {
	return s.filter(func(v *domain.Violation) bool {
		return !v.DetectedAt.Before(start) && !v.DetectedAt.After(end)
	}), nil
}

func (s *MemoryViolationStore) Pending(_ context.Context) ([]*domain.Violation, error) {
	pending := s.filter(func(v *domain.Violation) bool { return v.Status == domain.StatusDetected })
	sort.Slice(pending, func(i, j int) bool {
		ri, rj := pending[i].Severity.Rank(), pending[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return pending[i].DetectedAt.After(pending[j].DetectedAt)
	})
	return pending, nil
}

func (s *MemoryViolationStore) DeleteByDevice(_ context.Context, deviceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, v := range s.violations {
		if v.DeviceID == deviceID {
			delete(s.violations, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryViolationStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.violations), nil
}

func (s *MemoryViolationStore) CountByStatus(_ context.Context, status domain.Status) (int, error) {
	return len(s.filter(func(v *domain.Violation) bool { return v.Status == status })), nil
}

func (s *MemoryViolationStore) CountDetectedSince(_ context.Context, since time.Time) (int, error) {
	return len(s.filter(func(v *domain.Violation) bool { return !v.DetectedAt.Before(since) })), nil
}

func (s *MemoryViolationStore) CountPendingBySeverity(_ context.Context, severity domain.Severity) (int, error) {
	return len(s.filter(func(v *domain.Violation) bool {
		return v.Status == domain.StatusDetected && v.Severity == severity
	})), nil
}

func (s *MemoryViolationStore) filter(keep func(*domain.Violation) bool) []*domain.Violation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Violation
	for _, v := range s.violations {
		if keep(v) {
			out = append(out, copyViolation(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyViolation(v *domain.Violation) *domain.Violation {
	c := *v
	if v.AcknowledgedAt != nil {
		at := *v.AcknowledgedAt
		c.AcknowledgedAt = &at
	}
	return &c
}
