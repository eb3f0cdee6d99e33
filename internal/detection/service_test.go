package detection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clearance-monitor/internal/domain"
	"clearance-monitor/internal/notify"
	"clearance-monitor/internal/store"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Notification
}

func (r *eventRecorder) Publish(_ domain.Channel, n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *eventRecorder) byType(typ domain.NotificationType) []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.events {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func newTestService(t *testing.T) (*Service, *store.MemoryViolationStore, *eventRecorder) {
	t.Helper()
	detectors := store.NewMemoryDetectorStore()
	violations := store.NewMemoryViolationStore()
	rec := &eventRecorder{}
	svc := NewService(detectors, violations, notify.NewNotifier(rec, zap.NewNop()), zap.NewNop())

	_, _, err := detectors.GetOrCreate(context.Background(), &domain.Detector{
		DeviceID:        "TEST_001",
		Location:        "Main Street Bridge",
		ClearanceHeight: 13.5,
	})
	require.NoError(t, err)
	return svc, violations, rec
}

func TestProcessReading_WithinClearance(t *testing.T) {
	svc, violations, rec := newTestService(t)

	v, err := svc.ProcessReading(context.Background(), &domain.HeightReading{
		DeviceID: "TEST_001",
		Height:   12.0,
	})
	require.NoError(t, err)
	assert.Nil(t, v)

	count, err := violations.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, rec.byType(domain.NotifyNewViolation))
}

func TestProcessReading_ExactlyAtClearance(t *testing.T) {
	svc, violations, _ := newTestService(t)

	// Height equal to clearance is not a violation.
	v, err := svc.ProcessReading(context.Background(), &domain.HeightReading{
		DeviceID: "TEST_001",
		Height:   13.5,
	})
	require.NoError(t, err)
	assert.Nil(t, v)

	count, err := violations.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestProcessReading_AboveClearance(t *testing.T) {
	svc, violations, rec := newTestService(t)
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	v, err := svc.ProcessReading(context.Background(), &domain.HeightReading{
		DeviceID:  "TEST_001",
		Height:    15.2,
		Timestamp: at,
	})
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "TEST_001", v.DeviceID)
	assert.Equal(t, "Main Street Bridge", v.Location)
	assert.Equal(t, 15.2, v.DetectedHeight)
	assert.Equal(t, 13.5, v.ClearanceHeight)
	assert.InDelta(t, 1.7, v.ExcessHeight, 1e-9)
	assert.Equal(t, domain.SeverityHigh, v.Severity)
	assert.Equal(t, domain.StatusDetected, v.Status)
	assert.Equal(t, at, v.DetectedAt)

	count, err := violations.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	events := rec.byType(domain.NotifyNewViolation)
	require.Len(t, events, 1)
	assert.Equal(t, "TEST_001", events[0].DeviceID)
	assert.Contains(t, events[0].Message, "Main Street Bridge")
}

func TestProcessReading_DuplicateDeliveriesCreateDuplicates(t *testing.T) {
	svc, violations, rec := newTestService(t)
	reading := &domain.HeightReading{
		DeviceID:  "TEST_001",
		Height:    16.0,
		Timestamp: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	first, err := svc.ProcessReading(context.Background(), reading)
	require.NoError(t, err)
	second, err := svc.ProcessReading(context.Background(), reading)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	count, err := violations.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, rec.byType(domain.NotifyNewViolation), 2)
}

func TestProcessReading_UnknownDetector(t *testing.T) {
	svc, _, rec := newTestService(t)

	_, err := svc.ProcessReading(context.Background(), &domain.HeightReading{
		DeviceID: "NEVER_SEEN",
		Height:   20.0,
	})
	assert.ErrorIs(t, err, store.ErrDetectorNotFound)
	assert.Empty(t, rec.byType(domain.NotifyNewViolation))
}

func TestAcknowledge(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	v, err := svc.ProcessReading(ctx, &domain.HeightReading{DeviceID: "TEST_001", Height: 16.0})
	require.NoError(t, err)

	acked, err := svc.Acknowledge(ctx, v.ID, "dispatched patrol", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAcknowledged, acked.Status)
	assert.Equal(t, "dispatched patrol", acked.Notes)
	require.NotNil(t, acked.AcknowledgedAt)

	acks := rec.byType(domain.NotifyViolationAck)
	require.Len(t, acks, 1)
	assert.Contains(t, acks[0].Message, "acknowledged")
}

func TestAcknowledge_ExplicitStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	v, err := svc.ProcessReading(ctx, &domain.HeightReading{DeviceID: "TEST_001", Height: 16.0})
	require.NoError(t, err)

	resolved, err := svc.Acknowledge(ctx, v.ID, "", domain.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, resolved.Status)
}

func TestAcknowledge_NotFound(t *testing.T) {
	svc, _, rec := newTestService(t)

	_, err := svc.Acknowledge(context.Background(), 9999, "", "")
	assert.ErrorIs(t, err, store.ErrViolationNotFound)
	assert.Empty(t, rec.byType(domain.NotifyViolationAck))
}

func TestByDateRange(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{time.Hour, 26 * time.Hour, 50 * time.Hour} {
		_, err := svc.ProcessReading(ctx, &domain.HeightReading{
			DeviceID:  "TEST_001",
			Height:    16.0,
			Timestamp: base.Add(offset),
		})
		require.NoError(t, err)
	}

	day, err := svc.ByDateRange(ctx, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, day, 1)
}
