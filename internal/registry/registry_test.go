package registry

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

func newTestRegistry(t *testing.T) (*Registry, *store.MemoryDetectorStore, *store.MemoryViolationStore, *eventRecorder) {
	t.Helper()
	detectors := store.NewMemoryDetectorStore()
	violations := store.NewMemoryViolationStore()
	rec := &eventRecorder{}
	notifier := notify.NewNotifier(rec, zap.NewNop())
	reg := New(detectors, violations, notifier, 5*time.Minute, 13.5, zap.NewNop())
	return reg, detectors, violations, rec
}

func TestRegister_NewDetector(t *testing.T) {
	reg, _, _, rec := newTestRegistry(t)
	ctx := context.Background()

	det, err := reg.Register(ctx, "TEST_001", "Main Street Bridge", 14.0)
	require.NoError(t, err)
	assert.Equal(t, "TEST_001", det.DeviceID)
	assert.Equal(t, 14.0, det.ClearanceHeight)
	assert.True(t, det.Active)

	online := rec.byType(domain.NotifyDetectorOnline)
	require.Len(t, online, 1)
	assert.Equal(t, "TEST_001", online[0].DeviceID)
}

func TestRegister_IdempotentFirstWriteWins(t *testing.T) {
	reg, _, _, rec := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, "TEST_001", "Main Street Bridge", 14.0)
	require.NoError(t, err)

	// Re-registration with different values keeps the original record and
	// emits no second online event.
	det, err := reg.Register(ctx, "TEST_001", "Somewhere Else", 10.0)
	require.NoError(t, err)
	assert.Equal(t, "Main Street Bridge", det.Location)
	assert.Equal(t, 14.0, det.ClearanceHeight)
	assert.Len(t, rec.byType(domain.NotifyDetectorOnline), 1)
}

func TestRegister_DefaultClearance(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)

	det, err := reg.Register(context.Background(), "TEST_001", "Main Street Bridge", 0)
	require.NoError(t, err)
	assert.Equal(t, 13.5, det.ClearanceHeight)
}

func TestRegister_EmptyDeviceID(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)

	_, err := reg.Register(context.Background(), "", "Main Street Bridge", 14.0)
	assert.Error(t, err)
}

func TestUpdateHeartbeat_UnknownDeviceIsSilent(t *testing.T) {
	reg, _, _, rec := newTestRegistry(t)

	err := reg.UpdateHeartbeat(context.Background(), "NEVER_SEEN")
	assert.NoError(t, err)
	assert.Empty(t, rec.byType(domain.NotifyDetectorOnline))
}

func TestUpdateHeartbeat_RevivalEmitsOnline(t *testing.T) {
	reg, detectors, _, rec := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, "TEST_001", "Main Street Bridge", 14.0)
	require.NoError(t, err)

	// Push the stored heartbeat past the timeout so the next touch is a
	// revival.
	_, err = detectors.TouchHeartbeat(ctx, "TEST_001", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	require.NoError(t, reg.UpdateHeartbeat(ctx, "TEST_001"))

	// One online from registration, one from revival.
	assert.Len(t, rec.byType(domain.NotifyDetectorOnline), 2)

	// A fresh heartbeat right after is not a revival.
	require.NoError(t, reg.UpdateHeartbeat(ctx, "TEST_001"))
	assert.Len(t, rec.byType(domain.NotifyDetectorOnline), 2)
}

func TestActiveInactive_Partition(t *testing.T) {
	reg, detectors, _, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, "FRESH", "Site A", 14.0)
	require.NoError(t, err)
	_, err = reg.Register(ctx, "STALE", "Site B", 14.0)
	require.NoError(t, err)
	_, err = detectors.TouchHeartbeat(ctx, "STALE", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	active, err := reg.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "FRESH", active[0].DeviceID)

	inactive, err := reg.Inactive(ctx)
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "STALE", inactive[0].DeviceID)

	all, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(active)+len(inactive))
}

func TestDelete_CascadesAndAlerts(t *testing.T) {
	reg, _, violations, rec := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, "TEST_001", "Main Street Bridge", 14.0)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := violations.Create(ctx, &domain.Violation{
			DeviceID:   "TEST_001",
			Status:     domain.StatusDetected,
			DetectedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	require.NoError(t, reg.Delete(ctx, "TEST_001"))

	_, err = reg.Get(ctx, "TEST_001")
	assert.ErrorIs(t, err, store.ErrDetectorNotFound)

	remaining, err := violations.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	alerts := rec.byType(domain.NotifySystemAlert)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Message, "TEST_001")
}

func TestDelete_UnknownDetector(t *testing.T) {
	reg, _, _, rec := newTestRegistry(t)

	err := reg.Delete(context.Background(), "NEVER_SEEN")
	assert.ErrorIs(t, err, store.ErrDetectorNotFound)
	assert.Empty(t, rec.byType(domain.NotifySystemAlert))
}

func TestWatcher_SweepEmitsOfflineOnce(t *testing.T) {
	reg, detectors, _, rec := newTestRegistry(t)
	ctx := context.Background()

	notifier := notify.NewNotifier(rec, zap.NewNop())
	w := NewWatcher(reg, notifier, time.Minute, zap.NewNop())

	_, err := reg.Register(ctx, "TEST_001", "Main Street Bridge", 14.0)
	require.NoError(t, err)
	_, err = detectors.TouchHeartbeat(ctx, "TEST_001", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	w.sweep(ctx)
	w.sweep(ctx)
	assert.Len(t, rec.byType(domain.NotifyDetectorOffline), 1)

	// Revival clears the latch; a later lapse notifies again.
	require.NoError(t, reg.UpdateHeartbeat(ctx, "TEST_001"))
	w.sweep(ctx)
	_, err = detectors.TouchHeartbeat(ctx, "TEST_001", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	w.sweep(ctx)
	assert.Len(t, rec.byType(domain.NotifyDetectorOffline), 2)
}
