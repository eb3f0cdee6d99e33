package stats

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
	"clearance-monitor/internal/registry"
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

func (r *eventRecorder) count(typ domain.NotificationType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func newTestAggregator(t *testing.T) (*Aggregator, *store.MemoryDetectorStore, *store.MemoryViolationStore, *eventRecorder) {
	t.Helper()
	detectors := store.NewMemoryDetectorStore()
	violations := store.NewMemoryViolationStore()
	rec := &eventRecorder{}
	notifier := notify.NewNotifier(rec, zap.NewNop())
	reg := registry.New(detectors, violations, notifier, 5*time.Minute, 13.5, zap.NewNop())
	return NewAggregator(reg, violations, notifier, zap.NewNop()), detectors, violations, rec
}

func TestSnapshot_Empty(t *testing.T) {
	agg, _, _, _ := newTestAggregator(t)

	snap, err := agg.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.TotalDetectors)
	assert.Zero(t, snap.TotalViolations)
	assert.False(t, snap.LastUpdated.IsZero())
}

func TestSnapshot_Consistency(t *testing.T) {
	agg, detectors, violations, _ := newTestAggregator(t)
	ctx := context.Background()

	_, _, err := detectors.GetOrCreate(ctx, &domain.Detector{
		DeviceID: "FRESH", ClearanceHeight: 13.5, LastHeartbeat: time.Now(),
	})
	require.NoError(t, err)
	_, _, err = detectors.GetOrCreate(ctx, &domain.Detector{
		DeviceID: "STALE", ClearanceHeight: 13.5, LastHeartbeat: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	_, err = violations.Create(ctx, &domain.Violation{
		DeviceID: "FRESH", Severity: domain.SeverityCritical,
		Status: domain.StatusDetected, DetectedAt: time.Now(),
	})
	require.NoError(t, err)
	_, err = violations.Create(ctx, &domain.Violation{
		DeviceID: "FRESH", Severity: domain.SeverityLow,
		Status: domain.StatusAcknowledged, DetectedAt: time.Now().Add(-48 * time.Hour),
	})
	require.NoError(t, err)

	snap, err := agg.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.TotalDetectors)
	assert.Equal(t, 1, snap.ActiveDetectors)
	assert.Equal(t, 1, snap.InactiveDetectors)
	assert.Equal(t, snap.TotalDetectors, snap.ActiveDetectors+snap.InactiveDetectors)

	assert.Equal(t, 2, snap.TotalViolations)
	assert.Equal(t, 1, snap.PendingViolations)
	assert.Equal(t, 1, snap.AcknowledgedViolations)
	assert.LessOrEqual(t, snap.PendingViolations+snap.AcknowledgedViolations, snap.TotalViolations)

	assert.Equal(t, 1, snap.ViolationsToday)
	assert.Equal(t, 1, snap.CriticalViolations)
}

func TestSnapshot_BroadcastsStatsUpdate(t *testing.T) {
	agg, _, _, rec := newTestAggregator(t)

	_, err := agg.Snapshot(context.Background())
	require.NoError(t, err)
	_, err = agg.Snapshot(context.Background())
	require.NoError(t, err)

	// Every snapshot broadcasts; nothing is cached between calls.
	assert.Equal(t, 2, rec.count(domain.NotifyStatsUpdate))
}
