// Package stats computes the aggregate dashboard view.
package stats

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clearance-monitor/internal/domain"
	"clearance-monitor/internal/notify"
	"clearance-monitor/internal/registry"
	"clearance-monitor/internal/store"
)

type Aggregator struct {
	registry   *registry.Registry
	violations store.ViolationStore
	notifier   *notify.Notifier
	logger     *zap.Logger
}

func NewAggregator(
	reg *registry.Registry,
	violations store.ViolationStore,
	notifier *notify.Notifier,
	logger *zap.Logger,
) *Aggregator {
	return &Aggregator{
		registry:   reg,
		violations: violations,
		notifier:   notifier,
		logger:     logger,
	}
}

// Snapshot recomputes the dashboard stats from live registry and violation
// store state. Nothing is cached; every call is a fresh point-in-time read.
// Querying the snapshot broadcasts a STATS_UPDATE as a side effect.
func (a *Aggregator) Snapshot(ctx context.Context) (*domain.DashboardStats, error) {
	// One list read keeps active + inactive consistent with the total.
	detectors, err := a.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list detectors: %w", err)
	}
	active := 0
	for _, det := range detectors {
		if det.Active {
			active++
		}
	}

	pending, err := a.violations.CountByStatus(ctx, domain.StatusDetected)
	if err != nil {
		return nil, fmt.Errorf("count pending violations: %w", err)
	}
	acknowledged, err := a.violations.CountByStatus(ctx, domain.StatusAcknowledged)
	if err != nil {
		return nil, fmt.Errorf("count acknowledged violations: %w", err)
	}
	total, err := a.violations.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count violations: %w", err)
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := a.violations.CountDetectedSince(ctx, startOfDay)
	if err != nil {
		return nil, fmt.Errorf("count violations today: %w", err)
	}

	critical, err := a.violations.CountPendingBySeverity(ctx, domain.SeverityCritical)
	if err != nil {
		return nil, fmt.Errorf("count critical violations: %w", err)
	}

	snapshot := &domain.DashboardStats{
		TotalDetectors:         len(detectors),
		ActiveDetectors:        active,
		InactiveDetectors:      len(detectors) - active,
		PendingViolations:      pending,
		AcknowledgedViolations: acknowledged,
		TotalViolations:        total,
		ViolationsToday:        today,
		CriticalViolations:     critical,
		LastUpdated:            now,
	}

	a.notifier.StatsUpdate(snapshot)
	a.logger.Debug("computed dashboard snapshot",
		zap.Int("detectors", snapshot.TotalDetectors),
		zap.Int("pending_violations", snapshot.PendingViolations),
	)
	return snapshot, nil
}
