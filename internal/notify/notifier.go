package notify

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"clearance-monitor/internal/domain"
)

// Notifier converts domain events into notification envelopes and routes
// them to the right logical channel.
type Notifier struct {
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewNotifier(b Broadcaster, logger *zap.Logger) *Notifier {
	return &Notifier{broadcaster: b, logger: logger}
}

func (n *Notifier) NewViolation(v *domain.Violation) {
	n.broadcaster.Publish(domain.ChannelViolations, domain.Notification{
		Type: domain.NotifyNewViolation,
		Message: fmt.Sprintf("New violation detected at %s - Height: %.2f ft (Clearance: %.2f ft)",
			v.Location, v.DetectedHeight, v.ClearanceHeight),
		Data:      v,
		Timestamp: time.Now(),
		DeviceID:  v.DeviceID,
		Location:  v.Location,
	})
	n.logger.Info("broadcasted new violation",
		zap.Int64("violation_id", v.ID),
		zap.String("device_id", v.DeviceID),
		zap.String("severity", string(v.Severity)),
	)
}

func (n *Notifier) ViolationAcknowledged(v *domain.Violation) {
	n.broadcaster.Publish(domain.ChannelViolations, domain.Notification{
		Type:      domain.NotifyViolationAck,
		Message:   fmt.Sprintf("Violation #%d acknowledged", v.ID),
		Data:      v,
		Timestamp: time.Now(),
		DeviceID:  v.DeviceID,
		Location:  v.Location,
	})
	n.logger.Info("broadcasted violation acknowledgement", zap.Int64("violation_id", v.ID))
}

func (n *Notifier) DetectorStatusChange(deviceID, location string, online bool) {
	typ := domain.NotifyDetectorOffline
	state := "OFFLINE"
	if online {
		typ = domain.NotifyDetectorOnline
		state = "ONLINE"
	}

	n.broadcaster.Publish(domain.ChannelDetectors, domain.Notification{
		Type:      typ,
		Message:   fmt.Sprintf("Detector %s is now %s", deviceID, state),
		Timestamp: time.Now(),
		DeviceID:  deviceID,
		Location:  location,
	})
	n.logger.Info("broadcasted detector status change",
		zap.String("device_id", deviceID),
		zap.String("state", state),
	)
}

func (n *Notifier) StatsUpdate(stats *domain.DashboardStats) {
	n.broadcaster.Publish(domain.ChannelStats, domain.Notification{
		Type:      domain.NotifyStatsUpdate,
		Message:   "Dashboard statistics updated",
		Data:      stats,
		Timestamp: time.Now(),
	})
	n.logger.Debug("broadcasted stats update")
}

func (n *Notifier) SystemAlert(message string) {
	n.broadcaster.Publish(domain.ChannelAlerts, domain.Notification{
		Type:      domain.NotifySystemAlert,
		Message:   message,
		Timestamp: time.Now(),
	})
	n.logger.Warn("broadcasted system alert", zap.String("message", message))
}
