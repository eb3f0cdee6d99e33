package domain

import "time"

type NotificationType string

const (
	NotifyNewViolation    NotificationType = "NEW_VIOLATION"
	NotifyViolationAck    NotificationType = "VIOLATION_ACK"
	NotifyDetectorOnline  NotificationType = "DETECTOR_ONLINE"
	NotifyDetectorOffline NotificationType = "DETECTOR_OFFLINE"
	NotifySystemAlert     NotificationType = "SYSTEM_ALERT"
	NotifyStatsUpdate     NotificationType = "STATS_UPDATE"
)

// Channel is a logical broadcast channel subscribers attach to.
type Channel string

const (
	ChannelViolations Channel = "violations"
	ChannelDetectors  Channel = "detectors"
	ChannelStats      Channel = "stats"
	ChannelAlerts     Channel = "alerts"
)

// Notification is the envelope delivered to every subscriber of a channel.
type Notification struct {
	Type      NotificationType `json:"notification_type"`
	Message   string           `json:"message"`
	Data      any              `json:"data,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	DeviceID  string           `json:"device_id,omitempty"`
	Location  string           `json:"location,omitempty"`
}

// DashboardStats is the point-in-time aggregate view. It is recomputed on
// every request and never cached.
type DashboardStats struct {
	TotalDetectors         int       `json:"total_detectors"`
	ActiveDetectors        int       `json:"active_detectors"`
	InactiveDetectors      int       `json:"inactive_detectors"`
	PendingViolations      int       `json:"pending_violations"`
	AcknowledgedViolations int       `json:"acknowledged_violations"`
	TotalViolations        int       `json:"total_violations"`
	ViolationsToday        int       `json:"violations_today"`
	CriticalViolations     int       `json:"critical_violations"`
	LastUpdated            time.Time `json:"last_updated"`
}
