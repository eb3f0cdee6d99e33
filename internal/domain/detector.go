package domain

import "time"

// Detector is a height-clearance detector installed at a fixed location,
// identified by its device ID. ClearanceHeight is the maximum safe height
// (feet) for the structure it guards.
type Detector struct {
	DeviceID        string    `json:"device_id"`
	Location        string    `json:"location"`
	ClearanceHeight float64   `json:"clearance_height"`
	Active          bool      `json:"active"`
	LastHeartbeat   time.Time `json:"last_heartbeat"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ActiveAt reports whether the detector counts as alive at the given
// instant: its last heartbeat is no older than the timeout. A heartbeat
// exactly at now-timeout still counts as alive.
func (d *Detector) ActiveAt(now time.Time, timeout time.Duration) bool {
	return !d.LastHeartbeat.Before(now.Add(-timeout))
}
