package domain

import "time"

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities for sorting. Higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

type Status string

const (
	StatusDetected     Status = "DETECTED"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusResolved     Status = "RESOLVED"
	StatusIgnored      Status = "IGNORED"
)

// ClassifySeverity maps excess height (feet over clearance) to a severity
// tier. Boundary values fall to the lower tier: excess of exactly 2.0 is
// HIGH, 1.0 is MEDIUM, 0.5 is LOW.
func ClassifySeverity(excess float64) Severity {
	switch {
	case excess > 2.0:
		return SeverityCritical
	case excess > 1.0:
		return SeverityHigh
	case excess > 0.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Violation records a single reading that exceeded a detector's clearance.
// ClearanceHeight is snapshotted at detection time; Severity is derived
// once from ExcessHeight and never recomputed.
type Violation struct {
	ID              int64      `json:"id"`
	DeviceID        string     `json:"device_id"`
	Location        string     `json:"location"`
	DetectedHeight  float64    `json:"detected_height"`
	ClearanceHeight float64    `json:"clearance_height"`
	ExcessHeight    float64    `json:"excess_height"`
	Severity        Severity   `json:"severity"`
	Status          Status     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
	DetectedAt      time.Time  `json:"detected_at"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
