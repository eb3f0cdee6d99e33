package domain

import "time"

// HeightReading is the JSON payload devices publish on their
// detector/{device_id}/{kind} topics.
type HeightReading struct {
	DeviceID     string    `json:"device_id"`
	Height       float64   `json:"height"`
	Timestamp    time.Time `json:"timestamp"`
	SensorStatus string    `json:"sensor_status"`
	Temperature  *float64  `json:"temperature,omitempty"`
}
