// FilePath: internal/models/models.event.go
package models

import "time"

// Event is one raw telemetry reading as received from a device.
// DeviceTimestamp is the sole time axis for windowing, aggregation and
// retention; ReceivedAt is informational only.
type Event struct {
	ID              int64     `json:"id" db:"id"`
	DeviceID        int       `json:"device_id" db:"device_id"`
	Topic           string    `json:"topic" db:"topic"`
	DataType        string    `json:"data_type" db:"data_type"`
	Value           float64   `json:"value" db:"value"`
	Unit            string    `json:"unit" db:"unit"`
	ReceivedAt      time.Time `json:"received_at" db:"received_at"`
	DeviceTimestamp time.Time `json:"device_timestamp" db:"device_timestamp"`
}

// TelemetryMessage is the JSON wire format delivered by the transport.
type TelemetryMessage struct {
	DeviceID  int       `json:"deviceId"`
	DataType  string    `json:"dataType"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}
