// FilePath: internal/models/models.statistics.go
package models

import "time"

// StatisticsRecord holds the aggregate for one (device, data type, hour) bucket.
// PeriodStart is inclusive, PeriodEnd exclusive.
type StatisticsRecord struct {
	ID          int64     `json:"id" db:"id"`
	DeviceID    int       `json:"device_id" db:"device_id"`
	DataType    string    `json:"data_type" db:"data_type"`
	PeriodStart time.Time `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time `json:"period_end" db:"period_end"`
	MinValue    float64   `json:"min_value" db:"min_value"`
	MaxValue    float64   `json:"max_value" db:"max_value"`
	AvgValue    float64   `json:"avg_value" db:"avg_value"`
	Count       int       `json:"count" db:"count"`
}

// TrendBucket is one hourly aggregate of a trend series computed live from
// raw events. Hours with no events are omitted from the series.
type TrendBucket struct {
	Hour  time.Time `json:"time"`
	Avg   float64   `json:"avg_value"`
	Min   float64   `json:"min_value"`
	Max   float64   `json:"max_value"`
	Count int       `json:"count"`
}
