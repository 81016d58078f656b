package models

import "time"

// HistoryFilters defines the available filter options for event history
type HistoryFilters struct {
	Start *time.Time `json:"start" schema:"start"`
	End   *time.Time `json:"end" schema:"end"`
	Limit int        `json:"limit" schema:"limit"`
}

// StatisticsFilters defines the filter options for on-demand statistics
type StatisticsFilters struct {
	DataType string     `json:"data_type" schema:"dataType"`
	Start    *time.Time `json:"start" schema:"start"`
	End      *time.Time `json:"end" schema:"end"`
}

// TrendFilters defines the filter options for trend queries
type TrendFilters struct {
	Hours int `json:"hours" schema:"hours"`
}
