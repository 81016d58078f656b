// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/factoriot/hub/internal/models"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidInput indicates that the input data is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultHistoryLimit caps history queries when the caller passes no limit.
const DefaultHistoryLimit = 1000

// EventRepository defines the interface for raw telemetry events.
// All time filters operate on the device timestamp.
type EventRepository interface {
	// Append persists the event and returns the store-assigned id.
	// A persistence failure is always surfaced to the caller.
	Append(ctx context.Context, event *models.Event) (int64, error)
	// QueryHistory returns events for a device ordered by device timestamp
	// descending. Either bound may be nil (open). An empty result is not an
	// error.
	QueryHistory(ctx context.Context, deviceID int, start, end *time.Time, limit int) ([]models.Event, error)
	// QueryWindow returns events for a device and data type with device
	// timestamp in [start, end].
	QueryWindow(ctx context.Context, deviceID int, dataType string, start, end time.Time) ([]models.Event, error)
	// QueryRange returns all events with device timestamp in [start, end)
	// across devices and data types, ordered by device, data type, timestamp.
	QueryRange(ctx context.Context, start, end time.Time) ([]models.Event, error)
	// DeleteOlderThan removes events with device timestamp before cutoff and
	// returns the number of rows deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StatisticsRepository defines the interface for hourly aggregates.
type StatisticsRepository interface {
	// Get returns the committed record for (device, data type, period start),
	// or ErrNotFound.
	Get(ctx context.Context, deviceID int, dataType string, periodStart time.Time) (*models.StatisticsRecord, error)
	// Insert writes the record unless one already exists for the same
	// (device, data type, period start). Returns false when the bucket was
	// already aggregated.
	Insert(ctx context.Context, record *models.StatisticsRecord) (bool, error)
	// ListByDevice returns committed records for a device with period start
	// in [start, end), ascending.
	ListByDevice(ctx context.Context, deviceID int, start, end time.Time) ([]models.StatisticsRecord, error)
}
