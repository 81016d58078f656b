// Package memory provides mutex-guarded in-memory repositories used by
// tests and by running the hub without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/factoriot/hub/internal/models"
	"github.com/factoriot/hub/internal/repository"
)

// EventRepo is an in-memory EventRepository.
type EventRepo struct {
	mu     sync.RWMutex
	nextID int64
	events []models.Event
}

// NewEventRepository constructs an empty repository.
func NewEventRepository() *EventRepo {
	return &EventRepo{nextID: 1}
}

func (r *EventRepo) Append(ctx context.Context, event *models.Event) (int64, error) {
	_ = ctx
	if event == nil {
		return 0, repository.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = r.nextID
	r.nextID++
	r.events = append(r.events, *event)
	return event.ID, nil
}

func (r *EventRepo) QueryHistory(ctx context.Context, deviceID int, start, end *time.Time, limit int) ([]models.Event, error) {
	_ = ctx
	if limit <= 0 {
		limit = repository.DefaultHistoryLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []models.Event{}
	for _, e := range r.events {
		if e.DeviceID != deviceID {
			continue
		}
		if start != nil && e.DeviceTimestamp.Before(*start) {
			continue
		}
		if end != nil && e.DeviceTimestamp.After(*end) {
			continue
		}
		result = append(result, e)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DeviceTimestamp.After(result[j].DeviceTimestamp)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *EventRepo) QueryWindow(ctx context.Context, deviceID int, dataType string, start, end time.Time) ([]models.Event, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []models.Event{}
	for _, e := range r.events {
		if e.DeviceID != deviceID || e.DataType != dataType {
			continue
		}
		if e.DeviceTimestamp.Before(start) || e.DeviceTimestamp.After(end) {
			continue
		}
		result = append(result, e)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DeviceTimestamp.Before(result[j].DeviceTimestamp)
	})
	return result, nil
}

func (r *EventRepo) QueryRange(ctx context.Context, start, end time.Time) ([]models.Event, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []models.Event{}
	for _, e := range r.events {
		if e.DeviceTimestamp.Before(start) || !e.DeviceTimestamp.Before(end) {
			continue
		}
		result = append(result, e)
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.DeviceID != b.DeviceID {
			return a.DeviceID < b.DeviceID
		}
		if a.DataType != b.DataType {
			return a.DataType < b.DataType
		}
		return a.DeviceTimestamp.Before(b.DeviceTimestamp)
	})
	return result, nil
}

func (r *EventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0]
	var deleted int64
	for _, e := range r.events {
		if e.DeviceTimestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return deleted, nil
}

// Len reports the number of stored events.
func (r *EventRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}
