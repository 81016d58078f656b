package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/factoriot/hub/internal/models"
	"github.com/factoriot/hub/internal/repository"
)

// StatisticsRepo is an in-memory StatisticsRepository. Uniqueness of
// (device, data type, period start) is enforced by the map key, mirroring
// the UNIQUE constraint of the postgres implementation.
type StatisticsRepo struct {
	mu     sync.RWMutex
	nextID int64
	data   map[string]models.StatisticsRecord
}

// NewStatisticsRepository constructs an empty repository.
func NewStatisticsRepository() *StatisticsRepo {
	return &StatisticsRepo{
		nextID: 1,
		data:   make(map[string]models.StatisticsRecord),
	}
}

func bucketKey(deviceID int, dataType string, periodStart time.Time) string {
	return fmt.Sprintf("%d|%s|%d", deviceID, dataType, periodStart.UTC().Unix())
}

func (r *StatisticsRepo) Get(ctx context.Context, deviceID int, dataType string, periodStart time.Time) (*models.StatisticsRecord, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.data[bucketKey(deviceID, dataType, periodStart)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &record, nil
}

func (r *StatisticsRepo) Insert(ctx context.Context, record *models.StatisticsRecord) (bool, error) {
	_ = ctx
	if record == nil {
		return false, repository.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := bucketKey(record.DeviceID, record.DataType, record.PeriodStart)
	if _, exists := r.data[key]; exists {
		return false, nil
	}
	record.ID = r.nextID
	r.nextID++
	r.data[key] = *record
	return true, nil
}

func (r *StatisticsRepo) ListByDevice(ctx context.Context, deviceID int, start, end time.Time) ([]models.StatisticsRecord, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []models.StatisticsRecord{}
	for _, record := range r.data {
		if record.DeviceID != deviceID {
			continue
		}
		if record.PeriodStart.Before(start) || !record.PeriodStart.Before(end) {
			continue
		}
		result = append(result, record)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PeriodStart.Before(result[j].PeriodStart)
	})
	return result, nil
}
