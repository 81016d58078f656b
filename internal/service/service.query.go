// FilePath: internal/service/service.query.go
package service

import (
	"context"
	"sort"
	"time"

	"github.com/factoriot/hub/internal/models"
	"github.com/factoriot/hub/internal/repository"
)

const (
	// DefaultStatisticsWindow is applied when a statistics query carries no
	// explicit time bounds.
	DefaultStatisticsWindow = 24 * time.Hour
	// DefaultTrendHours is the trend window when none is requested.
	DefaultTrendHours = 24
	// trendFetchLimit caps the raw rows a trend computation will scan.
	trendFetchLimit = 10000
)

// GetHistory returns raw events for a device, newest first, truncated to
// the filter limit (default 1000). No matching events is an empty result,
// not an error.
func (s *Service) GetHistory(ctx context.Context, deviceID int, filters models.HistoryFilters) ([]models.Event, error) {
	limit := filters.Limit
	if limit <= 0 || limit > repository.DefaultHistoryLimit {
		limit = repository.DefaultHistoryLimit
	}
	return s.events.QueryHistory(ctx, deviceID, filters.Start, filters.End, limit)
}

// GetStatistics computes min/max/avg/count over raw events in the window.
// It never reads precomputed records. A window with no events yields a
// record with Count = 0; callers must check Count before trusting the
// numeric fields.
func (s *Service) GetStatistics(ctx context.Context, deviceID int, filters models.StatisticsFilters) (*models.StatisticsRecord, error) {
	dataType := filters.DataType
	if dataType == "" {
		dataType = "temperature"
	}
	now := s.now().UTC()
	start := now.Add(-DefaultStatisticsWindow)
	if filters.Start != nil {
		start = *filters.Start
	}
	end := now
	if filters.End != nil {
		end = *filters.End
	}

	events, err := s.events.QueryWindow(ctx, deviceID, dataType, start, end)
	if err != nil {
		return nil, err
	}

	record := &models.StatisticsRecord{
		DeviceID:    deviceID,
		DataType:    dataType,
		PeriodStart: start,
		PeriodEnd:   end,
	}
	if len(events) == 0 {
		return record, nil
	}

	min, max, sum := events[0].Value, events[0].Value, 0.0
	for _, e := range events {
		if e.Value < min {
			min = e.Value
		}
		if e.Value > max {
			max = e.Value
		}
		sum += e.Value
	}
	record.MinValue = min
	record.MaxValue = max
	record.AvgValue = sum / float64(len(events))
	record.Count = len(events)
	return record, nil
}

// GetTrend derives an hour-bucketed series from raw history over the last
// N hours. Buckets are UTC hour truncations of the device timestamp;
// hours with no events are omitted, so the series is sparse. Ordered
// ascending by bucket time.
func (s *Service) GetTrend(ctx context.Context, deviceID int, hours int) ([]models.TrendBucket, error) {
	if hours <= 0 {
		hours = DefaultTrendHours
	}
	start := s.now().UTC().Add(-time.Duration(hours) * time.Hour)

	events, err := s.events.QueryHistory(ctx, deviceID, &start, nil, trendFetchLimit)
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time]*models.TrendBucket)
	order := []time.Time{}
	for _, e := range events {
		hour := e.DeviceTimestamp.UTC().Truncate(time.Hour)
		b, ok := buckets[hour]
		if !ok {
			b = &models.TrendBucket{Hour: hour, Min: e.Value, Max: e.Value}
			buckets[hour] = b
			order = append(order, hour)
		}
		if e.Value < b.Min {
			b.Min = e.Value
		}
		if e.Value > b.Max {
			b.Max = e.Value
		}
		b.Avg += e.Value // running sum, divided below
		b.Count++
	}

	result := make([]models.TrendBucket, 0, len(order))
	for _, hour := range order {
		b := buckets[hour]
		b.Avg /= float64(b.Count)
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Hour.Before(result[j].Hour)
	})
	return result, nil
}

// GetPrecomputed looks up a committed hourly statistics record. Returns
// nil when the bucket has not been aggregated.
func (s *Service) GetPrecomputed(ctx context.Context, deviceID int, dataType string, periodStart time.Time) (*models.StatisticsRecord, error) {
	record, err := s.stats.Get(ctx, deviceID, dataType, periodStart)
	if err == repository.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListStatistics returns committed hourly records for a device in
// [start, end), ascending.
func (s *Service) ListStatistics(ctx context.Context, deviceID int, start, end time.Time) ([]models.StatisticsRecord, error) {
	return s.stats.ListByDevice(ctx, deviceID, start, end)
}
