package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/factoriot/hub/internal/models"
	"github.com/factoriot/hub/internal/repository/memory"
)

func seedEvent(t *testing.T, repo *memory.EventRepo, deviceID int, dataType string, value float64, ts time.Time) {
	t.Helper()
	_, err := repo.Append(context.Background(), &models.Event{
		DeviceID:        deviceID,
		DataType:        dataType,
		Value:           value,
		ReceivedAt:      ts,
		DeviceTimestamp: ts,
	})
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
}

func TestRunCycleAggregatesCompletedHour(t *testing.T) {
	events := memory.NewEventRepository()
	stats := memory.NewStatisticsRepository()

	// Cycle at 11:30 aggregates the completed bucket [10:00, 11:00)
	now := time.Date(2026, 8, 31, 11, 30, 0, 0, time.UTC)
	day := now.Truncate(24 * time.Hour)
	seedEvent(t, events, 1, "temperature", 20, day.Add(10*time.Hour+5*time.Minute))
	seedEvent(t, events, 1, "temperature", 30, day.Add(10*time.Hour+40*time.Minute))
	seedEvent(t, events, 1, "temperature", 25, day.Add(10*time.Hour+50*time.Minute))
	// In-progress hour must never be aggregated
	seedEvent(t, events, 1, "temperature", 99, day.Add(11*time.Hour+10*time.Minute))

	agg := New(events, stats, time.Hour, 30*24*time.Hour, WithClock(func() time.Time { return now }))
	if err := agg.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	periodStart := day.Add(10 * time.Hour)
	record, err := stats.Get(context.Background(), 1, "temperature", periodStart)
	if err != nil {
		t.Fatalf("expected record for bucket %v: %v", periodStart, err)
	}
	if record.MinValue != 20 || record.MaxValue != 30 || record.AvgValue != 25 || record.Count != 3 {
		t.Errorf("got min=%f max=%f avg=%f count=%d, want 20/30/25/3",
			record.MinValue, record.MaxValue, record.AvgValue, record.Count)
	}
	if !record.PeriodEnd.Equal(periodStart.Add(time.Hour)) {
		t.Errorf("period_end = %v, want %v", record.PeriodEnd, periodStart.Add(time.Hour))
	}

	// The 11:00 bucket is still open
	if _, err := stats.Get(context.Background(), 1, "temperature", day.Add(11*time.Hour)); err == nil {
		t.Errorf("in-progress hour must not be aggregated")
	}
}

func TestRunCycleGroupsByDeviceAndDataType(t *testing.T) {
	events := memory.NewEventRepository()
	stats := memory.NewStatisticsRepository()

	now := time.Date(2026, 8, 31, 11, 5, 0, 0, time.UTC)
	bucket := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	seedEvent(t, events, 1, "temperature", 20, bucket.Add(5*time.Minute))
	seedEvent(t, events, 1, "humidity", 55, bucket.Add(6*time.Minute))
	seedEvent(t, events, 2, "temperature", 18, bucket.Add(7*time.Minute))

	agg := New(events, stats, time.Hour, 30*24*time.Hour, WithClock(func() time.Time { return now }))
	if err := agg.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	for _, probe := range []struct {
		deviceID int
		dataType string
	}{
		{1, "temperature"},
		{1, "humidity"},
		{2, "temperature"},
	} {
		if _, err := stats.Get(context.Background(), probe.deviceID, probe.dataType, bucket); err != nil {
			t.Errorf("missing record for device=%d type=%s: %v", probe.deviceID, probe.dataType, err)
		}
	}
}

func TestRunCycleIsIdempotent(t *testing.T) {
	events := memory.NewEventRepository()
	stats := memory.NewStatisticsRepository()

	now := time.Date(2026, 8, 31, 11, 5, 0, 0, time.UTC)
	bucket := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	seedEvent(t, events, 1, "temperature", 20, bucket.Add(5*time.Minute))

	agg := New(events, stats, time.Hour, 30*24*time.Hour, WithClock(func() time.Time { return now }))
	for i := 0; i < 2; i++ {
		if err := agg.RunCycle(context.Background()); err != nil {
			t.Fatalf("cycle %d failed: %v", i, err)
		}
	}

	records, err := stats.ListByDevice(context.Background(), 1, bucket, bucket.Add(time.Hour))
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected exactly one record after two cycles, got %d", len(records))
	}
}

func TestRunCycleRetention(t *testing.T) {
	events := memory.NewEventRepository()
	stats := memory.NewStatisticsRepository()

	now := time.Date(2026, 8, 31, 11, 5, 0, 0, time.UTC)
	seedEvent(t, events, 1, "temperature", 20, now.Add(-31*24*time.Hour))
	seedEvent(t, events, 1, "temperature", 21, now.Add(-29*24*time.Hour))

	agg := New(events, stats, time.Hour, 30*24*time.Hour, WithClock(func() time.Time { return now }))
	if err := agg.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	history, err := events.QueryHistory(context.Background(), 1, nil, nil, 10)
	if err != nil {
		t.Fatalf("query history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected only the 29-day-old event to survive, got %d", len(history))
	}
	if !history[0].DeviceTimestamp.Equal(now.Add(-29 * 24 * time.Hour)) {
		t.Errorf("wrong event retained: %v", history[0].DeviceTimestamp)
	}
}

func TestRunCycleEmptyBucketWritesNothing(t *testing.T) {
	events := memory.NewEventRepository()
	stats := memory.NewStatisticsRepository()

	now := time.Date(2026, 8, 31, 11, 5, 0, 0, time.UTC)
	agg := New(events, stats, time.Hour, 30*24*time.Hour, WithClock(func() time.Time { return now }))
	if err := agg.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	bucket := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	records, err := stats.ListByDevice(context.Background(), 1, bucket, bucket.Add(time.Hour))
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("empty bucket must not produce records, got %d", len(records))
	}
}

func TestRunObservesCancellation(t *testing.T) {
	events := memory.NewEventRepository()
	stats := memory.NewStatisticsRepository()
	agg := New(events, stats, 10*time.Millisecond, 30*24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agg.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("aggregator did not stop after cancellation")
	}
}

func TestGroupHourly(t *testing.T) {
	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	records := GroupHourly(nil, start, end)
	if len(records) != 0 {
		t.Errorf("no events must yield no records")
	}

	events := []models.Event{
		{DeviceID: 1, DataType: "temperature", Value: 20},
		{DeviceID: 1, DataType: "temperature", Value: 30},
		{DeviceID: 1, DataType: "temperature", Value: 25},
	}
	records = GroupHourly(events, start, end)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.MinValue != 20 || r.MaxValue != 30 || r.AvgValue != 25 || r.Count != 3 {
		t.Errorf("got min=%f max=%f avg=%f count=%d", r.MinValue, r.MaxValue, r.AvgValue, r.Count)
	}
	if !r.PeriodStart.Equal(start) || !r.PeriodEnd.Equal(end) {
		t.Errorf("bad period: %v..%v", r.PeriodStart, r.PeriodEnd)
	}
}
