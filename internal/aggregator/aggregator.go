// Package aggregator rolls raw events into hourly statistics and prunes
// expired raw data on a fixed schedule.
package aggregator

import (
	"context"
	"time"

	"github.com/factoriot/hub/internal/models"
	"github.com/factoriot/hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// Aggregator is the background task owning the roll-up and retention
// cycle. It is started once at process init with its own context and
// joined at shutdown. At most one aggregator must be active per store;
// when that cannot be guaranteed by deployment, a Lease enforces it.
type Aggregator struct {
	events       repository.EventRepository
	stats        repository.StatisticsRepository
	lease        Lease
	interval     time.Duration
	retention    time.Duration
	cycleTimeout time.Duration
	now          func() time.Time
	emitter      *nuts.EventEmitter
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLease guards cycles with a leader lease.
func WithLease(lease Lease) Option {
	return func(a *Aggregator) { a.lease = lease }
}

// WithClock overrides the cycle clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithCycleTimeout bounds the duration of a single cycle.
func WithCycleTimeout(timeout time.Duration) Option {
	return func(a *Aggregator) { a.cycleTimeout = timeout }
}

// New creates an aggregator. The interval is the cycle period, retention
// the age beyond which raw events are purged.
func New(events repository.EventRepository, stats repository.StatisticsRepository, interval, retention time.Duration, opts ...Option) *Aggregator {
	a := &Aggregator{
		events:       events,
		stats:        stats,
		interval:     interval,
		retention:    retention,
		cycleTimeout: 5 * time.Minute,
		now:          time.Now,
		emitter:      nuts.NewEventEmitter(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnCycle registers a callback for aggregation lifecycle events
// ("cycle.completed", "cycle.failed").
func (a *Aggregator) OnCycle(event string, handler func(args ...interface{})) {
	a.emitter.On(event, "aggregator_handler", handler)
}

// Run executes aggregation cycles until ctx is cancelled. A failed cycle
// is logged and the loop proceeds to the next tick; nothing is retried
// early. Buckets missed while the process is down are not backfilled.
func (a *Aggregator) Run(ctx context.Context) {
	nuts.L.Infof("[Aggregator] Started, interval=%v retention=%v", a.interval, a.retention)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			nuts.L.Infof("[Aggregator] Stopped")
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				nuts.L.Infof("[Aggregator] Stopped")
				return
			}
			if err := a.RunCycle(ctx); err != nil {
				nuts.L.Errorf("[Aggregator] Cycle failed: %v", err)
				a.emitter.Emit("cycle.failed", err)
			}
		}
	}
}

// RunCycle executes one aggregation cycle: roll up the most recently
// completed hour bucket, then delete events past the retention horizon.
// Safe to invoke concurrently with the scheduled loop; the statistics
// store insert is conflict-free.
func (a *Aggregator) RunCycle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cycleTimeout)
	defer cancel()

	if a.lease != nil {
		held, err := a.lease.Acquire(ctx)
		if err != nil {
			return err
		}
		if !held {
			nuts.L.Infof("[Aggregator] Lease held elsewhere, skipping cycle")
			return nil
		}
		defer a.lease.Release(ctx)
	}

	now := a.now().UTC()
	periodStart := now.Add(-time.Hour).Truncate(time.Hour)

	inserted, skipped, err := a.aggregateBucket(ctx, periodStart)
	if err != nil {
		return err
	}

	pruned, err := a.events.DeleteOlderThan(ctx, now.Add(-a.retention))
	if err != nil {
		return err
	}

	nuts.L.Infof("[Aggregator] Cycle done: bucket=%v inserted=%d skipped=%d pruned=%d",
		periodStart, inserted, skipped, pruned)
	a.emitter.Emit("cycle.completed", periodStart, inserted, pruned)
	return nil
}

// aggregateBucket computes statistics for the hour bucket starting at
// periodStart. Only fully elapsed buckets are ever passed in; the
// in-progress hour is never aggregated.
func (a *Aggregator) aggregateBucket(ctx context.Context, periodStart time.Time) (inserted, skipped int, err error) {
	periodEnd := periodStart.Add(time.Hour)

	events, err := a.events.QueryRange(ctx, periodStart, periodEnd)
	if err != nil {
		return 0, 0, err
	}

	for _, record := range GroupHourly(events, periodStart, periodEnd) {
		written, err := a.stats.Insert(ctx, &record)
		if err != nil {
			return inserted, skipped, err
		}
		if written {
			inserted++
		} else {
			skipped++
		}
	}
	return inserted, skipped, nil
}

// GroupHourly groups events by (device, data type) and computes min, max,
// arithmetic mean and count per group. Groups with no members produce no
// record.
func GroupHourly(events []models.Event, periodStart, periodEnd time.Time) []models.StatisticsRecord {
	type groupKey struct {
		deviceID int
		dataType string
	}

	groups := make(map[groupKey][]float64)
	order := []groupKey{}
	for _, e := range events {
		key := groupKey{deviceID: e.DeviceID, dataType: e.DataType}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e.Value)
	}

	records := make([]models.StatisticsRecord, 0, len(order))
	for _, key := range order {
		values := groups[key]
		min, max, sum := values[0], values[0], 0.0
		for _, v := range values {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			sum += v
		}
		records = append(records, models.StatisticsRecord{
			DeviceID:    key.deviceID,
			DataType:    key.dataType,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			MinValue:    min,
			MaxValue:    max,
			AvgValue:    sum / float64(len(values)),
			Count:       len(values),
		})
	}
	return records
}
