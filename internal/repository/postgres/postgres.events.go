// FilePath: internal/repository/postgres/postgres.events.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/factoriot/hub/internal/database"
	"github.com/factoriot/hub/internal/errors"
	"github.com/factoriot/hub/internal/models"
	"github.com/factoriot/hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

type EventRepo struct {
	db database.DB
}

func NewEventRepository(db database.DB) (*EventRepo, error) {
	repo := &EventRepo{db: db}
	err := repo.initializeSchema()
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *EventRepo) initializeSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS device_events (
			id BIGSERIAL PRIMARY KEY,
			device_id INTEGER NOT NULL,
			topic TEXT NOT NULL DEFAULT '',
			data_type TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			received_at TIMESTAMPTZ NOT NULL,
			device_timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_device_events_device
			ON device_events(device_id)`,
		`CREATE INDEX IF NOT EXISTS idx_device_events_timestamp
			ON device_events(device_timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_device_events_device_type_timestamp
			ON device_events(device_id, data_type, device_timestamp)`,
	}

	for _, query := range queries {
		_, err := r.db.GetDB().Exec(query)
		if err != nil {
			return errors.NewDatabaseError("failed to initialize events schema", err)
		}
	}
	return nil
}

func (r *EventRepo) Append(ctx context.Context, event *models.Event) (int64, error) {
	query := `
		INSERT INTO device_events
			(device_id, topic, data_type, value, unit, received_at, device_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var id int64
	err := r.db.GetDB().QueryRowContext(ctx, query,
		event.DeviceID, event.Topic, event.DataType, event.Value,
		event.Unit, event.ReceivedAt, event.DeviceTimestamp,
	).Scan(&id)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to append event", err)
	}
	event.ID = id
	return id, nil
}

func (r *EventRepo) QueryHistory(ctx context.Context, deviceID int, start, end *time.Time, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = repository.DefaultHistoryLimit
	}

	query := `
		SELECT id, device_id, topic, data_type, value, unit, received_at, device_timestamp
		FROM device_events
		WHERE device_id = $1`
	args := []interface{}{deviceID}

	if start != nil {
		args = append(args, *start)
		query += fmt.Sprintf(" AND device_timestamp >= $%d", len(args))
	}
	if end != nil {
		args = append(args, *end)
		query += fmt.Sprintf(" AND device_timestamp <= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY device_timestamp DESC LIMIT $%d", len(args))

	events := []models.Event{}
	err := r.db.GetDB().SelectContext(ctx, &events, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to get event history", err)
	}
	return events, nil
}

func (r *EventRepo) QueryWindow(ctx context.Context, deviceID int, dataType string, start, end time.Time) ([]models.Event, error) {
	query := `
		SELECT id, device_id, topic, data_type, value, unit, received_at, device_timestamp
		FROM device_events
		WHERE device_id = $1 AND data_type = $2
			AND device_timestamp >= $3 AND device_timestamp <= $4
		ORDER BY device_timestamp ASC`

	events := []models.Event{}
	err := r.db.GetDB().SelectContext(ctx, &events, query, deviceID, dataType, start, end)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to get event window", err)
	}
	return events, nil
}

// QueryRange returns all events with device timestamp in [start, end) across
// devices and data types, ordered for the aggregator's grouping pass.
func (r *EventRepo) QueryRange(ctx context.Context, start, end time.Time) ([]models.Event, error) {
	query := `
		SELECT id, device_id, topic, data_type, value, unit, received_at, device_timestamp
		FROM device_events
		WHERE device_timestamp >= $1 AND device_timestamp < $2
		ORDER BY device_id, data_type, device_timestamp`

	events := []models.Event{}
	err := r.db.GetDB().SelectContext(ctx, &events, query, start, end)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to get event range", err)
	}
	return events, nil
}

func (r *EventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM device_events WHERE device_timestamp < $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to delete old events", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows > 0 {
		nuts.L.Infof("[EventRepo] Deleted %d events older than %v", rows, cutoff)
	}
	return rows, nil
}
