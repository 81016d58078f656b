// FilePath: internal/repository/postgres/postgres.statistics.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/factoriot/hub/internal/database"
	"github.com/factoriot/hub/internal/errors"
	"github.com/factoriot/hub/internal/models"
	"github.com/factoriot/hub/internal/repository"
)

type StatisticsRepo struct {
	db database.DB
}

func NewStatisticsRepository(db database.DB) (*StatisticsRepo, error) {
	repo := &StatisticsRepo{db: db}
	err := repo.initializeSchema()
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *StatisticsRepo) initializeSchema() error {
	// The UNIQUE constraint makes concurrent aggregation runs safe: the
	// insert is conflict-free instead of check-then-insert.
	queries := []string{
		`CREATE TABLE IF NOT EXISTS device_statistics (
			id BIGSERIAL PRIMARY KEY,
			device_id INTEGER NOT NULL,
			data_type TEXT NOT NULL,
			period_start TIMESTAMPTZ NOT NULL,
			period_end TIMESTAMPTZ NOT NULL,
			min_value DOUBLE PRECISION NOT NULL,
			max_value DOUBLE PRECISION NOT NULL,
			avg_value DOUBLE PRECISION NOT NULL,
			count INTEGER NOT NULL,
			UNIQUE (device_id, data_type, period_start)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_device_statistics_device
			ON device_statistics(device_id)`,
		`CREATE INDEX IF NOT EXISTS idx_device_statistics_device_period
			ON device_statistics(device_id, period_start)`,
	}

	for _, query := range queries {
		_, err := r.db.GetDB().Exec(query)
		if err != nil {
			return errors.NewDatabaseError("failed to initialize statistics schema", err)
		}
	}
	return nil
}

func (r *StatisticsRepo) Get(ctx context.Context, deviceID int, dataType string, periodStart time.Time) (*models.StatisticsRecord, error) {
	record := &models.StatisticsRecord{}
	query := `
		SELECT id, device_id, data_type, period_start, period_end,
			min_value, max_value, avg_value, count
		FROM device_statistics
		WHERE device_id = $1 AND data_type = $2 AND period_start = $3`

	err := r.db.GetDB().GetContext(ctx, record, query, deviceID, dataType, periodStart)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, errors.NewDatabaseError("failed to get statistics record", err)
	}
	return record, nil
}

func (r *StatisticsRepo) Insert(ctx context.Context, record *models.StatisticsRecord) (bool, error) {
	query := `
		INSERT INTO device_statistics
			(device_id, data_type, period_start, period_end,
			 min_value, max_value, avg_value, count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (device_id, data_type, period_start) DO NOTHING
		RETURNING id`

	var id int64
	err := r.db.GetDB().QueryRowContext(ctx, query,
		record.DeviceID, record.DataType, record.PeriodStart, record.PeriodEnd,
		record.MinValue, record.MaxValue, record.AvgValue, record.Count,
	).Scan(&id)
	if err == sql.ErrNoRows {
		// Bucket already aggregated
		return false, nil
	}
	if err != nil {
		return false, errors.NewDatabaseError("failed to insert statistics record", err)
	}
	record.ID = id
	return true, nil
}

func (r *StatisticsRepo) ListByDevice(ctx context.Context, deviceID int, start, end time.Time) ([]models.StatisticsRecord, error) {
	records := []models.StatisticsRecord{}
	query := `
		SELECT id, device_id, data_type, period_start, period_end,
			min_value, max_value, avg_value, count
		FROM device_statistics
		WHERE device_id = $1 AND period_start >= $2 AND period_start < $3
		ORDER BY period_start ASC`

	err := r.db.GetDB().SelectContext(ctx, &records, query, deviceID, start, end)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list statistics records", err)
	}
	return records, nil
}
