package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/famtrack/tracker-server-go/internal/model"
)

type LocationRepository interface {
	Create(ctx context.Context, params model.CreateLocationParams) (*model.LocationRecord, error)
	ListByDeviceID(ctx context.Context, deviceID string, since *time.Time, limit, offset int) ([]model.LocationRecord, error)
	CountByDeviceID(ctx context.Context, deviceID string) (int, error)
	WithTx(tx *sqlx.Tx) LocationRepository
}

type locationDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type locationRepo struct {
	db locationDB
}

func NewLocationRepository(db *sqlx.DB) LocationRepository {
	return &locationRepo{db: db}
}

func (r *locationRepo) WithTx(tx *sqlx.Tx) LocationRepository {
	return &locationRepo{db: tx}
}

func (r *locationRepo) Create(ctx context.Context, params model.CreateLocationParams) (*model.LocationRecord, error) {
	var record model.LocationRecord
	err := r.db.GetContext(ctx, &record, `
		INSERT INTO locations (id, device_id, latitude, longitude, accuracy, altitude, speed, source, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *
	`, uuid.NewString(), params.DeviceID, params.Latitude, params.Longitude,
		params.Accuracy, params.Altitude, params.Speed, params.Source, params.Timestamp)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *locationRepo) ListByDeviceID(ctx context.Context, deviceID string, since *time.Time, limit, offset int) ([]model.LocationRecord, error) {
	var records []model.LocationRecord
	if since != nil {
		err := r.db.SelectContext(ctx, &records, `
			SELECT * FROM locations
			WHERE device_id = $1 AND timestamp >= $2
			ORDER BY timestamp DESC
			LIMIT $3 OFFSET $4
		`, deviceID, *since, limit, offset)
		return records, err
	}
	err := r.db.SelectContext(ctx, &records, `
		SELECT * FROM locations
		WHERE device_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`, deviceID, limit, offset)
	return records, err
}

func (r *locationRepo) CountByDeviceID(ctx context.Context, deviceID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM locations WHERE device_id = $1
	`, deviceID)
	return count, err
}
