package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/famtrack/tracker-server-go/internal/model"
)

type DeviceRepository interface {
	FindByID(ctx context.Context, id string) (*model.Device, error)
	// FindByIDForUpdate takes a row lock; only call it inside a transaction.
	// The telemetry throttle check depends on this lock.
	FindByIDForUpdate(ctx context.Context, id string) (*model.Device, error)
	// FindPairedByUserID returns the member's active device, if any.
	FindPairedByUserID(ctx context.Context, userID string) (*model.Device, error)
	// ListForFamily returns every non-removed device bound to a member of
	// the family.
	ListForFamily(ctx context.Context, familyID string) ([]model.Device, error)
	Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error)
	UpdateMetadata(ctx context.Context, id string, params model.UpdateDeviceParams) (*model.Device, error)
	// ApplyLastKnownState writes the telemetry-owned columns. lastSeen only
	// moves forward; the WHERE clause enforces monotonicity.
	ApplyLastKnownState(ctx context.Context, id string, state model.LastKnownState) error
	// Touch bumps last_seen and marks the device Online without moving the
	// stored position (used for out-of-order readings).
	Touch(ctx context.Context, id string, seenAt time.Time) error
	// SoftRemove marks the device Removed and sets deleted_at. The row and
	// its location history stay behind.
	SoftRemove(ctx context.Context, id string) error
	WithTx(tx *sqlx.Tx) DeviceRepository
}

type deviceDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type deviceRepo struct {
	db deviceDB
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) WithTx(tx *sqlx.Tx) DeviceRepository {
	return &deviceRepo{db: tx}
}

func (r *deviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		SELECT * FROM devices WHERE id = $1
	`, id)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		SELECT * FROM devices WHERE id = $1 FOR UPDATE
	`, id)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) FindPairedByUserID(ctx context.Context, userID string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		SELECT * FROM devices
		WHERE user_id = $1 AND pair_status = 'Paired' AND deleted_at IS NULL
		ORDER BY paired_at DESC
		LIMIT 1
	`, userID)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) ListForFamily(ctx context.Context, familyID string) ([]model.Device, error) {
	var devices []model.Device
	err := r.db.SelectContext(ctx, &devices, `
		SELECT d.* FROM devices d
		JOIN family_members fm ON fm.user_id = d.user_id
		WHERE fm.family_id = $1 AND d.deleted_at IS NULL
		ORDER BY d.paired_at DESC
	`, familyID)
	return devices, err
}

func (r *deviceRepo) Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		INSERT INTO devices (id, device_name, type, platform, user_id, status, pair_status, paired_at)
		VALUES ($1, $2, $3, $4, $5, 'Offline', 'Paired', $6)
		RETURNING *
	`, uuid.NewString(), params.DeviceName, params.Type, params.Platform, params.UserID, params.PairedAt)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepo) UpdateMetadata(ctx context.Context, id string, params model.UpdateDeviceParams) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		UPDATE devices SET
			device_name = COALESCE($2, device_name),
			device_model = COALESCE($3, device_model),
			os_version = COALESCE($4, os_version),
			app_version = COALESCE($5, app_version),
			updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING *
	`, id, params.DeviceName, params.DeviceModel, params.OSVersion, params.AppVersion, time.Now())
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) ApplyLastKnownState(ctx context.Context, id string, state model.LastKnownState) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			last_latitude = $2,
			last_longitude = $3,
			location_accuracy = $4,
			location_timestamp = $5,
			last_seen = GREATEST(COALESCE(last_seen, $6), $6),
			status = 'Online',
			battery_level = COALESCE($7, battery_level),
			is_charging = COALESCE($8, is_charging),
			updated_at = $6
		WHERE id = $1
	`, id, state.Latitude, state.Longitude, state.Accuracy, state.Timestamp, state.SeenAt, state.BatteryLevel, state.IsCharging)
	return err
}

func (r *deviceRepo) Touch(ctx context.Context, id string, seenAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			last_seen = GREATEST(COALESCE(last_seen, $2), $2),
			status = 'Online',
			updated_at = $2
		WHERE id = $1
	`, id, seenAt)
	return err
}

func (r *deviceRepo) SoftRemove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			pair_status = 'Removed',
			status = 'Offline',
			deleted_at = $2,
			updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, time.Now())
	return err
}
