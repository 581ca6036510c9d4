package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/famtrack/tracker-server-go/internal/model"
)

type PairingCodeRepository interface {
	FindByCode(ctx context.Context, code string) (*model.PairingCode, error)
	// FindByCodeForUpdate takes a row lock; only call it inside a transaction.
	FindByCodeForUpdate(ctx context.Context, code string) (*model.PairingCode, error)
	Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error)
	// ExpirePendingForUser flips every Pending code for the user to Expired
	// and returns how many rows changed.
	ExpirePendingForUser(ctx context.Context, userID string) (int64, error)
	// ExpireIfPastDeadline is the lazy-expiry compare-and-swap: it only
	// succeeds when the row is still Pending and past its deadline.
	ExpireIfPastDeadline(ctx context.Context, code string) (bool, error)
	// MarkPaired transitions Pending to Paired; zero rows affected means
	// another redeemer won the race.
	MarkPaired(ctx context.Context, id string, deviceID string) (bool, error)
	MarkExpired(ctx context.Context, id string) error
	// ClearDeviceRef detaches codes from a device being unpaired.
	ClearDeviceRef(ctx context.Context, deviceID string) error
	// ExpireStale is the opportunistic background sweep. Codes are never
	// deleted; they remain as audit records.
	ExpireStale(ctx context.Context) (int64, error)
	WithTx(tx *sqlx.Tx) PairingCodeRepository
}

type pairingCodeDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type pairingCodeRepo struct {
	db pairingCodeDB
}

func NewPairingCodeRepository(db *sqlx.DB) PairingCodeRepository {
	return &pairingCodeRepo{db: db}
}

func (r *pairingCodeRepo) WithTx(tx *sqlx.Tx) PairingCodeRepository {
	return &pairingCodeRepo{db: tx}
}

func (r *pairingCodeRepo) FindByCode(ctx context.Context, code string) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		SELECT * FROM pairing_codes WHERE code = $1
	`, code)
	return HandleNotFound(&pc, err)
}

func (r *pairingCodeRepo) FindByCodeForUpdate(ctx context.Context, code string) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		SELECT * FROM pairing_codes WHERE code = $1 FOR UPDATE
	`, code)
	return HandleNotFound(&pc, err)
}

func (r *pairingCodeRepo) Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		INSERT INTO pairing_codes (code, family_id, assigned_user_id, device_name, device_type, platform, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'Pending', $7)
		RETURNING *
	`, params.Code, params.FamilyID, params.AssignedUserID, params.DeviceName, params.DeviceType, params.Platform, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *pairingCodeRepo) ExpirePendingForUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pairing_codes SET
			status = 'Expired',
			updated_at = $2
		WHERE assigned_user_id = $1 AND status = 'Pending'
	`, userID, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *pairingCodeRepo) ExpireIfPastDeadline(ctx context.Context, code string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pairing_codes SET
			status = 'Expired',
			updated_at = NOW()
		WHERE code = $1 AND status = 'Pending' AND expires_at < NOW()
	`, code)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *pairingCodeRepo) MarkPaired(ctx context.Context, id string, deviceID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pairing_codes SET
			status = 'Paired',
			device_id = $2,
			used_at = $3,
			updated_at = $3
		WHERE id = $1 AND status = 'Pending'
	`, id, deviceID, time.Now())
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *pairingCodeRepo) MarkExpired(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pairing_codes SET
			status = 'Expired',
			updated_at = $2
		WHERE id = $1 AND status = 'Pending'
	`, id, time.Now())
	return err
}

func (r *pairingCodeRepo) ClearDeviceRef(ctx context.Context, deviceID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pairing_codes SET
			device_id = NULL,
			updated_at = $2
		WHERE device_id = $1
	`, deviceID, time.Now())
	return err
}

func (r *pairingCodeRepo) ExpireStale(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pairing_codes SET
			status = 'Expired',
			updated_at = NOW()
		WHERE status = 'Pending' AND expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
