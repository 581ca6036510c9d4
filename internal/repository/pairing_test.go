package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtrack/tracker-server-go/internal/database"
	"github.com/famtrack/tracker-server-go/internal/model"
)

// setupTestDB connects to the database named by TEST_DATABASE_URL. The
// schema from scripts/schema.sql must already be loaded.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.Connect(url)
	require.NoError(t, err)
	return db
}

func seedFixtures(t *testing.T, db *database.DB) (familyID, parentID, childID string) {
	t.Helper()
	ctx := context.Background()

	parentID = uuid.NewString()
	childID = uuid.NewString()
	familyID = uuid.NewString()

	for _, q := range []struct {
		query string
		args  []any
	}{
		{
			`INSERT INTO users (id, email, password, role, verified) VALUES ($1, $2, 'x', 'Parent', TRUE)`,
			[]any{parentID, parentID + "@example.com"},
		},
		{
			`INSERT INTO users (id, email, password, role, verified) VALUES ($1, $2, 'x', 'Child', TRUE)`,
			[]any{childID, childID + "@example.com"},
		},
		{
			`INSERT INTO families (id, family_name, created_by) VALUES ($1, 'Test family', $2)`,
			[]any{familyID, parentID},
		},
		{
			`INSERT INTO family_members (id, user_id, family_id, relationship) VALUES ($1, $2, $3, 'Child')`,
			[]any{uuid.NewString(), childID, familyID},
		},
	} {
		_, err := db.ExecContext(ctx, q.query, q.args...)
		require.NoError(t, err)
	}

	return familyID, parentID, childID
}

func createCode(t *testing.T, repo PairingCodeRepository, familyID, childID string, expiresAt time.Time) *model.PairingCode {
	t.Helper()

	code := fmt.Sprintf("TEST-%s", uuid.NewString()[:8])
	pc, err := repo.Create(context.Background(), model.CreatePairingCodeParams{
		Code:           code,
		FamilyID:       familyID,
		AssignedUserID: childID,
		DeviceName:     "Test phone",
		DeviceType:     model.DeviceTypePhone,
		ExpiresAt:      expiresAt,
	})
	require.NoError(t, err)
	return pc
}

func TestPairingCodeRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewPairingCodeRepository(db.DB)
	ctx := context.Background()
	familyID, _, childID := seedFixtures(t, db)

	t.Run("created codes start pending and are findable", func(t *testing.T) {
		pc := createCode(t, repo, familyID, childID, time.Now().Add(10*time.Minute))

		found, err := repo.FindByCode(ctx, pc.Code)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, model.CodeStatusPending, found.Status)
		assert.Nil(t, found.UsedAt)
	})

	t.Run("unknown code yields nil without error", func(t *testing.T) {
		found, err := repo.FindByCode(ctx, "ZZZZ-9999")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("MarkPaired succeeds exactly once", func(t *testing.T) {
		pc := createCode(t, repo, familyID, childID, time.Now().Add(10*time.Minute))

		deviceID := uuid.NewString()
		_, err := db.ExecContext(ctx,
			`INSERT INTO devices (id, device_name, type, user_id, paired_at) VALUES ($1, 'Test phone', 'Phone', $2, NOW())`,
			deviceID, childID)
		require.NoError(t, err)

		won, err := repo.MarkPaired(ctx, pc.ID, deviceID)
		require.NoError(t, err)
		assert.True(t, won)

		won, err = repo.MarkPaired(ctx, pc.ID, deviceID)
		require.NoError(t, err)
		assert.False(t, won, "second transition must lose")

		found, err := repo.FindByCode(ctx, pc.Code)
		require.NoError(t, err)
		assert.Equal(t, model.CodeStatusPaired, found.Status)
		assert.NotNil(t, found.UsedAt)
	})

	t.Run("ExpireIfPastDeadline only fires on stale pending codes", func(t *testing.T) {
		fresh := createCode(t, repo, familyID, childID, time.Now().Add(10*time.Minute))
		expired, err := repo.ExpireIfPastDeadline(ctx, fresh.Code)
		require.NoError(t, err)
		assert.False(t, expired)

		stale := createCode(t, repo, familyID, childID, time.Now().Add(-time.Minute))
		expired, err = repo.ExpireIfPastDeadline(ctx, stale.Code)
		require.NoError(t, err)
		assert.True(t, expired)

		found, err := repo.FindByCode(ctx, stale.Code)
		require.NoError(t, err)
		assert.Equal(t, model.CodeStatusExpired, found.Status)
	})

	t.Run("ExpirePendingForUser clears every live code for the member", func(t *testing.T) {
		createCode(t, repo, familyID, childID, time.Now().Add(10*time.Minute))

		n, err := repo.ExpirePendingForUser(ctx, childID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		n, err = repo.ExpirePendingForUser(ctx, childID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("duplicate codes violate the unique constraint", func(t *testing.T) {
		pc := createCode(t, repo, familyID, childID, time.Now().Add(10*time.Minute))

		_, err := repo.Create(ctx, model.CreatePairingCodeParams{
			Code:           pc.Code,
			FamilyID:       familyID,
			AssignedUserID: childID,
			DeviceName:     "Another phone",
			DeviceType:     model.DeviceTypePhone,
			ExpiresAt:      time.Now().Add(10 * time.Minute),
		})
		require.Error(t, err)
		assert.True(t, IsUniqueViolation(err))
	})
}

// TestPairingCodeRepository_ConcurrentRedemption drives the full redemption
// transaction from many goroutines at once. The row lock serializes them;
// one creates a device, the rest observe the post-state and roll back.
func TestPairingCodeRepository_ConcurrentRedemption(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	codes := NewPairingCodeRepository(db.DB)
	devices := NewDeviceRepository(db.DB)
	ctx := context.Background()
	familyID, _, childID := seedFixtures(t, db)
	pc := createCode(t, codes, familyID, childID, time.Now().Add(10*time.Minute))

	errLostRace := errors.New("lost the redemption race")

	const redeemers = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < redeemers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
				txCodes := codes.WithTx(tx)
				txDevices := devices.WithTx(tx)

				row, err := txCodes.FindByCodeForUpdate(ctx, pc.Code)
				if err != nil {
					return err
				}
				if row == nil || row.Status != model.CodeStatusPending {
					return errLostRace
				}

				d, err := txDevices.Create(ctx, model.CreateDeviceParams{
					DeviceName: row.DeviceName,
					Type:       row.DeviceType,
					UserID:     row.AssignedUserID,
					PairedAt:   time.Now(),
				})
				if err != nil {
					return err
				}

				won, err := txCodes.MarkPaired(ctx, row.ID, d.ID)
				if err != nil {
					return err
				}
				if !won {
					return errLostRace
				}
				return nil
			})
			switch {
			case err == nil:
				wins.Add(1)
			case !errors.Is(err, errLostRace):
				t.Errorf("redemption transaction failed: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one redeemer should win")

	var deviceCount int
	err := db.GetContext(ctx, &deviceCount,
		`SELECT COUNT(*) FROM devices WHERE user_id = $1`, childID)
	require.NoError(t, err)
	assert.Equal(t, 1, deviceCount, "losing redeemers must not leave device rows behind")

	final, err := codes.FindByCode(ctx, pc.Code)
	require.NoError(t, err)
	assert.Equal(t, model.CodeStatusPaired, final.Status)
	assert.NotNil(t, final.DeviceID)
}
