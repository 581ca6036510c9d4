package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtrack/tracker-server-go/internal/model"
)

// TestDeviceRepository_ConcurrentThrottledIngest runs the locked
// check-then-write ingest transaction from many goroutines inside one
// throttle window. The device row lock serializes the throttle check, so
// only the first reading lands.
func TestDeviceRepository_ConcurrentThrottledIngest(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	devices := NewDeviceRepository(db.DB)
	locations := NewLocationRepository(db.DB)
	ctx := context.Background()
	_, _, childID := seedFixtures(t, db)

	device, err := devices.Create(ctx, model.CreateDeviceParams{
		DeviceName: "Test phone",
		Type:       model.DeviceTypePhone,
		UserID:     childID,
		PairedAt:   time.Now(),
	})
	require.NoError(t, err)

	const window = 5 * time.Second
	const pings = 8

	var writes atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < pings; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
				txDevices := devices.WithTx(tx)
				txLocations := locations.WithTx(tx)

				d, err := txDevices.FindByIDForUpdate(ctx, device.ID)
				if err != nil {
					return err
				}
				if d == nil {
					return errors.New("device row disappeared")
				}

				now := time.Now()
				if d.LastSeen != nil && now.Sub(*d.LastSeen) < window {
					return nil
				}

				if _, err := txLocations.Create(ctx, model.CreateLocationParams{
					DeviceID:  device.ID,
					Latitude:  37.7749,
					Longitude: -122.4194,
					Timestamp: now,
				}); err != nil {
					return err
				}
				if err := txDevices.ApplyLastKnownState(ctx, device.ID, model.LastKnownState{
					Latitude:  37.7749,
					Longitude: -122.4194,
					Timestamp: now,
					SeenAt:    now,
				}); err != nil {
					return err
				}
				writes.Add(1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), writes.Load(), "only the first reading inside the window is persisted")

	count, err := locations.CountByDeviceID(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	final, err := devices.FindByID(ctx, device.ID)
	require.NoError(t, err)
	require.NotNil(t, final.LastSeen)
	assert.Equal(t, model.DeviceStatusOnline, final.Status)
}
