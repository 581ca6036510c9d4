package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/famtrack/tracker-server-go/internal/database"
	"github.com/famtrack/tracker-server-go/internal/model"
	"github.com/famtrack/tracker-server-go/internal/repository"
)

// fakeTxRunner executes the transaction function directly. The repo mocks
// return themselves from WithTx, so everything inside the closure hits the
// same expectations.
type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type mockPairingCodeRepo struct {
	mock.Mock
}

func (m *mockPairingCodeRepo) FindByCode(ctx context.Context, code string) (*model.PairingCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingCode), args.Error(1)
}

func (m *mockPairingCodeRepo) FindByCodeForUpdate(ctx context.Context, code string) (*model.PairingCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingCode), args.Error(1)
}

func (m *mockPairingCodeRepo) Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingCode), args.Error(1)
}

func (m *mockPairingCodeRepo) ExpirePendingForUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPairingCodeRepo) ExpireIfPastDeadline(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockPairingCodeRepo) MarkPaired(ctx context.Context, id string, deviceID string) (bool, error) {
	args := m.Called(ctx, id, deviceID)
	return args.Bool(0), args.Error(1)
}

func (m *mockPairingCodeRepo) MarkExpired(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPairingCodeRepo) ClearDeviceRef(ctx context.Context, deviceID string) error {
	args := m.Called(ctx, deviceID)
	return args.Error(0)
}

func (m *mockPairingCodeRepo) ExpireStale(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPairingCodeRepo) WithTx(tx *sqlx.Tx) repository.PairingCodeRepository {
	return m
}

type mockDeviceRepo struct {
	mock.Mock
}

func (m *mockDeviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) FindPairedByUserID(ctx context.Context, userID string) (*model.Device, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) ListForFamily(ctx context.Context, familyID string) ([]model.Device, error) {
	args := m.Called(ctx, familyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Device), args.Error(1)
}

func (m *mockDeviceRepo) Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) UpdateMetadata(ctx context.Context, id string, params model.UpdateDeviceParams) (*model.Device, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) ApplyLastKnownState(ctx context.Context, id string, state model.LastKnownState) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

func (m *mockDeviceRepo) Touch(ctx context.Context, id string, seenAt time.Time) error {
	args := m.Called(ctx, id, seenAt)
	return args.Error(0)
}

func (m *mockDeviceRepo) SoftRemove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockDeviceRepo) WithTx(tx *sqlx.Tx) repository.DeviceRepository {
	return m
}

type mockLocationRepo struct {
	mock.Mock
}

func (m *mockLocationRepo) Create(ctx context.Context, params model.CreateLocationParams) (*model.LocationRecord, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LocationRecord), args.Error(1)
}

func (m *mockLocationRepo) ListByDeviceID(ctx context.Context, deviceID string, since *time.Time, limit, offset int) ([]model.LocationRecord, error) {
	args := m.Called(ctx, deviceID, since, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LocationRecord), args.Error(1)
}

func (m *mockLocationRepo) CountByDeviceID(ctx context.Context, deviceID string) (int, error) {
	args := m.Called(ctx, deviceID)
	return args.Int(0), args.Error(1)
}

func (m *mockLocationRepo) WithTx(tx *sqlx.Tx) repository.LocationRepository {
	return m
}

type mockFamilyRepo struct {
	mock.Mock
}

func (m *mockFamilyRepo) FindByCreator(ctx context.Context, userID string) (*model.Family, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Family), args.Error(1)
}

func (m *mockFamilyRepo) FindByID(ctx context.Context, id string) (*model.Family, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Family), args.Error(1)
}

func (m *mockFamilyRepo) FindMember(ctx context.Context, familyID, userID string) (*model.FamilyMember, error) {
	args := m.Called(ctx, familyID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FamilyMember), args.Error(1)
}

func (m *mockFamilyRepo) FindMembershipByUser(ctx context.Context, userID string) (*model.FamilyMember, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FamilyMember), args.Error(1)
}

func (m *mockFamilyRepo) UpdateMemberStatus(ctx context.Context, familyID, userID string, status model.MemberStatus) error {
	args := m.Called(ctx, familyID, userID, status)
	return args.Error(0)
}

func (m *mockFamilyRepo) FindUser(ctx context.Context, userID string) (*model.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockFamilyRepo) WithTx(tx *sqlx.Tx) repository.FamilyRepository {
	return m
}
