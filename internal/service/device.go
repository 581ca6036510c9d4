package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	apperrors "github.com/famtrack/tracker-server-go/internal/errors"
	"github.com/famtrack/tracker-server-go/internal/model"
	"github.com/famtrack/tracker-server-go/internal/repository"
)

type DeviceService struct {
	db         TxRunner
	deviceRepo repository.DeviceRepository
	codeRepo   repository.PairingCodeRepository
	familyRepo repository.FamilyRepository
}

func NewDeviceService(
	db TxRunner,
	deviceRepo repository.DeviceRepository,
	codeRepo repository.PairingCodeRepository,
	familyRepo repository.FamilyRepository,
) *DeviceService {
	return &DeviceService{
		db:         db,
		deviceRepo: deviceRepo,
		codeRepo:   codeRepo,
		familyRepo: familyRepo,
	}
}

// List returns the devices the actor may see: a parent sees every device in
// the family they created, a child sees their own.
func (s *DeviceService) List(ctx context.Context, actor Actor) ([]model.Device, error) {
	if actor.IsParent() {
		family, err := s.familyRepo.FindByCreator(ctx, actor.ID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if family == nil {
			return nil, apperrors.FamilyNotFound()
		}

		devices, err := s.deviceRepo.ListForFamily(ctx, family.ID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		return devices, nil
	}

	device, err := s.deviceRepo.FindPairedByUserID(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if device == nil {
		return []model.Device{}, nil
	}
	return []model.Device{*device}, nil
}

func (s *DeviceService) Get(ctx context.Context, actor Actor, deviceID string) (*model.Device, error) {
	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if device == nil || device.Removed() {
		return nil, apperrors.NotFound("Device")
	}

	if err := s.authorize(ctx, actor, device); err != nil {
		return nil, err
	}
	return device, nil
}

func (s *DeviceService) UpdateMetadata(ctx context.Context, actor Actor, deviceID string, params model.UpdateDeviceParams) (*model.Device, error) {
	if _, err := s.Get(ctx, actor, deviceID); err != nil {
		return nil, err
	}

	device, err := s.deviceRepo.UpdateMetadata(ctx, deviceID, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if device == nil {
		return nil, apperrors.NotFound("Device")
	}
	return device, nil
}

// Unpair removes the device. The soft delete, the detaching of any pairing
// code still pointing at the device, and the membership reset happen in one
// transaction; no observer can see them disagree.
func (s *DeviceService) Unpair(ctx context.Context, actor Actor, deviceID string) error {
	device, err := s.Get(ctx, actor, deviceID)
	if err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		devices := s.deviceRepo.WithTx(tx)
		codes := s.codeRepo.WithTx(tx)
		families := s.familyRepo.WithTx(tx)

		locked, err := devices.FindByIDForUpdate(ctx, deviceID)
		if err != nil {
			return apperrors.Database(err)
		}
		if locked == nil || locked.Removed() {
			return apperrors.NotFound("Device")
		}

		if err := devices.SoftRemove(ctx, deviceID); err != nil {
			return apperrors.Database(err)
		}

		if err := codes.ClearDeviceRef(ctx, deviceID); err != nil {
			return apperrors.Database(err)
		}

		member, err := families.FindMembershipByUser(ctx, locked.UserID)
		if err != nil {
			return apperrors.Database(err)
		}
		if member != nil {
			if err := families.UpdateMemberStatus(ctx, member.FamilyID, locked.UserID, model.MemberStatusNotPaired); err != nil {
				return apperrors.Database(err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("deviceId", deviceID).
		Str("userId", device.UserID).
		Msg("device unpaired")
	return nil
}

// authorize enforces the ownership rule: a member may act only on their own
// device, a parent only on devices bound to members of the family they
// created.
func (s *DeviceService) authorize(ctx context.Context, actor Actor, device *model.Device) error {
	if device.UserID == actor.ID {
		return nil
	}
	if !actor.IsParent() {
		return apperrors.Forbidden("You may only access your own device")
	}

	family, err := s.familyRepo.FindByCreator(ctx, actor.ID)
	if err != nil {
		return apperrors.Database(err)
	}
	if family == nil {
		return apperrors.FamilyNotFound()
	}

	member, err := s.familyRepo.FindMember(ctx, family.ID, device.UserID)
	if err != nil {
		return apperrors.Database(err)
	}
	if member == nil {
		return apperrors.Forbidden("Device does not belong to your family")
	}
	return nil
}
