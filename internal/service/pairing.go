package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/famtrack/tracker-server-go/internal/config"
	apperrors "github.com/famtrack/tracker-server-go/internal/errors"
	"github.com/famtrack/tracker-server-go/internal/model"
	"github.com/famtrack/tracker-server-go/internal/repository"
	"github.com/famtrack/tracker-server-go/internal/sse"
	"github.com/famtrack/tracker-server-go/internal/token"
	"github.com/famtrack/tracker-server-go/internal/util"
)

// Alphabet excludes 0/O and 1/I so codes survive being read aloud.
const pairingCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type IssueCodeParams struct {
	MemberUserID string
	DeviceName   string
	DeviceType   model.DeviceType
	Platform     *string
}

type IssueCodeResult struct {
	PairingCode string    `json:"pairingCode"`
	QRPayload   string    `json:"qrPayload"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type RedeemResult struct {
	DeviceToken string        `json:"deviceToken"`
	Device      *model.Device `json:"device"`
}

type CodeStatusResult struct {
	Status    model.CodeStatus `json:"status"`
	ExpiresIn int              `json:"expiresIn,omitempty"`
	Device    *model.Device    `json:"device,omitempty"`
}

type qrPayload struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type PairingService struct {
	db         TxRunner
	codeRepo   repository.PairingCodeRepository
	deviceRepo repository.DeviceRepository
	familyRepo repository.FamilyRepository
	issuer     *token.Issuer
	broker     *sse.Broker
	ttl        time.Duration
}

func NewPairingService(
	db TxRunner,
	codeRepo repository.PairingCodeRepository,
	deviceRepo repository.DeviceRepository,
	familyRepo repository.FamilyRepository,
	issuer *token.Issuer,
	broker *sse.Broker,
	ttl time.Duration,
) *PairingService {
	return &PairingService{
		db:         db,
		codeRepo:   codeRepo,
		deviceRepo: deviceRepo,
		familyRepo: familyRepo,
		issuer:     issuer,
		broker:     broker,
		ttl:        ttl,
	}
}

// IssueCode creates a fresh Pending code for a family member. Any earlier
// Pending code for the same member is expired in the same transaction, so
// one member never has two live codes.
func (s *PairingService) IssueCode(ctx context.Context, actor Actor, params IssueCodeParams) (*IssueCodeResult, error) {
	if !actor.IsParent() {
		return nil, apperrors.Forbidden("Only parents can generate pairing codes")
	}
	if params.MemberUserID == "" {
		return nil, apperrors.MissingRequired("memberUserId")
	}
	if params.DeviceName == "" {
		return nil, apperrors.MissingRequired("deviceName")
	}
	if params.DeviceType == "" {
		return nil, apperrors.MissingRequired("deviceType")
	}
	if !util.IsValidEnum(string(params.DeviceType), model.ValidDeviceTypes) {
		return nil, apperrors.InvalidInput("deviceType", "unknown device type")
	}

	// Verified is read from the account record, not the token claim; the
	// claim is only as fresh as the token.
	user, err := s.familyRepo.FindUser(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.Unauthorized("Account no longer exists")
	}
	if !user.Verified {
		return nil, apperrors.NotVerified()
	}

	family, err := s.familyRepo.FindByCreator(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if family == nil {
		return nil, apperrors.FamilyNotFound()
	}

	member, err := s.familyRepo.FindMember(ctx, family.ID, params.MemberUserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if member == nil || member.Relationship != model.RoleChild {
		return nil, apperrors.MemberNotInFamily()
	}
	if member.Status == model.MemberStatusActive {
		return nil, apperrors.AlreadyPaired()
	}

	expiresAt := time.Now().Add(s.ttl)

	var created *model.PairingCode
	for attempt := 0; attempt < config.PairingCodeMaxAttempts; attempt++ {
		code := generatePairingCode()

		err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
			codes := s.codeRepo.WithTx(tx)

			if _, err := codes.ExpirePendingForUser(ctx, params.MemberUserID); err != nil {
				return fmt.Errorf("expire prior pending codes: %w", err)
			}

			pc, err := codes.Create(ctx, model.CreatePairingCodeParams{
				Code:           code,
				FamilyID:       family.ID,
				AssignedUserID: params.MemberUserID,
				DeviceName:     params.DeviceName,
				DeviceType:     params.DeviceType,
				Platform:       params.Platform,
				ExpiresAt:      expiresAt,
			})
			if err != nil {
				return err
			}
			created = pc
			return nil
		})
		if err == nil {
			break
		}
		if repository.IsUniqueViolation(err) {
			// Collision with an existing code: regenerate, never overwrite.
			continue
		}
		return nil, apperrors.Database(err)
	}
	if created == nil {
		return nil, apperrors.Internal("Could not allocate a pairing code")
	}

	payload, _ := json.Marshal(qrPayload{Type: "PAIR_DEVICE", Code: created.Code})

	log.Info().
		Str("code", util.MaskCode(created.Code)).
		Str("familyId", family.ID).
		Str("memberUserId", params.MemberUserID).
		Time("expiresAt", expiresAt).
		Msg("pairing code issued")

	return &IssueCodeResult{
		PairingCode: created.Code,
		QRPayload:   string(payload),
		ExpiresAt:   expiresAt,
	}, nil
}

// Redeem exchanges a Pending code for a device identity and credential.
// The code row is locked for the duration of the transaction, so exactly
// one of any number of concurrent redeemers observes Pending; the rest see
// the post-state and fail.
func (s *PairingService) Redeem(ctx context.Context, rawCode string) (*RedeemResult, error) {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if !util.IsValidPairingCodeFormat(code) {
		return nil, apperrors.PairingCodeInvalid()
	}

	var (
		device  *model.Device
		expired bool
	)

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		codes := s.codeRepo.WithTx(tx)
		devices := s.deviceRepo.WithTx(tx)
		families := s.familyRepo.WithTx(tx)

		pc, err := codes.FindByCodeForUpdate(ctx, code)
		if err != nil {
			return apperrors.Database(err)
		}
		if pc == nil || pc.Status != model.CodeStatusPending {
			return apperrors.PairingCodeInvalid()
		}

		if time.Now().After(pc.ExpiresAt) {
			// Flip the row and commit; expiry is a terminal state, not a
			// rollback.
			if err := codes.MarkExpired(ctx, pc.ID); err != nil {
				return apperrors.Database(err)
			}
			expired = true
			return nil
		}

		d, err := devices.Create(ctx, model.CreateDeviceParams{
			DeviceName: pc.DeviceName,
			Type:       pc.DeviceType,
			Platform:   pc.Platform,
			UserID:     pc.AssignedUserID,
			PairedAt:   time.Now(),
		})
		if err != nil {
			return apperrors.Database(err)
		}

		ok, err := codes.MarkPaired(ctx, pc.ID, d.ID)
		if err != nil {
			return apperrors.Database(err)
		}
		if !ok {
			return apperrors.New(apperrors.ErrCodeConflict, "Pairing code was redeemed concurrently")
		}

		if err := families.UpdateMemberStatus(ctx, pc.FamilyID, pc.AssignedUserID, model.MemberStatusActive); err != nil {
			return apperrors.Database(err)
		}

		device = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		log.Warn().Str("code", util.MaskCode(code)).Msg("redemption of expired pairing code")
		return nil, apperrors.PairingCodeExpired()
	}

	deviceToken, err := s.issuer.IssueDeviceToken(device.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue device credential").WithCause(err)
	}

	s.publishPaired(ctx, device)

	log.Info().
		Str("code", util.MaskCode(code)).
		Str("deviceId", device.ID).
		Str("userId", device.UserID).
		Msg("device paired")

	return &RedeemResult{DeviceToken: deviceToken, Device: device}, nil
}

// Status reports the code's lifecycle state. Reading performs the lazy
// expiry check: a Pending row past its deadline is flipped to Expired via a
// single conditional update, no lock held.
func (s *PairingService) Status(ctx context.Context, rawCode string) (*CodeStatusResult, error) {
	code := strings.ToUpper(strings.TrimSpace(rawCode))

	if _, err := s.codeRepo.ExpireIfPastDeadline(ctx, code); err != nil {
		return nil, apperrors.Database(err)
	}

	pc, err := s.codeRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if pc == nil {
		return nil, apperrors.NotFound("Pairing code")
	}

	result := &CodeStatusResult{Status: pc.Status}

	switch pc.Status {
	case model.CodeStatusPending:
		result.ExpiresIn = int(time.Until(pc.ExpiresAt).Seconds())
	case model.CodeStatusPaired:
		if pc.DeviceID != nil {
			device, err := s.deviceRepo.FindByID(ctx, *pc.DeviceID)
			if err != nil {
				return nil, apperrors.Database(err)
			}
			result.Device = device
		}
	}

	return result, nil
}

func (s *PairingService) publishPaired(ctx context.Context, device *model.Device) {
	if s.broker == nil {
		return
	}

	member, err := s.familyRepo.FindMembershipByUser(ctx, device.UserID)
	if err != nil || member == nil {
		return
	}

	data, _ := json.Marshal(map[string]any{
		"deviceId":   device.ID,
		"userId":     device.UserID,
		"deviceName": device.DeviceName,
		"pairedAt":   device.PairedAt.Format(time.RFC3339),
	})

	if err := s.broker.Publish(ctx, member.FamilyID, sse.Event{Type: "device_paired", Data: data}); err != nil {
		log.Warn().Err(err).Str("deviceId", device.ID).Msg("failed to publish pairing event")
	}
}

func generatePairingCode() string {
	chars := []byte(pairingCodeChars)
	part1 := make([]byte, 4)
	part2 := make([]byte, 4)

	for i := 0; i < 4; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		part1[i] = chars[n.Int64()]
	}
	for i := 0; i < 4; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		part2[i] = chars[n.Int64()]
	}

	return fmt.Sprintf("%s-%s", string(part1), string(part2))
}
