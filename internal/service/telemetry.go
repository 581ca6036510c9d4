package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	apperrors "github.com/famtrack/tracker-server-go/internal/errors"
	"github.com/famtrack/tracker-server-go/internal/model"
	"github.com/famtrack/tracker-server-go/internal/repository"
	"github.com/famtrack/tracker-server-go/internal/sse"
	"github.com/famtrack/tracker-server-go/internal/util"
)

type Reading struct {
	Latitude     float64
	Longitude    float64
	Accuracy     *float64
	Altitude     *float64
	Speed        *float64
	Source       *string
	Timestamp    *time.Time
	BatteryLevel *int
	IsCharging   *bool
}

type IngestResult struct {
	Accepted  bool                  `json:"accepted"`
	Throttled bool                  `json:"throttled"`
	Record    *model.LocationRecord `json:"location,omitempty"`
}

type HistoryResult struct {
	Records []model.LocationRecord `json:"locations"`
	Total   int                    `json:"total"`
}

type TelemetryService struct {
	db           TxRunner
	deviceRepo   repository.DeviceRepository
	locationRepo repository.LocationRepository
	familyRepo   repository.FamilyRepository
	broker       *sse.Broker
	throttle     time.Duration
}

func NewTelemetryService(
	db TxRunner,
	deviceRepo repository.DeviceRepository,
	locationRepo repository.LocationRepository,
	familyRepo repository.FamilyRepository,
	broker *sse.Broker,
	throttle time.Duration,
) *TelemetryService {
	return &TelemetryService{
		db:           db,
		deviceRepo:   deviceRepo,
		locationRepo: locationRepo,
		familyRepo:   familyRepo,
		broker:       broker,
		throttle:     throttle,
	}
}

// Ingest persists one telemetry reading. The device row is locked so the
// throttle check and the writes see a consistent snapshot: a reading inside
// the throttle window is acknowledged but discarded (an idempotent no-op,
// not an error), and a persisted reading always lands in both the history
// and the device's last-known columns or in neither.
func (s *TelemetryService) Ingest(ctx context.Context, deviceID string, reading Reading) (*IngestResult, error) {
	if !util.IsValidLatitude(reading.Latitude) {
		return nil, apperrors.InvalidInput("latitude", "out of range")
	}
	if !util.IsValidLongitude(reading.Longitude) {
		return nil, apperrors.InvalidInput("longitude", "out of range")
	}

	var (
		record   *model.LocationRecord
		familyID string
	)
	throttled := false

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		devices := s.deviceRepo.WithTx(tx)
		locations := s.locationRepo.WithTx(tx)
		families := s.familyRepo.WithTx(tx)

		device, err := devices.FindByIDForUpdate(ctx, deviceID)
		if err != nil {
			return apperrors.Database(err)
		}
		if device == nil || device.Removed() || device.PairStatus != model.PairStatusPaired {
			return apperrors.DeviceNotPaired()
		}

		now := time.Now()
		if device.LastSeen != nil && now.Sub(*device.LastSeen) < s.throttle {
			throttled = true
			return nil
		}

		timestamp := now
		if reading.Timestamp != nil {
			timestamp = *reading.Timestamp
		}

		record, err = locations.Create(ctx, model.CreateLocationParams{
			DeviceID:  deviceID,
			Latitude:  reading.Latitude,
			Longitude: reading.Longitude,
			Accuracy:  reading.Accuracy,
			Altitude:  reading.Altitude,
			Speed:     reading.Speed,
			Source:    reading.Source,
			Timestamp: timestamp,
		})
		if err != nil {
			return apperrors.Database(err)
		}

		// An out-of-order reading (client clock behind the stored position)
		// still belongs in the history, but must not drag the last-known
		// position backward.
		if device.LocationTimestamp == nil || timestamp.After(*device.LocationTimestamp) {
			err = devices.ApplyLastKnownState(ctx, deviceID, model.LastKnownState{
				Latitude:     reading.Latitude,
				Longitude:    reading.Longitude,
				Accuracy:     reading.Accuracy,
				Timestamp:    timestamp,
				SeenAt:       now,
				BatteryLevel: reading.BatteryLevel,
				IsCharging:   reading.IsCharging,
			})
		} else {
			err = devices.Touch(ctx, deviceID, now)
		}
		if err != nil {
			return apperrors.Database(err)
		}

		member, err := families.FindMembershipByUser(ctx, device.UserID)
		if err != nil {
			return apperrors.Database(err)
		}
		if member != nil {
			familyID = member.FamilyID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if throttled {
		log.Debug().Str("deviceId", deviceID).Msg("reading inside throttle window, discarded")
		return &IngestResult{Accepted: true, Throttled: true}, nil
	}

	s.publishLocation(ctx, familyID, record)

	return &IngestResult{Accepted: true, Record: record}, nil
}

// History returns the device's stored readings, newest first.
func (s *TelemetryService) History(ctx context.Context, deviceID string, since *time.Time, limit, offset int) (*HistoryResult, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.locationRepo.ListByDeviceID(ctx, deviceID, since, limit, offset)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	total, err := s.locationRepo.CountByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	return &HistoryResult{Records: records, Total: total}, nil
}

func (s *TelemetryService) publishLocation(ctx context.Context, familyID string, record *model.LocationRecord) {
	if s.broker == nil || familyID == "" || record == nil {
		return
	}

	data, _ := json.Marshal(map[string]any{
		"deviceId":  record.DeviceID,
		"latitude":  record.Latitude,
		"longitude": record.Longitude,
		"timestamp": record.Timestamp.Format(time.RFC3339),
	})

	if err := s.broker.Publish(ctx, familyID, sse.Event{Type: "location_update", Data: data}); err != nil {
		log.Warn().Err(err).Str("deviceId", record.DeviceID).Msg("failed to publish location update")
	}
}
