package model

import (
	"time"
)

type Device struct {
	ID                string       `db:"id" json:"id"`
	DeviceName        string       `db:"device_name" json:"deviceName"`
	Type              DeviceType   `db:"type" json:"type"`
	Platform          *string      `db:"platform" json:"platform,omitempty"`
	DeviceModel       *string      `db:"device_model" json:"deviceModel,omitempty"`
	OSVersion         *string      `db:"os_version" json:"osVersion,omitempty"`
	AppVersion        *string      `db:"app_version" json:"appVersion,omitempty"`
	UserID            string       `db:"user_id" json:"userId"`
	Status            DeviceStatus `db:"status" json:"status"`
	PairStatus        PairStatus   `db:"pair_status" json:"pairStatus"`
	PairedAt          time.Time    `db:"paired_at" json:"pairedAt"`
	LastSeen          *time.Time   `db:"last_seen" json:"lastSeen,omitempty"`
	LastLatitude      *float64     `db:"last_latitude" json:"lastLatitude,omitempty"`
	LastLongitude     *float64     `db:"last_longitude" json:"lastLongitude,omitempty"`
	LocationAccuracy  *float64     `db:"location_accuracy" json:"locationAccuracy,omitempty"`
	LocationTimestamp *time.Time   `db:"location_timestamp" json:"locationTimestamp,omitempty"`
	BatteryLevel      *int         `db:"battery_level" json:"batteryLevel,omitempty"`
	IsCharging        bool         `db:"is_charging" json:"isCharging"`
	DeletedAt         *time.Time   `db:"deleted_at" json:"-"`
	CreatedAt         time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updatedAt"`
}

// Removed reports whether the device has been soft-deleted by an unpair.
func (d *Device) Removed() bool {
	return d.DeletedAt != nil
}

type CreateDeviceParams struct {
	DeviceName string
	Type       DeviceType
	Platform   *string
	UserID     string
	PairedAt   time.Time
}

type UpdateDeviceParams struct {
	DeviceName  *string
	DeviceModel *string
	OSVersion   *string
	AppVersion  *string
}

// LastKnownState is applied to the device row in the same transaction as
// the matching location record insert.
type LastKnownState struct {
	Latitude     float64
	Longitude    float64
	Accuracy     *float64
	Timestamp    time.Time
	SeenAt       time.Time
	BatteryLevel *int
	IsCharging   *bool
}
