package model

import (
	"time"
)

type PairingCode struct {
	ID             string     `db:"id" json:"id"`
	Code           string     `db:"code" json:"code"`
	FamilyID       string     `db:"family_id" json:"familyId"`
	AssignedUserID string     `db:"assigned_user_id" json:"assignedUserId"`
	DeviceName     string     `db:"device_name" json:"deviceName"`
	DeviceType     DeviceType `db:"device_type" json:"deviceType"`
	Platform       *string    `db:"platform" json:"platform,omitempty"`
	Status         CodeStatus `db:"status" json:"status"`
	DeviceID       *string    `db:"device_id" json:"deviceId,omitempty"`
	ExpiresAt      time.Time  `db:"expires_at" json:"expiresAt"`
	UsedAt         *time.Time `db:"used_at" json:"usedAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

type CreatePairingCodeParams struct {
	Code           string
	FamilyID       string
	AssignedUserID string
	DeviceName     string
	DeviceType     DeviceType
	Platform       *string
	ExpiresAt      time.Time
}
