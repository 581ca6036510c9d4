package model

import (
	"time"
)

// LocationRecord is an append-only telemetry observation. Rows are never
// updated; retention is handled outside the ingestion path.
type LocationRecord struct {
	ID        string    `db:"id" json:"id"`
	DeviceID  string    `db:"device_id" json:"deviceId"`
	Latitude  float64   `db:"latitude" json:"latitude"`
	Longitude float64   `db:"longitude" json:"longitude"`
	Accuracy  *float64  `db:"accuracy" json:"accuracy,omitempty"`
	Altitude  *float64  `db:"altitude" json:"altitude,omitempty"`
	Speed     *float64  `db:"speed" json:"speed,omitempty"`
	Source    *string   `db:"source" json:"source,omitempty"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type CreateLocationParams struct {
	DeviceID  string
	Latitude  float64
	Longitude float64
	Accuracy  *float64
	Altitude  *float64
	Speed     *float64
	Source    *string
	Timestamp time.Time
}
