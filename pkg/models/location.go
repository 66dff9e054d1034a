package models

import (
	"time"

	"github.com/google/uuid"
)

// LocationSource identifies how a coordinate was obtained.
type LocationSource string

const (
	LocationSourceGPS    LocationSource = "gps"
	LocationSourceWiFi   LocationSource = "wifi"
	LocationSourceIP     LocationSource = "ip"
	LocationSourceHybrid LocationSource = "hybrid"
)

// LocationSample is one reported position. Samples are append-only and never
// updated after insert.
type LocationSample struct {
	ID       uuid.UUID `json:"id"`
	DeviceID uuid.UUID `json:"device_id"`

	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // meters
	Altitude  *float64 `json:"altitude,omitempty"` // meters

	Source LocationSource `json:"source"`

	IPAddress   string `json:"ip_address,omitempty"`
	NetworkName string `json:"network_name,omitempty"`

	BatteryLevel *float64 `json:"battery_level,omitempty"`
	IsCharging   *bool    `json:"is_charging,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
	ReceivedAt time.Time `json:"received_at"`
}

// GeoPoint is a single latitude/longitude vertex.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
