package models

import (
	"time"

	"github.com/google/uuid"
)

// CloudEvent is the envelope used for everything published to the event bus.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// AlertEventData is the payload for alert lifecycle events.
type AlertEventData struct {
	AlertID    uuid.UUID     `json:"alert_id"`
	DeviceID   uuid.UUID     `json:"device_id"`
	AlertType  AlertType     `json:"alert_type"`
	Severity   AlertSeverity `json:"severity"`
	Title      string        `json:"title"`
	GeofenceID *uuid.UUID    `json:"geofence_id,omitempty"`
	Latitude   *float64      `json:"latitude,omitempty"`
	Longitude  *float64      `json:"longitude,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// DeviceStatusEventData is the payload for device status transitions.
type DeviceStatusEventData struct {
	DeviceID       uuid.UUID    `json:"device_id"`
	SerialNumber   string       `json:"serial_number"`
	PreviousStatus DeviceStatus `json:"previous_status"`
	CurrentStatus  DeviceStatus `json:"current_status"`
	LastSeen       *time.Time   `json:"last_seen,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
}
