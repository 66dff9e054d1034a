package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertType classifies a detected condition.
type AlertType string

const (
	AlertTypeGeofenceExit       AlertType = "geofence_exit"
	AlertTypeGeofenceEnter      AlertType = "geofence_enter"
	AlertTypeDeviceOffline      AlertType = "device_offline"
	AlertTypeUnauthorizedAccess AlertType = "unauthorized_access"
	AlertTypeAgentTamper        AlertType = "agent_tamper"
	AlertTypeLockRequested      AlertType = "lock_requested"
	AlertTypeWipeRequested      AlertType = "wipe_requested"
)

// AlertSeverity ranks an alert for operator triage.
type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

// Alert is a detected condition tied to a device and optionally a geofence.
// At most one unresolved alert may exist per (device, geofence, type) tuple.
type Alert struct {
	ID       uuid.UUID `json:"id"`
	DeviceID uuid.UUID `json:"device_id"`

	AlertType AlertType     `json:"alert_type"`
	Severity  AlertSeverity `json:"severity"`
	Title     string        `json:"title"`
	Message   string        `json:"message,omitempty"`

	// Coordinate at detection time, when known.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	GeofenceID *uuid.UUID `json:"geofence_id,omitempty"`

	IsAcknowledged bool       `json:"is_acknowledged"`
	AcknowledgedBy *uuid.UUID `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	IsResolved     bool       `json:"is_resolved"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	Notes          string     `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
