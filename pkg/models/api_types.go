package models

import (
	"time"

	"github.com/google/uuid"
)

// ErrorResponse is the JSON body for API errors.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// RegisterRequest is the agent registration payload.
type RegisterRequest struct {
	SerialNumber string `json:"serial_number"`
	AssetID      string `json:"asset_id,omitempty"`
	DeviceName   string `json:"device_name,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	OSName       string `json:"os_name,omitempty"`
	OSVersion    string `json:"os_version,omitempty"`
	MACAddress   string `json:"mac_address,omitempty"`
	AgentVersion string `json:"agent_version,omitempty"`
}

// RegisterResponse carries the issued agent credential. The token is returned
// exactly once; only its fingerprint is retained server-side.
type RegisterResponse struct {
	DeviceID   uuid.UUID `json:"device_id"`
	AgentToken string    `json:"agent_token"`
	Message    string    `json:"message"`
}

// PingRequest is the periodic status and location report from an agent.
type PingRequest struct {
	Latitude       *float64       `json:"latitude,omitempty"`
	Longitude      *float64       `json:"longitude,omitempty"`
	Accuracy       *float64       `json:"accuracy,omitempty"`
	Altitude       *float64       `json:"altitude,omitempty"`
	LocationSource LocationSource `json:"location_source,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	NetworkName    string         `json:"network_name,omitempty"`
	BatteryLevel   *float64       `json:"battery_level,omitempty"`
	IsCharging     *bool          `json:"is_charging,omitempty"`
	AgentVersion   string         `json:"agent_version,omitempty"`
	RecordedAt     *time.Time     `json:"recorded_at,omitempty"`
}

// PingCommand is one command as delivered to an agent.
type PingCommand struct {
	ID      uuid.UUID   `json:"id"`
	Type    CommandType `json:"type"`
	Payload string      `json:"payload,omitempty"`
	Message string      `json:"message,omitempty"`
}

// PingResponse carries the drained command batch. Command/CommandID/Message
// mirror the first entry for older agents that only understand a single
// command per ping.
type PingResponse struct {
	Command   *CommandType  `json:"command,omitempty"`
	CommandID *uuid.UUID    `json:"command_id,omitempty"`
	Message   string        `json:"message,omitempty"`
	Commands  []PingCommand `json:"commands"`
}

// CommandResultRequest reports the outcome of a delivered command.
type CommandResultRequest struct {
	CommandID      uuid.UUID `json:"command_id"`
	Status         string    `json:"status"` // "executed" or "failed"
	Result         string    `json:"result,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	ScreenshotData string    `json:"screenshot_data,omitempty"`
}

// ScreenshotRequest uploads a captured screenshot, either for a specific
// command or unsolicited.
type ScreenshotRequest struct {
	ScreenshotBase64 string     `json:"screenshot_base64"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
	CommandID        *uuid.UUID `json:"command_id,omitempty"`
}

// AgentStatusResponse is the agent-facing view of its own device record.
type AgentStatusResponse struct {
	DeviceID   uuid.UUID    `json:"device_id"`
	AssetID    string       `json:"asset_id"`
	Status     DeviceStatus `json:"status"`
	IsLocked   bool         `json:"is_locked"`
	IsWiped    bool         `json:"is_wiped"`
	LockReason string       `json:"lock_reason,omitempty"`
	ServerTime time.Time    `json:"server_time"`
}

// ConsentResponse acknowledges a recorded tracking consent.
type ConsentResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandCreateRequest is the operator payload for queueing a command.
type CommandCreateRequest struct {
	DeviceID    uuid.UUID   `json:"device_id"`
	CommandType CommandType `json:"command_type"`
	Payload     string      `json:"payload,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// DeviceUpdateRequest is a partial update of operator-editable device fields.
// Nil fields are left untouched.
type DeviceUpdateRequest struct {
	AssetID        *string     `json:"asset_id,omitempty"`
	DeviceName     *string     `json:"device_name,omitempty"`
	DeviceType     *DeviceType `json:"device_type,omitempty"`
	Manufacturer   *string     `json:"manufacturer,omitempty"`
	Model          *string     `json:"model,omitempty"`
	EmployeeName   *string     `json:"employee_name,omitempty"`
	Department     *string     `json:"department,omitempty"`
	AssignedUserID *uuid.UUID  `json:"assigned_user_id,omitempty"`
	IsEncrypted    *bool       `json:"is_encrypted,omitempty"`
}

// CurrentLocation is the map-view projection of a device's cached last-known
// coordinate.
type CurrentLocation struct {
	DeviceID   uuid.UUID    `json:"device_id"`
	AssetID    string       `json:"asset_id"`
	DeviceName string       `json:"device_name,omitempty"`
	Status     DeviceStatus `json:"status"`
	Latitude   float64      `json:"latitude"`
	Longitude  float64      `json:"longitude"`
	Accuracy   *float64     `json:"accuracy,omitempty"`
	Source     string       `json:"source,omitempty"`
	LastSeen   *time.Time   `json:"last_seen,omitempty"`
}

// GeofenceCheckRequest asks whether a coordinate falls inside one geofence.
type GeofenceCheckRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeofenceCheckResponse is the result of the point-in-geofence utility check.
type GeofenceCheckResponse struct {
	GeofenceID     uuid.UUID `json:"geofence_id"`
	IsInside       bool      `json:"is_inside"`
	DistanceMeters *float64  `json:"distance_meters,omitempty"`
}
