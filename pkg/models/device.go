package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceStatus is the live status of a tracked device.
type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
	DeviceStatusLocked  DeviceStatus = "locked"
	DeviceStatusWiped   DeviceStatus = "wiped"
)

// DeviceType categorizes the tracked asset.
type DeviceType string

const (
	DeviceTypeLaptop      DeviceType = "laptop"
	DeviceTypeDesktop     DeviceType = "desktop"
	DeviceTypeTablet      DeviceType = "tablet"
	DeviceTypeMobile      DeviceType = "mobile"
	DeviceTypeWorkstation DeviceType = "workstation"
)

// Device represents a tracked asset and its last reported state.
type Device struct {
	ID           uuid.UUID  `json:"id"`
	SerialNumber string     `json:"serial_number"`
	AssetID      string     `json:"asset_id"`
	DeviceName   string     `json:"device_name,omitempty"`
	DeviceType   DeviceType `json:"device_type"`
	Manufacturer string     `json:"manufacturer,omitempty"`
	Model        string     `json:"model,omitempty"`
	OSName       string     `json:"os_name,omitempty"`
	OSVersion    string     `json:"os_version,omitempty"`

	// Assignment
	EmployeeName   string     `json:"employee_name,omitempty"`
	Department     string     `json:"department,omitempty"`
	AssignedUserID *uuid.UUID `json:"assigned_user_id,omitempty"`

	// Registration and agent state
	Status         DeviceStatus `json:"status"`
	IsRegistered   bool         `json:"is_registered"`
	AgentInstalled bool         `json:"agent_installed"`
	AgentVersion   string       `json:"agent_version,omitempty"`

	// Last known location, cached from the most recent ping that carried one.
	LastLatitude         *float64   `json:"last_latitude,omitempty"`
	LastLongitude        *float64   `json:"last_longitude,omitempty"`
	LastLocationAccuracy *float64   `json:"last_location_accuracy,omitempty"`
	LastLocationSource   string     `json:"last_location_source,omitempty"`
	LastIPAddress        string     `json:"last_ip_address,omitempty"`
	LastSeen             *time.Time `json:"last_seen,omitempty"`

	// Network
	MACAddress  string `json:"mac_address,omitempty"`
	NetworkName string `json:"network_name,omitempty"`

	// Security state. StatusLocked implies IsLocked; StatusWiped is terminal.
	IsEncrypted bool   `json:"is_encrypted"`
	IsLocked    bool   `json:"is_locked"`
	LockReason  string `json:"lock_reason,omitempty"`
	IsWiped     bool   `json:"is_wiped"`

	// End-user consent to tracking, recorded once by the agent.
	ConsentGiven     bool       `json:"consent_given"`
	ConsentTimestamp *time.Time `json:"consent_timestamp,omitempty"`
	PolicyAccepted   bool       `json:"policy_accepted"`

	// SHA-256 fingerprint of the issued agent token. The raw token is never
	// stored server-side.
	AgentTokenFingerprint string `json:"-"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
}

// IsValid reports whether the status is one of the known device states.
func (s DeviceStatus) IsValid() bool {
	switch s {
	case DeviceStatusOnline, DeviceStatusOffline, DeviceStatusLocked, DeviceStatusWiped:
		return true
	}

	return false
}
