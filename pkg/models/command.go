package models

import (
	"time"

	"github.com/google/uuid"
)

// CommandType identifies the action an agent should perform.
type CommandType string

const (
	CommandTypeLock       CommandType = "lock"
	CommandTypeUnlock     CommandType = "unlock"
	CommandTypeRestart    CommandType = "restart"
	CommandTypeShutdown   CommandType = "shutdown"
	CommandTypeScreenshot CommandType = "screenshot"
	CommandTypeMessage    CommandType = "message"
	CommandTypeExecute    CommandType = "execute"
	CommandTypeWipe       CommandType = "wipe"
)

// CommandStatus is the delivery lifecycle state of a remote command.
//
//	pending --(drained to device)--> sent --(result reported)--> executed | failed
//	pending --(operator cancels)--> cancelled
//
// Executed, failed, and cancelled are terminal.
type CommandStatus string

const (
	CommandStatusPending   CommandStatus = "pending"
	CommandStatusSent      CommandStatus = "sent"
	CommandStatusExecuted  CommandStatus = "executed"
	CommandStatusFailed    CommandStatus = "failed"
	CommandStatusCancelled CommandStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are legal from s.
func (s CommandStatus) IsTerminal() bool {
	switch s {
	case CommandStatusExecuted, CommandStatusFailed, CommandStatusCancelled:
		return true
	}

	return false
}

// IsValid reports whether the command type is one of the known actions.
func (t CommandType) IsValid() bool {
	switch t {
	case CommandTypeLock, CommandTypeUnlock, CommandTypeRestart, CommandTypeShutdown,
		CommandTypeScreenshot, CommandTypeMessage, CommandTypeExecute, CommandTypeWipe:
		return true
	}

	return false
}

// RemoteCommand is a unit of work queued for a device. Commands are created by
// operators, drained by the device's own ping cycle, and completed by the
// device's result report.
type RemoteCommand struct {
	ID       uuid.UUID `json:"id"`
	DeviceID uuid.UUID `json:"device_id"`

	CommandType CommandType   `json:"command_type"`
	Status      CommandStatus `json:"status"`

	Payload string `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`

	Result         string `json:"result,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	ScreenshotData string `json:"screenshot_data,omitempty"`

	CreatedBy  *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`

	// Synthetic marks legacy lock/wipe pseudo-commands derived from device
	// flags rather than queue rows. They are merged into drained batches for
	// older delivery paths and have no backing row.
	Synthetic bool `json:"-"`
}
