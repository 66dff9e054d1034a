/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/db"
	"github.com/carverauto/fleettrace/pkg/models"
)

// CreateCommand queues a command in PENDING for the target device. Multiple
// pending commands of the same type may coexist.
func (s *Server) CreateCommand(ctx context.Context, req *models.CommandCreateRequest, creatorID *uuid.UUID) (*models.RemoteCommand, error) {
	if !req.CommandType.IsValid() {
		return nil, fmt.Errorf("%w: unknown command type %q", ErrValidation, req.CommandType)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollback(ctx, tx)

	// Lock the device row: command queue mutations serialize per device.
	if _, err := tx.GetDeviceForUpdate(ctx, req.DeviceID); err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	cmd := &models.RemoteCommand{
		DeviceID:    req.DeviceID,
		CommandType: req.CommandType,
		Status:      models.CommandStatusPending,
		Payload:     req.Payload,
		Message:     req.Message,
		CreatedBy:   creatorID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := tx.InsertCommand(ctx, cmd); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return cmd, nil
}

// CancelCommand is legal only from PENDING. Losing the race against a drain
// yields InvalidTransition, which callers should treat as benign.
func (s *Server) CancelCommand(ctx context.Context, commandID uuid.UUID) (*models.RemoteCommand, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollback(ctx, tx)

	cmd, err := tx.GetCommandForUpdate(ctx, commandID)
	if err != nil {
		if errors.Is(err, db.ErrCommandNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if cmd.Status != models.CommandStatusPending {
		return nil, fmt.Errorf("%w: cannot cancel command in state %q", ErrInvalidTransition, cmd.Status)
	}

	cmd.Status = models.CommandStatusCancelled

	if err := tx.SaveCommandResult(ctx, cmd); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return cmd, nil
}

// ReportCommandResult records a device's outcome for a delivered command.
// A reported failure is a successful result recording a failed outcome, not
// a protocol error. Only SENT commands accept results; the command must
// belong to the authenticated device.
func (s *Server) ReportCommandResult(ctx context.Context, deviceID uuid.UUID, req *models.CommandResultRequest) (*models.RemoteCommand, error) {
	var status models.CommandStatus

	switch req.Status {
	case "executed":
		status = models.CommandStatusExecuted
	case "failed":
		status = models.CommandStatusFailed
	default:
		return nil, fmt.Errorf("%w: result status must be executed or failed", ErrValidation)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollback(ctx, tx)

	// Device row first, command row second: same order as the drain, so the
	// two can never deadlock.
	if _, err := tx.GetDeviceForUpdate(ctx, deviceID); err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	cmd, err := tx.GetCommandForUpdate(ctx, req.CommandID)
	if err != nil {
		if errors.Is(err, db.ErrCommandNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if cmd.DeviceID != deviceID {
		return nil, ErrForbidden
	}

	if cmd.Status != models.CommandStatusSent {
		return nil, fmt.Errorf("%w: cannot report result for command in state %q", ErrInvalidTransition, cmd.Status)
	}

	now := time.Now().UTC()
	cmd.Status = status
	cmd.Result = req.Result
	cmd.ErrorMessage = req.ErrorMessage
	cmd.ExecutedAt = &now

	if req.ScreenshotData != "" {
		cmd.ScreenshotData = req.ScreenshotData
	}

	if err := tx.SaveCommandResult(ctx, cmd); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return cmd, nil
}

// AttachScreenshot stores an uploaded screenshot. With a command reference it
// attaches to that command (completing it if still SENT); without one it
// records a synthetic already-completed screenshot command.
func (s *Server) AttachScreenshot(ctx context.Context, deviceID uuid.UUID, req *models.ScreenshotRequest) (*models.RemoteCommand, error) {
	if req.ScreenshotBase64 == "" {
		return nil, fmt.Errorf("%w: screenshot_base64 is required", ErrValidation)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollback(ctx, tx)

	if _, err := tx.GetDeviceForUpdate(ctx, deviceID); err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	now := time.Now().UTC()

	var cmd *models.RemoteCommand

	if req.CommandID != nil {
		cmd, err = tx.GetCommandForUpdate(ctx, *req.CommandID)
		if err != nil {
			if errors.Is(err, db.ErrCommandNotFound) {
				return nil, ErrNotFound
			}

			return nil, err
		}

		if cmd.DeviceID != deviceID {
			return nil, ErrForbidden
		}

		cmd.ScreenshotData = req.ScreenshotBase64

		if cmd.Status == models.CommandStatusSent {
			cmd.Status = models.CommandStatusExecuted
			cmd.ExecutedAt = &now
		}

		if err := tx.SaveCommandResult(ctx, cmd); err != nil {
			return nil, err
		}
	} else {
		cmd = &models.RemoteCommand{
			DeviceID:       deviceID,
			CommandType:    models.CommandTypeScreenshot,
			Status:         models.CommandStatusExecuted,
			ScreenshotData: req.ScreenshotBase64,
			CreatedAt:      now,
			SentAt:         &now,
			ExecutedAt:     &now,
		}

		if err := tx.InsertCommand(ctx, cmd); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return cmd, nil
}

// LockDevice flags the device locked, queues a LOCK command, and raises an
// operator-visible alert. The agent receives the command on its next ping.
func (s *Server) LockDevice(ctx context.Context, deviceID uuid.UUID, reason string, creatorID *uuid.UUID) (*models.RemoteCommand, error) {
	return s.securityAction(ctx, deviceID, creatorID, func(device *models.Device) (*models.RemoteCommand, *models.Alert) {
		device.IsLocked = true
		device.LockReason = reason
		device.Status = models.DeviceStatusLocked

		cmd := &models.RemoteCommand{
			DeviceID:    deviceID,
			CommandType: models.CommandTypeLock,
			Status:      models.CommandStatusPending,
			Message:     reason,
			CreatedBy:   creatorID,
		}

		alert := &models.Alert{
			DeviceID:  deviceID,
			AlertType: models.AlertTypeLockRequested,
			Severity:  models.AlertSeverityHigh,
			Title:     "Remote lock requested",
			Message:   reason,
		}

		return cmd, alert
	})
}

// recentSeenWindow decides whether an unlocked device comes back as online
// or offline.
const recentSeenWindow = 10 * time.Minute

// UnlockDevice clears the lock flags and queues an UNLOCK command. The device
// returns to online only if it reported recently; otherwise offline.
func (s *Server) UnlockDevice(ctx context.Context, deviceID uuid.UUID, creatorID *uuid.UUID) (*models.RemoteCommand, error) {
	return s.securityAction(ctx, deviceID, creatorID, func(device *models.Device) (*models.RemoteCommand, *models.Alert) {
		device.IsLocked = false
		device.LockReason = ""

		if device.Status == models.DeviceStatusLocked {
			device.Status = models.DeviceStatusOffline
			if device.LastSeen != nil && time.Since(*device.LastSeen) < recentSeenWindow {
				device.Status = models.DeviceStatusOnline
			}
		}

		cmd := &models.RemoteCommand{
			DeviceID:    deviceID,
			CommandType: models.CommandTypeUnlock,
			Status:      models.CommandStatusPending,
			CreatedBy:   creatorID,
		}

		return cmd, nil
	})
}

// WipeDevice marks the device wiped and queues a WIPE command. Wiped is
// terminal: no further queued delivery occurs, only the legacy wipe flag.
func (s *Server) WipeDevice(ctx context.Context, deviceID uuid.UUID, creatorID *uuid.UUID) (*models.RemoteCommand, error) {
	return s.securityAction(ctx, deviceID, creatorID, func(device *models.Device) (*models.RemoteCommand, *models.Alert) {
		device.IsWiped = true
		device.Status = models.DeviceStatusWiped

		cmd := &models.RemoteCommand{
			DeviceID:    deviceID,
			CommandType: models.CommandTypeWipe,
			Status:      models.CommandStatusPending,
			CreatedBy:   creatorID,
		}

		alert := &models.Alert{
			DeviceID:  deviceID,
			AlertType: models.AlertTypeWipeRequested,
			Severity:  models.AlertSeverityCritical,
			Title:     "Remote wipe requested",
		}

		return cmd, alert
	})
}

// securityAction applies a device mutation plus its command and optional
// alert atomically under the device row lock.
func (s *Server) securityAction(
	ctx context.Context,
	deviceID uuid.UUID,
	creatorID *uuid.UUID,
	mutate func(device *models.Device) (*models.RemoteCommand, *models.Alert),
) (*models.RemoteCommand, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollback(ctx, tx)

	device, err := tx.GetDeviceForUpdate(ctx, deviceID)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	cmd, alert := mutate(device)
	cmd.CreatedAt = time.Now().UTC()

	if err := tx.SaveDevice(ctx, device); err != nil {
		return nil, err
	}

	if err := tx.InsertCommand(ctx, cmd); err != nil {
		return nil, err
	}

	if alert != nil {
		if err := tx.InsertAlert(ctx, alert); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	auditEvent := s.logger.Info().
		Str("device_id", deviceID.String()).
		Str("action", string(cmd.CommandType))
	if creatorID != nil {
		auditEvent = auditEvent.Str("requested_by", creatorID.String())
	}

	auditEvent.Msg("Security action applied")

	if alert != nil {
		s.publishAlerts(ctx, []*models.Alert{alert})
	}

	return cmd, nil
}

// ListCommands returns a device's commands newest-first, optionally filtered
// by status.
func (s *Server) ListCommands(ctx context.Context, deviceID uuid.UUID, status *models.CommandStatus, limit int) ([]*models.RemoteCommand, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	return s.store.ListCommands(ctx, deviceID, status, limit)
}

// GetCommand fetches a single command.
func (s *Server) GetCommand(ctx context.Context, id uuid.UUID) (*models.RemoteCommand, error) {
	cmd, err := s.store.GetCommand(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrCommandNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return cmd, nil
}
