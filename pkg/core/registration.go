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

	"github.com/carverauto/fleettrace/pkg/core/auth"
	"github.com/carverauto/fleettrace/pkg/db"
	"github.com/carverauto/fleettrace/pkg/models"
)

// RegisterAgent performs the idempotent registration upsert keyed on serial
// number. Repeat calls succeed and reissue a token until both the registered
// and agent-installed flags are set, after which registration is refused.
// Only the SHA-256 fingerprint of the issued token is stored.
func (s *Server) RegisterAgent(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	if req.SerialNumber == "" {
		return nil, fmt.Errorf("%w: serial_number is required", ErrValidation)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollback(ctx, tx)

	device, err := tx.GetDeviceBySerialForUpdate(ctx, req.SerialNumber)

	switch {
	case err == nil:
		if device.IsRegistered && device.AgentInstalled {
			return nil, ErrAlreadyRegistered
		}
	case errors.Is(err, db.ErrDeviceNotFound):
		device = provisionDevice(req)

		if err := tx.InsertDevice(ctx, device); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	token, err := s.tokens.IssueAgentToken(device.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue agent token: %w", err)
	}

	now := time.Now().UTC()
	previousStatus := device.Status
	applyDeviceInfo(device, req)

	device.IsRegistered = true
	device.AgentInstalled = true
	device.AgentTokenFingerprint = auth.Fingerprint(token)
	device.RegisteredAt = &now

	// A registering agent is by definition reachable right now.
	if device.Status == models.DeviceStatusOffline {
		device.Status = models.DeviceStatusOnline
	}

	device.LastSeen = &now

	if err := tx.SaveDevice(ctx, device); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, device, previousStatus)

	s.logger.Info().
		Str("device_id", device.ID.String()).
		Str("serial_number", device.SerialNumber).
		Msg("Agent registered")

	return &models.RegisterResponse{
		DeviceID:   device.ID,
		AgentToken: token,
		Message:    "Device registered successfully",
	}, nil
}

// provisionDevice auto-creates a device record on first contact.
func provisionDevice(req *models.RegisterRequest) *models.Device {
	assetID := req.AssetID
	if assetID == "" {
		assetID = "AUTO-" + req.SerialNumber
	}

	name := req.DeviceName
	if name == "" {
		name = "Device-" + req.SerialNumber
	}

	return &models.Device{
		SerialNumber: req.SerialNumber,
		AssetID:      assetID,
		DeviceName:   name,
		DeviceType:   models.DeviceTypeLaptop,
		Status:       models.DeviceStatusOffline,
	}
}

// applyDeviceInfo copies hardware metadata from the registration payload,
// leaving existing values in place when the agent omits a field.
func applyDeviceInfo(device *models.Device, req *models.RegisterRequest) {
	if req.DeviceName != "" {
		device.DeviceName = req.DeviceName
	}

	if req.Manufacturer != "" {
		device.Manufacturer = req.Manufacturer
	}

	if req.Model != "" {
		device.Model = req.Model
	}

	if req.OSName != "" {
		device.OSName = req.OSName
	}

	if req.OSVersion != "" {
		device.OSVersion = req.OSVersion
	}

	if req.MACAddress != "" {
		device.MACAddress = req.MACAddress
	}

	if req.AgentVersion != "" {
		device.AgentVersion = req.AgentVersion
	}
}
