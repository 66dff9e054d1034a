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
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/db"
	"github.com/carverauto/fleettrace/pkg/geofence"
	"github.com/carverauto/fleettrace/pkg/models"
)

// ProcessPing runs the whole ping cycle in one transaction: status and
// network metadata update, location sample, geofence evaluation, and the
// command queue drain. Any failure rolls the whole cycle back; the agent
// never observes partial state. The device row lock taken first serializes
// concurrent pings from the same device.
func (s *Server) ProcessPing(ctx context.Context, deviceID uuid.UUID, req *models.PingRequest) (*models.PingResponse, error) {
	if req.Latitude != nil && req.Longitude != nil {
		if err := validateCoordinate(*req.Latitude, *req.Longitude); err != nil {
			return nil, err
		}
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollback(ctx, tx)

	device, err := tx.GetDeviceForUpdate(ctx, deviceID)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			// Authenticated identity no longer resolves to a record: the
			// device was deleted after the token was issued.
			return nil, ErrNotFound
		}

		return nil, err
	}

	now := time.Now().UTC()
	previousStatus := device.Status

	applyPingMetadata(device, req, now)

	var alerts []*models.Alert

	if req.Latitude != nil && req.Longitude != nil {
		alerts, err = s.recordLocation(ctx, tx, device, req, now)
		if err != nil {
			return nil, err
		}
	}

	commands, err := s.drainForPing(ctx, tx, device, now)
	if err != nil {
		return nil, err
	}

	if err := tx.SaveDevice(ctx, device); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// Event publication stays out of the transactional critical path.
	s.publishAlerts(ctx, alerts)
	s.publishStatusChange(ctx, device, previousStatus)

	return buildPingResponse(commands), nil
}

// applyPingMetadata marks the device seen and refreshes network state.
// A wiped device stays wiped; everything else comes back online.
func applyPingMetadata(device *models.Device, req *models.PingRequest, now time.Time) {
	if !device.IsWiped {
		device.Status = models.DeviceStatusOnline
	}

	device.LastSeen = &now

	if req.IPAddress != "" {
		device.LastIPAddress = req.IPAddress
	}

	if req.NetworkName != "" {
		device.NetworkName = req.NetworkName
	}

	if req.AgentVersion != "" {
		device.AgentVersion = req.AgentVersion
	}
}

// recordLocation persists the sample, refreshes the device's cached
// coordinate, and evaluates geofences. The dedup lookup binds to this same
// transaction, so a concurrent ping from the same device cannot double-insert
// an unresolved alert.
func (s *Server) recordLocation(
	ctx context.Context,
	tx db.Tx,
	device *models.Device,
	req *models.PingRequest,
	now time.Time,
) ([]*models.Alert, error) {
	recordedAt := now
	if req.RecordedAt != nil {
		recordedAt = req.RecordedAt.UTC()
	}

	source := req.LocationSource
	if source == "" {
		source = models.LocationSourceGPS
	}

	sample := &models.LocationSample{
		DeviceID:     device.ID,
		Latitude:     *req.Latitude,
		Longitude:    *req.Longitude,
		Accuracy:     req.Accuracy,
		Altitude:     req.Altitude,
		Source:       source,
		IPAddress:    req.IPAddress,
		NetworkName:  req.NetworkName,
		BatteryLevel: req.BatteryLevel,
		IsCharging:   req.IsCharging,
		RecordedAt:   recordedAt,
		ReceivedAt:   now,
	}

	if err := tx.InsertLocation(ctx, sample); err != nil {
		return nil, err
	}

	device.LastLatitude = req.Latitude
	device.LastLongitude = req.Longitude
	device.LastLocationAccuracy = req.Accuracy
	device.LastLocationSource = string(source)

	zones, err := tx.ActiveGeofences(ctx, device.Department)
	if err != nil {
		return nil, err
	}

	zones = geofence.FilterZones(zones, device.Department)

	open := func(deviceID, geofenceID uuid.UUID, alertType models.AlertType) (bool, error) {
		return tx.HasOpenAlert(ctx, deviceID, &geofenceID, alertType)
	}

	alerts, err := geofence.Evaluate(device, *req.Latitude, *req.Longitude, zones, open)
	if err != nil {
		return nil, err
	}

	for _, alert := range alerts {
		if err := tx.InsertAlert(ctx, alert); err != nil {
			return nil, err
		}
	}

	return alerts, nil
}

// drainForPing moves up to the configured batch of pending commands to SENT,
// FIFO by creation time, then merges the legacy lock/wipe pseudo-commands.
// Wiped devices get no queued delivery; only the legacy wipe flag surfaces.
func (s *Server) drainForPing(ctx context.Context, tx db.Tx, device *models.Device, now time.Time) ([]*models.RemoteCommand, error) {
	var commands []*models.RemoteCommand

	if !device.IsWiped {
		pending, err := tx.SelectPendingForUpdate(ctx, device.ID, s.pingBatch())
		if err != nil {
			return nil, err
		}

		if len(pending) > 0 {
			ids := make([]uuid.UUID, 0, len(pending))
			for _, cmd := range pending {
				ids = append(ids, cmd.ID)
			}

			if err := tx.MarkCommandsSent(ctx, ids, now); err != nil {
				return nil, err
			}

			for _, cmd := range pending {
				cmd.Status = models.CommandStatusSent
				cmd.SentAt = &now
			}
		}

		commands = pending
	}

	return mergeLegacyCommands(device, commands), nil
}

// mergeLegacyCommands appends synthetic LOCK/WIPE entries for the device's
// boolean flags when the drained batch does not already carry one. Older
// delivery paths read only these flags; this keeps that channel working.
// Synthetic entries have no backing queue row and go out with the nil UUID,
// so agents know not to report a result for them.
func mergeLegacyCommands(device *models.Device, commands []*models.RemoteCommand) []*models.RemoteCommand {
	hasType := func(t models.CommandType) bool {
		for _, cmd := range commands {
			if cmd.CommandType == t {
				return true
			}
		}

		return false
	}

	if device.IsLocked && !hasType(models.CommandTypeLock) {
		commands = append(commands, &models.RemoteCommand{
			DeviceID:    device.ID,
			CommandType: models.CommandTypeLock,
			Status:      models.CommandStatusSent,
			Message:     device.LockReason,
			Synthetic:   true,
		})
	}

	if device.IsWiped && !hasType(models.CommandTypeWipe) {
		commands = append(commands, &models.RemoteCommand{
			DeviceID:    device.ID,
			CommandType: models.CommandTypeWipe,
			Status:      models.CommandStatusSent,
			Synthetic:   true,
		})
	}

	return commands
}

// buildPingResponse shapes the drained batch for the wire. The single
// command/command_id/message fields mirror the first batch entry for agents
// that only understand one command per ping.
func buildPingResponse(commands []*models.RemoteCommand) *models.PingResponse {
	resp := &models.PingResponse{
		Commands: make([]models.PingCommand, 0, len(commands)),
	}

	for _, cmd := range commands {
		resp.Commands = append(resp.Commands, models.PingCommand{
			ID:      cmd.ID,
			Type:    cmd.CommandType,
			Payload: cmd.Payload,
			Message: cmd.Message,
		})
	}

	if len(commands) > 0 {
		first := commands[0]
		resp.Command = &first.CommandType
		resp.Message = first.Message

		if first.ID != uuid.Nil {
			resp.CommandID = &first.ID
		}
	}

	return resp
}
