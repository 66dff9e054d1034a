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

// GetDevice fetches a single device record.
func (s *Server) GetDevice(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return device, nil
}

// ListDevices returns the whole fleet.
func (s *Server) ListDevices(ctx context.Context) ([]*models.Device, error) {
	return s.store.ListDevices(ctx)
}

// CreateDevice pre-provisions a device record ahead of agent registration.
func (s *Server) CreateDevice(ctx context.Context, device *models.Device) (*models.Device, error) {
	if device.SerialNumber == "" {
		return nil, fmt.Errorf("%w: serial_number is required", ErrValidation)
	}

	if device.AssetID == "" {
		device.AssetID = "AUTO-" + device.SerialNumber
	}

	if device.Status == "" {
		device.Status = models.DeviceStatusOffline
	}

	if !device.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown device status %q", ErrValidation, device.Status)
	}

	if err := s.store.CreateDevice(ctx, device); err != nil {
		return nil, err
	}

	return device, nil
}

// UpdateDevice applies operator-editable fields under the device row lock so
// the update cannot clobber a concurrent ping's state.
func (s *Server) UpdateDevice(ctx context.Context, id uuid.UUID, req *models.DeviceUpdateRequest) (*models.Device, error) {
	if req.DeviceType != nil {
		switch *req.DeviceType {
		case models.DeviceTypeLaptop, models.DeviceTypeDesktop, models.DeviceTypeTablet,
			models.DeviceTypeMobile, models.DeviceTypeWorkstation:
		default:
			return nil, fmt.Errorf("%w: unknown device type %q", ErrValidation, *req.DeviceType)
		}
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollback(ctx, tx)

	device, err := tx.GetDeviceForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	applyDeviceUpdate(device, req)

	if err := tx.SaveDevice(ctx, device); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return device, nil
}

func applyDeviceUpdate(device *models.Device, req *models.DeviceUpdateRequest) {
	if req.AssetID != nil {
		device.AssetID = *req.AssetID
	}

	if req.DeviceName != nil {
		device.DeviceName = *req.DeviceName
	}

	if req.DeviceType != nil {
		device.DeviceType = *req.DeviceType
	}

	if req.Manufacturer != nil {
		device.Manufacturer = *req.Manufacturer
	}

	if req.Model != nil {
		device.Model = *req.Model
	}

	if req.EmployeeName != nil {
		device.EmployeeName = *req.EmployeeName
	}

	if req.Department != nil {
		device.Department = *req.Department
	}

	if req.AssignedUserID != nil {
		device.AssignedUserID = req.AssignedUserID
	}

	if req.IsEncrypted != nil {
		device.IsEncrypted = *req.IsEncrypted
	}
}

// DeleteDevice hard-deletes a device and its dependent rows. Explicit
// operator action only.
func (s *Server) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteDevice(ctx, id); err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return ErrNotFound
		}

		return err
	}

	s.logger.Info().Str("device_id", id.String()).Msg("Device deleted")

	return nil
}

// RecordConsent marks end-user consent and policy acceptance, reported once
// by the agent after its consent prompt. Repeat calls refresh the timestamp.
func (s *Server) RecordConsent(ctx context.Context, deviceID uuid.UUID) (*models.ConsentResponse, error) {
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

	now := time.Now().UTC()
	device.ConsentGiven = true
	device.ConsentTimestamp = &now
	device.PolicyAccepted = true

	if err := tx.SaveDevice(ctx, device); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Info().Str("device_id", device.ID.String()).Msg("Consent recorded")

	return &models.ConsentResponse{Message: "Consent recorded", Timestamp: now}, nil
}

// AgentStatus is the agent-facing view of its own record, letting an agent
// learn it has been locked or wiped outside the ping cycle.
func (s *Server) AgentStatus(ctx context.Context, deviceID uuid.UUID) (*models.AgentStatusResponse, error) {
	device, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	return &models.AgentStatusResponse{
		DeviceID:   device.ID,
		AssetID:    device.AssetID,
		Status:     device.Status,
		IsLocked:   device.IsLocked,
		IsWiped:    device.IsWiped,
		LockReason: device.LockReason,
		ServerTime: time.Now().UTC(),
	}, nil
}

// CurrentLocations projects the cached last-known coordinate of every device
// that has reported one.
func (s *Server) CurrentLocations(ctx context.Context) ([]*models.CurrentLocation, error) {
	devices, err := s.store.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	locations := make([]*models.CurrentLocation, 0, len(devices))

	for _, device := range devices {
		if loc := currentLocation(device); loc != nil {
			locations = append(locations, loc)
		}
	}

	return locations, nil
}

// DeviceLocation returns one device's cached coordinate, or NotFound if it
// has never reported one.
func (s *Server) DeviceLocation(ctx context.Context, deviceID uuid.UUID) (*models.CurrentLocation, error) {
	device, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	loc := currentLocation(device)
	if loc == nil {
		return nil, fmt.Errorf("%w: device has no recorded location", ErrNotFound)
	}

	return loc, nil
}

func currentLocation(device *models.Device) *models.CurrentLocation {
	if device.LastLatitude == nil || device.LastLongitude == nil {
		return nil
	}

	return &models.CurrentLocation{
		DeviceID:   device.ID,
		AssetID:    device.AssetID,
		DeviceName: device.DeviceName,
		Status:     device.Status,
		Latitude:   *device.LastLatitude,
		Longitude:  *device.LastLongitude,
		Accuracy:   device.LastLocationAccuracy,
		Source:     device.LastLocationSource,
		LastSeen:   device.LastSeen,
	}
}

// ListLocationHistory returns a device's samples newest-first.
func (s *Server) ListLocationHistory(ctx context.Context, deviceID uuid.UUID, since time.Time, limit int) ([]*models.LocationSample, error) {
	if _, err := s.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	if since.IsZero() {
		since = time.Now().UTC().Add(-24 * time.Hour)
	}

	return s.store.ListLocationHistory(ctx, deviceID, since, limit)
}
