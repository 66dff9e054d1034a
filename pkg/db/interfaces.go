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

package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/models"
)

// Service is the storage interface for the core server. Single round-trip
// reads and control-plane writes run directly against the pool; the agent
// ping cycle and every command lifecycle mutation go through Begin so the
// per-device row locks hold for the whole logical step.
type Service interface {
	Begin(ctx context.Context) (Tx, error)

	// Devices.
	GetDevice(ctx context.Context, id uuid.UUID) (*models.Device, error)
	GetDeviceBySerial(ctx context.Context, serial string) (*models.Device, error)
	ListDevices(ctx context.Context) ([]*models.Device, error)
	CreateDevice(ctx context.Context, device *models.Device) error
	UpdateDevice(ctx context.Context, device *models.Device) error
	DeleteDevice(ctx context.Context, id uuid.UUID) error
	ListStaleOnlineDevices(ctx context.Context, seenBefore time.Time) ([]*models.Device, error)

	// Commands (reads; mutations go through Tx).
	GetCommand(ctx context.Context, id uuid.UUID) (*models.RemoteCommand, error)
	ListCommands(ctx context.Context, deviceID uuid.UUID, status *models.CommandStatus, limit int) ([]*models.RemoteCommand, error)

	// Geofences.
	GetGeofence(ctx context.Context, id uuid.UUID) (*models.Geofence, error)
	ListGeofences(ctx context.Context, activeOnly bool) ([]*models.Geofence, error)
	CreateGeofence(ctx context.Context, zone *models.Geofence) error
	UpdateGeofence(ctx context.Context, zone *models.Geofence) error
	DeleteGeofence(ctx context.Context, id uuid.UUID) error

	// Alerts.
	GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	ListAlerts(ctx context.Context, deviceID *uuid.UUID, unresolvedOnly bool, limit int) ([]*models.Alert, error)
	AcknowledgeAlert(ctx context.Context, id, userID uuid.UUID) error
	ResolveAlert(ctx context.Context, id uuid.UUID, notes string) error

	// Location history.
	ListLocationHistory(ctx context.Context, deviceID uuid.UUID, since time.Time, limit int) ([]*models.LocationSample, error)

	Close()
}

// Tx is the transactional surface for the ping protocol and command
// lifecycle. GetDeviceForUpdate is the per-device serialization point: every
// ping, drain, and result report locks the device row first, so concurrent
// pings from one device serialize while other devices proceed in parallel.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	GetDeviceForUpdate(ctx context.Context, id uuid.UUID) (*models.Device, error)
	GetDeviceBySerialForUpdate(ctx context.Context, serial string) (*models.Device, error)
	InsertDevice(ctx context.Context, device *models.Device) error
	SaveDevice(ctx context.Context, device *models.Device) error

	InsertLocation(ctx context.Context, sample *models.LocationSample) error

	ActiveGeofences(ctx context.Context, department string) ([]*models.Geofence, error)
	HasOpenAlert(ctx context.Context, deviceID uuid.UUID, geofenceID *uuid.UUID, alertType models.AlertType) (bool, error)
	InsertAlert(ctx context.Context, alert *models.Alert) error

	InsertCommand(ctx context.Context, cmd *models.RemoteCommand) error
	SelectPendingForUpdate(ctx context.Context, deviceID uuid.UUID, limit int) ([]*models.RemoteCommand, error)
	MarkCommandsSent(ctx context.Context, ids []uuid.UUID, sentAt time.Time) error
	GetCommandForUpdate(ctx context.Context, id uuid.UUID) (*models.RemoteCommand, error)
	SaveCommandResult(ctx context.Context, cmd *models.RemoteCommand) error
}
