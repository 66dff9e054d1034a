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

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/models"
)

// CoreService is the domain surface the HTTP layer exposes. Implemented by
// core.Server; faked in handler tests.
type CoreService interface {
	RegisterAgent(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error)
	ProcessPing(ctx context.Context, deviceID uuid.UUID, req *models.PingRequest) (*models.PingResponse, error)
	ReportCommandResult(ctx context.Context, deviceID uuid.UUID, req *models.CommandResultRequest) (*models.RemoteCommand, error)
	AttachScreenshot(ctx context.Context, deviceID uuid.UUID, req *models.ScreenshotRequest) (*models.RemoteCommand, error)
	AgentStatus(ctx context.Context, deviceID uuid.UUID) (*models.AgentStatusResponse, error)
	RecordConsent(ctx context.Context, deviceID uuid.UUID) (*models.ConsentResponse, error)

	GetDevice(ctx context.Context, id uuid.UUID) (*models.Device, error)
	ListDevices(ctx context.Context) ([]*models.Device, error)
	CreateDevice(ctx context.Context, device *models.Device) (*models.Device, error)
	UpdateDevice(ctx context.Context, id uuid.UUID, req *models.DeviceUpdateRequest) (*models.Device, error)
	DeleteDevice(ctx context.Context, id uuid.UUID) error
	CurrentLocations(ctx context.Context) ([]*models.CurrentLocation, error)
	DeviceLocation(ctx context.Context, deviceID uuid.UUID) (*models.CurrentLocation, error)
	ListLocationHistory(ctx context.Context, deviceID uuid.UUID, since time.Time, limit int) ([]*models.LocationSample, error)

	CreateCommand(ctx context.Context, req *models.CommandCreateRequest, creatorID *uuid.UUID) (*models.RemoteCommand, error)
	CancelCommand(ctx context.Context, commandID uuid.UUID) (*models.RemoteCommand, error)
	GetCommand(ctx context.Context, id uuid.UUID) (*models.RemoteCommand, error)
	ListCommands(ctx context.Context, deviceID uuid.UUID, status *models.CommandStatus, limit int) ([]*models.RemoteCommand, error)
	LockDevice(ctx context.Context, deviceID uuid.UUID, reason string, creatorID *uuid.UUID) (*models.RemoteCommand, error)
	UnlockDevice(ctx context.Context, deviceID uuid.UUID, creatorID *uuid.UUID) (*models.RemoteCommand, error)
	WipeDevice(ctx context.Context, deviceID uuid.UUID, creatorID *uuid.UUID) (*models.RemoteCommand, error)

	CreateGeofence(ctx context.Context, zone *models.Geofence) (*models.Geofence, error)
	UpdateGeofence(ctx context.Context, zone *models.Geofence) (*models.Geofence, error)
	GetGeofence(ctx context.Context, id uuid.UUID) (*models.Geofence, error)
	ListGeofences(ctx context.Context, activeOnly bool) ([]*models.Geofence, error)
	DeleteGeofence(ctx context.Context, id uuid.UUID) error
	CheckGeofencePoint(ctx context.Context, id uuid.UUID, lat, lon float64) (*models.GeofenceCheckResponse, error)

	GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	ListAlerts(ctx context.Context, deviceID *uuid.UUID, unresolvedOnly bool, limit int) ([]*models.Alert, error)
	AcknowledgeAlert(ctx context.Context, id, userID uuid.UUID) error
	ResolveAlert(ctx context.Context, id uuid.UUID, notes string) error
}

// AuthService is the authentication surface used by the router.
type AuthService interface {
	LoginLocal(ctx context.Context, username, password string) (*models.Token, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.Token, error)
	UserMiddleware(next http.Handler) http.Handler
	AgentMiddleware(next http.Handler) http.Handler
}
