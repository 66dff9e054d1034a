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
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/logger"
	"github.com/carverauto/fleettrace/pkg/models"
)

type fakeIssuer struct{}

func (fakeIssuer) IssueAgentToken(deviceID uuid.UUID) (string, error) {
	return "agent-token-" + deviceID.String(), nil
}

// recordingSink captures alerts delivered to in-process sinks.
type recordingSink struct {
	mu     sync.Mutex
	alerts []*models.Alert
}

func (r *recordingSink) Notify(alert *models.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.alerts)
}

func newTestServer(t *testing.T) (*Server, *memStore) {
	t.Helper()

	store := newMemStore()
	cfg := &models.CoreServiceConfig{
		PingCommandBatch:     5,
		OfflineAfter:         15 * time.Minute,
		OfflineSweepInterval: time.Minute,
	}

	return NewServer(cfg, store, fakeIssuer{}, logger.NewTestLogger()), store
}

func seedDevice(t *testing.T, store *memStore, mutate func(*models.Device)) *models.Device {
	t.Helper()

	device := &models.Device{
		ID:             uuid.New(),
		SerialNumber:   "SN-" + uuid.NewString()[:8],
		AssetID:        "ASSET-" + uuid.NewString()[:8],
		DeviceName:     "test-laptop",
		DeviceType:     models.DeviceTypeLaptop,
		Status:         models.DeviceStatusOffline,
		IsRegistered:   true,
		AgentInstalled: true,
	}

	if mutate != nil {
		mutate(device)
	}

	if err := store.CreateDevice(context.Background(), device); err != nil {
		t.Fatalf("seed device: %v", err)
	}

	return device
}

func seedCommand(t *testing.T, store *memStore, deviceID uuid.UUID, cmdType models.CommandType, createdAt time.Time) *models.RemoteCommand {
	t.Helper()

	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	cmd := &models.RemoteCommand{
		DeviceID:    deviceID,
		CommandType: cmdType,
		Status:      models.CommandStatusPending,
		CreatedAt:   createdAt,
	}

	if err := tx.InsertCommand(ctx, cmd); err != nil {
		t.Fatalf("insert command: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	return cmd
}

func seedCircleZone(t *testing.T, store *memStore, mutate func(*models.Geofence)) *models.Geofence {
	t.Helper()

	centerLat, centerLon, radius := 40.0, -74.0, 1000.0
	zone := &models.Geofence{
		ID:              uuid.New(),
		Name:            "HQ",
		FenceType:       models.GeofenceTypeCircle,
		CenterLatitude:  &centerLat,
		CenterLongitude: &centerLon,
		RadiusMeters:    &radius,
		IsActive:        true,
		AlertOnExit:     true,
	}

	if mutate != nil {
		mutate(zone)
	}

	if err := store.CreateGeofence(context.Background(), zone); err != nil {
		t.Fatalf("seed geofence: %v", err)
	}

	return zone
}
