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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleettrace/pkg/models"
)

func TestMarkStaleDevicesOffline(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	staleSeen := time.Now().UTC().Add(-time.Hour)
	freshSeen := time.Now().UTC()

	stale := seedDevice(t, store, func(d *models.Device) {
		d.Status = models.DeviceStatusOnline
		d.LastSeen = &staleSeen
	})
	fresh := seedDevice(t, store, func(d *models.Device) {
		d.Status = models.DeviceStatusOnline
		d.LastSeen = &freshSeen
	})

	n, err := srv.MarkStaleDevicesOffline(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetDevice(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusOffline, got.Status)

	got, err = store.GetDevice(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusOnline, got.Status)

	alerts, err := store.ListAlerts(ctx, &stale.ID, true, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeDeviceOffline, alerts[0].AlertType)

	// A second sweep neither re-transitions nor re-alerts.
	n, err = srv.MarkStaleDevicesOffline(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	alerts, err = store.ListAlerts(ctx, &stale.ID, true, 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestSweepSkipsDeviceThatPingedMeanwhile(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	staleSeen := time.Now().UTC().Add(-time.Hour)
	device := seedDevice(t, store, func(d *models.Device) {
		d.Status = models.DeviceStatusOnline
		d.LastSeen = &staleSeen
	})

	// The device pings between the candidate listing and the sweep. Under
	// the row lock the sweep re-checks and leaves it alone.
	_, err := srv.ProcessPing(ctx, device.ID, &models.PingRequest{})
	require.NoError(t, err)

	n, err := srv.MarkStaleDevicesOffline(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := store.GetDevice(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusOnline, got.Status)
}
