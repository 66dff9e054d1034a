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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleettrace/pkg/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestProcessPingUpdatesStatus(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	device := seedDevice(t, store, nil)

	resp, err := srv.ProcessPing(ctx, device.ID, &models.PingRequest{
		IPAddress:    "10.1.2.3",
		NetworkName:  "corp-wifi",
		AgentVersion: "1.3.0",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Commands)
	assert.Nil(t, resp.Command)

	got, err := store.GetDevice(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusOnline, got.Status)
	assert.NotNil(t, got.LastSeen)
	assert.Equal(t, "10.1.2.3", got.LastIPAddress)
	assert.Equal(t, "corp-wifi", got.NetworkName)
	assert.Equal(t, "1.3.0", got.AgentVersion)
}

func TestProcessPingUnknownDevice(t *testing.T) {
	srv, _ := newTestServer(t)

	_, err := srv.ProcessPing(context.Background(), uuid.New(), &models.PingRequest{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessPingRecordsLocation(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	device := seedDevice(t, store, nil)

	_, err := srv.ProcessPing(ctx, device.ID, &models.PingRequest{
		Latitude:  floatPtr(40.0),
		Longitude: floatPtr(-74.0),
		Accuracy:  floatPtr(12.5),
	})
	require.NoError(t, err)

	got, err := store.GetDevice(ctx, device.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLatitude)
	assert.InDelta(t, 40.0, *got.LastLatitude, 1e-9)
	assert.Equal(t, string(models.LocationSourceGPS), got.LastLocationSource)

	samples, err := store.ListLocationHistory(ctx, device.ID, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.InDelta(t, -74.0, samples[0].Longitude, 1e-9)
}

func TestProcessPingRejectsOutOfRangeCoordinate(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	device := seedDevice(t, store, nil)

	tests := []struct {
		name     string
		lat, lon float64
	}{
		{"latitude too high", 999, -74.0},
		{"latitude too low", -91, -74.0},
		{"longitude too high", 40.0, 181},
		{"longitude too low", 40.0, -500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.ProcessPing(ctx, device.ID, &models.PingRequest{
				Latitude:  floatPtr(tt.lat),
				Longitude: floatPtr(tt.lon),
			})
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	// Nothing was persisted: no sample, no cached coordinate, not even the
	// last-seen bump.
	samples, err := store.ListLocationHistory(ctx, device.ID, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, samples)

	got, err := store.GetDevice(ctx, device.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastLatitude)
	assert.Nil(t, got.LastSeen)
}

func TestProcessPingGeofenceExitAlert(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	sink := &recordingSink{}
	srv.AddAlertSink(sink)

	device := seedDevice(t, store, nil)
	zone := seedCircleZone(t, store, nil)

	// Roughly 110 km north of the zone center.
	outside := &models.PingRequest{Latitude: floatPtr(41.0), Longitude: floatPtr(-74.0)}

	_, err := srv.ProcessPing(ctx, device.ID, outside)
	require.NoError(t, err)

	alerts, err := store.ListAlerts(ctx, &device.ID, true, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeGeofenceExit, alerts[0].AlertType)
	assert.Equal(t, models.AlertSeverityHigh, alerts[0].Severity)
	require.NotNil(t, alerts[0].GeofenceID)
	assert.Equal(t, zone.ID, *alerts[0].GeofenceID)
	assert.Equal(t, 1, sink.count())

	// Second outside ping is suppressed by dedup.
	_, err = srv.ProcessPing(ctx, device.ID, outside)
	require.NoError(t, err)

	alerts, err = store.ListAlerts(ctx, &device.ID, true, 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
	assert.Equal(t, 1, sink.count())

	// Resolving re-arms the tuple.
	require.NoError(t, srv.ResolveAlert(ctx, alerts[0].ID, "returned"))

	_, err = srv.ProcessPing(ctx, device.ID, outside)
	require.NoError(t, err)

	alerts, err = store.ListAlerts(ctx, &device.ID, true, 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
	assert.Equal(t, 2, sink.count())
}

func TestProcessPingDepartmentScopedZone(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	device := seedDevice(t, store, func(d *models.Device) {
		d.Department = "engineering"
	})
	seedCircleZone(t, store, func(z *models.Geofence) {
		z.Department = "finance"
	})

	_, err := srv.ProcessPing(ctx, device.ID, &models.PingRequest{
		Latitude:  floatPtr(41.0),
		Longitude: floatPtr(-74.0),
	})
	require.NoError(t, err)

	alerts, err := store.ListAlerts(ctx, &device.ID, true, 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestProcessPingDrainsFIFO(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	device := seedDevice(t, store, nil)
	base := time.Now().UTC().Add(-time.Hour)

	var queued []uuid.UUID
	for i := 0; i < 7; i++ {
		cmd := seedCommand(t, store, device.ID, models.CommandTypeMessage, base.Add(time.Duration(i)*time.Minute))
		queued = append(queued, cmd.ID)
	}

	resp, err := srv.ProcessPing(ctx, device.ID, &models.PingRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Commands, 5)

	// Oldest first, batch capped at five.
	for i, pc := range resp.Commands {
		assert.Equal(t, queued[i], pc.ID)
	}

	// Legacy single-command fields mirror the first entry.
	require.NotNil(t, resp.Command)
	assert.Equal(t, models.CommandTypeMessage, *resp.Command)
	require.NotNil(t, resp.CommandID)
	assert.Equal(t, queued[0], *resp.CommandID)

	// Drained commands are SENT with a sent-at stamp.
	cmd, err := store.GetCommand(ctx, queued[0])
	require.NoError(t, err)
	assert.Equal(t, models.CommandStatusSent, cmd.Status)
	assert.NotNil(t, cmd.SentAt)

	// The next ping drains the remaining two, never re-delivering.
	resp, err = srv.ProcessPing(ctx, device.ID, &models.PingRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Commands, 2)
	assert.Equal(t, queued[5], resp.Commands[0].ID)
	assert.Equal(t, queued[6], resp.Commands[1].ID)
}

func TestProcessPingConcurrentDrainsAreDisjoint(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	device := seedDevice(t, store, nil)
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 7; i++ {
		seedCommand(t, store, device.ID, models.CommandTypeMessage, base.Add(time.Duration(i)*time.Minute))
	}

	var wg sync.WaitGroup

	results := make([][]models.PingCommand, 2)
	errs := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			resp, err := srv.ProcessPing(ctx, device.ID, &models.PingRequest{})
			if err != nil {
				errs[i] = err
				return
			}

			results[i] = resp.Commands
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	seen := make(map[uuid.UUID]int)
	total := 0

	for _, batch := range results {
		total += len(batch)

		for _, pc := range batch {
			seen[pc.ID]++
		}
	}

	// Disjoint union of exactly the pending count: no command delivered
	// twice, none lost.
	assert.Equal(t, 7, total)

	for id, n := range seen {
		assert.Equalf(t, 1, n, "command %s delivered %d times", id, n)
	}
}

func TestProcessPingLegacyLockMerge(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	device := seedDevice(t, store, func(d *models.Device) {
		d.IsLocked = true
		d.LockReason = "reported stolen"
		d.Status = models.DeviceStatusLocked
	})

	resp, err := srv.ProcessPing(ctx, device.ID, &models.PingRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Commands, 1)
	assert.Equal(t, models.CommandTypeLock, resp.Commands[0].Type)
	assert.Equal(t, "reported stolen", resp.Commands[0].Message)

	// Flag entries have no queue row; the nil ID marks them so agents skip
	// result reporting, and the legacy mirror omits command_id.
	assert.Equal(t, uuid.Nil, resp.Commands[0].ID)
	assert.Nil(t, resp.CommandID)
	require.NotNil(t, resp.Command)
	assert.Equal(t, models.CommandTypeLock, *resp.Command)

	// A queued LOCK command suppresses the synthetic duplicate.
	seedCommand(t, store, device.ID, models.CommandTypeLock, time.Now().UTC().Add(-time.Minute))

	resp, err = srv.ProcessPing(ctx, device.ID, &models.PingRequest{})
	require.NoError(t, err)

	lockCount := 0

	for _, pc := range resp.Commands {
		if pc.Type == models.CommandTypeLock {
			lockCount++
		}
	}

	assert.Equal(t, 1, lockCount)
}

func TestProcessPingWipedDeviceGetsNoQueuedDelivery(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	device := seedDevice(t, store, func(d *models.Device) {
		d.IsWiped = true
		d.Status = models.DeviceStatusWiped
	})
	seedCommand(t, store, device.ID, models.CommandTypeMessage, time.Now().UTC().Add(-time.Minute))

	resp, err := srv.ProcessPing(ctx, device.ID, &models.PingRequest{})
	require.NoError(t, err)

	// Only the legacy wipe flag surfaces; the queued command stays pending.
	require.Len(t, resp.Commands, 1)
	assert.Equal(t, models.CommandTypeWipe, resp.Commands[0].Type)
	assert.Equal(t, uuid.Nil, resp.Commands[0].ID)

	got, err := store.GetDevice(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusWiped, got.Status)
}
