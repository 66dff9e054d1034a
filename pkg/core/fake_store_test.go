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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/db"
	"github.com/carverauto/fleettrace/pkg/models"
)

// memStore is an in-memory db.Service for tests. A transaction holds the
// store mutex from Begin to Commit/Rollback, which models the per-device
// serialization the real store gets from row locks, and Rollback restores a
// snapshot so failed operations leave no partial state.
type memStore struct {
	mu sync.Mutex

	devices   map[uuid.UUID]models.Device
	commands  map[uuid.UUID]models.RemoteCommand
	cmdSeq    map[uuid.UUID]int
	nextSeq   int
	alerts    map[uuid.UUID]models.Alert
	geofences map[uuid.UUID]models.Geofence
	locations []models.LocationSample
}

func newMemStore() *memStore {
	return &memStore{
		devices:   make(map[uuid.UUID]models.Device),
		commands:  make(map[uuid.UUID]models.RemoteCommand),
		cmdSeq:    make(map[uuid.UUID]int),
		alerts:    make(map[uuid.UUID]models.Alert),
		geofences: make(map[uuid.UUID]models.Geofence),
	}
}

type memSnapshot struct {
	devices   map[uuid.UUID]models.Device
	commands  map[uuid.UUID]models.RemoteCommand
	cmdSeq    map[uuid.UUID]int
	nextSeq   int
	alerts    map[uuid.UUID]models.Alert
	geofences map[uuid.UUID]models.Geofence
	locations []models.LocationSample
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}

	return dst
}

func (m *memStore) snapshot() *memSnapshot {
	return &memSnapshot{
		devices:   copyMap(m.devices),
		commands:  copyMap(m.commands),
		cmdSeq:    copyMap(m.cmdSeq),
		nextSeq:   m.nextSeq,
		alerts:    copyMap(m.alerts),
		geofences: copyMap(m.geofences),
		locations: append([]models.LocationSample(nil), m.locations...),
	}
}

func (m *memStore) restore(s *memSnapshot) {
	m.devices = s.devices
	m.commands = s.commands
	m.cmdSeq = s.cmdSeq
	m.nextSeq = s.nextSeq
	m.alerts = s.alerts
	m.geofences = s.geofences
	m.locations = s.locations
}

type memTx struct {
	s    *memStore
	snap *memSnapshot
	done bool
}

func (m *memStore) Begin(_ context.Context) (db.Tx, error) {
	m.mu.Lock()
	return &memTx{s: m, snap: m.snapshot()}, nil
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return nil
	}

	t.done = true
	t.s.mu.Unlock()

	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}

	t.s.restore(t.snap)
	t.done = true
	t.s.mu.Unlock()

	return nil
}

func (t *memTx) GetDeviceForUpdate(_ context.Context, id uuid.UUID) (*models.Device, error) {
	d, ok := t.s.devices[id]
	if !ok {
		return nil, db.ErrDeviceNotFound
	}

	return &d, nil
}

func (t *memTx) GetDeviceBySerialForUpdate(_ context.Context, serial string) (*models.Device, error) {
	for _, d := range t.s.devices {
		if d.SerialNumber == serial {
			out := d
			return &out, nil
		}
	}

	return nil, db.ErrDeviceNotFound
}

func (t *memTx) InsertDevice(_ context.Context, device *models.Device) error {
	now := time.Now().UTC()

	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}

	device.CreatedAt = now
	device.UpdatedAt = now
	t.s.devices[device.ID] = *device

	return nil
}

func (t *memTx) SaveDevice(_ context.Context, device *models.Device) error {
	if _, ok := t.s.devices[device.ID]; !ok {
		return db.ErrDeviceNotFound
	}

	device.UpdatedAt = time.Now().UTC()
	t.s.devices[device.ID] = *device

	return nil
}

func (t *memTx) InsertLocation(_ context.Context, sample *models.LocationSample) error {
	if sample.ID == uuid.Nil {
		sample.ID = uuid.New()
	}

	if sample.ReceivedAt.IsZero() {
		sample.ReceivedAt = time.Now().UTC()
	}

	t.s.locations = append(t.s.locations, *sample)

	return nil
}

func (t *memTx) ActiveGeofences(_ context.Context, department string) ([]*models.Geofence, error) {
	var zones []*models.Geofence

	for _, z := range t.s.geofences {
		if z.IsActive && (z.Department == "" || z.Department == department) {
			out := z
			zones = append(zones, &out)
		}
	}

	return zones, nil
}

func (t *memTx) HasOpenAlert(_ context.Context, deviceID uuid.UUID, geofenceID *uuid.UUID, alertType models.AlertType) (bool, error) {
	for _, a := range t.s.alerts {
		if a.DeviceID != deviceID || a.AlertType != alertType || a.IsResolved {
			continue
		}

		if geofenceID == nil {
			if a.GeofenceID == nil {
				return true, nil
			}

			continue
		}

		if a.GeofenceID != nil && *a.GeofenceID == *geofenceID {
			return true, nil
		}
	}

	return false, nil
}

func (t *memTx) InsertAlert(_ context.Context, alert *models.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}

	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	t.s.alerts[alert.ID] = *alert

	return nil
}

func (t *memTx) InsertCommand(_ context.Context, cmd *models.RemoteCommand) error {
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}

	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}

	t.s.commands[cmd.ID] = *cmd
	t.s.cmdSeq[cmd.ID] = t.s.nextSeq
	t.s.nextSeq++

	return nil
}

func (t *memTx) SelectPendingForUpdate(_ context.Context, deviceID uuid.UUID, limit int) ([]*models.RemoteCommand, error) {
	var pending []*models.RemoteCommand

	for _, c := range t.s.commands {
		if c.DeviceID == deviceID && c.Status == models.CommandStatusPending {
			out := c
			pending = append(pending, &out)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return t.s.cmdSeq[pending[i].ID] < t.s.cmdSeq[pending[j].ID]
		}

		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	if len(pending) > limit {
		pending = pending[:limit]
	}

	return pending, nil
}

func (t *memTx) MarkCommandsSent(_ context.Context, ids []uuid.UUID, sentAt time.Time) error {
	for _, id := range ids {
		c, ok := t.s.commands[id]
		if !ok {
			return db.ErrCommandNotFound
		}

		c.Status = models.CommandStatusSent
		sent := sentAt
		c.SentAt = &sent
		t.s.commands[id] = c
	}

	return nil
}

func (t *memTx) GetCommandForUpdate(_ context.Context, id uuid.UUID) (*models.RemoteCommand, error) {
	c, ok := t.s.commands[id]
	if !ok {
		return nil, db.ErrCommandNotFound
	}

	return &c, nil
}

func (t *memTx) SaveCommandResult(_ context.Context, cmd *models.RemoteCommand) error {
	if _, ok := t.s.commands[cmd.ID]; !ok {
		return db.ErrCommandNotFound
	}

	t.s.commands[cmd.ID] = *cmd

	return nil
}

func (m *memStore) GetDevice(_ context.Context, id uuid.UUID) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[id]
	if !ok {
		return nil, db.ErrDeviceNotFound
	}

	return &d, nil
}

func (m *memStore) GetDeviceBySerial(_ context.Context, serial string) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.devices {
		if d.SerialNumber == serial {
			out := d
			return &out, nil
		}
	}

	return nil, db.ErrDeviceNotFound
}

func (m *memStore) ListDevices(_ context.Context) ([]*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var devices []*models.Device

	for _, d := range m.devices {
		out := d
		devices = append(devices, &out)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].CreatedAt.Before(devices[j].CreatedAt)
	})

	return devices, nil
}

func (m *memStore) CreateDevice(_ context.Context, device *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()

	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}

	device.CreatedAt = now
	device.UpdatedAt = now
	m.devices[device.ID] = *device

	return nil
}

func (m *memStore) UpdateDevice(_ context.Context, device *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[device.ID]; !ok {
		return db.ErrDeviceNotFound
	}

	device.UpdatedAt = time.Now().UTC()
	m.devices[device.ID] = *device

	return nil
}

func (m *memStore) DeleteDevice(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[id]; !ok {
		return db.ErrDeviceNotFound
	}

	delete(m.devices, id)

	return nil
}

func (m *memStore) ListStaleOnlineDevices(_ context.Context, seenBefore time.Time) ([]*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []*models.Device

	for _, d := range m.devices {
		if d.Status != models.DeviceStatusOnline {
			continue
		}

		if d.LastSeen == nil || d.LastSeen.Before(seenBefore) {
			out := d
			stale = append(stale, &out)
		}
	}

	return stale, nil
}

func (m *memStore) GetCommand(_ context.Context, id uuid.UUID) (*models.RemoteCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.commands[id]
	if !ok {
		return nil, db.ErrCommandNotFound
	}

	return &c, nil
}

func (m *memStore) ListCommands(_ context.Context, deviceID uuid.UUID, status *models.CommandStatus, limit int) ([]*models.RemoteCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cmds []*models.RemoteCommand

	for _, c := range m.commands {
		if c.DeviceID != deviceID {
			continue
		}

		if status != nil && c.Status != *status {
			continue
		}

		out := c
		cmds = append(cmds, &out)
	}

	sort.Slice(cmds, func(i, j int) bool {
		return cmds[i].CreatedAt.After(cmds[j].CreatedAt)
	})

	if len(cmds) > limit {
		cmds = cmds[:limit]
	}

	return cmds, nil
}

func (m *memStore) GetGeofence(_ context.Context, id uuid.UUID) (*models.Geofence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	z, ok := m.geofences[id]
	if !ok {
		return nil, db.ErrGeofenceNotFound
	}

	return &z, nil
}

func (m *memStore) ListGeofences(_ context.Context, activeOnly bool) ([]*models.Geofence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zones []*models.Geofence

	for _, z := range m.geofences {
		if activeOnly && !z.IsActive {
			continue
		}

		out := z
		zones = append(zones, &out)
	}

	return zones, nil
}

func (m *memStore) CreateGeofence(_ context.Context, zone *models.Geofence) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()

	if zone.ID == uuid.Nil {
		zone.ID = uuid.New()
	}

	zone.CreatedAt = now
	zone.UpdatedAt = now
	m.geofences[zone.ID] = *zone

	return nil
}

func (m *memStore) UpdateGeofence(_ context.Context, zone *models.Geofence) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.geofences[zone.ID]; !ok {
		return db.ErrGeofenceNotFound
	}

	zone.UpdatedAt = time.Now().UTC()
	m.geofences[zone.ID] = *zone

	return nil
}

func (m *memStore) DeleteGeofence(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.geofences[id]; !ok {
		return db.ErrGeofenceNotFound
	}

	delete(m.geofences, id)

	return nil
}

func (m *memStore) GetAlert(_ context.Context, id uuid.UUID) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return nil, db.ErrAlertNotFound
	}

	return &a, nil
}

func (m *memStore) ListAlerts(_ context.Context, deviceID *uuid.UUID, unresolvedOnly bool, limit int) ([]*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var alerts []*models.Alert

	for _, a := range m.alerts {
		if deviceID != nil && a.DeviceID != *deviceID {
			continue
		}

		if unresolvedOnly && a.IsResolved {
			continue
		}

		out := a
		alerts = append(alerts, &out)
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})

	if len(alerts) > limit {
		alerts = alerts[:limit]
	}

	return alerts, nil
}

func (m *memStore) AcknowledgeAlert(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return db.ErrAlertNotFound
	}

	now := time.Now().UTC()
	a.IsAcknowledged = true
	a.AcknowledgedBy = &userID
	a.AcknowledgedAt = &now
	m.alerts[id] = a

	return nil
}

func (m *memStore) ResolveAlert(_ context.Context, id uuid.UUID, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return db.ErrAlertNotFound
	}

	now := time.Now().UTC()
	a.IsResolved = true
	a.ResolvedAt = &now

	if notes != "" {
		a.Notes = notes
	}

	m.alerts[id] = a

	return nil
}

func (m *memStore) ListLocationHistory(_ context.Context, deviceID uuid.UUID, since time.Time, limit int) ([]*models.LocationSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var samples []*models.LocationSample

	for _, s := range m.locations {
		if s.DeviceID != deviceID || s.RecordedAt.Before(since) {
			continue
		}

		out := s
		samples = append(samples, &out)
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].RecordedAt.After(samples[j].RecordedAt)
	})

	if len(samples) > limit {
		samples = samples[:limit]
	}

	return samples, nil
}

func (m *memStore) Close() {}
