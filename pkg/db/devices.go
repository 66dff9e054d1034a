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
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carverauto/fleettrace/pkg/models"
)

const deviceColumns = `id, serial_number, asset_id, device_name, device_type,
	manufacturer, model, os_name, os_version, employee_name, department,
	assigned_user_id, status, is_registered, agent_installed, agent_version,
	last_latitude, last_longitude, last_location_accuracy, last_location_source,
	last_ip_address, last_seen, mac_address, network_name, is_encrypted,
	is_locked, lock_reason, is_wiped,
	consent_given, consent_timestamp, policy_accepted,
	agent_token_fingerprint, created_at, updated_at, registered_at`

func scanDevice(row rowScanner) (*models.Device, error) {
	d := &models.Device{}

	err := row.Scan(
		&d.ID, &d.SerialNumber, &d.AssetID, &d.DeviceName, &d.DeviceType,
		&d.Manufacturer, &d.Model, &d.OSName, &d.OSVersion, &d.EmployeeName, &d.Department,
		&d.AssignedUserID, &d.Status, &d.IsRegistered, &d.AgentInstalled, &d.AgentVersion,
		&d.LastLatitude, &d.LastLongitude, &d.LastLocationAccuracy, &d.LastLocationSource,
		&d.LastIPAddress, &d.LastSeen, &d.MACAddress, &d.NetworkName, &d.IsEncrypted,
		&d.IsLocked, &d.LockReason, &d.IsWiped,
		&d.ConsentGiven, &d.ConsentTimestamp, &d.PolicyAccepted,
		&d.AgentTokenFingerprint, &d.CreatedAt, &d.UpdatedAt, &d.RegisteredAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: device: %w", ErrFailedToScan, err)
	}

	return d, nil
}

func (db *DB) GetDevice(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)

	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}

		return nil, err
	}

	return device, nil
}

func (db *DB) GetDeviceBySerial(ctx context.Context, serial string) (*models.Device, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE serial_number = $1`, serial)

	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}

		return nil, err
	}

	return device, nil
}

func (db *DB) ListDevices(ctx context.Context) ([]*models.Device, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: list devices: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var devices []*models.Device

	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}

		devices = append(devices, device)
	}

	return devices, rows.Err()
}

// ListStaleOnlineDevices returns devices still marked online whose last-seen
// timestamp is older than the cutoff. Used by the offline sweep.
func (db *DB) ListStaleOnlineDevices(ctx context.Context, seenBefore time.Time) ([]*models.Device, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE status = $1 AND (last_seen IS NULL OR last_seen < $2)`,
		models.DeviceStatusOnline, seenBefore)
	if err != nil {
		return nil, fmt.Errorf("%w: stale devices: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var devices []*models.Device

	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}

		devices = append(devices, device)
	}

	return devices, rows.Err()
}

const insertDeviceQuery = `INSERT INTO devices (
	id, serial_number, asset_id, device_name, device_type,
	manufacturer, model, os_name, os_version, employee_name, department,
	assigned_user_id, status, is_registered, agent_installed, agent_version,
	last_latitude, last_longitude, last_location_accuracy, last_location_source,
	last_ip_address, last_seen, mac_address, network_name, is_encrypted,
	is_locked, lock_reason, is_wiped,
	consent_given, consent_timestamp, policy_accepted,
	agent_token_fingerprint, created_at, updated_at, registered_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
	$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31,
	$32, $33, $34, $35
)`

const updateDeviceQuery = `UPDATE devices SET
	serial_number = $2, asset_id = $3, device_name = $4, device_type = $5,
	manufacturer = $6, model = $7, os_name = $8, os_version = $9,
	employee_name = $10, department = $11, assigned_user_id = $12, status = $13,
	is_registered = $14, agent_installed = $15, agent_version = $16,
	last_latitude = $17, last_longitude = $18, last_location_accuracy = $19,
	last_location_source = $20, last_ip_address = $21, last_seen = $22,
	mac_address = $23, network_name = $24, is_encrypted = $25, is_locked = $26,
	lock_reason = $27, is_wiped = $28,
	consent_given = $29, consent_timestamp = $30, policy_accepted = $31,
	agent_token_fingerprint = $32, updated_at = $33, registered_at = $34
WHERE id = $1`

func deviceInsertArgs(d *models.Device) []any {
	return []any{
		d.ID, d.SerialNumber, d.AssetID, d.DeviceName, d.DeviceType,
		d.Manufacturer, d.Model, d.OSName, d.OSVersion, d.EmployeeName, d.Department,
		d.AssignedUserID, d.Status, d.IsRegistered, d.AgentInstalled, d.AgentVersion,
		d.LastLatitude, d.LastLongitude, d.LastLocationAccuracy, d.LastLocationSource,
		d.LastIPAddress, d.LastSeen, d.MACAddress, d.NetworkName, d.IsEncrypted,
		d.IsLocked, d.LockReason, d.IsWiped,
		d.ConsentGiven, d.ConsentTimestamp, d.PolicyAccepted,
		d.AgentTokenFingerprint, d.CreatedAt, d.UpdatedAt, d.RegisteredAt,
	}
}

func deviceUpdateArgs(d *models.Device) []any {
	return []any{
		d.ID, d.SerialNumber, d.AssetID, d.DeviceName, d.DeviceType,
		d.Manufacturer, d.Model, d.OSName, d.OSVersion, d.EmployeeName, d.Department,
		d.AssignedUserID, d.Status, d.IsRegistered, d.AgentInstalled, d.AgentVersion,
		d.LastLatitude, d.LastLongitude, d.LastLocationAccuracy, d.LastLocationSource,
		d.LastIPAddress, d.LastSeen, d.MACAddress, d.NetworkName, d.IsEncrypted,
		d.IsLocked, d.LockReason, d.IsWiped,
		d.ConsentGiven, d.ConsentTimestamp, d.PolicyAccepted,
		d.AgentTokenFingerprint, d.UpdatedAt, d.RegisteredAt,
	}
}

func (db *DB) CreateDevice(ctx context.Context, device *models.Device) error {
	now := time.Now().UTC()

	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}

	device.CreatedAt = now
	device.UpdatedAt = now

	if _, err := db.pool.Exec(ctx, insertDeviceQuery, deviceInsertArgs(device)...); err != nil {
		return fmt.Errorf("%w: device: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (db *DB) UpdateDevice(ctx context.Context, device *models.Device) error {
	device.UpdatedAt = time.Now().UTC()

	tag, err := db.pool.Exec(ctx, updateDeviceQuery, deviceUpdateArgs(device)...)
	if err != nil {
		return fmt.Errorf("%w: update device: %w", ErrDatabaseError, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// DeleteDevice removes the device and, via cascade, its location history,
// alerts, and commands. Explicit operator action only.
func (db *DB) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete device: %w", ErrDatabaseError, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}
