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

// pgxTx implements Tx over a pgx transaction.
type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrDatabaseError, err)
	}

	return nil
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w: rollback: %w", ErrDatabaseError, err)
	}

	return nil
}

// GetDeviceForUpdate locks the device row. Every ping, queue drain, and
// result report takes this lock first, so concurrent work on the same device
// serializes while other devices proceed in parallel.
func (t *pgxTx) GetDeviceForUpdate(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = $1 FOR UPDATE`, id)

	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}

		return nil, err
	}

	return device, nil
}

func (t *pgxTx) GetDeviceBySerialForUpdate(ctx context.Context, serial string) (*models.Device, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE serial_number = $1 FOR UPDATE`, serial)

	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}

		return nil, err
	}

	return device, nil
}

func (t *pgxTx) InsertDevice(ctx context.Context, device *models.Device) error {
	now := time.Now().UTC()

	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}

	device.CreatedAt = now
	device.UpdatedAt = now

	if _, err := t.tx.Exec(ctx, insertDeviceQuery, deviceInsertArgs(device)...); err != nil {
		return fmt.Errorf("%w: device: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (t *pgxTx) SaveDevice(ctx context.Context, device *models.Device) error {
	device.UpdatedAt = time.Now().UTC()

	tag, err := t.tx.Exec(ctx, updateDeviceQuery, deviceUpdateArgs(device)...)
	if err != nil {
		return fmt.Errorf("%w: save device: %w", ErrDatabaseError, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

func (t *pgxTx) InsertLocation(ctx context.Context, sample *models.LocationSample) error {
	if sample.ID == uuid.Nil {
		sample.ID = uuid.New()
	}

	if sample.ReceivedAt.IsZero() {
		sample.ReceivedAt = time.Now().UTC()
	}

	_, err := t.tx.Exec(ctx,
		`INSERT INTO location_history (
			id, device_id, latitude, longitude, accuracy, altitude, source,
			ip_address, network_name, battery_level, is_charging,
			recorded_at, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sample.ID, sample.DeviceID, sample.Latitude, sample.Longitude,
		sample.Accuracy, sample.Altitude, sample.Source,
		sample.IPAddress, sample.NetworkName, sample.BatteryLevel, sample.IsCharging,
		sample.RecordedAt, sample.ReceivedAt)
	if err != nil {
		return fmt.Errorf("%w: location: %w", ErrFailedToInsert, err)
	}

	return nil
}

// ActiveGeofences returns active zones visible to the given department:
// zones with no department scope plus zones scoped to it.
func (t *pgxTx) ActiveGeofences(ctx context.Context, department string) ([]*models.Geofence, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+geofenceColumns+` FROM geofences
		 WHERE is_active AND (department = '' OR department = $1)
		 ORDER BY created_at`, department)
	if err != nil {
		return nil, fmt.Errorf("%w: active geofences: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	return collectGeofences(rows)
}

// HasOpenAlert reports whether an unresolved alert already exists for the
// (device, geofence, type) tuple. Checked inside the same transaction that
// inserts, so the device row lock makes check-then-insert safe.
func (t *pgxTx) HasOpenAlert(ctx context.Context, deviceID uuid.UUID, geofenceID *uuid.UUID, alertType models.AlertType) (bool, error) {
	var exists bool

	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE device_id = $1
			  AND alert_type = $2
			  AND (geofence_id = $3 OR ($3::uuid IS NULL AND geofence_id IS NULL))
			  AND NOT is_resolved
		)`, deviceID, alertType, geofenceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: open alert check: %w", ErrFailedToQuery, err)
	}

	return exists, nil
}

func (t *pgxTx) InsertAlert(ctx context.Context, alert *models.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}

	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	if _, err := t.tx.Exec(ctx, insertAlertQuery, alertInsertArgs(alert)...); err != nil {
		return fmt.Errorf("%w: alert: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (t *pgxTx) InsertCommand(ctx context.Context, cmd *models.RemoteCommand) error {
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}

	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}

	if _, err := t.tx.Exec(ctx, insertCommandQuery, commandInsertArgs(cmd)...); err != nil {
		return fmt.Errorf("%w: command: %w", ErrFailedToInsert, err)
	}

	return nil
}

// SelectPendingForUpdate returns the oldest pending commands for the device,
// locked. The caller already holds the device row lock, so plain FOR UPDATE
// is enough; SKIP LOCKED would let two drains of the same device interleave.
func (t *pgxTx) SelectPendingForUpdate(ctx context.Context, deviceID uuid.UUID, limit int) ([]*models.RemoteCommand, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+commandColumns+` FROM remote_commands
		 WHERE device_id = $1 AND status = $2
		 ORDER BY created_at ASC
		 LIMIT $3
		 FOR UPDATE`,
		deviceID, models.CommandStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: pending commands: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	return collectCommands(rows)
}

func (t *pgxTx) MarkCommandsSent(ctx context.Context, ids []uuid.UUID, sentAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := t.tx.Exec(ctx,
		`UPDATE remote_commands SET status = $1, sent_at = $2 WHERE id = ANY($3)`,
		models.CommandStatusSent, sentAt, ids)
	if err != nil {
		return fmt.Errorf("%w: mark sent: %w", ErrDatabaseError, err)
	}

	return nil
}

func (t *pgxTx) GetCommandForUpdate(ctx context.Context, id uuid.UUID) (*models.RemoteCommand, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+commandColumns+` FROM remote_commands WHERE id = $1 FOR UPDATE`, id)

	cmd, err := scanCommand(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommandNotFound
		}

		return nil, err
	}

	return cmd, nil
}

func (t *pgxTx) SaveCommandResult(ctx context.Context, cmd *models.RemoteCommand) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE remote_commands SET
			status = $2, result = $3, error_message = $4,
			screenshot_data = $5, sent_at = $6, executed_at = $7
		 WHERE id = $1`,
		cmd.ID, cmd.Status, cmd.Result, cmd.ErrorMessage,
		cmd.ScreenshotData, cmd.SentAt, cmd.ExecutedAt)
	if err != nil {
		return fmt.Errorf("%w: save command: %w", ErrDatabaseError, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrCommandNotFound
	}

	return nil
}
