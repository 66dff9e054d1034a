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

const alertColumns = `id, device_id, alert_type, severity, title, message,
	latitude, longitude, geofence_id, is_acknowledged, acknowledged_by,
	acknowledged_at, is_resolved, resolved_at, notes, created_at`

const insertAlertQuery = `INSERT INTO alerts (
	id, device_id, alert_type, severity, title, message,
	latitude, longitude, geofence_id, is_acknowledged, acknowledged_by,
	acknowledged_at, is_resolved, resolved_at, notes, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

func scanAlert(row rowScanner) (*models.Alert, error) {
	a := &models.Alert{}

	err := row.Scan(
		&a.ID, &a.DeviceID, &a.AlertType, &a.Severity, &a.Title, &a.Message,
		&a.Latitude, &a.Longitude, &a.GeofenceID, &a.IsAcknowledged, &a.AcknowledgedBy,
		&a.AcknowledgedAt, &a.IsResolved, &a.ResolvedAt, &a.Notes, &a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: alert: %w", ErrFailedToScan, err)
	}

	return a, nil
}

func alertInsertArgs(a *models.Alert) []any {
	return []any{
		a.ID, a.DeviceID, a.AlertType, a.Severity, a.Title, a.Message,
		a.Latitude, a.Longitude, a.GeofenceID, a.IsAcknowledged, a.AcknowledgedBy,
		a.AcknowledgedAt, a.IsResolved, a.ResolvedAt, a.Notes, a.CreatedAt,
	}
}

func (db *DB) GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}

		return nil, err
	}

	return alert, nil
}

func (db *DB) ListAlerts(ctx context.Context, deviceID *uuid.UUID, unresolvedOnly bool, limit int) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE ($1::uuid IS NULL OR device_id = $1)`
	if unresolvedOnly {
		query += ` AND NOT is_resolved`
	}

	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := db.pool.Query(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list alerts: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var alerts []*models.Alert

	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}

		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

func (db *DB) AcknowledgeAlert(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE alerts SET is_acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = $3
		 WHERE id = $1`,
		id, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: acknowledge alert: %w", ErrDatabaseError, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}

	return nil
}

// ResolveAlert closes the alert. Resolution re-arms dedup for its
// (device, geofence, type) tuple on the next evaluation.
func (db *DB) ResolveAlert(ctx context.Context, id uuid.UUID, notes string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE alerts SET is_resolved = TRUE, resolved_at = $2,
			notes = CASE WHEN $3 = '' THEN notes ELSE $3 END
		 WHERE id = $1`,
		id, time.Now().UTC(), notes)
	if err != nil {
		return fmt.Errorf("%w: resolve alert: %w", ErrDatabaseError, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}

	return nil
}
