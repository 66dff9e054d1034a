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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carverauto/fleettrace/pkg/models"
)

const geofenceColumns = `id, name, description, fence_type,
	center_latitude, center_longitude, radius_meters, polygon_coordinates,
	is_active, alert_on_exit, alert_on_enter, department,
	created_by, created_at, updated_at`

func scanGeofence(row rowScanner) (*models.Geofence, error) {
	g := &models.Geofence{}

	var polygon []byte

	err := row.Scan(
		&g.ID, &g.Name, &g.Description, &g.FenceType,
		&g.CenterLatitude, &g.CenterLongitude, &g.RadiusMeters, &polygon,
		&g.IsActive, &g.AlertOnExit, &g.AlertOnEnter, &g.Department,
		&g.CreatedBy, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: geofence: %w", ErrFailedToScan, err)
	}

	if len(polygon) > 0 {
		if err := json.Unmarshal(polygon, &g.PolygonCoordinates); err != nil {
			return nil, fmt.Errorf("%w: polygon coordinates: %w", ErrFailedToScan, err)
		}
	}

	return g, nil
}

func collectGeofences(rows pgx.Rows) ([]*models.Geofence, error) {
	var zones []*models.Geofence

	for rows.Next() {
		zone, err := scanGeofence(rows)
		if err != nil {
			return nil, err
		}

		zones = append(zones, zone)
	}

	return zones, rows.Err()
}

func polygonJSON(zone *models.Geofence) (any, error) {
	if zone.PolygonCoordinates == nil {
		return nil, nil
	}

	data, err := json.Marshal(zone.PolygonCoordinates)
	if err != nil {
		return nil, fmt.Errorf("%w: polygon coordinates: %w", ErrDatabaseError, err)
	}

	return data, nil
}

func (db *DB) GetGeofence(ctx context.Context, id uuid.UUID) (*models.Geofence, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+geofenceColumns+` FROM geofences WHERE id = $1`, id)

	zone, err := scanGeofence(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGeofenceNotFound
		}

		return nil, err
	}

	return zone, nil
}

func (db *DB) ListGeofences(ctx context.Context, activeOnly bool) ([]*models.Geofence, error) {
	query := `SELECT ` + geofenceColumns + ` FROM geofences`
	if activeOnly {
		query += ` WHERE is_active`
	}

	query += ` ORDER BY created_at`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list geofences: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	return collectGeofences(rows)
}

func (db *DB) CreateGeofence(ctx context.Context, zone *models.Geofence) error {
	now := time.Now().UTC()

	if zone.ID == uuid.Nil {
		zone.ID = uuid.New()
	}

	zone.CreatedAt = now
	zone.UpdatedAt = now

	polygon, err := polygonJSON(zone)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO geofences (
			id, name, description, fence_type,
			center_latitude, center_longitude, radius_meters, polygon_coordinates,
			is_active, alert_on_exit, alert_on_enter, department,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		zone.ID, zone.Name, zone.Description, zone.FenceType,
		zone.CenterLatitude, zone.CenterLongitude, zone.RadiusMeters, polygon,
		zone.IsActive, zone.AlertOnExit, zone.AlertOnEnter, zone.Department,
		zone.CreatedBy, zone.CreatedAt, zone.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: geofence: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (db *DB) UpdateGeofence(ctx context.Context, zone *models.Geofence) error {
	zone.UpdatedAt = time.Now().UTC()

	polygon, err := polygonJSON(zone)
	if err != nil {
		return err
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE geofences SET
			name = $2, description = $3, fence_type = $4,
			center_latitude = $5, center_longitude = $6, radius_meters = $7,
			polygon_coordinates = $8, is_active = $9, alert_on_exit = $10,
			alert_on_enter = $11, department = $12, updated_at = $13
		 WHERE id = $1`,
		zone.ID, zone.Name, zone.Description, zone.FenceType,
		zone.CenterLatitude, zone.CenterLongitude, zone.RadiusMeters,
		polygon, zone.IsActive, zone.AlertOnExit,
		zone.AlertOnEnter, zone.Department, zone.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: update geofence: %w", ErrDatabaseError, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrGeofenceNotFound
	}

	return nil
}

func (db *DB) DeleteGeofence(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM geofences WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete geofence: %w", ErrDatabaseError, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrGeofenceNotFound
	}

	return nil
}
