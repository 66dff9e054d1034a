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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/models"
)

const locationColumns = `id, device_id, latitude, longitude, accuracy, altitude,
	source, ip_address, network_name, battery_level, is_charging, recorded_at, received_at`

func scanLocation(row rowScanner) (*models.LocationSample, error) {
	s := &models.LocationSample{}

	err := row.Scan(
		&s.ID, &s.DeviceID, &s.Latitude, &s.Longitude, &s.Accuracy, &s.Altitude,
		&s.Source, &s.IPAddress, &s.NetworkName, &s.BatteryLevel, &s.IsCharging,
		&s.RecordedAt, &s.ReceivedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: location: %w", ErrFailedToScan, err)
	}

	return s, nil
}

// ListLocationHistory returns samples newest-first for a device, bounded by
// since and limit.
func (db *DB) ListLocationHistory(ctx context.Context, deviceID uuid.UUID, since time.Time, limit int) ([]*models.LocationSample, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+locationColumns+` FROM location_history
		 WHERE device_id = $1 AND recorded_at >= $2
		 ORDER BY recorded_at DESC
		 LIMIT $3`,
		deviceID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: location history: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var samples []*models.LocationSample

	for rows.Next() {
		sample, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}

		samples = append(samples, sample)
	}

	return samples, rows.Err()
}
