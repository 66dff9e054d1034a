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
)

// migrations are idempotent and run at startup in order. Alert dedup is
// enforced in-transaction, not by a partial unique index, so resolving an
// alert immediately re-arms the (device, geofence, type) tuple.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS devices (
		id UUID PRIMARY KEY,
		serial_number TEXT NOT NULL UNIQUE,
		asset_id TEXT NOT NULL UNIQUE,
		device_name TEXT NOT NULL DEFAULT '',
		device_type TEXT NOT NULL DEFAULT 'laptop',
		manufacturer TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		os_name TEXT NOT NULL DEFAULT '',
		os_version TEXT NOT NULL DEFAULT '',
		employee_name TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		assigned_user_id UUID,
		status TEXT NOT NULL DEFAULT 'offline',
		is_registered BOOLEAN NOT NULL DEFAULT FALSE,
		agent_installed BOOLEAN NOT NULL DEFAULT FALSE,
		agent_version TEXT NOT NULL DEFAULT '',
		last_latitude DOUBLE PRECISION,
		last_longitude DOUBLE PRECISION,
		last_location_accuracy DOUBLE PRECISION,
		last_location_source TEXT NOT NULL DEFAULT '',
		last_ip_address TEXT NOT NULL DEFAULT '',
		last_seen TIMESTAMPTZ,
		mac_address TEXT NOT NULL DEFAULT '',
		network_name TEXT NOT NULL DEFAULT '',
		is_encrypted BOOLEAN NOT NULL DEFAULT FALSE,
		is_locked BOOLEAN NOT NULL DEFAULT FALSE,
		lock_reason TEXT NOT NULL DEFAULT '',
		is_wiped BOOLEAN NOT NULL DEFAULT FALSE,
		consent_given BOOLEAN NOT NULL DEFAULT FALSE,
		consent_timestamp TIMESTAMPTZ,
		policy_accepted BOOLEAN NOT NULL DEFAULT FALSE,
		agent_token_fingerprint TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		registered_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS location_history (
		id UUID PRIMARY KEY,
		device_id UUID NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		accuracy DOUBLE PRECISION,
		altitude DOUBLE PRECISION,
		source TEXT NOT NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		network_name TEXT NOT NULL DEFAULT '',
		battery_level DOUBLE PRECISION,
		is_charging BOOLEAN,
		recorded_at TIMESTAMPTZ NOT NULL,
		received_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_location_device_time
		ON location_history (device_id, recorded_at DESC)`,
	`CREATE TABLE IF NOT EXISTS geofences (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		fence_type TEXT NOT NULL,
		center_latitude DOUBLE PRECISION,
		center_longitude DOUBLE PRECISION,
		radius_meters DOUBLE PRECISION,
		polygon_coordinates JSONB,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		alert_on_exit BOOLEAN NOT NULL DEFAULT TRUE,
		alert_on_enter BOOLEAN NOT NULL DEFAULT FALSE,
		department TEXT NOT NULL DEFAULT '',
		created_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id UUID PRIMARY KEY,
		device_id UUID NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		alert_type TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT 'medium',
		title TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		geofence_id UUID REFERENCES geofences(id) ON DELETE SET NULL,
		is_acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
		acknowledged_by UUID,
		acknowledged_at TIMESTAMPTZ,
		is_resolved BOOLEAN NOT NULL DEFAULT FALSE,
		resolved_at TIMESTAMPTZ,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_open
		ON alerts (device_id, alert_type) WHERE NOT is_resolved`,
	`CREATE TABLE IF NOT EXISTS remote_commands (
		id UUID PRIMARY KEY,
		device_id UUID NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		command_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		payload TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		screenshot_data TEXT NOT NULL DEFAULT '',
		created_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		sent_at TIMESTAMPTZ,
		executed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_commands_pending
		ON remote_commands (device_id, created_at) WHERE status = 'pending'`,
}

// Migrate applies the schema. Safe to run on every startup.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migration %d: %w", ErrFailedToInit, i, err)
		}
	}

	db.log.Info().Int("statements", len(migrations)).Msg("Schema migrations applied")

	return nil
}
