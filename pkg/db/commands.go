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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carverauto/fleettrace/pkg/models"
)

const commandColumns = `id, device_id, command_type, status, payload, message,
	result, error_message, screenshot_data, created_by, created_at, sent_at, executed_at`

const insertCommandQuery = `INSERT INTO remote_commands (
	id, device_id, command_type, status, payload, message,
	result, error_message, screenshot_data, created_by, created_at, sent_at, executed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

func scanCommand(row rowScanner) (*models.RemoteCommand, error) {
	c := &models.RemoteCommand{}

	err := row.Scan(
		&c.ID, &c.DeviceID, &c.CommandType, &c.Status, &c.Payload, &c.Message,
		&c.Result, &c.ErrorMessage, &c.ScreenshotData, &c.CreatedBy,
		&c.CreatedAt, &c.SentAt, &c.ExecutedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: command: %w", ErrFailedToScan, err)
	}

	return c, nil
}

func commandInsertArgs(c *models.RemoteCommand) []any {
	return []any{
		c.ID, c.DeviceID, c.CommandType, c.Status, c.Payload, c.Message,
		c.Result, c.ErrorMessage, c.ScreenshotData, c.CreatedBy,
		c.CreatedAt, c.SentAt, c.ExecutedAt,
	}
}

func collectCommands(rows pgx.Rows) ([]*models.RemoteCommand, error) {
	var cmds []*models.RemoteCommand

	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}

		cmds = append(cmds, cmd)
	}

	return cmds, rows.Err()
}

func (db *DB) GetCommand(ctx context.Context, id uuid.UUID) (*models.RemoteCommand, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+commandColumns+` FROM remote_commands WHERE id = $1`, id)

	cmd, err := scanCommand(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommandNotFound
		}

		return nil, err
	}

	return cmd, nil
}

func (db *DB) ListCommands(ctx context.Context, deviceID uuid.UUID, status *models.CommandStatus, limit int) ([]*models.RemoteCommand, error) {
	query := `SELECT ` + commandColumns + ` FROM remote_commands
		WHERE device_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC LIMIT $3`

	rows, err := db.pool.Query(ctx, query, deviceID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list commands: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	return collectCommands(rows)
}
