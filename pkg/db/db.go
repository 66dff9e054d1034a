/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package db implements Postgres storage for devices, location history,
// geofences, alerts, and the remote command queue.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/fleettrace/pkg/logger"
	"github.com/carverauto/fleettrace/pkg/models"
)

// DB wraps a pgx pool and implements Service.
type DB struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// New creates a DB over an existing pool.
func New(pool *pgxpool.Pool, log logger.Logger) *DB {
	return &DB{pool: pool, log: log}
}

// NewFromConfig dials Postgres and applies migrations.
func NewFromConfig(ctx context.Context, cfg *models.DatabaseConfig, log logger.Logger) (*DB, error) {
	pool, err := NewPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	db := New(pool, log)

	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return db, nil
}

// Begin opens a read-committed transaction. The locking reads inside it do
// the per-device serialization; stricter isolation is not needed.
func (db *DB) Begin(ctx context.Context) (Tx, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", ErrDatabaseError, err)
	}

	return &pgxTx{tx: tx}, nil
}

// Close releases the pool.
func (db *DB) Close() {
	db.pool.Close()
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
