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
	"errors"

	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/db"
	"github.com/carverauto/fleettrace/pkg/models"
)

// GetAlert fetches a single alert.
func (s *Server) GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrAlertNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return alert, nil
}

// ListAlerts returns alerts newest-first, optionally scoped to one device
// and to unresolved ones only.
func (s *Server) ListAlerts(ctx context.Context, deviceID *uuid.UUID, unresolvedOnly bool, limit int) ([]*models.Alert, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	return s.store.ListAlerts(ctx, deviceID, unresolvedOnly, limit)
}

// AcknowledgeAlert stamps the alert acknowledged by an operator.
func (s *Server) AcknowledgeAlert(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.store.AcknowledgeAlert(ctx, id, userID); err != nil {
		if errors.Is(err, db.ErrAlertNotFound) {
			return ErrNotFound
		}

		return err
	}

	return nil
}

// ResolveAlert closes the alert. Resolution re-arms the geofence dedup rule
// for the alert's (device, zone, type) tuple.
func (s *Server) ResolveAlert(ctx context.Context, id uuid.UUID, notes string) error {
	if err := s.store.ResolveAlert(ctx, id, notes); err != nil {
		if errors.Is(err, db.ErrAlertNotFound) {
			return ErrNotFound
		}

		return err
	}

	return nil
}
