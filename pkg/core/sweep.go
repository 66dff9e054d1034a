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
	"time"

	"github.com/carverauto/fleettrace/pkg/models"
)

// runOfflineSweep periodically marks devices offline when they have not
// pinged within the configured window.
func (s *Server) runOfflineSweep(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.OfflineSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ShutdownChan:
			return
		case <-ticker.C:
			if n, err := s.MarkStaleDevicesOffline(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Offline sweep failed")
			} else if n > 0 {
				s.logger.Info().Int("devices", n).Msg("Marked stale devices offline")
			}
		}
	}
}

// MarkStaleDevicesOffline transitions online devices unseen past the cutoff
// to OFFLINE and raises a deduplicated DEVICE_OFFLINE alert for each. Each
// device is handled in its own transaction under its row lock, so a ping
// racing the sweep wins or loses cleanly per device.
func (s *Server) MarkStaleDevicesOffline(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.config.OfflineAfter)

	stale, err := s.store.ListStaleOnlineDevices(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var swept int

	for _, candidate := range stale {
		changed, err := s.sweepDevice(ctx, candidate, cutoff)
		if err != nil {
			s.logger.Error().Err(err).
				Str("device_id", candidate.ID.String()).
				Msg("Failed to sweep device offline")

			continue
		}

		if changed {
			swept++
		}
	}

	return swept, nil
}

func (s *Server) sweepDevice(ctx context.Context, candidate *models.Device, cutoff time.Time) (bool, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer s.rollback(ctx, tx)

	device, err := tx.GetDeviceForUpdate(ctx, candidate.ID)
	if err != nil {
		return false, err
	}

	// Re-check under the lock: the device may have pinged since the list.
	if device.Status != models.DeviceStatusOnline {
		return false, nil
	}

	if device.LastSeen != nil && device.LastSeen.After(cutoff) {
		return false, nil
	}

	previous := device.Status
	device.Status = models.DeviceStatusOffline

	if err := tx.SaveDevice(ctx, device); err != nil {
		return false, err
	}

	var alert *models.Alert

	open, err := tx.HasOpenAlert(ctx, device.ID, nil, models.AlertTypeDeviceOffline)
	if err != nil {
		return false, err
	}

	if !open {
		alert = &models.Alert{
			DeviceID:  device.ID,
			AlertType: models.AlertTypeDeviceOffline,
			Severity:  models.AlertSeverityMedium,
			Title:     "Device offline: " + device.AssetID,
			Message:   "Device " + device.AssetID + " has not pinged within the offline window",
			Latitude:  device.LastLatitude,
			Longitude: device.LastLongitude,
		}

		if err := tx.InsertAlert(ctx, alert); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	if alert != nil {
		s.publishAlerts(ctx, []*models.Alert{alert})
	}

	s.publishStatusChange(ctx, device, previous)

	return true, nil
}
