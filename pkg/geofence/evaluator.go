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

// Package geofence decides geofence entry/exit violations for reported
// device coordinates and produces deduplicated alerts.
package geofence

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/geo"
	"github.com/carverauto/fleettrace/pkg/models"
)

// OpenAlertFunc reports whether an unresolved alert already exists for the
// (device, geofence, type) tuple. The caller binds this to the same
// transaction that will persist the returned alerts, so the check-then-insert
// cannot race with a concurrent ping from the same device.
type OpenAlertFunc func(deviceID, geofenceID uuid.UUID, alertType models.AlertType) (bool, error)

// CheckPoint classifies a coordinate against a single zone. Circle zones
// return the haversine distance from the center; a point exactly on the
// boundary counts as inside. Polygon zones have no meaningful distance and
// return nil.
func CheckPoint(zone *models.Geofence, lat, lon float64) (inside bool, distance *float64) {
	switch zone.FenceType {
	case models.GeofenceTypeCircle:
		if zone.CenterLatitude == nil || zone.CenterLongitude == nil || zone.RadiusMeters == nil {
			return false, nil
		}

		d := geo.HaversineDistanceMeters(lat, lon, *zone.CenterLatitude, *zone.CenterLongitude)

		return d <= *zone.RadiusMeters, &d
	case models.GeofenceTypePolygon:
		if len(zone.PolygonCoordinates) == 0 {
			return false, nil
		}

		return geo.PointInPolygon(lat, lon, zone.PolygonCoordinates), nil
	}

	return false, nil
}

// Evaluate checks a device coordinate against the supplied zones and returns
// the alerts to create. Zone scoping (IsActive, department) is the caller's
// responsibility; Evaluate is a pure function of its explicit zone set apart
// from the dedup lookups. It performs no persistence of its own.
func Evaluate(
	device *models.Device,
	lat, lon float64,
	zones []*models.Geofence,
	open OpenAlertFunc,
) ([]*models.Alert, error) {
	var alerts []*models.Alert

	for _, zone := range zones {
		inside, _ := CheckPoint(zone, lat, lon)

		if zone.AlertOnExit && !inside {
			alert, err := buildAlert(device, zone, models.AlertTypeGeofenceExit, lat, lon, open)
			if err != nil {
				return nil, err
			}

			if alert != nil {
				alerts = append(alerts, alert)
			}
		}

		if zone.AlertOnEnter && inside {
			alert, err := buildAlert(device, zone, models.AlertTypeGeofenceEnter, lat, lon, open)
			if err != nil {
				return nil, err
			}

			if alert != nil {
				alerts = append(alerts, alert)
			}
		}
	}

	return alerts, nil
}

// buildAlert emits an alert for the violation unless an unresolved one is
// already open for the same (device, zone, type) tuple.
func buildAlert(
	device *models.Device,
	zone *models.Geofence,
	alertType models.AlertType,
	lat, lon float64,
	open OpenAlertFunc,
) (*models.Alert, error) {
	exists, err := open(device.ID, zone.ID, alertType)
	if err != nil {
		return nil, fmt.Errorf("failed to check open alerts: %w", err)
	}

	if exists {
		return nil, nil
	}

	alert := &models.Alert{
		ID:         uuid.New(),
		DeviceID:   device.ID,
		AlertType:  alertType,
		Latitude:   &lat,
		Longitude:  &lon,
		GeofenceID: &zone.ID,
		CreatedAt:  time.Now().UTC(),
	}

	switch alertType {
	case models.AlertTypeGeofenceExit:
		alert.Severity = models.AlertSeverityHigh
		alert.Title = fmt.Sprintf("Device left geofence: %s", zone.Name)
		alert.Message = fmt.Sprintf("Device %s has left the allowed zone '%s'", device.AssetID, zone.Name)
	case models.AlertTypeGeofenceEnter:
		alert.Severity = models.AlertSeverityMedium
		alert.Title = fmt.Sprintf("Device entered geofence: %s", zone.Name)
		alert.Message = fmt.Sprintf("Device %s has entered zone '%s'", device.AssetID, zone.Name)
	}

	return alert, nil
}

// FilterZones returns the subset of zones in scope for a device: active
// zones whose department is empty or matches the device's.
func FilterZones(zones []*models.Geofence, department string) []*models.Geofence {
	filtered := make([]*models.Geofence, 0, len(zones))

	for _, zone := range zones {
		if zone.IsActive && zone.AppliesTo(department) {
			filtered = append(filtered, zone)
		}
	}

	return filtered
}
