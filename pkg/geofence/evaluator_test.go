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

package geofence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleettrace/pkg/geo"
	"github.com/carverauto/fleettrace/pkg/models"
)

func floatPtr(f float64) *float64 { return &f }

func circleZone(centerLat, centerLon, radius float64) *models.Geofence {
	return &models.Geofence{
		ID:              uuid.New(),
		Name:            "hq",
		FenceType:       models.GeofenceTypeCircle,
		CenterLatitude:  floatPtr(centerLat),
		CenterLongitude: floatPtr(centerLon),
		RadiusMeters:    floatPtr(radius),
		IsActive:        true,
		AlertOnExit:     true,
	}
}

func polygonZone(ring []models.GeoPoint) *models.Geofence {
	return &models.Geofence{
		ID:                 uuid.New(),
		Name:               "campus",
		FenceType:          models.GeofenceTypePolygon,
		PolygonCoordinates: ring,
		IsActive:           true,
		AlertOnExit:        true,
	}
}

func noOpenAlerts(_, _ uuid.UUID, _ models.AlertType) (bool, error) {
	return false, nil
}

func TestCheckPointCircleBoundary(t *testing.T) {
	// A point one degree of longitude east of the center at the equator is
	// a known haversine distance away; size the radius to land exactly on it.
	center := circleZone(0, 0, 0)
	exact := geo.HaversineDistanceMeters(0, 0, 0, 1)
	center.RadiusMeters = floatPtr(exact)

	inside, dist := CheckPoint(center, 0, 1)
	require.NotNil(t, dist)
	assert.True(t, inside, "point at exactly radius distance is inside")
	assert.InDelta(t, exact, *dist, 0.0001)

	center.RadiusMeters = floatPtr(exact - 0.01)
	inside, _ = CheckPoint(center, 0, 1)
	assert.False(t, inside, "point just beyond radius is outside")
}

func TestCheckPointCircleMissingGeometry(t *testing.T) {
	zone := circleZone(0, 0, 100)
	zone.RadiusMeters = nil

	inside, dist := CheckPoint(zone, 0, 0)
	assert.False(t, inside)
	assert.Nil(t, dist)
}

func TestCheckPointPolygon(t *testing.T) {
	zone := polygonZone([]models.GeoPoint{
		{Latitude: 0, Longitude: 0},
		{Latitude: 10, Longitude: 0},
		{Latitude: 10, Longitude: 10},
		{Latitude: 0, Longitude: 10},
	})

	inside, dist := CheckPoint(zone, 5, 5)
	assert.True(t, inside)
	assert.Nil(t, dist, "polygon containment has no distance")

	inside, _ = CheckPoint(zone, 15, 15)
	assert.False(t, inside)
}

func TestEvaluateExitAlert(t *testing.T) {
	device := &models.Device{ID: uuid.New(), AssetID: "LT-100"}
	zone := circleZone(0, 0, 1000)

	alerts, err := Evaluate(device, 10, 10, []*models.Geofence{zone}, noOpenAlerts)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, models.AlertTypeGeofenceExit, alert.AlertType)
	assert.Equal(t, models.AlertSeverityHigh, alert.Severity)
	assert.Equal(t, device.ID, alert.DeviceID)
	require.NotNil(t, alert.GeofenceID)
	assert.Equal(t, zone.ID, *alert.GeofenceID)
	assert.Equal(t, "Device left geofence: hq", alert.Title)
	require.NotNil(t, alert.Latitude)
	assert.InDelta(t, 10.0, *alert.Latitude, 0.0001)
}

func TestEvaluateEnterAlert(t *testing.T) {
	device := &models.Device{ID: uuid.New(), AssetID: "LT-100"}
	zone := circleZone(0, 0, 1000)
	zone.AlertOnExit = false
	zone.AlertOnEnter = true

	alerts, err := Evaluate(device, 0, 0, []*models.Geofence{zone}, noOpenAlerts)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeGeofenceEnter, alerts[0].AlertType)
	assert.Equal(t, models.AlertSeverityMedium, alerts[0].Severity)
}

func TestEvaluateInsideZoneNoExitAlert(t *testing.T) {
	device := &models.Device{ID: uuid.New(), AssetID: "LT-100"}
	zone := circleZone(0, 0, 1000)

	alerts, err := Evaluate(device, 0, 0, []*models.Geofence{zone}, noOpenAlerts)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEvaluateDedup(t *testing.T) {
	device := &models.Device{ID: uuid.New(), AssetID: "LT-100"}
	zone := circleZone(0, 0, 1000)

	open := map[models.AlertType]bool{}
	lookup := func(_, _ uuid.UUID, alertType models.AlertType) (bool, error) {
		return open[alertType], nil
	}

	alerts, err := Evaluate(device, 10, 10, []*models.Geofence{zone}, lookup)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	// An unresolved exit alert is now open: the same violation is suppressed.
	open[models.AlertTypeGeofenceExit] = true

	alerts, err = Evaluate(device, 10, 10, []*models.Geofence{zone}, lookup)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	// Resolving it re-arms the alert.
	open[models.AlertTypeGeofenceExit] = false

	alerts, err = Evaluate(device, 10, 10, []*models.Geofence{zone}, lookup)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestEvaluateMultipleZones(t *testing.T) {
	device := &models.Device{ID: uuid.New(), AssetID: "LT-100"}

	near := circleZone(10, 10, 5000)
	near.AlertOnEnter = true
	near.AlertOnExit = false

	far := circleZone(0, 0, 1000)

	alerts, err := Evaluate(device, 10, 10, []*models.Geofence{near, far}, noOpenAlerts)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.AlertTypeGeofenceEnter, alerts[0].AlertType)
	assert.Equal(t, models.AlertTypeGeofenceExit, alerts[1].AlertType)
}

func TestFilterZones(t *testing.T) {
	active := circleZone(0, 0, 100)
	inactive := circleZone(0, 0, 100)
	inactive.IsActive = false
	scoped := circleZone(0, 0, 100)
	scoped.Department = "engineering"
	otherDept := circleZone(0, 0, 100)
	otherDept.Department = "sales"

	zones := []*models.Geofence{active, inactive, scoped, otherDept}

	filtered := FilterZones(zones, "engineering")
	require.Len(t, filtered, 2)
	assert.Same(t, active, filtered[0])
	assert.Same(t, scoped, filtered[1])

	// A device with no department only sees unscoped zones.
	filtered = FilterZones(zones, "")
	require.Len(t, filtered, 1)
	assert.Same(t, active, filtered[0])
}
