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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleettrace/pkg/models"
)

func TestCreateGeofenceValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	lat, lon, radius := 40.0, -74.0, 500.0

	tests := []struct {
		name string
		zone *models.Geofence
	}{
		{
			name: "missing name",
			zone: &models.Geofence{
				FenceType:       models.GeofenceTypeCircle,
				CenterLatitude:  &lat,
				CenterLongitude: &lon,
				RadiusMeters:    &radius,
			},
		},
		{
			name: "circle without radius",
			zone: &models.Geofence{
				Name:            "office",
				FenceType:       models.GeofenceTypeCircle,
				CenterLatitude:  &lat,
				CenterLongitude: &lon,
			},
		},
		{
			name: "polygon with two vertices",
			zone: &models.Geofence{
				Name:      "campus",
				FenceType: models.GeofenceTypePolygon,
				PolygonCoordinates: []models.GeoPoint{
					{Latitude: 0, Longitude: 0},
					{Latitude: 0, Longitude: 10},
				},
			},
		},
		{
			name: "out of range latitude",
			zone: func() *models.Geofence {
				bad := 91.0
				return &models.Geofence{
					Name:            "north pole plus",
					FenceType:       models.GeofenceTypeCircle,
					CenterLatitude:  &bad,
					CenterLongitude: &lon,
					RadiusMeters:    &radius,
				}
			}(),
		},
		{
			name: "unknown fence type",
			zone: &models.Geofence{Name: "odd", FenceType: "hexagon"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.CreateGeofence(ctx, tt.zone)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestGeofenceCRUD(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	zone := &models.Geofence{
		Name:      "campus",
		FenceType: models.GeofenceTypePolygon,
		PolygonCoordinates: []models.GeoPoint{
			{Latitude: 0, Longitude: 0},
			{Latitude: 0, Longitude: 10},
			{Latitude: 10, Longitude: 10},
			{Latitude: 10, Longitude: 0},
		},
		IsActive:    true,
		AlertOnExit: true,
	}

	created, err := srv.CreateGeofence(ctx, zone)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	got, err := srv.GetGeofence(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "campus", got.Name)

	got.Description = "main campus perimeter"
	_, err = srv.UpdateGeofence(ctx, got)
	require.NoError(t, err)

	zones, err := srv.ListGeofences(ctx, true)
	require.NoError(t, err)
	assert.Len(t, zones, 1)

	require.NoError(t, srv.DeleteGeofence(ctx, created.ID))
	assert.ErrorIs(t, srv.DeleteGeofence(ctx, created.ID), ErrNotFound)

	_, err = srv.GetGeofence(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckGeofencePoint(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	zone := seedCircleZone(t, store, nil)

	t.Run("inside with distance", func(t *testing.T) {
		resp, err := srv.CheckGeofencePoint(ctx, zone.ID, 40.0, -74.0)
		require.NoError(t, err)
		assert.True(t, resp.IsInside)
		require.NotNil(t, resp.DistanceMeters)
		assert.InDelta(t, 0, *resp.DistanceMeters, 0.1)
	})

	t.Run("outside", func(t *testing.T) {
		resp, err := srv.CheckGeofencePoint(ctx, zone.ID, 41.0, -74.0)
		require.NoError(t, err)
		assert.False(t, resp.IsInside)
	})

	t.Run("bad coordinate", func(t *testing.T) {
		_, err := srv.CheckGeofencePoint(ctx, zone.ID, 120.0, -74.0)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown zone", func(t *testing.T) {
		_, err := srv.CheckGeofencePoint(ctx, uuid.New(), 40.0, -74.0)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
