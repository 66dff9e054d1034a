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
	"fmt"

	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/db"
	"github.com/carverauto/fleettrace/pkg/geofence"
	"github.com/carverauto/fleettrace/pkg/models"
)

// CreateGeofence validates and stores a zone definition.
func (s *Server) CreateGeofence(ctx context.Context, zone *models.Geofence) (*models.Geofence, error) {
	if err := validateGeofence(zone); err != nil {
		return nil, err
	}

	if err := s.store.CreateGeofence(ctx, zone); err != nil {
		return nil, err
	}

	return zone, nil
}

// UpdateGeofence revalidates and replaces a zone definition.
func (s *Server) UpdateGeofence(ctx context.Context, zone *models.Geofence) (*models.Geofence, error) {
	if err := validateGeofence(zone); err != nil {
		return nil, err
	}

	if err := s.store.UpdateGeofence(ctx, zone); err != nil {
		if errors.Is(err, db.ErrGeofenceNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return zone, nil
}

// GetGeofence fetches a single zone.
func (s *Server) GetGeofence(ctx context.Context, id uuid.UUID) (*models.Geofence, error) {
	zone, err := s.store.GetGeofence(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrGeofenceNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return zone, nil
}

// ListGeofences returns all zones, optionally only active ones.
func (s *Server) ListGeofences(ctx context.Context, activeOnly bool) ([]*models.Geofence, error) {
	return s.store.ListGeofences(ctx, activeOnly)
}

// DeleteGeofence removes a zone. Alerts referencing it keep their rows with
// the reference cleared.
func (s *Server) DeleteGeofence(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteGeofence(ctx, id); err != nil {
		if errors.Is(err, db.ErrGeofenceNotFound) {
			return ErrNotFound
		}

		return err
	}

	return nil
}

// CheckGeofencePoint exposes the single-zone containment check directly:
// a utility for operators to probe a coordinate against one zone.
func (s *Server) CheckGeofencePoint(ctx context.Context, id uuid.UUID, lat, lon float64) (*models.GeofenceCheckResponse, error) {
	if err := validateCoordinate(lat, lon); err != nil {
		return nil, err
	}

	zone, err := s.GetGeofence(ctx, id)
	if err != nil {
		return nil, err
	}

	inside, distance := geofence.CheckPoint(zone, lat, lon)

	return &models.GeofenceCheckResponse{
		GeofenceID:     zone.ID,
		IsInside:       inside,
		DistanceMeters: distance,
	}, nil
}

// validateGeofence rejects malformed zone definitions before any persistence.
func validateGeofence(zone *models.Geofence) error {
	if zone.Name == "" {
		return fmt.Errorf("%w: geofence name is required", ErrValidation)
	}

	switch zone.FenceType {
	case models.GeofenceTypeCircle:
		if zone.CenterLatitude == nil || zone.CenterLongitude == nil || zone.RadiusMeters == nil {
			return fmt.Errorf("%w: circle geofence requires center and radius", ErrValidation)
		}

		if *zone.RadiusMeters <= 0 {
			return fmt.Errorf("%w: circle radius must be positive", ErrValidation)
		}

		if err := validateCoordinate(*zone.CenterLatitude, *zone.CenterLongitude); err != nil {
			return err
		}
	case models.GeofenceTypePolygon:
		if len(zone.PolygonCoordinates) < 3 {
			return fmt.Errorf("%w: polygon geofence requires at least 3 vertices", ErrValidation)
		}

		for _, p := range zone.PolygonCoordinates {
			if err := validateCoordinate(p.Latitude, p.Longitude); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown fence type %q", ErrValidation, zone.FenceType)
	}

	return nil
}

func validateCoordinate(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrValidation, lat)
	}

	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrValidation, lon)
	}

	return nil
}
