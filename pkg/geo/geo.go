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

// Package geo provides the pure geometric primitives used by geofence
// evaluation: great-circle distance and point-in-polygon containment.
package geo

import (
	"math"

	"github.com/carverauto/fleettrace/pkg/models"
)

// EarthRadiusMeters is the spherical-earth approximation radius.
const EarthRadiusMeters = 6371000.0

// HaversineDistanceMeters returns the great-circle distance in meters between
// two points given in decimal degrees. Inputs are not range-checked; callers
// validate coordinates before persisting them.
func HaversineDistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlon1 := lon1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	rlon2 := lon2 * math.Pi / 180

	dlat := rlat2 - rlat1
	dlon := rlon2 - rlon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Asin(math.Sqrt(a))

	return c * EarthRadiusMeters
}

// PointInPolygon reports whether the point lies inside the ring using the
// even-odd ray casting rule. The ring is implicitly closed (an edge runs from
// the last vertex back to the first). Rings with fewer than three vertices
// are degenerate and always return false; rejecting such zones at creation
// time is the caller's job. Points exactly on an edge or vertex classify
// however the ray cast happens to land.
func PointInPolygon(lat, lon float64, ring []models.GeoPoint) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	inside := false

	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := ring[i].Longitude, ring[i].Latitude
		xj, yj := ring[j].Longitude, ring[j].Latitude

		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}

		j = i
	}

	return inside
}
