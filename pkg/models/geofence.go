package models

import (
	"time"

	"github.com/google/uuid"
)

// GeofenceType selects the zone geometry.
type GeofenceType string

const (
	GeofenceTypeCircle  GeofenceType = "circle"
	GeofenceTypePolygon GeofenceType = "polygon"
)

// Geofence defines an allowed or forbidden zone. Circle zones carry a center
// and radius; polygon zones carry an ordered ring of at least three vertices,
// implicitly closed.
type Geofence struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`

	FenceType GeofenceType `json:"fence_type"`

	CenterLatitude  *float64 `json:"center_latitude,omitempty"`
	CenterLongitude *float64 `json:"center_longitude,omitempty"`
	RadiusMeters    *float64 `json:"radius_meters,omitempty"`

	PolygonCoordinates []GeoPoint `json:"polygon_coordinates,omitempty"`

	IsActive     bool `json:"is_active"`
	AlertOnExit  bool `json:"alert_on_exit"`
	AlertOnEnter bool `json:"alert_on_enter"`

	// Department scopes the zone to devices in that department. Empty means
	// the zone applies to every device.
	Department string `json:"department,omitempty"`

	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// AppliesTo reports whether the zone is in scope for a device department.
func (g *Geofence) AppliesTo(department string) bool {
	return g.Department == "" || g.Department == department
}
