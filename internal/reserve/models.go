// Package reserve defines the nature reserve records exchanged with the backend.
package reserve

import (
	"errors"

	"github.com/paulmach/orb"
)

// ErrNotFound is returned when the backend has no reserve for the requested id.
var ErrNotFound = errors.New("reserve not found")

// Summary identifies a reserve in list, search and picker contexts.
type Summary struct {
	// ID is an opaque external identifier, e.g. "way_123" or a backend-assigned id.
	ID string `json:"id"`

	// Name is empty for unnamed reserves.
	Name string `json:"name,omitempty"`

	AreaType string `json:"area_type"`
}

// DisplayName returns the name, falling back to the id for unnamed reserves.
func (s Summary) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Operator is an organisation managing one or more reserves.
type Operator struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ReserveCount int    `json:"reserve_count,omitempty"`
}

// Detail is the full record of a single reserve.
type Detail struct {
	Summary

	// ProtectClass is the raw external protection code, empty when unknown.
	ProtectClass string `json:"protect_class,omitempty"`

	Tags      map[string]any `json:"tags"`
	Operators []Operator     `json:"operators"`

	// Geometry is a Polygon or MultiPolygon in lon/lat, nil when the backend has none.
	Geometry orb.Geometry `json:"-"`
}

// BackendConfig holds the settings the backend publishes for map clients.
type BackendConfig struct {
	// VectorTileMaxZoom is the highest zoom the tile source renders natively.
	VectorTileMaxZoom int `json:"vector_tile_max_zoom"`
}

// DefaultVectorTileMaxZoom is used until the backend config has been loaded.
const DefaultVectorTileMaxZoom = 14
