package filter

import (
	"math"
	"strconv"

	"github.com/reservemap/reservemap/internal/reserve"
)

// Tile feature attribute names.
const (
	AttrOperatorIDs  = "operator_ids"
	AttrProtectClass = "protect_class"
	AttrSource       = "source"
	AttrID           = "id"
	AttrOSMID        = "osm_id"
	AttrOSMType      = "osm_type"
)

// TileFeature is the render-only view of a reserve delivered by the vector tile source.
type TileFeature struct {
	ID           string
	OperatorIDs  []int64
	ProtectClass string
	Source       string
}

// FeatureFromProperties decodes tile feature attributes. featureID is the tile-level
// feature id and is used when the attributes carry neither id nor osm_id.
func FeatureFromProperties(featureID any, props map[string]any) TileFeature {
	f := TileFeature{
		OperatorIDs:  ParseOperatorIDs(props[AttrOperatorIDs]),
		ProtectClass: scalarString(props[AttrProtectClass]),
		Source:       scalarString(props[AttrSource]),
	}

	osmType := scalarString(props[AttrOSMType])
	switch {
	case scalarString(props[AttrID]) != "":
		f.ID = reserve.NormalizeID(scalarString(props[AttrID]), osmType)
	case scalarString(props[AttrOSMID]) != "":
		f.ID = reserve.NormalizeID(scalarString(props[AttrOSMID]), osmType)
	default:
		f.ID = reserve.NormalizeID(scalarString(featureID), osmType)
	}
	return f
}

// scalarString renders a tile attribute as text. Vector tiles may carry numeric
// codes where a string is expected, so integral numbers are printed without a
// fraction.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatFloat(t, 'f', 0, 64)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
