// Package urlstate maps the camera, filters and selected reserve to and from
// the page URL query string.
package urlstate

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/reservemap/reservemap/internal/filter"
	"github.com/reservemap/reservemap/internal/viewport"
)

// Query parameter names.
const (
	ParamLat             = "lat"
	ParamLng             = "lng"
	ParamZoom            = "zoom"
	ParamReserve         = "reserve"
	ParamOperator        = "operator"
	ParamProtectionLevel = "protection_level"
	ParamSource          = "source"
)

// State is the part of the view state that lives in the URL.
type State struct {
	Camera  viewport.Camera
	Filters filter.State

	// Reserve is the selected reserve id, empty while the detail panel is closed.
	Reserve string
}

// Decoded is the result of reading a URL.
type Decoded struct {
	State

	// ExplicitCamera is true when lat, lng and zoom were all present and valid.
	ExplicitCamera bool
}

// Decode reads view state from query values. Missing, invalid and out-of-domain
// values are ignored and leave the defaults in place.
func Decode(q url.Values) Decoded {
	d := Decoded{State: State{Camera: viewport.DefaultCamera}}

	lat, latOK := parseFloat(q.Get(ParamLat))
	lng, lngOK := parseFloat(q.Get(ParamLng))
	if latOK && lngOK && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180 {
		d.Camera.Lat, d.Camera.Lon = lat, lng
	} else {
		latOK, lngOK = false, false
	}

	zoom, zoomOK := parseZoom(q.Get(ParamZoom))
	if zoomOK {
		d.Camera.Zoom = zoom
	}
	d.ExplicitCamera = latOK && lngOK && zoomOK

	if id, err := strconv.ParseInt(strings.TrimSpace(q.Get(ParamOperator)), 10, 64); err == nil && id > 0 {
		d.Filters.OperatorID = filter.OperatorPtr(id)
	}
	if level, ok := filter.ParseProtectionLevel(q.Get(ParamProtectionLevel)); ok {
		d.Filters.ProtectionLevel = level
	}
	if src, ok := filter.ParseSource(q.Get(ParamSource)); ok {
		d.Filters.Source = src
	}
	d.Reserve = strings.TrimSpace(q.Get(ParamReserve))

	return d
}

// Encode merges s into q, keeping unrelated parameters. Absent filters and a
// closed panel remove their keys entirely.
func Encode(q url.Values, s State) url.Values {
	out := url.Values{}
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}

	out.Set(ParamLat, strconv.FormatFloat(round5(s.Camera.Lat), 'f', -1, 64))
	out.Set(ParamLng, strconv.FormatFloat(round5(s.Camera.Lon), 'f', -1, 64))
	out.Set(ParamZoom, strconv.Itoa(s.Camera.Zoom))

	if s.Filters.OperatorID != nil {
		out.Set(ParamOperator, strconv.FormatInt(*s.Filters.OperatorID, 10))
	} else {
		out.Del(ParamOperator)
	}
	setOrDel(out, ParamProtectionLevel, string(s.Filters.ProtectionLevel))
	setOrDel(out, ParamSource, string(s.Filters.Source))
	setOrDel(out, ParamReserve, s.Reserve)

	return out
}

func setOrDel(q url.Values, key, value string) {
	if value == "" {
		q.Del(key)
		return
	}
	q.Set(key, value)
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseZoom accepts whole zoom levels only; "12.0" is whole, "12.7" is not.
func parseZoom(s string) (int, bool) {
	f, ok := parseFloat(s)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	if f < viewport.MinZoom || f > viewport.MaxZoom {
		return 0, false
	}
	return int(f), true
}

func round5(f float64) float64 {
	return math.Round(f*1e5) / 1e5
}
