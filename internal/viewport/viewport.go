// Package viewport models the map camera and converts between geographic
// coordinates and screen pixels using the Web Mercator tiling scheme.
package viewport

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	// MinZoom and MaxZoom bound the camera zoom level.
	MinZoom = 0
	MaxZoom = 22

	// TileSize is the pixel size of one map tile at integer zoom.
	TileSize = 256

	// MaxLatitude is the Web Mercator latitude limit.
	MaxLatitude = 85.05112878

	earthHalfCircumference = 20037508.342789244
)

// DefaultCamera is used when the URL carries no camera.
var DefaultCamera = Camera{Lat: 52.1326, Lon: 5.2913, Zoom: 7}

// DefaultSize is assumed until a client reports its viewport.
var DefaultSize = Size{Width: 1024, Height: 768}

// Camera is the map center and integer zoom level.
type Camera struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom int     `json:"zoom"`
}

// Valid reports whether the center is a finite coordinate pair within range and
// the zoom is within [MinZoom, MaxZoom].
func (c Camera) Valid() bool {
	if !finite(c.Lat) || !finite(c.Lon) {
		return false
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return false
	}
	return c.Zoom >= MinZoom && c.Zoom <= MaxZoom
}

// Clamp returns c with zoom bounded to [MinZoom, maxZoom] and the latitude bounded
// to the projectable range. Non-finite coordinates are replaced by the default center.
func (c Camera) Clamp(maxZoom int) Camera {
	if maxZoom <= 0 || maxZoom > MaxZoom {
		maxZoom = MaxZoom
	}
	if !finite(c.Lat) || !finite(c.Lon) {
		c.Lat, c.Lon = DefaultCamera.Lat, DefaultCamera.Lon
	}
	c.Lat = clampFloat(c.Lat, -MaxLatitude, MaxLatitude)
	c.Lon = clampFloat(c.Lon, -180, 180)
	if c.Zoom < MinZoom {
		c.Zoom = MinZoom
	}
	if c.Zoom > maxZoom {
		c.Zoom = maxZoom
	}
	return c
}

// Center returns the camera center as a lon/lat point.
func (c Camera) Center() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// Size is the map viewport size in CSS pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// OrDefault returns s, or DefaultSize when either dimension is not positive.
func (s Size) OrDefault() Size {
	if s.Width <= 0 || s.Height <= 0 || !finite(s.Width) || !finite(s.Height) {
		return DefaultSize
	}
	return s
}

// ScreenPoint is a pixel position relative to the top-left corner of the viewport.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Project converts a lon/lat point into the viewport pixel position it occupies
// under the given camera.
func Project(cam Camera, size Size, p orb.Point) ScreenPoint {
	size = size.OrDefault()
	cx, cy := worldPixel(cam.Center(), cam.Zoom)
	px, py := worldPixel(p, cam.Zoom)
	return ScreenPoint{
		X: px - cx + size.Width/2,
		Y: py - cy + size.Height/2,
	}
}

// worldPixel returns the pixel coordinates of p on the whole-world bitmap at zoom.
func worldPixel(p orb.Point, zoom int) (float64, float64) {
	p[1] = clampFloat(p[1], -MaxLatitude, MaxLatitude)
	m := project.WGS84.ToMercator(p)
	scale := worldSize(zoom)
	x := (m[0] + earthHalfCircumference) / (2 * earthHalfCircumference) * scale
	y := (earthHalfCircumference - m[1]) / (2 * earthHalfCircumference) * scale
	return x, y
}

func worldSize(zoom int) float64 {
	return TileSize * math.Exp2(float64(zoom))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
