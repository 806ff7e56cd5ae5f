package viewport

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// FitOptions controls how a bounding region is framed.
type FitOptions struct {
	// Padding is the pixel margin kept free on every side.
	Padding float64

	// MaxZoom caps the resulting zoom; small regions are not zoomed in further.
	MaxZoom int
}

// Fit returns the camera that shows the whole lon/lat bound inside a viewport of
// the given size, honoring padding and the zoom cap. A degenerate bound (a single
// point) is centered at the zoom cap.
func Fit(b orb.Bound, size Size, opts FitOptions) Camera {
	size = size.OrDefault()
	maxZoom := opts.MaxZoom
	if maxZoom <= 0 || maxZoom > MaxZoom {
		maxZoom = MaxZoom
	}

	lo := project.WGS84.ToMercator(orb.Point{b.Min[0], clampFloat(b.Min[1], -MaxLatitude, MaxLatitude)})
	hi := project.WGS84.ToMercator(orb.Point{b.Max[0], clampFloat(b.Max[1], -MaxLatitude, MaxLatitude)})
	center := project.Mercator.ToWGS84(orb.Point{(lo[0] + hi[0]) / 2, (lo[1] + hi[1]) / 2})

	zoom := maxZoom
	spanX := hi[0] - lo[0]
	spanY := hi[1] - lo[1]
	availW := math.Max(size.Width-2*opts.Padding, 1)
	availH := math.Max(size.Height-2*opts.Padding, 1)

	if spanX > 0 || spanY > 0 {
		z := math.Inf(1)
		if spanX > 0 {
			z = math.Min(z, zoomFor(spanX, availW))
		}
		if spanY > 0 {
			z = math.Min(z, zoomFor(spanY, availH))
		}
		zoom = int(math.Floor(z))
	}

	if zoom > maxZoom {
		zoom = maxZoom
	}
	if zoom < MinZoom {
		zoom = MinZoom
	}

	return Camera{Lat: center[1], Lon: center[0], Zoom: zoom}
}

// zoomFor returns the fractional zoom at which span meters occupy px pixels.
func zoomFor(span, px float64) float64 {
	return math.Log2(px * 2 * earthHalfCircumference / (TileSize * span))
}
