// Package detail loads the full record of the selected reserve with
// last-issued-wins semantics.
package detail

import (
	"errors"

	"github.com/paulmach/orb"

	"github.com/reservemap/reservemap/internal/reserve"
	"github.com/reservemap/reservemap/internal/viewport"
)

// User-facing error messages shown in the detail panel.
const (
	MessageNotFound = "Reserve not found."
	MessageFailed   = "Failed to load reserve details."
)

// Default camera fit parameters.
const (
	DefaultFitPadding = 48
	DefaultFitMaxZoom = 15
)

// Request is a detail fetch to dispatch.
type Request struct {
	Generation uint64
	ID         string

	// Fit asks for the camera to be adjusted to the reserve geometry on success.
	Fit bool
}

// Response is the outcome of a Request.
type Response struct {
	Request Request
	Detail  *reserve.Detail
	Err     error
}

// Result tells the caller what applying a response changed.
type Result struct {
	// Camera is set when the request asked for a fit and the geometry had points.
	Camera *viewport.Camera
}

// Loader owns the currently displayed detail and the detail panel state.
type Loader struct {
	fit viewport.FitOptions

	generation uint64
	pendingID  string
	loading    bool

	open    bool
	current *reserve.Detail
	errMsg  string
}

// NewLoader returns a Loader that frames geometry with the given options.
// Zero values fall back to DefaultFitPadding and DefaultFitMaxZoom.
func NewLoader(fit viewport.FitOptions) *Loader {
	if fit.Padding <= 0 {
		fit.Padding = DefaultFitPadding
	}
	if fit.MaxZoom <= 0 {
		fit.MaxZoom = DefaultFitMaxZoom
	}
	return &Loader{fit: fit}
}

// Load issues a fetch for id. Any earlier in-flight load becomes stale.
func (l *Loader) Load(id string, fit bool) Request {
	l.generation++
	l.pendingID = id
	l.loading = true
	return Request{Generation: l.generation, ID: id, Fit: fit}
}

// Apply applies resp if it answers the latest Load and reports whether it did.
// On failure the previous detail is cleared, an error message is recorded and
// the panel is opened so the error is visible.
func (l *Loader) Apply(resp Response, cam viewport.Camera, size viewport.Size) (Result, bool) {
	if resp.Request.Generation != l.generation {
		return Result{}, false
	}
	l.loading = false
	l.open = true

	if resp.Err != nil || resp.Detail == nil {
		l.current = nil
		l.errMsg = MessageFailed
		if errors.Is(resp.Err, reserve.ErrNotFound) {
			l.errMsg = MessageNotFound
		}
		return Result{}, true
	}

	l.current = resp.Detail
	l.errMsg = ""

	if !resp.Request.Fit {
		return Result{}, true
	}
	b, ok := GeometryBound(resp.Detail.Geometry)
	if !ok {
		return Result{}, true
	}
	c := viewport.Fit(b, size, l.fit)
	if c == cam {
		return Result{}, true
	}
	return Result{Camera: &c}, true
}

// Close hides the panel, clears the displayed detail and invalidates any
// in-flight load.
func (l *Loader) Close() {
	l.generation++
	l.pendingID = ""
	l.loading = false
	l.open = false
	l.current = nil
	l.errMsg = ""
}

// Open reports whether the detail panel is visible.
func (l *Loader) Open() bool { return l.open }

// Loading reports whether the latest load is still in flight.
func (l *Loader) Loading() bool { return l.loading }

// Current returns the displayed detail, nil when none.
func (l *Loader) Current() *reserve.Detail { return l.current }

// Error returns the user-facing error message, empty when none.
func (l *Loader) Error() string { return l.errMsg }

// PendingID returns the id of the latest requested reserve.
func (l *Loader) PendingID() string { return l.pendingID }

// GeometryBound flattens every ring of a Polygon or MultiPolygon and returns the
// bound of all its points. It returns false for nil, empty or other geometries.
func GeometryBound(g orb.Geometry) (orb.Bound, bool) {
	var rings []orb.Ring
	switch t := g.(type) {
	case orb.Polygon:
		rings = t
	case orb.MultiPolygon:
		for _, poly := range t {
			rings = append(rings, poly...)
		}
	default:
		return orb.Bound{}, false
	}

	var (
		b     orb.Bound
		count int
	)
	for _, ring := range rings {
		for _, p := range ring {
			if count == 0 {
				b = orb.Bound{Min: p, Max: p}
			} else {
				b = b.Extend(p)
			}
			count++
		}
	}
	return b, count > 0
}
