// Package pointresolve turns a map click into zero, one or many candidate reserves.
package pointresolve

import (
	"strings"

	"github.com/paulmach/orb"

	"github.com/reservemap/reservemap/internal/reserve"
	"github.com/reservemap/reservemap/internal/viewport"
)

// HitFeature is the tile feature the rendering layer reported under the pointer.
type HitFeature struct {
	ID      string `json:"id"`
	OSMType string `json:"osmType,omitempty"`
}

// Click is a pointer click on the map.
type Click struct {
	// Point is the clicked location in lon/lat.
	Point orb.Point

	// Screen is the pixel position reported by the client, if any.
	Screen *viewport.ScreenPoint

	// Feature is the topmost tile feature hit by the click, nil when none.
	Feature *HitFeature
}

// Request is an at-point lookup to dispatch to the backend. The fallback id and
// the anchor are captured at click time and travel with the request.
type Request struct {
	Generation uint64
	Point      orb.Point
	Anchor     viewport.ScreenPoint
	Fallback   string
}

// Response is the outcome of a Request.
type Response struct {
	Request    Request
	Candidates []reserve.Summary
	Err        error
}

// Kind is the classification of a resolved click.
type Kind int

// Resolution kinds.
const (
	NoMatch Kind = iota
	SingleMatch
	MultipleMatches
)

func (k Kind) String() string {
	switch k {
	case SingleMatch:
		return "single"
	case MultipleMatches:
		return "multiple"
	default:
		return "none"
	}
}

// Outcome tells the caller what a resolved click means.
type Outcome struct {
	Kind Kind

	// ReserveID is set for SingleMatch.
	ReserveID string

	// Candidates and Anchor are set for MultipleMatches.
	Candidates []reserve.Summary
	Anchor     viewport.ScreenPoint

	// FromFallback is true when the id came from the clicked tile feature.
	FromFallback bool
}

// Resolver tracks the latest click. Every Begin supersedes earlier clicks.
type Resolver struct {
	generation uint64
	loading    bool
}

// Begin starts resolving a click observed under cam. The anchor is the click's
// pixel position at click time; it is not recomputed on later camera moves.
func (r *Resolver) Begin(c Click, cam viewport.Camera, size viewport.Size) Request {
	r.generation++
	r.loading = true

	anchor := viewport.Project(cam, size, c.Point)
	if c.Screen != nil {
		anchor = *c.Screen
	}

	req := Request{Generation: r.generation, Point: c.Point, Anchor: anchor}
	if c.Feature != nil {
		if id := strings.TrimSpace(c.Feature.ID); id != "" {
			req.Fallback = reserve.NormalizeID(id, c.Feature.OSMType)
		}
	}
	return req
}

// Resolve applies a lookup result. It returns false when resp belongs to a
// superseded click. A failed lookup is treated like an empty one.
func (r *Resolver) Resolve(resp Response) (Outcome, bool) {
	if resp.Request.Generation != r.generation {
		return Outcome{}, false
	}
	r.loading = false

	candidates := resp.Candidates
	if resp.Err != nil {
		candidates = nil
	}

	switch len(candidates) {
	case 0:
		if resp.Request.Fallback == "" {
			return Outcome{Kind: NoMatch}, true
		}
		return Outcome{Kind: SingleMatch, ReserveID: resp.Request.Fallback, FromFallback: true}, true
	case 1:
		return Outcome{Kind: SingleMatch, ReserveID: candidates[0].ID}, true
	default:
		items := make([]reserve.Summary, len(candidates))
		copy(items, candidates)
		return Outcome{Kind: MultipleMatches, Candidates: items, Anchor: resp.Request.Anchor}, true
	}
}

// Cancel invalidates any in-flight lookup.
func (r *Resolver) Cancel() {
	r.generation++
	r.loading = false
}

// Loading reports whether the latest lookup is still in flight.
func (r *Resolver) Loading() bool { return r.loading }
