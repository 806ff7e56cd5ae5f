// Package tiles filters vector tiles for a viewer: every feature is evaluated
// against the viewer's filters, hidden features are dropped and visible ones are
// stamped with their paint style.
package tiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog"

	"github.com/reservemap/reservemap/internal/filter"
)

// Feature attributes added to every visible feature.
const (
	AttrStyle     = "style"
	AttrReserveID = "reserve_id"
)

var (
	// ErrEmpty is returned when no feature survives filtering.
	ErrEmpty = errors.New("empty tile")

	// ErrAboveMaxZoom is returned for zooms the source does not serve; the
	// client overzooms the parent tile instead.
	ErrAboveMaxZoom = errors.New("zoom above source maximum")

	// ErrInvalidTile is returned for coordinates outside the tile grid.
	ErrInvalidTile = errors.New("invalid tile coordinates")
)

var gzipMagic = []byte{0x1f, 0x8b}

// Source fetches raw tiles.
type Source interface {
	Tile(ctx context.Context, z, x, y uint32) ([]byte, error)
}

// RendererConfig holds configuration for a Renderer.
type RendererConfig struct {
	Source Source
	Logger zerolog.Logger
}

// Renderer produces filtered tiles.
type Renderer struct {
	source Source
	logger zerolog.Logger
}

// NewRenderer creates a renderer.
func NewRenderer(cfg RendererConfig) *Renderer {
	return &Renderer{source: cfg.Source, logger: cfg.Logger}
}

// Render fetches tile t and returns it re-encoded (uncompressed) with only the
// features visible under filters. Source errors are returned wrapped.
func (r *Renderer) Render(ctx context.Context, t maptile.Tile, filters filter.State, maxZoom int) ([]byte, error) {
	if maxZoom > 0 && int(t.Z) > maxZoom {
		return nil, ErrAboveMaxZoom
	}
	if !valid(t) {
		return nil, ErrInvalidTile
	}

	raw, err := r.source.Tile(ctx, uint32(t.Z), t.X, t.Y)
	if err != nil {
		return nil, fmt.Errorf("fetch tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
	}

	layers, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
	}

	layers, kept, total := Filter(layers, filters)
	r.logger.Debug().
		Uint32("z", uint32(t.Z)).
		Uint32("x", t.X).
		Uint32("y", t.Y).
		Int("features", total).
		Int("visible", kept).
		Msg("tile filtered")

	if kept == 0 {
		return nil, ErrEmpty
	}

	out, err := mvt.Marshal(layers)
	if err != nil {
		return nil, fmt.Errorf("encode tile: %w", err)
	}
	return out, nil
}

// Filter returns the layers with hidden features removed and visible ones
// stamped with their style and normalized reserve id. Layers left without
// features are dropped. Features are modified in place.
func Filter(layers mvt.Layers, filters filter.State) (out mvt.Layers, kept, total int) {
	out = make(mvt.Layers, 0, len(layers))
	for _, layer := range layers {
		features := layer.Features[:0]
		for _, f := range layer.Features {
			total++
			if f.Properties == nil {
				f.Properties = geojson.Properties{}
			}
			tf := filter.FeatureFromProperties(f.ID, f.Properties)
			v := filter.Evaluate(tf, filters)
			if !v.Visible {
				continue
			}
			f.Properties[AttrStyle] = string(v.Style)
			if tf.ID != "" {
				f.Properties[AttrReserveID] = tf.ID
			}
			features = append(features, f)
		}
		layer.Features = features
		if len(features) > 0 {
			out = append(out, layer)
			kept += len(features)
		}
	}
	return out, kept, total
}

func decode(raw []byte) (mvt.Layers, error) {
	if bytes.HasPrefix(raw, gzipMagic) {
		return mvt.UnmarshalGzipped(raw)
	}
	return mvt.Unmarshal(raw)
}

func valid(t maptile.Tile) bool {
	if t.Z > 30 {
		return false
	}
	n := uint64(1) << uint64(t.Z)
	return uint64(t.X) < n && uint64(t.Y) < n
}
