package mapview

import (
	"github.com/paulmach/orb/geojson"

	"github.com/reservemap/reservemap/internal/filter"
	"github.com/reservemap/reservemap/internal/reserve"
	"github.com/reservemap/reservemap/internal/viewport"
)

// ViewState is an immutable snapshot of everything the page renders.
type ViewState struct {
	Camera       viewport.Camera    `json:"camera"`
	Viewport     viewport.Size      `json:"viewport"`
	Filters      filter.State       `json:"filters"`
	Operators    []reserve.Operator `json:"operators"`
	Legend       []LegendEntry      `json:"legend"`
	MaxTileZoom  int                `json:"maxTileZoom"`
	TileRevision uint64             `json:"tileRevision"`
	Search       SearchView         `json:"search"`
	Picker       PickerView         `json:"picker"`
	PointLoading bool               `json:"pointLoading"`
	Sidebar      SidebarView        `json:"sidebar"`

	// Highlight is the selected reserve's outline, nil while nothing is selected.
	Highlight *geojson.Geometry `json:"highlight"`

	// URL is the canonical page URL for this state.
	URL string `json:"url"`
}

// LegendEntry is one protection category in the map legend.
type LegendEntry struct {
	Level filter.ProtectionLevel `json:"level"`
	Label string                 `json:"label"`
	Style filter.StyleToken      `json:"style"`
}

// SearchView is the search box state.
type SearchView struct {
	Query   string            `json:"query"`
	Results []reserve.Summary `json:"results"`
	Loading bool              `json:"loading"`
}

// PickerView lists candidates for an ambiguous click.
type PickerView struct {
	Open   bool                  `json:"open"`
	Items  []reserve.Summary     `json:"items"`
	Anchor *viewport.ScreenPoint `json:"anchor"`
}

// SidebarView is the detail panel.
type SidebarView struct {
	Open      bool        `json:"open"`
	ReserveID string      `json:"reserveId,omitempty"`
	Loading   bool        `json:"loading"`
	Error     string      `json:"error,omitempty"`
	Detail    *DetailView `json:"detail"`
}

// DetailView is a reserve detail prepared for display.
type DetailView struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	AreaType        string                 `json:"areaType"`
	ProtectClass    string                 `json:"protectClass,omitempty"`
	ProtectionLevel filter.ProtectionLevel `json:"protectionLevel,omitempty"`
	ProtectionLabel string                 `json:"protectionLabel,omitempty"`
	Tags            map[string]any         `json:"tags"`
	Operators       []reserve.Operator     `json:"operators"`
}

func newDetailView(d *reserve.Detail) *DetailView {
	v := &DetailView{
		ID:           d.ID,
		Name:         d.DisplayName(),
		AreaType:     d.AreaType,
		ProtectClass: d.ProtectClass,
		Tags:         d.Tags,
		Operators:    d.Operators,
	}
	if v.Tags == nil {
		v.Tags = map[string]any{}
	}
	if v.Operators == nil {
		v.Operators = []reserve.Operator{}
	}
	if level, ok := filter.ClassifyProtection(d.ProtectClass); ok {
		v.ProtectionLevel = level
		v.ProtectionLabel = level.Label()
	}
	return v
}

func legend() []LegendEntry {
	levels := filter.ProtectionLevels()
	out := make([]LegendEntry, len(levels))
	for i, l := range levels {
		out[i] = LegendEntry{Level: l, Label: l.Label(), Style: filter.StyleToken(l)}
	}
	return out
}
