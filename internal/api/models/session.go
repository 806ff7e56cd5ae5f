package models

import (
	"math"
	"strings"

	"github.com/paulmach/orb"

	"github.com/reservemap/reservemap/internal/filter"
	"github.com/reservemap/reservemap/internal/mapview"
	"github.com/reservemap/reservemap/internal/pointresolve"
	"github.com/reservemap/reservemap/internal/viewport"
)

// CreateSessionRequest opens a map view for a page URL.
type CreateSessionRequest struct {
	// URL is the page URL including its query string. It is read once.
	URL      string         `json:"url"`
	Viewport *viewport.Size `json:"viewport,omitempty"`
}

// Validate reports field errors.
func (r CreateSessionRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.URL) == "" {
		errs = append(errs, FieldError{Field: "url", Message: "required", Code: CodeRequired})
	}
	if r.Viewport != nil && (!finite(r.Viewport.Width) || !finite(r.Viewport.Height) || r.Viewport.Width < 0 || r.Viewport.Height < 0) {
		errs = append(errs, FieldError{Field: "viewport", Message: "width and height must be non-negative", Code: CodeOutOfRange})
	}
	return errs
}

// SessionCreated is returned when a session opens.
type SessionCreated struct {
	SessionID string            `json:"sessionId"`
	Token     string            `json:"token"`
	ExpiresAt Timestamp         `json:"expiresAt"`
	State     mapview.ViewState `json:"state"`
}

// SessionState is a published view state.
type SessionState struct {
	Version uint64            `json:"version"`
	State   mapview.ViewState `json:"state"`
}

// Intent types accepted by the events endpoint.
const (
	IntentCameraSettled   = "camera_settled"
	IntentSetOperator     = "set_operator"
	IntentSetProtection   = "set_protection_level"
	IntentSetSource       = "set_source"
	IntentClearFilters    = "clear_filters"
	IntentSearchInput     = "search_input"
	IntentSearchSelect    = "search_select"
	IntentMapClick        = "map_click"
	IntentPickerChoose    = "picker_choose"
	IntentPickerDismiss   = "picker_dismiss"
	IntentSidebarClose    = "sidebar_close"
	IntentViewportResized = "viewport_resized"
)

// Intent is one user action posted by the page. Which fields apply depends on
// Type.
type Intent struct {
	Type string `json:"type"`

	// camera_settled, map_click
	Lat  *float64 `json:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
	Zoom *int     `json:"zoom,omitempty"`

	// set_operator; null clears.
	OperatorID *int64 `json:"operatorId,omitempty"`

	// set_protection_level, set_source; empty clears.
	Level  string `json:"level,omitempty"`
	Source string `json:"source,omitempty"`

	// search_input
	Text string `json:"text,omitempty"`

	// search_select, picker_choose
	ReserveID string `json:"reserveId,omitempty"`

	// map_click
	Screen  *viewport.ScreenPoint    `json:"screen,omitempty"`
	Feature *pointresolve.HitFeature `json:"feature,omitempty"`

	// viewport_resized
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Event converts the intent into a controller event, or returns the field
// errors that prevent it.
func (in Intent) Event() (mapview.Event, []FieldError) {
	switch in.Type {
	case IntentCameraSettled:
		cam, errs := in.camera()
		if errs != nil {
			return nil, errs
		}
		return mapview.CameraSettled{Camera: cam}, nil
	case IntentSetOperator:
		if (filter.State{OperatorID: in.OperatorID}).Validate() != nil {
			return nil, []FieldError{{Field: "operatorId", Message: "must be a positive integer", Code: CodeOutOfRange}}
		}
		return mapview.OperatorSelected{ID: in.OperatorID}, nil
	case IntentSetProtection:
		level := filter.ProtectionLevel(in.Level)
		if (filter.State{ProtectionLevel: level}).Validate() != nil {
			return nil, []FieldError{{Field: "level", Message: "unknown protection level", Code: CodeInvalid}}
		}
		return mapview.ProtectionLevelSelected{Level: level}, nil
	case IntentSetSource:
		src := filter.Source(in.Source)
		if (filter.State{Source: src}).Validate() != nil {
			return nil, []FieldError{{Field: "source", Message: "unknown source", Code: CodeInvalid}}
		}
		return mapview.SourceSelected{Source: src}, nil
	case IntentClearFilters:
		return mapview.FiltersCleared{}, nil
	case IntentSearchInput:
		return mapview.SearchTyped{Text: in.Text}, nil
	case IntentSearchSelect:
		if in.ReserveID == "" {
			return nil, []FieldError{{Field: "reserveId", Message: "required", Code: CodeRequired}}
		}
		return mapview.SearchResultChosen{ID: in.ReserveID}, nil
	case IntentMapClick:
		return in.click()
	case IntentPickerChoose:
		if in.ReserveID == "" {
			return nil, []FieldError{{Field: "reserveId", Message: "required", Code: CodeRequired}}
		}
		return mapview.PickerChosen{ID: in.ReserveID}, nil
	case IntentPickerDismiss:
		return mapview.PickerDismissed{}, nil
	case IntentSidebarClose:
		return mapview.SidebarClosed{}, nil
	case IntentViewportResized:
		if !finite(in.Width) || !finite(in.Height) || in.Width <= 0 || in.Height <= 0 {
			return nil, []FieldError{{Field: "width", Message: "width and height must be positive", Code: CodeOutOfRange}}
		}
		return mapview.ViewportResized{Size: viewport.Size{Width: in.Width, Height: in.Height}}, nil
	case "":
		return nil, []FieldError{{Field: "type", Message: "required", Code: CodeRequired}}
	}
	return nil, []FieldError{{Field: "type", Message: "unknown intent type " + in.Type, Code: CodeInvalid}}
}

func (in Intent) point() (orb.Point, []FieldError) {
	var errs []FieldError
	if in.Lat == nil {
		errs = append(errs, FieldError{Field: "lat", Message: "required", Code: CodeRequired})
	} else if !finite(*in.Lat) || *in.Lat < -90 || *in.Lat > 90 {
		errs = append(errs, FieldError{Field: "lat", Message: "must be between -90 and 90", Code: CodeOutOfRange})
	}
	if in.Lng == nil {
		errs = append(errs, FieldError{Field: "lng", Message: "required", Code: CodeRequired})
	} else if !finite(*in.Lng) || *in.Lng < -180 || *in.Lng > 180 {
		errs = append(errs, FieldError{Field: "lng", Message: "must be between -180 and 180", Code: CodeOutOfRange})
	}
	if errs != nil {
		return orb.Point{}, errs
	}
	return orb.Point{*in.Lng, *in.Lat}, nil
}

func (in Intent) camera() (viewport.Camera, []FieldError) {
	p, errs := in.point()
	if in.Zoom == nil {
		errs = append(errs, FieldError{Field: "zoom", Message: "required", Code: CodeRequired})
	} else if *in.Zoom < viewport.MinZoom || *in.Zoom > viewport.MaxZoom {
		errs = append(errs, FieldError{Field: "zoom", Message: "must be between 0 and 22", Code: CodeOutOfRange})
	}
	if errs != nil {
		return viewport.Camera{}, errs
	}
	return viewport.Camera{Lat: p.Lat(), Lon: p.Lon(), Zoom: *in.Zoom}, nil
}

func (in Intent) click() (mapview.Event, []FieldError) {
	p, errs := in.point()
	if errs != nil {
		return nil, errs
	}
	click := pointresolve.Click{Point: p, Screen: in.Screen}
	if in.Feature != nil && in.Feature.ID != "" {
		f := *in.Feature
		click.Feature = &f
	}
	return mapview.MapClicked{Click: click}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
