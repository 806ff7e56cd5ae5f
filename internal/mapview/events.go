package mapview

import (
	"github.com/reservemap/reservemap/internal/detail"
	"github.com/reservemap/reservemap/internal/filter"
	"github.com/reservemap/reservemap/internal/pointresolve"
	"github.com/reservemap/reservemap/internal/reserve"
	"github.com/reservemap/reservemap/internal/search"
	"github.com/reservemap/reservemap/internal/viewport"
)

// Event is an input to Controller.Handle: either a user intent or the result of
// a Command.
type Event interface {
	eventName() string
}

// CameraSettled is emitted by the map once a pan or zoom has come to rest.
type CameraSettled struct{ Camera viewport.Camera }

// OperatorSelected sets the operator filter; a nil ID clears it.
type OperatorSelected struct{ ID *int64 }

// ProtectionLevelSelected sets the protection level filter; empty clears it.
type ProtectionLevelSelected struct{ Level filter.ProtectionLevel }

// SourceSelected sets the source filter; empty clears it.
type SourceSelected struct{ Source filter.Source }

// FiltersCleared removes every filter.
type FiltersCleared struct{}

// SearchTyped carries the search box text after a keystroke.
type SearchTyped struct{ Text string }

// SearchResultChosen selects a search result.
type SearchResultChosen struct{ ID string }

// MapClicked is a click on the map.
type MapClicked struct{ Click pointresolve.Click }

// PickerChosen selects one of the picker candidates.
type PickerChosen struct{ ID string }

// PickerDismissed closes the picker without a choice.
type PickerDismissed struct{}

// SidebarClosed closes the detail panel.
type SidebarClosed struct{}

// ViewportResized reports the map's new pixel size.
type ViewportResized struct{ Size viewport.Size }

// SearchDebounced reports that a debounce window has elapsed.
type SearchDebounced struct{ Token uint64 }

// SearchCompleted carries a search response.
type SearchCompleted struct{ Response search.Response }

// PointResolved carries an at-point lookup response.
type PointResolved struct{ Response pointresolve.Response }

// DetailLoaded carries a detail response.
type DetailLoaded struct{ Response detail.Response }

// OperatorsLoaded carries the operator list.
type OperatorsLoaded struct {
	Operators []reserve.Operator
	Err       error
}

// ConfigLoaded carries the backend configuration.
type ConfigLoaded struct {
	Config reserve.BackendConfig
	Err    error
}

func (CameraSettled) eventName() string           { return "camera_settled" }
func (OperatorSelected) eventName() string        { return "set_operator" }
func (ProtectionLevelSelected) eventName() string { return "set_protection_level" }
func (SourceSelected) eventName() string          { return "set_source" }
func (FiltersCleared) eventName() string          { return "clear_filters" }
func (SearchTyped) eventName() string             { return "search_input" }
func (SearchResultChosen) eventName() string      { return "search_select" }
func (MapClicked) eventName() string              { return "map_click" }
func (PickerChosen) eventName() string            { return "picker_choose" }
func (PickerDismissed) eventName() string         { return "picker_dismiss" }
func (SidebarClosed) eventName() string           { return "sidebar_close" }
func (ViewportResized) eventName() string         { return "viewport_resized" }
func (SearchDebounced) eventName() string         { return "search_debounced" }
func (SearchCompleted) eventName() string         { return "search_completed" }
func (PointResolved) eventName() string           { return "point_resolved" }
func (DetailLoaded) eventName() string            { return "detail_loaded" }
func (OperatorsLoaded) eventName() string         { return "operators_loaded" }
func (ConfigLoaded) eventName() string            { return "config_loaded" }

// EventName returns the stable name of ev, used in logs and metrics.
func EventName(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.eventName()
}
