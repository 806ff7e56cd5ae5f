package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reservemap/reservemap/internal/api/models"
	"github.com/reservemap/reservemap/internal/filter"
	"github.com/reservemap/reservemap/internal/mapview"
	"github.com/reservemap/reservemap/internal/pointresolve"
	"github.com/reservemap/reservemap/internal/viewport"
)

func decodeIntent(t *testing.T, body string) models.Intent {
	t.Helper()
	var in models.Intent
	require.NoError(t, json.Unmarshal([]byte(body), &in))
	return in
}

func TestIntent_Event(t *testing.T) {
	op := int64(12)
	tests := []struct {
		name string
		body string
		want mapview.Event
	}{
		{"camera", `{"type":"camera_settled","lat":52.1,"lng":5.3,"zoom":9}`, mapview.CameraSettled{Camera: viewport.Camera{Lat: 52.1, Lon: 5.3, Zoom: 9}}},
		{"operator", `{"type":"set_operator","operatorId":12}`, mapview.OperatorSelected{ID: &op}},
		{"operator cleared", `{"type":"set_operator","operatorId":null}`, mapview.OperatorSelected{}},
		{"protection", `{"type":"set_protection_level","level":"national_park"}`, mapview.ProtectionLevelSelected{Level: filter.ProtectionNationalPark}},
		{"protection cleared", `{"type":"set_protection_level"}`, mapview.ProtectionLevelSelected{}},
		{"source", `{"type":"set_source","source":"wdpa"}`, mapview.SourceSelected{Source: filter.SourceWDPA}},
		{"clear", `{"type":"clear_filters"}`, mapview.FiltersCleared{}},
		{"search", `{"type":"search_input","text":"velu"}`, mapview.SearchTyped{Text: "velu"}},
		{"search select", `{"type":"search_select","reserveId":"way_1"}`, mapview.SearchResultChosen{ID: "way_1"}},
		{"picker", `{"type":"picker_choose","reserveId":"way_2"}`, mapview.PickerChosen{ID: "way_2"}},
		{"picker dismiss", `{"type":"picker_dismiss"}`, mapview.PickerDismissed{}},
		{"sidebar", `{"type":"sidebar_close"}`, mapview.SidebarClosed{}},
		{"resize", `{"type":"viewport_resized","width":800,"height":600}`, mapview.ViewportResized{Size: viewport.Size{Width: 800, Height: 600}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, errs := decodeIntent(t, tt.body).Event()
			require.Empty(t, errs)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestIntent_MapClick(t *testing.T) {
	ev, errs := decodeIntent(t, `{"type":"map_click","lat":52.4,"lng":5.3,"screen":{"x":10,"y":20},"feature":{"id":"123","osmType":"relation"}}`).Event()
	require.Empty(t, errs)

	click, ok := ev.(mapview.MapClicked)
	require.True(t, ok)
	assert.InDelta(t, 5.3, click.Click.Point.Lon(), 1e-9)
	assert.InDelta(t, 52.4, click.Click.Point.Lat(), 1e-9)
	assert.Equal(t, &viewport.ScreenPoint{X: 10, Y: 20}, click.Click.Screen)
	assert.Equal(t, &pointresolve.HitFeature{ID: "123", OSMType: "relation"}, click.Click.Feature)

	ev, errs = decodeIntent(t, `{"type":"map_click","lat":52.4,"lng":5.3,"feature":{"id":""}}`).Event()
	require.Empty(t, errs)
	assert.Nil(t, ev.(mapview.MapClicked).Click.Feature)
}

func TestIntent_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing type", `{}`, "type"},
		{"unknown type", `{"type":"fly"}`, "type"},
		{"camera missing zoom", `{"type":"camera_settled","lat":1,"lng":2}`, "zoom"},
		{"camera zoom high", `{"type":"camera_settled","lat":1,"lng":2,"zoom":23}`, "zoom"},
		{"camera lat range", `{"type":"camera_settled","lat":91,"lng":2,"zoom":3}`, "lat"},
		{"click missing lng", `{"type":"map_click","lat":1}`, "lng"},
		{"operator zero", `{"type":"set_operator","operatorId":0}`, "operatorId"},
		{"operator negative", `{"type":"set_operator","operatorId":-3}`, "operatorId"},
		{"unknown level", `{"type":"set_protection_level","level":"secret"}`, "level"},
		{"unknown source", `{"type":"set_source","source":"osm2"}`, "source"},
		{"select without id", `{"type":"search_select"}`, "reserveId"},
		{"resize zero", `{"type":"viewport_resized","width":0,"height":10}`, "width"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, errs := decodeIntent(t, tt.body).Event()
			assert.Nil(t, ev)
			require.NotEmpty(t, errs)
			fields := make([]string, len(errs))
			for i, e := range errs {
				fields[i] = e.Field
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestCreateSessionRequest_Validate(t *testing.T) {
	assert.Empty(t, models.CreateSessionRequest{URL: "https://map.example/?zoom=3"}.Validate())

	errs := models.CreateSessionRequest{URL: " ", Viewport: &viewport.Size{Width: -1}}.Validate()
	require.Len(t, errs, 2)
	assert.Equal(t, "url", errs[0].Field)
	assert.Equal(t, "viewport", errs[1].Field)
}
