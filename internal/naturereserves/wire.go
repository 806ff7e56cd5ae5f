package naturereserves

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/reservemap/reservemap/internal/reserve"
)

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

type summaryData struct {
	ID       flexString `json:"id"`
	Name     *string    `json:"name"`
	AreaType string     `json:"area_type"`
}

func (s summaryData) toSummary() reserve.Summary {
	out := reserve.Summary{ID: string(s.ID), AreaType: s.AreaType}
	if s.Name != nil {
		out.Name = strings.TrimSpace(*s.Name)
	}
	return out
}

type operatorData struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ReserveCount int    `json:"reserve_count"`
}

type detailData struct {
	summaryData
	ProtectClass flexString        `json:"protect_class"`
	Tags         map[string]any    `json:"tags"`
	Operators    []operatorData    `json:"operators"`
	Geometry     *geojson.Geometry `json:"geometry"`
}

func (d detailData) toDetail() *reserve.Detail {
	out := &reserve.Detail{
		Summary:      d.summaryData.toSummary(),
		ProtectClass: strings.TrimSpace(string(d.ProtectClass)),
		Tags:         d.Tags,
		Operators:    make([]reserve.Operator, 0, len(d.Operators)),
	}
	if out.Tags == nil {
		out.Tags = map[string]any{}
	}
	if out.ProtectClass == "" {
		if v, ok := out.Tags["protect_class"]; ok {
			out.ProtectClass = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	for _, op := range d.Operators {
		out.Operators = append(out.Operators, reserve.Operator(op))
	}
	if d.Geometry != nil && d.Geometry.Coordinates != nil {
		out.Geometry = d.Geometry.Geometry()
	}
	return out
}

type configData struct {
	VectorTileMaxZoom int `json:"vector_tile_max_zoom"`
}

// decodeList decodes either a bare JSON array or a paginated {"results": [...]}
// envelope.
func decodeList[T any](data []byte) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}

	var items []T
	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var envelope struct {
		Results *[]T `json:"results"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	if envelope.Results == nil {
		return nil, errors.New("missing results")
	}
	return *envelope.Results, nil
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
