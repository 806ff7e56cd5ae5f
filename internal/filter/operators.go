package filter

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// OperatorEncoding tells how an operator_ids attribute arrived from the tile source.
type OperatorEncoding uint8

// Operator id encodings.
const (
	OperatorsAbsent OperatorEncoding = iota
	OperatorsList
	OperatorsJSON
	OperatorsCSV
	OperatorsScalar
)

// RawOperatorIDs is the undecoded operator_ids attribute. It is built once at the
// tile ingestion boundary by ClassifyOperatorIDs and decoded by Decode.
type RawOperatorIDs struct {
	Encoding OperatorEncoding
	list     []any
	text     string
	scalar   any
}

// ClassifyOperatorIDs inspects the attribute value and records its encoding.
func ClassifyOperatorIDs(v any) RawOperatorIDs {
	switch t := v.(type) {
	case nil:
		return RawOperatorIDs{Encoding: OperatorsAbsent}
	case []any:
		return RawOperatorIDs{Encoding: OperatorsList, list: t}
	case []int64:
		list := make([]any, len(t))
		for i, n := range t {
			list[i] = n
		}
		return RawOperatorIDs{Encoding: OperatorsList, list: list}
	case []int:
		list := make([]any, len(t))
		for i, n := range t {
			list[i] = n
		}
		return RawOperatorIDs{Encoding: OperatorsList, list: list}
	case []float64:
		list := make([]any, len(t))
		for i, n := range t {
			list[i] = n
		}
		return RawOperatorIDs{Encoding: OperatorsList, list: list}
	case string:
		s := strings.TrimSpace(t)
		switch {
		case s == "":
			return RawOperatorIDs{Encoding: OperatorsAbsent}
		case strings.HasPrefix(s, "["):
			return RawOperatorIDs{Encoding: OperatorsJSON, text: s}
		default:
			return RawOperatorIDs{Encoding: OperatorsCSV, text: s}
		}
	default:
		return RawOperatorIDs{Encoding: OperatorsScalar, scalar: t}
	}
}

// Decode returns the well-formed integer ids. Malformed entries are dropped and
// malformed input as a whole yields an empty slice; it never fails.
func (r RawOperatorIDs) Decode() []int64 {
	switch r.Encoding {
	case OperatorsList:
		return coerceAll(r.list)
	case OperatorsJSON:
		var values []any
		dec := json.NewDecoder(strings.NewReader(r.text))
		dec.UseNumber()
		if err := dec.Decode(&values); err != nil {
			return []int64{}
		}
		return coerceAll(values)
	case OperatorsCSV:
		parts := strings.Split(r.text, ",")
		ids := make([]int64, 0, len(parts))
		for _, p := range parts {
			if id, ok := coerceID(strings.TrimSpace(p)); ok {
				ids = append(ids, id)
			}
		}
		return ids
	case OperatorsScalar:
		if id, ok := coerceID(r.scalar); ok {
			return []int64{id}
		}
	}
	return []int64{}
}

// ParseOperatorIDs classifies and decodes an operator_ids attribute in one step.
func ParseOperatorIDs(v any) []int64 {
	return ClassifyOperatorIDs(v).Decode()
}

func coerceAll(values []any) []int64 {
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		if id, ok := coerceID(v); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// coerceID converts a scalar to an integer id. Non-numeric, fractional and
// non-finite values are rejected.
func coerceID(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return floatID(float64(n))
	case float64:
		return floatID(n)
	case json.Number:
		return coerceID(n.String())
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			return id, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return floatID(f)
	}
	return 0, false
}

func floatID(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if f >= 0x1p63 || f < -0x1p63 {
		return 0, false
	}
	return int64(f), true
}
