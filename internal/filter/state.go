package filter

import (
	"errors"
	"fmt"
)

// ErrInvalidFilter is returned by State.Validate for out-of-domain values.
var ErrInvalidFilter = errors.New("invalid filter")

// State holds the independent filter dimensions and the search text.
// A zero value for a dimension means "absent": no constraint.
type State struct {
	// OperatorID restricts to reserves managed by one operator; nil when absent.
	OperatorID *int64 `json:"operatorId,omitempty"`

	ProtectionLevel ProtectionLevel `json:"protectionLevel,omitempty"`
	Source          Source          `json:"source,omitempty"`
	SearchText      string          `json:"searchText,omitempty"`
}

// Validate checks that every present dimension holds a value from its domain.
func (s State) Validate() error {
	if s.OperatorID != nil && *s.OperatorID <= 0 {
		return fmt.Errorf("%w: operator id %d", ErrInvalidFilter, *s.OperatorID)
	}
	if s.ProtectionLevel != "" && !s.ProtectionLevel.Valid() {
		return fmt.Errorf("%w: protection level %q", ErrInvalidFilter, s.ProtectionLevel)
	}
	if s.Source != "" && !s.Source.Valid() {
		return fmt.Errorf("%w: source %q", ErrInvalidFilter, s.Source)
	}
	return nil
}

// Active reports whether any filter dimension constrains the map.
func (s State) Active() bool {
	return s.OperatorID != nil || s.ProtectionLevel != "" || s.Source != ""
}

// SameDimensions reports whether s and o constrain the map identically.
// The search text is not a map dimension and is ignored.
func (s State) SameDimensions(o State) bool {
	if (s.OperatorID == nil) != (o.OperatorID == nil) {
		return false
	}
	if s.OperatorID != nil && *s.OperatorID != *o.OperatorID {
		return false
	}
	return s.ProtectionLevel == o.ProtectionLevel && s.Source == o.Source
}

// WithOperator returns a copy of s constrained to operator id, or cleared when id is nil.
func (s State) WithOperator(id *int64) State {
	if id == nil {
		s.OperatorID = nil
		return s
	}
	v := *id
	s.OperatorID = &v
	return s
}

// OperatorPtr is a helper for building operator filters.
func OperatorPtr(id int64) *int64 {
	return &id
}
