package reserve

import (
	"regexp"
	"strings"
)

var (
	prefixedID = regexp.MustCompile(`^(way_|relation_)\d+`)
	numericID  = regexp.MustCompile(`^\d+$`)
)

// NormalizeID maps the id shapes used by geometry sources onto reserve ids.
//
// Ids already prefixed with "way_" or "relation_" are returned unchanged. Bare
// numeric ids are prefixed according to osmType ("relation" gives "relation_",
// anything else "way_"). Every other value is an opaque external id and is
// returned as is.
func NormalizeID(raw, osmType string) string {
	if prefixedID.MatchString(raw) {
		return raw
	}
	if numericID.MatchString(raw) {
		if strings.EqualFold(strings.TrimSpace(osmType), "relation") {
			return "relation_" + raw
		}
		return "way_" + raw
	}
	return raw
}
