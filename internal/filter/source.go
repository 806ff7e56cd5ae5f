package filter

// Source identifies where a reserve's geometry was imported from.
type Source string

// Known sources.
const (
	SourceOSM  Source = "osm"
	SourceWDPA Source = "wdpa"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceOSM || s == SourceWDPA
}

// ParseSource parses a source tag. Matching is exact and case-sensitive.
func ParseSource(s string) (Source, bool) {
	src := Source(s)
	if !src.Valid() {
		return "", false
	}
	return src, true
}
