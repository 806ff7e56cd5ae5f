// Package filter holds the map filter state and decides which tile features are shown.
package filter

import (
	"strconv"
	"strings"
)

// ProtectionLevel is one of the nine categories a raw protect_class code is bucketed into.
type ProtectionLevel string

// Protection levels.
const (
	ProtectionStrict                        ProtectionLevel = "strict"
	ProtectionNationalPark                  ProtectionLevel = "national_park"
	ProtectionHabitatMonument               ProtectionLevel = "habitat_monument"
	ProtectionLandscapeSustainable          ProtectionLevel = "landscape_sustainable"
	ProtectionEUInternational               ProtectionLevel = "eu_international"
	ProtectionInternationalIntercontinental ProtectionLevel = "international_intercontinental"
	ProtectionResource                      ProtectionLevel = "resource"
	ProtectionSocialCultural                ProtectionLevel = "social_cultural"
	ProtectionOther                         ProtectionLevel = "other"
)

var protectionLabels = map[ProtectionLevel]string{
	ProtectionStrict:                        "Strict nature reserve",
	ProtectionNationalPark:                  "National park",
	ProtectionHabitatMonument:               "Habitat or natural monument",
	ProtectionLandscapeSustainable:          "Protected landscape or sustainable use",
	ProtectionEUInternational:               "EU / international protection",
	ProtectionInternationalIntercontinental: "International / intercontinental",
	ProtectionResource:                      "Resource protection",
	ProtectionSocialCultural:                "Social or cultural protection",
	ProtectionOther:                         "Other protection",
}

// ProtectionLevels returns every level in legend order.
func ProtectionLevels() []ProtectionLevel {
	return []ProtectionLevel{
		ProtectionStrict,
		ProtectionNationalPark,
		ProtectionHabitatMonument,
		ProtectionLandscapeSustainable,
		ProtectionEUInternational,
		ProtectionInternationalIntercontinental,
		ProtectionResource,
		ProtectionSocialCultural,
		ProtectionOther,
	}
}

// Valid reports whether l is one of the nine levels.
func (l ProtectionLevel) Valid() bool {
	_, ok := protectionLabels[l]
	return ok
}

// Label returns the human readable legend label.
func (l ProtectionLevel) Label() string {
	return protectionLabels[l]
}

// ParseProtectionLevel parses a level tag such as "national_park".
func ParseProtectionLevel(s string) (ProtectionLevel, bool) {
	l := ProtectionLevel(s)
	if !l.Valid() {
		return "", false
	}
	return l, true
}

// ClassifyProtection buckets a raw protect_class code. The second return value is
// false when the code is empty, meaning the reserve has no category at all.
// Any other unrecognised value is classified as ProtectionOther.
func ClassifyProtection(code string) (ProtectionLevel, bool) {
	c := strings.ToLower(strings.TrimSpace(code))
	if c == "" {
		return "", false
	}

	switch c {
	case "1a", "1b", "1":
		return ProtectionStrict, true
	case "2":
		return ProtectionNationalPark, true
	case "3", "4":
		return ProtectionHabitatMonument, true
	case "5", "6":
		return ProtectionLandscapeSustainable, true
	case "97":
		return ProtectionEUInternational, true
	case "98":
		return ProtectionInternationalIntercontinental, true
	}

	if n, err := strconv.Atoi(c); err == nil {
		switch {
		case n >= 11 && n <= 19:
			return ProtectionResource, true
		case n >= 21 && n <= 29:
			return ProtectionSocialCultural, true
		}
	}

	return ProtectionOther, true
}
