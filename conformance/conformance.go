// Package conformance identifies STAC API conformance classes and maps them
// to registered check batteries.
package conformance

import "regexp"

// Class identifies a conformance class, independent of the specification
// version embedded in the advertised URI.
type Class string

// Known conformance classes.
const (
	Core        Class = "core"
	Browseable  Class = "browseable"
	Children    Class = "children"
	Features    Class = "ogcapi-features"
	ItemSearch  Class = "item-search"
	Fields      Class = "item-search#fields"
	Sort        Class = "item-search#sort"
	Query       Class = "item-search#query"
	Filter      Class = "item-search#filter"
	Transaction Class = "transaction"
	Unknown     Class = "unknown"
)

// Advertised conformance URIs carry a version segment
// (e.g. https://api.stacspec.org/v1.0.0/core), so matching is by pattern
// rather than exact string.
var classPatterns = []struct {
	class   Class
	pattern *regexp.Regexp
}{
	{Transaction, regexp.MustCompile(`^https://api\.stacspec\.org/.+/ogcapi-features/extensions/transaction$`)},
	{Features, regexp.MustCompile(`^https://api\.stacspec\.org/.+/ogcapi-features$`)},
	{Fields, regexp.MustCompile(`^https://api\.stacspec\.org/.+/item-search#fields$`)},
	{Sort, regexp.MustCompile(`^https://api\.stacspec\.org/.+/item-search#sort$`)},
	{Query, regexp.MustCompile(`^https://api\.stacspec\.org/.+/item-search#query$`)},
	{Filter, regexp.MustCompile(`^https://api\.stacspec\.org/.+/item-search#filter$`)},
	{ItemSearch, regexp.MustCompile(`^https://api\.stacspec\.org/.+/item-search$`)},
	{Children, regexp.MustCompile(`^https://api\.stacspec\.org/.+/children$`)},
	{Browseable, regexp.MustCompile(`^https://api\.stacspec\.org/.+/browseable$`)},
	{Core, regexp.MustCompile(`^https://api\.stacspec\.org/.+/core$`)},
}

// Classify maps an advertised conformance URI to a known class.
// Unrecognized URIs classify as Unknown; they are retained and later
// reported, never treated as an error.
func Classify(uri string) Class {
	for _, cp := range classPatterns {
		if cp.pattern.MatchString(uri) {
			return cp.class
		}
	}
	return Unknown
}

// String returns the class identifier.
func (c Class) String() string {
	return string(c)
}

// URI returns the canonical conformance URI for the class at the given
// specification version.
func (c Class) URI(version string) string {
	switch c {
	case Transaction:
		return "https://api.stacspec.org/v" + version + "/ogcapi-features/extensions/transaction"
	case Unknown:
		return ""
	default:
		return "https://api.stacspec.org/v" + version + "/" + string(c)
	}
}
