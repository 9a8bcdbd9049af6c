// Package stac holds the STAC document model used by the validator: the
// landing page, typed links, the tagged document variants, and the search
// request encodings.
package stac

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Media types the specification prescribes for linked resources.
const (
	MediaTypeJSON           = "application/json"
	MediaTypeGeoJSON        = "application/geo+json"
	MediaTypeGeoJSONCharset = "application/geo+json; charset=utf-8"
	MediaTypeOpenAPI        = "application/vnd.oai.openapi+json;version=3.0"
	MediaTypeHTML           = "text/html"
)

// Common link relations.
const (
	RelSelf        = "self"
	RelRoot        = "root"
	RelSearch      = "search"
	RelData        = "data"
	RelChildren    = "children"
	RelChild       = "child"
	RelConformance = "conformance"
	RelServiceDesc = "service-desc"
	RelServiceDoc  = "service-doc"
	RelNext        = "next"
	RelCollections = "collections"
)

// Link is a typed link from a STAC document.
type Link struct {
	Rel    string `json:"rel"`
	Href   string `json:"href"`
	Type   string `json:"type,omitempty"`
	Title  string `json:"title,omitempty"`
	Method string `json:"method,omitempty"`

	// Body carries POST pagination parameters when present.
	Body map[string]any `json:"body,omitempty"`
}

// RootDocument is the deployment's landing page: the advertised conformance
// URIs plus the set of typed links the validator navigates from.
type RootDocument struct {
	Type        string   `json:"type,omitempty"`
	ID          string   `json:"id,omitempty"`
	STACVersion string   `json:"stac_version,omitempty"`
	Description string   `json:"description,omitempty"`
	ConformsTo  []string `json:"conformsTo"`
	Links       []Link   `json:"links"`
}

// ParseRootDocument decodes a landing page.
func ParseRootDocument(data []byte) (*RootDocument, error) {
	var doc RootDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding landing page: %w", err)
	}
	return &doc, nil
}

// Link returns the first link with the given relation, or nil.
func (d *RootDocument) Link(rel string) *Link {
	for i := range d.Links {
		if d.Links[i].Rel == rel {
			return &d.Links[i]
		}
	}
	return nil
}

// LinkMap maps link relations to resolved hrefs. Hrefs resolve against the
// base URL so relative links work; relations absent from the landing page
// can fall back to specification-default paths.
type LinkMap struct {
	base  *url.URL
	hrefs map[string]string
}

// NewLinkMap builds a link map from a landing page. The first link wins for
// a repeated relation.
func NewLinkMap(baseURL string, links []Link) (*LinkMap, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", baseURL, err)
	}

	hrefs := make(map[string]string, len(links))
	for _, l := range links {
		if _, ok := hrefs[l.Rel]; ok {
			continue
		}
		ref, err := url.Parse(l.Href)
		if err != nil {
			continue
		}
		hrefs[l.Rel] = base.ResolveReference(ref).String()
	}

	return &LinkMap{base: base, hrefs: hrefs}, nil
}

// Href returns the resolved href for a relation. ok is false when the
// landing page does not carry the relation.
func (m *LinkMap) Href(rel string) (string, bool) {
	href, ok := m.hrefs[rel]
	return href, ok
}

// specDefaults are the well-known endpoint paths the specification assigns
// to each relation, used when the landing page omits the link.
var specDefaults = map[string]string{
	RelSearch:      "/search",
	RelData:        "/collections",
	RelConformance: "/conformance",
	RelChildren:    "/children",
}

// HrefOrDefault returns the resolved href for a relation, falling back to
// the specification-default path when the link is absent. fromLink reports
// whether the href came from an advertised link.
func (m *LinkMap) HrefOrDefault(rel string) (href string, fromLink bool) {
	if href, ok := m.hrefs[rel]; ok {
		return href, true
	}
	path, ok := specDefaults[rel]
	if !ok {
		return "", false
	}
	u := *m.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), false
}

// Resolve resolves an href against the base URL. A malformed href is
// returned unchanged; the probe layer will surface the error.
func (m *LinkMap) Resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return m.base.ResolveReference(ref).String()
}

// Rels returns all relations present in the map.
func (m *LinkMap) Rels() []string {
	rels := make([]string, 0, len(m.hrefs))
	for rel := range m.hrefs {
		rels = append(rels, rel)
	}
	return rels
}
