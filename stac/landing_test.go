package stac

import "testing"

const landingFixture = `{
	"type": "Catalog",
	"id": "example",
	"stac_version": "1.0.0",
	"description": "Example catalog",
	"conformsTo": [
		"https://api.stacspec.org/v1.0.0/core",
		"https://api.stacspec.org/v1.0.0/item-search"
	],
	"links": [
		{"rel": "self", "href": "https://example.com/", "type": "application/json"},
		{"rel": "root", "href": "https://example.com/", "type": "application/json"},
		{"rel": "search", "href": "/search", "type": "application/geo+json"},
		{"rel": "search", "href": "/search-duplicate", "type": "application/geo+json"},
		{"rel": "data", "href": "https://example.com/collections", "type": "application/json"}
	]
}`

func TestParseRootDocument(t *testing.T) {
	doc, err := ParseRootDocument([]byte(landingFixture))
	if err != nil {
		t.Fatalf("ParseRootDocument failed: %v", err)
	}

	if len(doc.ConformsTo) != 2 {
		t.Errorf("len(ConformsTo) = %d; want 2", len(doc.ConformsTo))
	}
	if link := doc.Link("search"); link == nil || link.Href != "/search" {
		t.Errorf("Link(search) = %+v; want first declared link", link)
	}
	if doc.Link("no-such-rel") != nil {
		t.Error("Link for an absent rel should be nil")
	}
}

func TestLinkMapResolvesRelativeHrefs(t *testing.T) {
	doc, err := ParseRootDocument([]byte(landingFixture))
	if err != nil {
		t.Fatalf("ParseRootDocument failed: %v", err)
	}
	links, err := NewLinkMap("https://example.com/", doc.Links)
	if err != nil {
		t.Fatalf("NewLinkMap failed: %v", err)
	}

	href, ok := links.Href(RelSearch)
	if !ok {
		t.Fatal("search link should be present")
	}
	if href != "https://example.com/search" {
		t.Errorf("search href = %q; want the first link, resolved", href)
	}

	if href := links.Resolve("items/a-1"); href != "https://example.com/items/a-1" {
		t.Errorf("Resolve = %q", href)
	}
}

func TestLinkMapDefaults(t *testing.T) {
	links, err := NewLinkMap("https://example.com/stac", nil)
	if err != nil {
		t.Fatalf("NewLinkMap failed: %v", err)
	}

	tests := []struct {
		rel  string
		want string
	}{
		{RelSearch, "https://example.com/stac/search"},
		{RelData, "https://example.com/stac/collections"},
		{RelConformance, "https://example.com/stac/conformance"},
		{RelChildren, "https://example.com/stac/children"},
	}
	for _, tt := range tests {
		href, fromLink := links.HrefOrDefault(tt.rel)
		if fromLink {
			t.Errorf("HrefOrDefault(%s) should report fallback", tt.rel)
		}
		if href != tt.want {
			t.Errorf("HrefOrDefault(%s) = %q; want %q", tt.rel, href, tt.want)
		}
	}

	if href, _ := links.HrefOrDefault("service-desc"); href != "" {
		t.Errorf("rel without a default resolved to %q", href)
	}
}

func TestLinkMapAdvertisedWinsOverDefault(t *testing.T) {
	links, err := NewLinkMap("https://example.com", []Link{
		{Rel: RelSearch, Href: "https://other.example.com/api/search"},
	})
	if err != nil {
		t.Fatalf("NewLinkMap failed: %v", err)
	}

	href, fromLink := links.HrefOrDefault(RelSearch)
	if !fromLink {
		t.Error("advertised link should report fromLink")
	}
	if href != "https://other.example.com/api/search" {
		t.Errorf("href = %q", href)
	}
}
