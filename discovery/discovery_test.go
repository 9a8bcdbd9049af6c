package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/conformance"
	"github.com/jisantuc/stac-api-validator/probe"
	"github.com/jisantuc/stac-api-validator/stac"
)

func landingServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient() *probe.Client {
	return probe.NewClient(probe.WithRetryPolicy(probe.NoRetryPolicy()))
}

func TestDiscover(t *testing.T) {
	srv := landingServer(t, `{
		"type": "Catalog",
		"id": "test",
		"stac_version": "1.0.0",
		"conformsTo": [
			"https://api.stacspec.org/v1.0.0/core",
			"https://api.stacspec.org/v1.0.0/core",
			"https://api.stacspec.org/v1.0.0/item-search",
			"https://example.com/proprietary-extension"
		],
		"links": [
			{"rel": "self", "href": "/", "type": "application/json"},
			{"rel": "search", "href": "/search", "type": "application/geo+json"}
		]
	}`)

	disc, err := New(testClient()).Discover(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	// Duplicate URIs dedupe to first-seen order.
	if len(disc.ConformsTo) != 3 {
		t.Errorf("len(ConformsTo) = %d; want 3 after dedupe", len(disc.ConformsTo))
	}
	if !disc.Advertises(conformance.Core) {
		t.Error("core should be advertised")
	}
	if !disc.Advertises(conformance.ItemSearch) {
		t.Error("item-search should be advertised")
	}
	if disc.Advertises(conformance.Transaction) {
		t.Error("transaction should not be advertised")
	}

	unknown := disc.UnknownURIs()
	if len(unknown) != 1 || unknown[0] != "https://example.com/proprietary-extension" {
		t.Errorf("UnknownURIs = %v", unknown)
	}

	if href, ok := disc.Links.Href(stac.RelSearch); !ok || href != srv.URL+"/search" {
		t.Errorf("search href = %q, %v", href, ok)
	}
}

func TestDiscoverUnreachableHostIsFatal(t *testing.T) {
	_, err := New(testClient()).Discover(context.Background(), "http://127.0.0.1:1")
	var fatal *sv.FatalRootUnreachable
	if !errors.As(err, &fatal) {
		t.Fatalf("error = %v; want FatalRootUnreachable", err)
	}
}

func TestDiscoverNon200IsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(testClient()).Discover(context.Background(), srv.URL)
	var fatal *sv.FatalRootUnreachable
	if !errors.As(err, &fatal) {
		t.Fatalf("error = %v; want FatalRootUnreachable", err)
	}
	var status *sv.HTTPStatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("inner error = %v; want the 503", err)
	}
}

func TestDiscoverMissingConformsTo(t *testing.T) {
	srv := landingServer(t, `{
		"type": "Catalog",
		"id": "test",
		"links": [{"rel": "self", "href": "/"}]
	}`)

	_, err := New(testClient()).Discover(context.Background(), srv.URL)
	var schemaErr *sv.SchemaValidationError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error = %v; want SchemaValidationError", err)
	}
	if schemaErr.Path != "conformsTo" {
		t.Errorf("Path = %q", schemaErr.Path)
	}
}

func TestDiscoverMissingLinks(t *testing.T) {
	srv := landingServer(t, `{
		"type": "Catalog",
		"id": "test",
		"conformsTo": ["https://api.stacspec.org/v1.0.0/core"]
	}`)

	_, err := New(testClient()).Discover(context.Background(), srv.URL)
	var schemaErr *sv.SchemaValidationError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error = %v; want SchemaValidationError", err)
	}
	if schemaErr.Path != "links" {
		t.Errorf("Path = %q", schemaErr.Path)
	}
}

func TestDiscoverMalformedBody(t *testing.T) {
	srv := landingServer(t, `not json`)

	_, err := New(testClient()).Discover(context.Background(), srv.URL)
	var schemaErr *sv.SchemaValidationError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error = %v; want SchemaValidationError", err)
	}
}

func TestClassURIPrefersAdvertised(t *testing.T) {
	srv := landingServer(t, `{
		"type": "Catalog",
		"id": "test",
		"conformsTo": ["https://api.stacspec.org/v1.0.0-rc.2/core"],
		"links": [{"rel": "self", "href": "/"}]
	}`)

	disc, err := New(testClient()).Discover(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if got := disc.ClassURI(conformance.Core, "1.0.0"); got != "https://api.stacspec.org/v1.0.0-rc.2/core" {
		t.Errorf("ClassURI(core) = %q; want the advertised URI", got)
	}
	if got := disc.ClassURI(conformance.ItemSearch, "1.0.0"); got != "https://api.stacspec.org/v1.0.0/item-search" {
		t.Errorf("ClassURI(item-search) = %q; want the canonical fallback", got)
	}
}
