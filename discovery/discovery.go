// Package discovery fetches a deployment's landing page and extracts the
// advertised conformance classes and endpoint links.
package discovery

import (
	"context"
	"fmt"
	"net/http"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/conformance"
	"github.com/jisantuc/stac-api-validator/probe"
	"github.com/jisantuc/stac-api-validator/stac"
)

// Discovery is the result of probing the root URL: the deduplicated
// capability list in first-seen order, plus the resolved link map.
type Discovery struct {
	// RootURL is the URL that was fetched.
	RootURL string

	// Root is the parsed landing page.
	Root *stac.RootDocument

	// ConformsTo holds the advertised conformance URIs, deduplicated, in
	// first-seen order. Unknown URIs are retained for forward
	// compatibility.
	ConformsTo []string

	// Links maps link relations to resolved hrefs.
	Links *stac.LinkMap
}

// Advertises reports whether any advertised URI classifies as the given
// conformance class.
func (d *Discovery) Advertises(class conformance.Class) bool {
	for _, uri := range d.ConformsTo {
		if conformance.Classify(uri) == class {
			return true
		}
	}
	return false
}

// ClassURI returns the advertised URI for a class, or the canonical URI for
// the registry version when the class is not advertised.
func (d *Discovery) ClassURI(class conformance.Class, version string) string {
	for _, uri := range d.ConformsTo {
		if conformance.Classify(uri) == class {
			return uri
		}
	}
	return class.URI(version)
}

// UnknownURIs returns advertised URIs that match no known class.
func (d *Discovery) UnknownURIs() []string {
	var unknown []string
	for _, uri := range d.ConformsTo {
		if conformance.Classify(uri) == conformance.Unknown {
			unknown = append(unknown, uri)
		}
	}
	return unknown
}

// Discoverer fetches and parses landing pages.
type Discoverer struct {
	client *probe.Client
}

// New creates a Discoverer using the given probe client.
func New(client *probe.Client) *Discoverer {
	return &Discoverer{client: client}
}

// Discover performs a single GET of the root URL. An unreachable host or
// non-success status is fatal: it is the one failure that aborts a whole
// run. A response missing the conformance list or links degrades to a
// SchemaValidationError instead.
func (d *Discoverer) Discover(ctx context.Context, rootURL string) (*Discovery, error) {
	resp, err := d.client.Get(ctx, rootURL, nil, stac.MediaTypeJSON)
	if err != nil {
		return nil, &sv.FatalRootUnreachable{URL: rootURL, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &sv.FatalRootUnreachable{
			URL: rootURL,
			Err: &sv.HTTPStatusError{URL: rootURL, StatusCode: resp.StatusCode, Want: http.StatusOK},
		}
	}

	root, err := stac.ParseRootDocument(resp.Body)
	if err != nil {
		return nil, &sv.SchemaValidationError{
			DocumentType: "landing page",
			Path:         "/",
			Message:      err.Error(),
		}
	}

	if len(root.ConformsTo) == 0 {
		return nil, &sv.SchemaValidationError{
			DocumentType: "landing page",
			Path:         "conformsTo",
			Message:      "'conformsTo' must be defined and non-empty",
		}
	}
	if len(root.Links) == 0 {
		return nil, &sv.SchemaValidationError{
			DocumentType: "landing page",
			Path:         "links",
			Message:      "'links' must be defined and non-empty",
		}
	}

	links, err := stac.NewLinkMap(rootURL, root.Links)
	if err != nil {
		return nil, fmt.Errorf("resolving landing page links: %w", err)
	}

	return &Discovery{
		RootURL:    rootURL,
		Root:       root,
		ConformsTo: dedupe(root.ConformsTo),
		Links:      links,
	}, nil
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(uris []string) []string {
	seen := make(map[string]bool, len(uris))
	out := make([]string, 0, len(uris))
	for _, uri := range uris {
		if seen[uri] {
			continue
		}
		seen[uri] = true
		out = append(out, uri)
	}
	return out
}
