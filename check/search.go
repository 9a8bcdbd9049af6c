package check

import (
	"context"
	"net/http"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/conformance"
	"github.com/jisantuc/stac-api-validator/probe"
	"github.com/jisantuc/stac-api-validator/stac"
)

// Search battery check ids.
const (
	CheckSearchBasic       = "search.basic"
	CheckSearchLimit       = "search.limit"
	CheckSearchBBox        = "search.bbox"
	CheckSearchDatetime    = "search.datetime"
	CheckSearchIDs         = "search.ids"
	CheckSearchCollections = "search.collections"
	CheckSearchIntersects  = "search.intersects"
	CheckSearchPagination  = "search.pagination"
)

// geoJSONContentType accepts the geo+json media type with or without the
// charset parameter.
func geoJSONContentType(ct string) bool {
	return ct == stac.MediaTypeGeoJSON || ct == stac.MediaTypeGeoJSONCharset
}

// searchGet issues a GET search and converts transport failure to a FAIL.
func searchGet(ctx context.Context, cctx *Context, checkID, ruleID string, req stac.SearchRequest) (*probe.Response, *sv.Finding) {
	href, _ := cctx.searchURL()
	return cctx.get(ctx, checkID, ruleID, href, req.Query(), stac.MediaTypeGeoJSON)
}

// searchPost issues a POST search with the request's JSON body.
func searchPost(ctx context.Context, cctx *Context, checkID, ruleID string, body []byte) (*probe.Response, *sv.Finding) {
	href, _ := cctx.searchURL()
	resp, err := cctx.Client.PostJSON(ctx, href, body)
	if err != nil {
		f := cctx.finding(sv.SeverityFail, ruleID, checkID).
			Message("POST search request failed: "+err.Error()).
			With("url", href).
			Build()
		return nil, &f
	}
	return resp, nil
}

// SearchBasic probes the search endpoint with no parameters: it must answer
// 200 with geo+json content and an ItemCollection that validates against
// the schema. It also asserts Accept negotiation: an unsupported Accept must
// not be silently answered with a mismatched content type.
func SearchBasic() Check {
	return New(CheckSearchBasic, conformance.ItemSearch, runSearchBasic)
}

func runSearchBasic(ctx context.Context, cctx *Context) []sv.Finding {
	var findings []sv.Finding

	if _, fromLink := cctx.searchURL(); !fromLink {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleSearchEndpoint, CheckSearchBasic).
			Message("Link[rel=search] should exist when item-search is advertised; probing the default path").
			Build())
	}

	resp, failure := searchGet(ctx, cctx, CheckSearchBasic, RuleSearchEndpoint, stac.SearchRequest{})
	if failure != nil {
		return append(findings, *failure)
	}
	if f := cctx.expectStatus(CheckSearchBasic, RuleSearchEndpoint, resp, http.StatusOK, "search with no parameters"); f != nil {
		return append(findings, *f)
	}
	findings = append(findings, cctx.finding(sv.SeverityPass, RuleSearchEndpoint, CheckSearchBasic).
		Message("search endpoint answers 200 with no parameters").
		Build())

	if ct := resp.ContentType(); !geoJSONContentType(ct) {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleSearchGeoJSON, CheckSearchBasic).
			Message("search content-type is "+quote(ct)+", want "+quote(stac.MediaTypeGeoJSON)).
			With("url", resp.URL).
			Build())
	} else {
		findings = append(findings, cctx.finding(sv.SeverityPass, RuleSearchGeoJSON, CheckSearchBasic).
			Message("search answers with geo+json content").
			Build())
	}

	doc, err := resp.Document()
	switch {
	case err != nil:
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleSearchSchema, CheckSearchBasic).
			Message("search response is not a STAC document: "+err.Error()).
			With("url", resp.URL).
			Build())
	case doc.Type != stac.TypeItemCollection:
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleSearchSchema, CheckSearchBasic).
			Message("search returned a "+string(doc.Type)+" document, want FeatureCollection").
			With("url", resp.URL).
			Build())
	default:
		if err := cctx.Schema.Validate(doc); err != nil {
			findings = append(findings, schemaFinding(cctx, CheckSearchBasic, RuleSearchSchema, err))
		} else {
			findings = append(findings, cctx.finding(sv.SeverityPass, RuleSearchSchema, CheckSearchBasic).
				Message("search response validates as an ItemCollection").
				Build())
		}
	}

	// Accept negotiation: an Accept the API cannot serve must not produce
	// a 200 with a mismatched content type.
	href, _ := cctx.searchURL()
	nResp, err2 := cctx.Client.Get(ctx, href, nil, "application/xml")
	switch {
	case err2 != nil:
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleSearchAccept, CheckSearchBasic).
			Message("Accept negotiation request failed: "+err2.Error()).
			With("url", href).
			Build())
	case nResp.StatusCode == http.StatusOK && !geoJSONContentType(nResp.ContentType()) && nResp.ContentType() != stac.MediaTypeJSON:
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleSearchAccept, CheckSearchBasic).
			Message("search answered Accept: application/xml with 200 and content-type "+quote(nResp.ContentType())).
			With("url", nResp.URL).
			Build())
	default:
		findings = append(findings, cctx.finding(sv.SeverityPass, RuleSearchAccept, CheckSearchBasic).
			Message("search does not silently satisfy unsupported Accept values").
			Build())
	}

	if cctx.ProbePOST {
		body, _ := stac.SearchRequest{}.Body()
		resp, failure := searchPost(ctx, cctx, CheckSearchBasic, RuleSearchEndpoint, body)
		if failure != nil {
			return append(findings, *failure)
		}
		if f := cctx.expectStatus(CheckSearchBasic, RuleSearchEndpoint, resp, http.StatusOK, "POST search with no parameters"); f != nil {
			findings = append(findings, *f)
		} else {
			findings = append(findings, cctx.finding(sv.SeverityPass, RuleSearchEndpoint, CheckSearchBasic).
				Message("POST search endpoint answers 200 with no parameters").
				Build())
		}
	}

	return findings
}

// sampleItems fetches up to n items from the search endpoint for batteries
// that derive parameters from live data. Results are cached per sample size
// so concurrent batteries share one fetch.
func sampleItems(ctx context.Context, cctx *Context, n int) ([]map[string]any, error) {
	if cctx.Samples != nil {
		if items, ok := cctx.Samples.Get(n); ok {
			return items, nil
		}
	}

	href, _ := cctx.searchURL()
	resp, err := cctx.Client.Get(ctx, href, stac.SearchRequest{}.WithLimit(n).Query(), stac.MediaTypeGeoJSON)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &sv.HTTPStatusError{URL: resp.URL, StatusCode: resp.StatusCode, Want: http.StatusOK}
	}
	doc, err := resp.Document()
	if err != nil {
		return nil, err
	}

	items := doc.Features()
	if cctx.Samples != nil {
		cctx.Samples.Set(n, items)
	}
	return items, nil
}
