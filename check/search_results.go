package check

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/conformance"
	"github.com/jisantuc/stac-api-validator/probe"
	"github.com/jisantuc/stac-api-validator/stac"
)

// SearchIDs samples item ids and asserts that an ids-filtered search returns
// exactly those items.
func SearchIDs() Check {
	return New(CheckSearchIDs, conformance.ItemSearch, runSearchIDs)
}

func runSearchIDs(ctx context.Context, cctx *Context) []sv.Finding {
	items, err := sampleItems(ctx, cctx, cctx.Scenarios.IDs.SampleLimit)
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleIDsRestrict, CheckSearchIDs).
			Message("sampling items for the ids scenario failed: " + err.Error()).
			Build()}
	}
	if len(items) == 0 {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleIDsRestrict, CheckSearchIDs).
			Message("catalog returned no items; ids scenario not attempted").
			Build()}
	}

	want := make(map[string]bool, len(items))
	var ids []string
	for _, item := range items {
		if id, ok := item["id"].(string); ok && id != "" {
			want[id] = true
			ids = append(ids, id)
		}
	}

	resp, failure := searchGet(ctx, cctx, CheckSearchIDs, RuleIDsRestrict, stac.SearchRequest{IDs: ids})
	if failure != nil {
		return []sv.Finding{*failure}
	}
	if f := cctx.expectStatus(CheckSearchIDs, RuleIDsRestrict, resp, http.StatusOK, "search with ids="+strings.Join(ids, ",")); f != nil {
		return []sv.Finding{*f}
	}
	doc, err := resp.Document()
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleIDsRestrict, CheckSearchIDs).
			Message("ids search body is not an ItemCollection: "+err.Error()).
			With("url", resp.URL).
			Build()}
	}

	var findings []sv.Finding
	for _, got := range doc.FeatureIDs() {
		if !want[got] {
			findings = append(findings, cctx.finding(sv.SeverityFail, RuleIDsRestrict, CheckSearchIDs).
				Message("ids search returned item "+quote(got)+" outside the requested set").
				With("url", resp.URL).
				With("item", got).
				Build())
		}
	}
	if len(findings) == 0 {
		findings = append(findings, cctx.finding(sv.SeverityPass, RuleIDsRestrict, CheckSearchIDs).
			Message("ids search returned only items from the requested set").
			Build())
	}
	return findings
}

// SearchCollections asserts that a collections-filtered search returns only
// items from the named collections, for one and for several collections.
func SearchCollections() Check {
	return New(CheckSearchCollections, conformance.ItemSearch, runSearchCollections)
}

func runSearchCollections(ctx context.Context, cctx *Context) []sv.Finding {
	ids, err := collectionIDs(ctx, cctx)
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleCollRestrict, CheckSearchCollections).
			Message("listing collections for the collections scenario failed: " + err.Error()).
			Build()}
	}
	if len(ids) == 0 {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleCollRestrict, CheckSearchCollections).
			Message("catalog advertises no collections; collections scenario not attempted").
			Build()}
	}
	if max := cctx.Scenarios.Collections.SampleLimit; max > 0 && len(ids) > max {
		ids = ids[:max]
	}

	var findings []sv.Finding
	subsets := [][]string{ids[:1]}
	if len(ids) > 1 {
		subsets = append(subsets, ids)
	}
	for _, subset := range subsets {
		findings = append(findings, collectionsRestricted(ctx, cctx, subset)...)
	}
	return findings
}

func collectionsRestricted(ctx context.Context, cctx *Context, ids []string) []sv.Finding {
	scenario := "search with collections=" + strings.Join(ids, ",")
	req := stac.SearchRequest{Collections: ids}
	if limit := cctx.Scenarios.IDs.SampleLimit; limit > 0 {
		req = req.WithLimit(limit)
	}

	resp, failure := searchGet(ctx, cctx, CheckSearchCollections, RuleCollRestrict, req)
	if failure != nil {
		return []sv.Finding{*failure}
	}
	if f := cctx.expectStatus(CheckSearchCollections, RuleCollRestrict, resp, http.StatusOK, scenario); f != nil {
		return []sv.Finding{*f}
	}
	doc, err := resp.Document()
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleCollRestrict, CheckSearchCollections).
			Message(scenario+" body is not an ItemCollection: "+err.Error()).
			With("url", resp.URL).
			Build()}
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, feature := range doc.Features() {
		collection, _ := feature["collection"].(string)
		if !want[collection] {
			id, _ := feature["id"].(string)
			return []sv.Finding{cctx.finding(sv.SeverityFail, RuleCollRestrict, CheckSearchCollections).
				Message(scenario+" returned item "+quote(id)+" from collection "+quote(collection)).
				With("url", resp.URL).
				With("item", id).
				Build()}
		}
	}
	return []sv.Finding{cctx.finding(sv.SeverityPass, RuleCollRestrict, CheckSearchCollections).
		Message(scenario + " returned only items from the requested collections").
		Build()}
}

// SearchIntersects probes the intersects parameter with one fixture per
// GeoJSON geometry type, as GET and, when enabled, as POST.
func SearchIntersects() Check {
	return New(CheckSearchIntersects, conformance.ItemSearch, runSearchIntersects)
}

func runSearchIntersects(ctx context.Context, cctx *Context) []sv.Finding {
	var findings []sv.Finding

	for _, fixture := range stac.IntersectsFixtures() {
		req := stac.SearchRequest{Intersects: fixture.JSON}
		scenario := "search with intersects=" + fixture.Name

		resp, failure := searchGet(ctx, cctx, CheckSearchIntersects, RuleIntersectsValid, req)
		if failure != nil {
			findings = append(findings, *failure)
			continue
		}
		if f := cctx.expectStatus(CheckSearchIntersects, RuleIntersectsValid, resp, http.StatusOK, scenario); f != nil {
			findings = append(findings, *f)
		} else {
			findings = append(findings, cctx.finding(sv.SeverityPass, RuleIntersectsValid, CheckSearchIntersects).
				Message(scenario+" returned 200").
				Build())
		}

		if cctx.ProbePOST {
			body, err := stac.SearchRequest{Intersects: fixture.JSON}.Body()
			if err != nil {
				continue
			}
			resp, failure := searchPost(ctx, cctx, CheckSearchIntersects, RuleIntersectsValid, body)
			if failure != nil {
				findings = append(findings, *failure)
				continue
			}
			if f := cctx.expectStatus(CheckSearchIntersects, RuleIntersectsValid, resp, http.StatusOK, "POST "+scenario); f != nil {
				findings = append(findings, *f)
			} else {
				findings = append(findings, cctx.finding(sv.SeverityPass, RuleIntersectsValid, CheckSearchIntersects).
					Message("POST "+scenario+" returned 200").
					Build())
			}
		}
	}

	return findings
}

// SearchPagination follows next links from a small-limit search until the
// chain ends or the page cap is hit: no item may appear on more than one
// page, and the final page must omit the next link rather than loop.
func SearchPagination() Check {
	return New(CheckSearchPagination, conformance.ItemSearch, runSearchPagination)
}

func runSearchPagination(ctx context.Context, cctx *Context) []sv.Finding {
	limit := cctx.Scenarios.Pagination.Limit
	if limit <= 0 {
		limit = 2
	}

	resp, failure := searchGet(ctx, cctx, CheckSearchPagination, RulePaginationNext, stac.SearchRequest{}.WithLimit(limit))
	if failure != nil {
		return []sv.Finding{*failure}
	}
	if f := cctx.expectStatus(CheckSearchPagination, RulePaginationNext, resp, http.StatusOK, "paginated search"); f != nil {
		return []sv.Finding{*f}
	}

	seen := make(map[string]bool)
	var findings []sv.Finding
	pages := 0

	for {
		doc, err := resp.Document()
		if err != nil {
			findings = append(findings, cctx.finding(sv.SeverityFail, RulePaginationNext, CheckSearchPagination).
				Message("page "+strconv.Itoa(pages+1)+" is not an ItemCollection: "+err.Error()).
				With("url", resp.URL).
				Build())
			return findings
		}
		pages++

		ids := doc.FeatureIDs()
		for _, id := range ids {
			if seen[id] {
				findings = append(findings, cctx.finding(sv.SeverityFail, RulePaginationUnique, CheckSearchPagination).
					Message("page "+strconv.Itoa(pages)+" repeats item "+quote(id)+" from an earlier page").
					With("url", resp.URL).
					With("item", id).
					Build())
				return findings
			}
			seen[id] = true
		}

		next := doc.NextLink()
		if next == nil {
			findings = append(findings, cctx.finding(sv.SeverityPass, RulePaginationEnd, CheckSearchPagination).
				Message("pagination chain ends without a next link after "+strconv.Itoa(pages)+" page(s)").
				Build())
			break
		}
		if len(ids) == 0 {
			findings = append(findings, cctx.finding(sv.SeverityFail, RulePaginationEnd, CheckSearchPagination).
				Message("empty page "+strconv.Itoa(pages)+" still carries a next link").
				With("url", resp.URL).
				Build())
			return findings
		}
		if pages >= cctx.MaxPages {
			findings = append(findings, cctx.finding(sv.SeverityWarn, RulePaginationEnd, CheckSearchPagination).
				Message("pagination chain not exhausted after "+strconv.Itoa(pages)+" pages; stopping").
				Build())
			break
		}

		resp, failure = followNext(ctx, cctx, next)
		if failure != nil {
			return append(findings, *failure)
		}
		if f := cctx.expectStatus(CheckSearchPagination, RulePaginationNext, resp, http.StatusOK, "page "+strconv.Itoa(pages+1)); f != nil {
			return append(findings, *f)
		}
	}

	if pages > 1 {
		findings = append(findings, cctx.finding(sv.SeverityPass, RulePaginationUnique, CheckSearchPagination).
			Message("all "+strconv.Itoa(pages)+" pages carried distinct items").
			Build())
		findings = append(findings, cctx.finding(sv.SeverityPass, RulePaginationNext, CheckSearchPagination).
			Message("next links advance through "+strconv.Itoa(pages)+" pages").
			Build())
	} else {
		findings = append(findings, cctx.finding(sv.SeverityWarn, RulePaginationNext, CheckSearchPagination).
			Message("search returned a single page; next-link traversal not exercised").
			Build())
	}
	return findings
}

// followNext fetches a pagination link, honoring a POST method and body
// when the link requests one.
func followNext(ctx context.Context, cctx *Context, next *stac.Link) (*probe.Response, *sv.Finding) {
	if strings.EqualFold(next.Method, http.MethodPost) {
		body, err := json.Marshal(next.Body)
		if err != nil {
			f := cctx.finding(sv.SeverityFail, RulePaginationNext, CheckSearchPagination).
				Message("encoding next-link body: "+err.Error()).
				With("url", next.Href).
				Build()
			return nil, &f
		}
		return searchPostTo(ctx, cctx, next.Href, body)
	}
	return cctx.get(ctx, CheckSearchPagination, RulePaginationNext, next.Href, nil, stac.MediaTypeGeoJSON)
}

func searchPostTo(ctx context.Context, cctx *Context, href string, body []byte) (*probe.Response, *sv.Finding) {
	resp, err := cctx.Client.PostJSON(ctx, href, body)
	if err != nil {
		f := cctx.finding(sv.SeverityFail, RulePaginationNext, CheckSearchPagination).
			Message("POST to next link failed: "+err.Error()).
			With("url", href).
			Build()
		return nil, &f
	}
	return resp, nil
}
