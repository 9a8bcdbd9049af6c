package check

import (
	"context"
	"encoding/json"
	"net/http"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/conformance"
	"github.com/jisantuc/stac-api-validator/stac"
)

// Extension battery check ids.
const (
	CheckFieldsSubset   = "fields.search"
	CheckSortOrder      = "sort.search"
	CheckQueryRestrict  = "query.search"
	CheckFilterRestrict = "filter.search"
)

// FieldsSubset asserts the fields extension: a search asking for only id
// and type must not return full items. Deployments may include a small set
// of mandatory keys beyond the requested ones.
func FieldsSubset() Check {
	return New(CheckFieldsSubset, conformance.Fields, runFieldsSubset)
}

// alwaysAllowed are keys a fields-restricted item may carry regardless of
// the requested set.
var alwaysAllowed = map[string]bool{
	"id":              true,
	"type":            true,
	"geometry":        true,
	"bbox":            true,
	"links":           true,
	"assets":          true,
	"stac_version":    true,
	"collection":      true,
	"properties":      true,
	"stac_extensions": true,
}

func runFieldsSubset(ctx context.Context, cctx *Context) []sv.Finding {
	href, _ := cctx.searchURL()
	query := stac.SearchRequest{}.WithLimit(1).Query()
	query.Set("fields", "id,type")

	resp, failure := cctx.get(ctx, CheckFieldsSubset, RuleFieldsSubset, href, query, stac.MediaTypeGeoJSON)
	if failure != nil {
		return []sv.Finding{*failure}
	}
	if f := cctx.expectStatus(CheckFieldsSubset, RuleFieldsSubset, resp, http.StatusOK, "search with fields=id,type"); f != nil {
		return []sv.Finding{*f}
	}
	doc, err := resp.Document()
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleFieldsSubset, CheckFieldsSubset).
			Message("fields search body is not an ItemCollection: "+err.Error()).
			With("url", resp.URL).
			Build()}
	}
	features := doc.Features()
	if len(features) == 0 {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleFieldsSubset, CheckFieldsSubset).
			Message("fields search returned no items; projection not verified").
			Build()}
	}

	for key := range features[0] {
		if !alwaysAllowed[key] {
			return []sv.Finding{cctx.finding(sv.SeverityFail, RuleFieldsSubset, CheckFieldsSubset).
				Message("fields=id,type still returns key "+quote(key)).
				With("url", resp.URL).
				With("key", key).
				Build()}
		}
	}
	if props, ok := features[0]["properties"].(map[string]any); ok && len(props) > 0 {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleFieldsSubset, CheckFieldsSubset).
			Message("fields=id,type still returns populated properties").
			With("url", resp.URL).
			Build()}
	}
	return []sv.Finding{cctx.finding(sv.SeverityPass, RuleFieldsSubset, CheckFieldsSubset).
		Message("fields=id,type projects items down to the requested keys").
		Build()}
}

// SortOrder asserts the sort extension: results sorted by id ascending and
// descending must each arrive in that order, and the two orders must differ
// when more than one item exists.
func SortOrder() Check {
	return New(CheckSortOrder, conformance.Sort, runSortOrder)
}

func runSortOrder(ctx context.Context, cctx *Context) []sv.Finding {
	limit := cctx.Scenarios.IDs.SampleLimit
	if limit <= 0 {
		limit = 10
	}

	asc, failure := sortedIDs(ctx, cctx, "+id", limit)
	if failure != nil {
		return []sv.Finding{*failure}
	}
	desc, failure := sortedIDs(ctx, cctx, "-id", limit)
	if failure != nil {
		return []sv.Finding{*failure}
	}
	if len(asc) < 2 {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleSortOrder, CheckSortOrder).
			Message("fewer than two items returned; sort order not verified").
			Build()}
	}

	if !isSorted(asc, false) {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleSortOrder, CheckSortOrder).
			Message("sortby=+id did not return ids in ascending order").
			Build()}
	}
	if !isSorted(desc, true) {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleSortOrder, CheckSortOrder).
			Message("sortby=-id did not return ids in descending order").
			Build()}
	}
	if asc[0] == desc[0] && len(asc) > 1 {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleSortOrder, CheckSortOrder).
			Message("ascending and descending sorts start with the same item " + quote(asc[0])).
			Build()}
	}
	return []sv.Finding{cctx.finding(sv.SeverityPass, RuleSortOrder, CheckSortOrder).
		Message("sortby=+id and sortby=-id return opposite orders").
		Build()}
}

func sortedIDs(ctx context.Context, cctx *Context, sortby string, limit int) ([]string, *sv.Finding) {
	href, _ := cctx.searchURL()
	query := stac.SearchRequest{}.WithLimit(limit).Query()
	query.Set("sortby", sortby)

	resp, failure := cctx.get(ctx, CheckSortOrder, RuleSortOrder, href, query, stac.MediaTypeGeoJSON)
	if failure != nil {
		return nil, failure
	}
	if f := cctx.expectStatus(CheckSortOrder, RuleSortOrder, resp, http.StatusOK, "search with sortby="+sortby); f != nil {
		return nil, f
	}
	doc, err := resp.Document()
	if err != nil {
		f := cctx.finding(sv.SeverityFail, RuleSortOrder, CheckSortOrder).
			Message("sortby="+sortby+" body is not an ItemCollection: "+err.Error()).
			With("url", resp.URL).
			Build()
		return nil, &f
	}
	return doc.FeatureIDs(), nil
}

func isSorted(ids []string, descending bool) bool {
	for i := 1; i < len(ids); i++ {
		if descending {
			if ids[i] > ids[i-1] {
				return false
			}
		} else if ids[i] < ids[i-1] {
			return false
		}
	}
	return true
}

// QueryRestrict asserts the query extension: an equality query on a sampled
// item's own property must return only items satisfying it.
func QueryRestrict() Check {
	return New(CheckQueryRestrict, conformance.Query, runQueryRestrict)
}

func runQueryRestrict(ctx context.Context, cctx *Context) []sv.Finding {
	if !cctx.ProbePOST {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleQueryRestrict, CheckQueryRestrict).
			Message("query extension is POST-only here; enable POST probing to exercise it").
			Build()}
	}

	items, err := sampleItems(ctx, cctx, 1)
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleQueryRestrict, CheckQueryRestrict).
			Message("sampling an item for the query scenario failed: " + err.Error()).
			Build()}
	}
	if len(items) == 0 {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleQueryRestrict, CheckQueryRestrict).
			Message("catalog returned no items; query scenario not attempted").
			Build()}
	}
	props, _ := items[0]["properties"].(map[string]any)
	dt, _ := props["datetime"].(string)
	if dt == "" {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleQueryRestrict, CheckQueryRestrict).
			Message("sampled item has no datetime property; query scenario not attempted").
			Build()}
	}

	return postExpectRestricted(ctx, cctx, CheckQueryRestrict, RuleQueryRestrict,
		map[string]any{
			"limit": 10,
			"query": map[string]any{"datetime": map[string]any{"eq": dt}},
		},
		"query on datetime eq "+quote(dt),
		func(feature map[string]any) bool {
			p, _ := feature["properties"].(map[string]any)
			got, _ := p["datetime"].(string)
			return got == dt
		})
}

// FilterRestrict asserts the filter extension with a CQL2 text equality
// filter on a sampled item's collection.
func FilterRestrict() Check {
	return New(CheckFilterRestrict, conformance.Filter, runFilterRestrict)
}

func runFilterRestrict(ctx context.Context, cctx *Context) []sv.Finding {
	items, err := sampleItems(ctx, cctx, 1)
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleFilterRestrict, CheckFilterRestrict).
			Message("sampling an item for the filter scenario failed: " + err.Error()).
			Build()}
	}
	if len(items) == 0 {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleFilterRestrict, CheckFilterRestrict).
			Message("catalog returned no items; filter scenario not attempted").
			Build()}
	}
	collection, _ := items[0]["collection"].(string)
	if collection == "" {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleFilterRestrict, CheckFilterRestrict).
			Message("sampled item carries no collection; filter scenario not attempted").
			Build()}
	}

	href, _ := cctx.searchURL()
	query := stac.SearchRequest{}.WithLimit(10).Query()
	query.Set("filter-lang", "cql2-text")
	query.Set("filter", "collection='"+collection+"'")

	resp, failure := cctx.get(ctx, CheckFilterRestrict, RuleFilterRestrict, href, query, stac.MediaTypeGeoJSON)
	if failure != nil {
		return []sv.Finding{*failure}
	}
	if f := cctx.expectStatus(CheckFilterRestrict, RuleFilterRestrict, resp, http.StatusOK, "search with cql2-text filter"); f != nil {
		return []sv.Finding{*f}
	}
	doc, err := resp.Document()
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleFilterRestrict, CheckFilterRestrict).
			Message("filter search body is not an ItemCollection: "+err.Error()).
			With("url", resp.URL).
			Build()}
	}
	for _, feature := range doc.Features() {
		got, _ := feature["collection"].(string)
		if got != collection {
			id, _ := feature["id"].(string)
			return []sv.Finding{cctx.finding(sv.SeverityFail, RuleFilterRestrict, CheckFilterRestrict).
				Message("filter on collection "+quote(collection)+" returned item "+quote(id)+" from "+quote(got)).
				With("url", resp.URL).
				With("item", id).
				Build()}
		}
	}
	return []sv.Finding{cctx.finding(sv.SeverityPass, RuleFilterRestrict, CheckFilterRestrict).
		Message("cql2-text filter restricts results to the requested collection").
		Build()}
}

// postExpectRestricted POSTs a search body and asserts a 200 whose every
// returned feature satisfies the predicate.
func postExpectRestricted(ctx context.Context, cctx *Context, checkID, ruleID string, body map[string]any, scenario string, ok func(map[string]any) bool) []sv.Finding {
	data, err := json.Marshal(body)
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, ruleID, checkID).
			Message(scenario + ": encoding request body: " + err.Error()).
			Build()}
	}
	resp, failure := searchPost(ctx, cctx, checkID, ruleID, data)
	if failure != nil {
		return []sv.Finding{*failure}
	}
	if f := cctx.expectStatus(checkID, ruleID, resp, http.StatusOK, scenario); f != nil {
		return []sv.Finding{*f}
	}
	doc, err := resp.Document()
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, ruleID, checkID).
			Message(scenario+" body is not an ItemCollection: "+err.Error()).
			With("url", resp.URL).
			Build()}
	}
	for _, feature := range doc.Features() {
		if !ok(feature) {
			id, _ := feature["id"].(string)
			return []sv.Finding{cctx.finding(sv.SeverityFail, ruleID, checkID).
				Message(scenario+" returned item "+quote(id)+" that does not satisfy the predicate").
				With("url", resp.URL).
				With("item", id).
				Build()}
		}
	}
	return []sv.Finding{cctx.finding(sv.SeverityPass, ruleID, checkID).
		Message(scenario + " restricts results to matching items").
		Build()}
}
