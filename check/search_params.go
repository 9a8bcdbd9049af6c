package check

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/conformance"
	"github.com/jisantuc/stac-api-validator/stac"
)

// SearchLimit probes the limit parameter against the scenario matrices:
// each valid value must answer 200 with at most that many features, each
// invalid value must answer 400.
func SearchLimit() Check {
	return New(CheckSearchLimit, conformance.ItemSearch, runSearchLimit)
}

func runSearchLimit(ctx context.Context, cctx *Context) []sv.Finding {
	var findings []sv.Finding

	for _, limit := range cctx.Scenarios.Limit.Valid {
		req := stac.SearchRequest{}.WithLimit(limit)
		scenario := "search with limit=" + strconv.Itoa(limit)

		resp, failure := searchGet(ctx, cctx, CheckSearchLimit, RuleLimitValid, req)
		if failure != nil {
			findings = append(findings, *failure)
			continue
		}
		if f := cctx.expectStatus(CheckSearchLimit, RuleLimitValid, resp, http.StatusOK, scenario); f != nil {
			findings = append(findings, *f)
			continue
		}
		findings = append(findings, cctx.finding(sv.SeverityPass, RuleLimitValid, CheckSearchLimit).
			Message(scenario+" returned 200").
			Build())

		doc, err := resp.Document()
		if err != nil {
			findings = append(findings, cctx.finding(sv.SeverityFail, RuleLimitRespected, CheckSearchLimit).
				Message(scenario+" body is not an ItemCollection: "+err.Error()).
				With("url", resp.URL).
				Build())
			continue
		}
		if got := len(doc.Features()); got > limit {
			findings = append(findings, cctx.finding(sv.SeverityFail, RuleLimitRespected, CheckSearchLimit).
				Message(scenario+" returned "+strconv.Itoa(got)+" features, more than the limit").
				With("url", resp.URL).
				Build())
		} else {
			findings = append(findings, cctx.finding(sv.SeverityPass, RuleLimitRespected, CheckSearchLimit).
				Message(scenario+" returned at most "+strconv.Itoa(limit)+" features").
				Build())
		}

		if cctx.ProbePOST {
			findings = append(findings, postExpect(ctx, cctx, CheckSearchLimit, RuleLimitValid,
				map[string]any{"limit": limit}, http.StatusOK, "POST "+scenario)...)
		}
	}

	for _, limit := range cctx.Scenarios.Limit.Invalid {
		req := stac.SearchRequest{RawLimit: strconv.Itoa(limit)}
		scenario := "search with invalid limit=" + strconv.Itoa(limit)

		resp, failure := searchGet(ctx, cctx, CheckSearchLimit, RuleLimitInvalid, req)
		if failure != nil {
			findings = append(findings, *failure)
			continue
		}
		if resp.StatusCode != http.StatusBadRequest {
			findings = append(findings, cctx.finding(sv.SeverityFail, RuleLimitInvalid, CheckSearchLimit).
				Message(scenario+" returned status "+strconv.Itoa(resp.StatusCode)+", want 400").
				With("url", resp.URL).
				With("status", strconv.Itoa(resp.StatusCode)).
				Build())
		} else {
			findings = append(findings, cctx.finding(sv.SeverityPass, RuleLimitInvalid, CheckSearchLimit).
				Message(scenario+" was rejected with 400").
				Build())
		}

		if cctx.ProbePOST {
			findings = append(findings, postExpect(ctx, cctx, CheckSearchLimit, RuleLimitInvalid,
				map[string]any{"limit": limit}, http.StatusBadRequest, "POST "+scenario)...)
		}
	}

	return findings
}

// postExpect POSTs a search body and asserts the status, producing exactly
// one finding.
func postExpect(ctx context.Context, cctx *Context, checkID, ruleID string, body map[string]any, want int, scenario string) []sv.Finding {
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
	if resp.StatusCode != want {
		return []sv.Finding{cctx.finding(sv.SeverityFail, ruleID, checkID).
			Message(scenario+" returned status "+strconv.Itoa(resp.StatusCode)+", want "+strconv.Itoa(want)).
			With("url", resp.URL).
			With("status", strconv.Itoa(resp.StatusCode)).
			Build()}
	}
	return []sv.Finding{cctx.finding(sv.SeverityPass, ruleID, checkID).
		Message(scenario + " returned " + strconv.Itoa(want)).
		Build()}
}

// SearchBBox probes the bbox parameter: well-formed boxes answer 200 and
// every returned item overlaps the query box; malformed boxes answer 400.
func SearchBBox() Check {
	return New(CheckSearchBBox, conformance.ItemSearch, runSearchBBox)
}

func runSearchBBox(ctx context.Context, cctx *Context) []sv.Finding {
	var findings []sv.Finding

	for _, box := range cctx.Scenarios.BBox.Valid {
		req := stac.SearchRequest{RawBBox: box}
		scenario := "search with bbox=" + box

		resp, failure := searchGet(ctx, cctx, CheckSearchBBox, RuleBBoxValid, req)
		if failure != nil {
			findings = append(findings, *failure)
			continue
		}
		if f := cctx.expectStatus(CheckSearchBBox, RuleBBoxValid, resp, http.StatusOK, scenario); f != nil {
			findings = append(findings, *f)
			continue
		}
		findings = append(findings, cctx.finding(sv.SeverityPass, RuleBBoxValid, CheckSearchBBox).
			Message(scenario+" returned 200").
			Build())

		if cctx.ProbePOST {
			coords := parseBBox(box)
			if coords != nil {
				findings = append(findings, postExpect(ctx, cctx, CheckSearchBBox, RuleBBoxValid,
					map[string]any{"bbox": coords}, http.StatusOK, "POST "+scenario)...)
			}
		}
	}

	// Semantic probe: every item returned for the probe box must spatially
	// overlap it.
	if probe := cctx.Scenarios.BBox.Probe; len(probe) >= 4 {
		findings = append(findings, bboxSemantics(ctx, cctx, probe)...)
	}

	for _, box := range cctx.Scenarios.BBox.Invalid {
		req := stac.SearchRequest{RawBBox: box}
		scenario := "search with invalid bbox=" + box

		resp, failure := searchGet(ctx, cctx, CheckSearchBBox, RuleBBoxInvalid, req)
		if failure != nil {
			findings = append(findings, *failure)
			continue
		}
		if resp.StatusCode != http.StatusBadRequest {
			findings = append(findings, cctx.finding(sv.SeverityFail, RuleBBoxInvalid, CheckSearchBBox).
				Message(scenario+" returned status "+strconv.Itoa(resp.StatusCode)+", want 400").
				With("url", resp.URL).
				With("status", strconv.Itoa(resp.StatusCode)).
				Build())
		} else {
			findings = append(findings, cctx.finding(sv.SeverityPass, RuleBBoxInvalid, CheckSearchBBox).
				Message(scenario+" was rejected with 400").
				Build())
		}
	}

	return findings
}

func bboxSemantics(ctx context.Context, cctx *Context, box []float64) []sv.Finding {
	req := stac.SearchRequest{BBox: box}
	limit := cctx.Scenarios.IDs.SampleLimit
	if limit > 0 {
		req = req.WithLimit(limit)
	}

	resp, failure := searchGet(ctx, cctx, CheckSearchBBox, RuleBBoxSemantics, req)
	if failure != nil {
		return []sv.Finding{*failure}
	}
	if f := cctx.expectStatus(CheckSearchBBox, RuleBBoxSemantics, resp, http.StatusOK, "bbox semantic probe"); f != nil {
		return []sv.Finding{*f}
	}
	doc, err := resp.Document()
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleBBoxSemantics, CheckSearchBBox).
			Message("bbox semantic probe body is not an ItemCollection: "+err.Error()).
			With("url", resp.URL).
			Build()}
	}

	for _, feature := range doc.Features() {
		itemBox := featureBBox(feature)
		if itemBox == nil {
			continue
		}
		if !stac.BBoxOverlaps(box, itemBox) {
			id, _ := feature["id"].(string)
			return []sv.Finding{cctx.finding(sv.SeverityFail, RuleBBoxSemantics, CheckSearchBBox).
				Message("item "+quote(id)+" does not overlap the query bbox").
				With("url", resp.URL).
				With("item", id).
				Build()}
		}
	}
	return []sv.Finding{cctx.finding(sv.SeverityPass, RuleBBoxSemantics, CheckSearchBBox).
		Message("every returned item overlaps the query bbox").
		Build()}
}

func featureBBox(feature map[string]any) []float64 {
	raw, ok := feature["bbox"].([]any)
	if !ok {
		return nil
	}
	box := make([]float64, 0, len(raw))
	for _, c := range raw {
		f, ok := c.(float64)
		if !ok {
			return nil
		}
		box = append(box, f)
	}
	return box
}

func parseBBox(s string) []float64 {
	var box []float64
	for _, part := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil
		}
		box = append(box, f)
	}
	return box
}

// SearchDatetime probes the datetime parameter with the scenario matrices,
// plus a round-trip: an item's own datetime, used as an instant query, must
// find that item again.
func SearchDatetime() Check {
	return New(CheckSearchDatetime, conformance.ItemSearch, runSearchDatetime)
}

func runSearchDatetime(ctx context.Context, cctx *Context) []sv.Finding {
	var findings []sv.Finding

	for _, dt := range cctx.Scenarios.Datetime.Valid {
		req := stac.SearchRequest{Datetime: dt}
		scenario := "search with datetime=" + dt

		resp, failure := searchGet(ctx, cctx, CheckSearchDatetime, RuleDatetimeValid, req)
		if failure != nil {
			findings = append(findings, *failure)
			continue
		}
		if f := cctx.expectStatus(CheckSearchDatetime, RuleDatetimeValid, resp, http.StatusOK, scenario); f != nil {
			findings = append(findings, *f)
		} else {
			findings = append(findings, cctx.finding(sv.SeverityPass, RuleDatetimeValid, CheckSearchDatetime).
				Message(scenario+" returned 200").
				Build())
		}
	}

	for _, dt := range cctx.Scenarios.Datetime.Invalid {
		req := stac.SearchRequest{Datetime: dt}
		scenario := "search with invalid datetime=" + dt

		resp, failure := searchGet(ctx, cctx, CheckSearchDatetime, RuleDatetimeInvalid, req)
		if failure != nil {
			findings = append(findings, *failure)
			continue
		}
		if resp.StatusCode != http.StatusBadRequest {
			findings = append(findings, cctx.finding(sv.SeverityFail, RuleDatetimeInvalid, CheckSearchDatetime).
				Message(scenario+" returned status "+strconv.Itoa(resp.StatusCode)+", want 400").
				With("url", resp.URL).
				With("status", strconv.Itoa(resp.StatusCode)).
				Build())
		} else {
			findings = append(findings, cctx.finding(sv.SeverityPass, RuleDatetimeInvalid, CheckSearchDatetime).
				Message(scenario+" was rejected with 400").
				Build())
		}
	}

	findings = append(findings, datetimeRoundTrip(ctx, cctx)...)
	return findings
}

// datetimeRoundTrip samples one item and searches for its own datetime; the
// item must appear in the result.
func datetimeRoundTrip(ctx context.Context, cctx *Context) []sv.Finding {
	items, err := sampleItems(ctx, cctx, 1)
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleDatetimeMatch, CheckSearchDatetime).
			Message("sampling an item for the datetime round-trip failed: " + err.Error()).
			Build()}
	}
	if len(items) == 0 {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleDatetimeMatch, CheckSearchDatetime).
			Message("catalog returned no items; datetime round-trip not attempted").
			Build()}
	}

	item := items[0]
	id, _ := item["id"].(string)
	props, _ := item["properties"].(map[string]any)
	dt, _ := props["datetime"].(string)
	if dt == "" || dt == "null" {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleDatetimeMatch, CheckSearchDatetime).
			Message("sampled item "+quote(id)+" has no datetime; round-trip not attempted").
			With("item", id).
			Build()}
	}

	resp, failure := searchGet(ctx, cctx, CheckSearchDatetime, RuleDatetimeMatch,
		stac.SearchRequest{Datetime: dt, IDs: []string{id}})
	if failure != nil {
		return []sv.Finding{*failure}
	}
	if f := cctx.expectStatus(CheckSearchDatetime, RuleDatetimeMatch, resp, http.StatusOK, "datetime round-trip"); f != nil {
		return []sv.Finding{*f}
	}
	doc, err := resp.Document()
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleDatetimeMatch, CheckSearchDatetime).
			Message("datetime round-trip body is not an ItemCollection: "+err.Error()).
			With("url", resp.URL).
			Build()}
	}
	for _, got := range doc.FeatureIDs() {
		if got == id {
			return []sv.Finding{cctx.finding(sv.SeverityPass, RuleDatetimeMatch, CheckSearchDatetime).
				Message("item " + quote(id) + " is found by its own datetime").
				Build()}
		}
	}
	return []sv.Finding{cctx.finding(sv.SeverityFail, RuleDatetimeMatch, CheckSearchDatetime).
		Message("item "+quote(id)+" is not found when searching its own datetime "+quote(dt)).
		With("item", id).
		With("datetime", dt).
		Build()}
}
