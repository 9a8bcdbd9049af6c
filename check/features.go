package check

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/conformance"
	"github.com/jisantuc/stac-api-validator/stac"
)

// Features battery check ids.
const (
	CheckFeaturesConformance = "features.conformance"
	CheckFeaturesCollections = "features.collections"
)

// ConformancePage verifies the /conformance endpoint: it must exist, return
// JSON, and mirror the landing page's conformsTo list.
func ConformancePage() Check {
	return New(CheckFeaturesConformance, conformance.Features, runConformancePage)
}

func runConformancePage(ctx context.Context, cctx *Context) []sv.Finding {
	href, fromLink := cctx.Discovery.Links.HrefOrDefault(stac.RelConformance)
	if href == "" {
		return []sv.Finding{cctx.prerequisiteAbsent(CheckFeaturesConformance, "Link[rel=conformance]")}
	}

	var findings []sv.Finding
	if !fromLink {
		findings = append(findings, cctx.finding(sv.SeverityWarn, RuleConformancePage, CheckFeaturesConformance).
			Message("Link[rel=conformance] absent from landing page; probing the default path").
			With("url", href).
			Build())
	} else if !strings.HasSuffix(strings.TrimSuffix(href, "/"), "/conformance") {
		findings = append(findings, cctx.finding(sv.SeverityWarn, RuleConformancePage, CheckFeaturesConformance).
			Message("Link[rel=conformance] should href a /conformance path, got "+href).
			Build())
	}

	resp, failure := cctx.get(ctx, CheckFeaturesConformance, RuleConformancePage, href, nil, stac.MediaTypeJSON)
	if failure != nil {
		return append(findings, *failure)
	}
	if f := cctx.expectStatus(CheckFeaturesConformance, RuleConformancePage, resp, http.StatusOK, "conformance endpoint"); f != nil {
		return append(findings, *f)
	}

	if ct := resp.ContentType(); !strings.HasPrefix(ct, stac.MediaTypeJSON) {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleConformancePage, CheckFeaturesConformance).
			Message("conformance endpoint content-type is "+quote(ct)+", want application/json").
			With("url", resp.URL).
			Build())
	}

	body, err := resp.JSON()
	if err != nil {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleConformancePage, CheckFeaturesConformance).
			Message("conformance endpoint returned non-JSON body").
			With("url", resp.URL).
			Build())
		return findings
	}

	findings = append(findings, cctx.finding(sv.SeverityPass, RuleConformancePage, CheckFeaturesConformance).
		Message("conformance endpoint answers with JSON").
		Build())

	// The endpoint's conformsTo should mirror the landing page; drift is a
	// warning, not a violation.
	declared := stringSlice(body["conformsTo"])
	if !sameSet(declared, cctx.Discovery.ConformsTo) {
		findings = append(findings, cctx.finding(sv.SeverityWarn, RuleConformanceMirror, CheckFeaturesConformance).
			Message("conformance endpoint's conformsTo differs from the landing page").
			With("url", resp.URL).
			Build())
	} else {
		findings = append(findings, cctx.finding(sv.SeverityPass, RuleConformanceMirror, CheckFeaturesConformance).
			Message("conformance endpoint mirrors the landing page conformsTo").
			Build())
	}

	return findings
}

// CollectionsList verifies the data link and the /collections listing,
// validating returned collection documents against the Collection schema.
func CollectionsList() Check {
	return New(CheckFeaturesCollections, conformance.Features, runCollectionsList)
}

func runCollectionsList(ctx context.Context, cctx *Context) []sv.Finding {
	var findings []sv.Finding
	root := cctx.Discovery.Root

	if root.Link(stac.RelData) == nil {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleCollectionsLink, CheckFeaturesCollections).
			Message("Link[rel=data] should exist and href the collections endpoint").
			Build())
	} else {
		findings = append(findings, cctx.finding(sv.SeverityPass, RuleCollectionsLink, CheckFeaturesCollections).
			Message("Link[rel=data] present").
			Build())
	}

	// rel=collections is a common but non-standard relation.
	if root.Link(stac.RelCollections) != nil {
		findings = append(findings, cctx.finding(sv.SeverityWarn, RuleCollectionsLink, CheckFeaturesCollections).
			Message("Link[rel=collections] is a non-standard relation; use Link[rel=data]").
			Build())
	}

	href, _ := cctx.collectionsURL()
	resp, failure := cctx.get(ctx, CheckFeaturesCollections, RuleCollectionsList, href, nil, stac.MediaTypeJSON)
	if failure != nil {
		return append(findings, *failure)
	}
	if f := cctx.expectStatus(CheckFeaturesCollections, RuleCollectionsList, resp, http.StatusOK, "collections endpoint"); f != nil {
		return append(findings, *f)
	}

	body, err := resp.JSON()
	if err != nil {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleCollectionsList, CheckFeaturesCollections).
			Message("collections endpoint returned non-JSON body").
			With("url", resp.URL).
			Build())
		return findings
	}

	rawCollections, ok := body["collections"].([]any)
	if !ok {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleCollectionsList, CheckFeaturesCollections).
			Message("collections response lacks a 'collections' array").
			With("url", resp.URL).
			Build())
		return findings
	}

	findings = append(findings, cctx.finding(sv.SeverityPass, RuleCollectionsList, CheckFeaturesCollections).
		Message("collections endpoint lists "+strconv.Itoa(len(rawCollections))+" collection(s)").
		Build())

	// Validate a bounded sample of collection documents.
	sample := cctx.Scenarios.Collections.SampleLimit
	if sample <= 0 || sample > len(rawCollections) {
		sample = len(rawCollections)
	}
	schemaOK := true
	for _, raw := range rawCollections[:sample] {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		doc, err := stac.DocumentFromMap(m)
		if err != nil {
			schemaOK = false
			findings = append(findings, cctx.finding(sv.SeverityFail, RuleCollectionSchema, CheckFeaturesCollections).
				Message("collection entry is not a valid document: "+err.Error()).
				Build())
			continue
		}
		if err := cctx.Schema.Validate(doc); err != nil {
			schemaOK = false
			findings = append(findings, schemaFinding(cctx, CheckFeaturesCollections, RuleCollectionSchema, err))
		}
	}
	if schemaOK && sample > 0 {
		findings = append(findings, cctx.finding(sv.SeverityPass, RuleCollectionSchema, CheckFeaturesCollections).
			Message("sampled collection documents validate against the Collection schema").
			Build())
	}

	return findings
}

// collectionIDs fetches the deployment's collection ids for batteries that
// need them.
func collectionIDs(ctx context.Context, cctx *Context) ([]string, error) {
	href, _ := cctx.collectionsURL()
	resp, err := cctx.Client.Get(ctx, href, nil, stac.MediaTypeJSON)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &sv.HTTPStatusError{URL: href, StatusCode: resp.StatusCode, Want: http.StatusOK}
	}
	body, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	raw, _ := body["collections"].([]any)
	ids := make([]string, 0, len(raw))
	for _, c := range raw {
		if m, ok := c.(map[string]any); ok {
			if id, ok := m["id"].(string); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if str, ok := s.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// sameSet compares after deduplication: an endpoint echoing a URI twice is
// not drift.
func sameSet(a, b []string) bool {
	as := make(map[string]bool, len(a))
	for _, s := range a {
		as[s] = true
	}
	bs := make(map[string]bool, len(b))
	for _, s := range b {
		bs[s] = true
	}
	if len(as) != len(bs) {
		return false
	}
	for s := range as {
		if !bs[s] {
			return false
		}
	}
	return true
}
