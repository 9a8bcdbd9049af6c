package check

import (
	"context"
	"net/http"
	"strconv"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/conformance"
	"github.com/jisantuc/stac-api-validator/stac"
)

const (
	CheckChildrenList       = "children.list"
	CheckBrowseableTraverse = "browseable.traversal"
)

// ChildrenList probes the children endpoint: it must answer 200 with a JSON
// body carrying a children array, and each entry must be a catalog or a
// collection.
func ChildrenList() Check {
	return New(CheckChildrenList, conformance.Children, runChildrenList)
}

func runChildrenList(ctx context.Context, cctx *Context) []sv.Finding {
	var findings []sv.Finding

	href, fromLink := cctx.Discovery.Links.HrefOrDefault(stac.RelChildren)
	if !fromLink {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleChildrenEndpoint, CheckChildrenList).
			Message("Link[rel=children] should exist when children is advertised; probing the default path").
			Build())
	}

	resp, failure := cctx.get(ctx, CheckChildrenList, RuleChildrenEndpoint, href, nil, stac.MediaTypeJSON)
	if failure != nil {
		return append(findings, *failure)
	}
	if f := cctx.expectStatus(CheckChildrenList, RuleChildrenEndpoint, resp, http.StatusOK, "children endpoint"); f != nil {
		return append(findings, *f)
	}

	body, err := resp.JSON()
	if err != nil {
		return append(findings, cctx.finding(sv.SeverityFail, RuleChildrenEndpoint, CheckChildrenList).
			Message("children endpoint body is not JSON: "+err.Error()).
			With("url", resp.URL).
			Build())
	}
	rawChildren, ok := body["children"].([]any)
	if !ok {
		return append(findings, cctx.finding(sv.SeverityFail, RuleChildrenEndpoint, CheckChildrenList).
			Message("children endpoint body has no 'children' array").
			With("url", resp.URL).
			Build())
	}

	for _, raw := range rawChildren {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		typ, _ := entry["type"].(string)
		if typ != string(stac.TypeCatalog) && typ != string(stac.TypeCollection) {
			id, _ := entry["id"].(string)
			return append(findings, cctx.finding(sv.SeverityFail, RuleChildrenEndpoint, CheckChildrenList).
				Message("child "+quote(id)+" has type "+quote(typ)+", want Catalog or Collection").
				With("url", resp.URL).
				Build())
		}
	}
	return append(findings, cctx.finding(sv.SeverityPass, RuleChildrenEndpoint, CheckChildrenList).
		Message("children endpoint lists "+strconv.Itoa(len(rawChildren))+" catalog/collection children").
		Build())
}

// BrowseableTraverse asserts the browseable class: the landing page must
// carry child links, and each sampled child must resolve to a catalog or
// collection document.
func BrowseableTraverse() Check {
	return New(CheckBrowseableTraverse, conformance.Browseable, runBrowseableTraverse)
}

func runBrowseableTraverse(ctx context.Context, cctx *Context) []sv.Finding {
	var children []stac.Link
	for _, link := range cctx.Discovery.Root.Links {
		if link.Rel == stac.RelChild {
			children = append(children, link)
		}
	}
	if len(children) == 0 {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleBrowseableLinks, CheckBrowseableTraverse).
			Message("landing page advertises browseable but carries no child links").
			Build()}
	}

	sample := children
	if limit := cctx.Scenarios.Collections.SampleLimit; limit > 0 && len(sample) > limit {
		sample = sample[:limit]
	}

	var findings []sv.Finding
	for _, child := range sample {
		href := cctx.Discovery.Links.Resolve(child.Href)
		resp, failure := cctx.get(ctx, CheckBrowseableTraverse, RuleBrowseableLinks, href, nil, stac.MediaTypeJSON)
		if failure != nil {
			findings = append(findings, *failure)
			continue
		}
		if f := cctx.expectStatus(CheckBrowseableTraverse, RuleBrowseableLinks, resp, http.StatusOK, "child link "+quote(child.Href)); f != nil {
			findings = append(findings, *f)
			continue
		}
		doc, err := resp.Document()
		if err != nil {
			findings = append(findings, cctx.finding(sv.SeverityFail, RuleBrowseableLinks, CheckBrowseableTraverse).
				Message("child link "+quote(child.Href)+" is not a STAC document: "+err.Error()).
				With("url", resp.URL).
				Build())
			continue
		}
		if doc.Type != stac.TypeCatalog && doc.Type != stac.TypeCollection {
			findings = append(findings, cctx.finding(sv.SeverityFail, RuleBrowseableLinks, CheckBrowseableTraverse).
				Message("child link "+quote(child.Href)+" resolves to a "+string(doc.Type)+", want Catalog or Collection").
				With("url", resp.URL).
				Build())
		}
	}
	if len(findings) == 0 {
		findings = append(findings, cctx.finding(sv.SeverityPass, RuleBrowseableLinks, CheckBrowseableTraverse).
			Message("landing page child links resolve to catalogs and collections").
			Build())
	}
	return findings
}
