package check

import (
	"context"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/conformance"
	"github.com/jisantuc/stac-api-validator/stac"
)

// Core battery check ids.
const (
	CheckCoreLanding       = "core.landing"
	CheckCoreCatalog       = "core.catalog"
	CheckCoreAdvertisement = "core.advertisement"
)

// LandingLinks verifies the landing page's typed links: self and root must
// be application/json, service-desc must be a parseable OpenAPI 3 document
// with the OpenAPI media type, service-doc must be HTML.
func LandingLinks() Check {
	return New(CheckCoreLanding, conformance.Core, runLandingLinks)
}

func runLandingLinks(ctx context.Context, cctx *Context) []sv.Finding {
	var findings []sv.Finding
	root := cctx.Discovery.Root

	findings = append(findings, checkJSONLink(cctx, root, stac.RelRoot, RuleRootLink)...)
	findings = append(findings, checkJSONLink(cctx, root, stac.RelSelf, RuleSelfLink)...)
	findings = append(findings, checkServiceDesc(ctx, cctx, root)...)
	findings = append(findings, checkServiceDoc(ctx, cctx, root)...)

	return findings
}

// checkJSONLink asserts a landing link exists with type application/json.
// Absence is a WARN: the specification recommends but does not require
// these relations.
func checkJSONLink(cctx *Context, root *stac.RootDocument, rel, ruleID string) []sv.Finding {
	link := root.Link(rel)
	if link == nil {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, ruleID, CheckCoreLanding).
			Message("Link[rel=" + rel + "] should exist on the landing page").
			Build()}
	}
	if link.Type != stac.MediaTypeJSON {
		return []sv.Finding{cctx.finding(sv.SeverityFail, ruleID, CheckCoreLanding).
			Message("Link[rel=" + rel + "] type is " + quote(link.Type) + ", want " + quote(stac.MediaTypeJSON)).
			Build()}
	}
	return []sv.Finding{cctx.finding(sv.SeverityPass, ruleID, CheckCoreLanding).
		Message("Link[rel=" + rel + "] present with type application/json").
		Build()}
}

func checkServiceDesc(ctx context.Context, cctx *Context, root *stac.RootDocument) []sv.Finding {
	link := root.Link(stac.RelServiceDesc)
	if link == nil {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleServiceDesc, CheckCoreLanding).
			Message("Link[rel=service-desc] should exist on the landing page").
			Build()}
	}

	var findings []sv.Finding
	if link.Type != stac.MediaTypeOpenAPI {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleServiceDesc, CheckCoreLanding).
			Message("Link[rel=service-desc] type is "+quote(link.Type)+", want "+quote(stac.MediaTypeOpenAPI)).
			Build())
	}

	href, _ := cctx.Discovery.Links.Href(stac.RelServiceDesc)
	resp, failure := cctx.get(ctx, CheckCoreLanding, RuleServiceDesc, href, nil, stac.MediaTypeOpenAPI)
	if failure != nil {
		return append(findings, *failure)
	}
	if f := cctx.expectStatus(CheckCoreLanding, RuleServiceDesc, resp, http.StatusOK, "service-desc"); f != nil {
		return append(findings, *f)
	}

	if ct := resp.ContentType(); ct != stac.MediaTypeOpenAPI {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleServiceDesc, CheckCoreLanding).
			Message("service-desc content-type is "+quote(ct)+", want "+quote(stac.MediaTypeOpenAPI)).
			With("url", resp.URL).
			Build())
	}

	// The linked document must actually be an OpenAPI 3 description.
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(resp.Body)
	if err != nil {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleServiceDesc, CheckCoreLanding).
			Message("service-desc does not parse as an OpenAPI 3 document: "+err.Error()).
			With("url", resp.URL).
			Build())
		return findings
	}
	if doc.OpenAPI == "" || !strings.HasPrefix(doc.OpenAPI, "3.") {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleServiceDesc, CheckCoreLanding).
			Message("service-desc declares openapi "+quote(doc.OpenAPI)+", want 3.x").
			With("url", resp.URL).
			Build())
		return findings
	}

	findings = append(findings, cctx.finding(sv.SeverityPass, RuleServiceDesc, CheckCoreLanding).
		Message("service-desc serves an OpenAPI "+doc.OpenAPI+" document").
		Build())
	return findings
}

func checkServiceDoc(ctx context.Context, cctx *Context, root *stac.RootDocument) []sv.Finding {
	link := root.Link(stac.RelServiceDoc)
	if link == nil {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleServiceDoc, CheckCoreLanding).
			Message("Link[rel=service-doc] should exist on the landing page").
			Build()}
	}

	var findings []sv.Finding
	if link.Type != stac.MediaTypeHTML {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleServiceDoc, CheckCoreLanding).
			Message("Link[rel=service-doc] type is "+quote(link.Type)+", want "+quote(stac.MediaTypeHTML)).
			Build())
	}

	href, _ := cctx.Discovery.Links.Href(stac.RelServiceDoc)
	resp, failure := cctx.get(ctx, CheckCoreLanding, RuleServiceDoc, href, nil, stac.MediaTypeHTML)
	if failure != nil {
		return append(findings, *failure)
	}
	if f := cctx.expectStatus(CheckCoreLanding, RuleServiceDoc, resp, http.StatusOK, "service-doc"); f != nil {
		return append(findings, *f)
	}

	if ct := resp.ContentType(); !strings.HasPrefix(ct, stac.MediaTypeHTML) {
		findings = append(findings, cctx.finding(sv.SeverityFail, RuleServiceDoc, CheckCoreLanding).
			Message("service-doc content-type is "+quote(ct)+", want text/html").
			With("url", resp.URL).
			Build())
		return findings
	}

	findings = append(findings, cctx.finding(sv.SeverityPass, RuleServiceDoc, CheckCoreLanding).
		Message("service-doc serves HTML documentation").
		Build())
	return findings
}

// CatalogSchema re-fetches the root URL and validates the landing page as a
// Catalog document.
func CatalogSchema() Check {
	return New(CheckCoreCatalog, conformance.Core, runCatalogSchema)
}

func runCatalogSchema(ctx context.Context, cctx *Context) []sv.Finding {
	resp, failure := cctx.get(ctx, CheckCoreCatalog, RuleCatalogSchema, cctx.Discovery.RootURL, nil, stac.MediaTypeJSON)
	if failure != nil {
		return []sv.Finding{*failure}
	}
	if f := cctx.expectStatus(CheckCoreCatalog, RuleCatalogSchema, resp, http.StatusOK, "landing page"); f != nil {
		return []sv.Finding{*f}
	}

	if err := cctx.Schema.ValidateBytes(resp.Body); err != nil {
		return []sv.Finding{schemaFinding(cctx, CheckCoreCatalog, RuleCatalogSchema, err)}
	}
	return []sv.Finding{cctx.finding(sv.SeverityPass, RuleCatalogSchema, CheckCoreCatalog).
		Message("landing page validates as a Catalog document").
		Build()}
}

// Advertisement probes specification-default endpoints for classes the
// deployment does not advertise. A working endpoint for an unadvertised
// class is a WARN (undocumented capability), never a silent pass.
func Advertisement() Check {
	return New(CheckCoreAdvertisement, conformance.Core, runAdvertisement)
}

// probedDefaults lists classes with a probeable default endpoint.
var probedDefaults = []struct {
	class conformance.Class
	rel   string
}{
	{conformance.ItemSearch, stac.RelSearch},
	{conformance.Children, stac.RelChildren},
}

func runAdvertisement(ctx context.Context, cctx *Context) []sv.Finding {
	var findings []sv.Finding

	for _, pd := range probedDefaults {
		if cctx.Discovery.Advertises(pd.class) {
			continue
		}
		href, _ := cctx.Discovery.Links.HrefOrDefault(pd.rel)
		if href == "" {
			continue
		}

		resp, err := cctx.Client.Get(ctx, href, nil, stac.MediaTypeJSON)
		if err != nil {
			// Unreachable default endpoint for an unadvertised class is
			// consistent advertisement.
			continue
		}
		if resp.StatusCode == http.StatusOK {
			findings = append(findings, cctx.finding(sv.SeverityWarn, RuleUndocumented, CheckCoreAdvertisement).
				Message("endpoint "+href+" answers 200 but class "+pd.class.String()+" is not advertised in conformsTo").
				With("url", href).
				With("class", pd.class.String()).
				Build())
		}
	}

	if len(findings) == 0 {
		findings = append(findings, cctx.finding(sv.SeverityPass, RuleUndocumented, CheckCoreAdvertisement).
			Message("no undocumented capability endpoints detected").
			Build())
	}
	return findings
}

func schemaFinding(cctx *Context, checkID, ruleID string, err error) sv.Finding {
	b := cctx.finding(sv.SeverityFail, ruleID, checkID)
	switch e := err.(type) {
	case *sv.UnsupportedVersion:
		return cctx.finding(sv.SeverityWarn, ruleID, checkID).
			Message(e.Error()).
			With("stacVersion", e.Version).
			Build()
	case *sv.SchemaValidationError:
		return b.Message(e.Error()).
			With("path", e.Path).
			Build()
	default:
		return b.Message(err.Error()).Build()
	}
}

func quote(s string) string {
	return "'" + s + "'"
}
