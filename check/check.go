// Package check implements the scenario batteries run against a deployment,
// one battery per registered check id. Each battery issues the HTTP
// interactions its scenarios require and converts the observed behavior
// into findings; every finding names the exact rule it traces to.
package check

import (
	"context"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/conformance"
)

// Check is one scenario battery for one conformance class.
//
// Checks must be stateless and safe for concurrent use; all per-run state
// lives in the Context. Scenarios inside one battery run strictly
// sequentially, so chained scenarios (pagination, create-then-read) keep
// their causal order.
type Check interface {
	// ID returns the check identifier, unique within its class.
	ID() string

	// Class returns the conformance class the check belongs to.
	Class() conformance.Class

	// Run executes the battery and returns its findings. Run never
	// returns an empty slice for an advertised class: a scenario that
	// cannot even be attempted yields an explicit FAIL.
	Run(ctx context.Context, cctx *Context) []sv.Finding
}

// Rule ids, one per specification clause the batteries assert. Findings
// reference these so every result is traceable.
const (
	RuleRootLink          = "core.landing.root-link"
	RuleSelfLink          = "core.landing.self-link"
	RuleServiceDesc       = "core.landing.service-desc"
	RuleServiceDoc        = "core.landing.service-doc"
	RuleCatalogSchema     = "core.catalog.schema"
	RuleUndocumented      = "core.advertisement.undocumented-endpoint"
	RuleConformancePage   = "features.conformance.endpoint"
	RuleConformanceMirror = "features.conformance.mirrors-landing"
	RuleCollectionsLink   = "features.collections.data-link"
	RuleCollectionsList   = "features.collections.list"
	RuleCollectionSchema  = "features.collections.schema"
	RuleSearchEndpoint    = "search.basic.endpoint"
	RuleSearchGeoJSON     = "search.basic.content-type"
	RuleSearchAccept      = "search.basic.accept"
	RuleSearchSchema      = "search.basic.schema"
	RuleLimitValid        = "search.limit.valid-200"
	RuleLimitInvalid      = "search.limit.invalid-400"
	RuleLimitRespected    = "search.limit.respected"
	RuleBBoxValid         = "search.bbox.valid-200"
	RuleBBoxInvalid       = "search.bbox.invalid-400"
	RuleBBoxSemantics     = "search.bbox.result-overlap"
	RuleDatetimeValid     = "search.datetime.valid-200"
	RuleDatetimeInvalid   = "search.datetime.invalid-400"
	RuleDatetimeMatch     = "search.datetime.item-roundtrip"
	RuleIDsRestrict       = "search.ids.restricted"
	RuleCollRestrict      = "search.collections.restricted"
	RuleIntersectsValid   = "search.intersects.valid-200"
	RulePaginationNext    = "search.pagination.next-link"
	RulePaginationUnique  = "search.pagination.disjoint-pages"
	RulePaginationEnd     = "search.pagination.final-page"
	RuleFieldsSubset      = "fields.search.subset"
	RuleSortOrder         = "sort.search.order"
	RuleQueryRestrict     = "query.search.restricted"
	RuleFilterRestrict    = "filter.search.restricted"
	RuleChildrenEndpoint  = "children.endpoint"
	RuleBrowseableLinks   = "browseable.child-links"
	RuleTxnCreate         = "transaction.create"
	RuleTxnRead           = "transaction.read-back"
	RuleTxnDelete         = "transaction.cleanup"
	RulePrerequisite      = "prerequisite-absent"
	RuleRootUnreachable   = "root-unreachable"
	RuleUnknownClass      = "unknown-class"
	RuleNotAdvertised     = "class-not-advertised"
	RuleExcluded          = "class-excluded"
	RuleInternalError     = "internal-error"
)

// CheckFunc adapts a function to the Check interface.
type CheckFunc struct {
	id    string
	class conformance.Class
	fn    func(ctx context.Context, cctx *Context) []sv.Finding
}

// New creates a Check from a function.
func New(id string, class conformance.Class, fn func(ctx context.Context, cctx *Context) []sv.Finding) Check {
	return &CheckFunc{id: id, class: class, fn: fn}
}

// ID returns the check identifier.
func (c *CheckFunc) ID() string { return c.id }

// Class returns the owning conformance class.
func (c *CheckFunc) Class() conformance.Class { return c.class }

// Run executes the wrapped function.
func (c *CheckFunc) Run(ctx context.Context, cctx *Context) []sv.Finding {
	return c.fn(ctx, cctx)
}
