// Package stacvalidator validates that a live STAC API deployment conforms
// to the STAC API specification.
//
// The validator fetches the deployment's landing page, discovers which
// conformance classes it advertises, probes each advertised capability with
// a registered battery of scenarios, validates the returned documents
// against the STAC document schemas, applies behavioral rules (pagination,
// parameter semantics, content negotiation, advertisement consistency), and
// aggregates everything into a grouped Report.
//
// # Architecture
//
//	root URL
//	   │
//	   ▼
//	discovery ── conformance classes + link map
//	   │
//	   ▼
//	engine ── dispatches one check battery per advertised class
//	   │         (bounded worker pool, fault isolation between classes)
//	   ▼
//	check ── probe (HTTP) ── schema (document validation)
//	   │
//	   ▼
//	Report ── grouped by conformance class, then check id
//
// This root package holds the shared data model: Finding, Report, Options,
// Metrics, and the error taxonomy. Behavior lives in the concern packages:
//
//   - discovery: landing page fetch and capability extraction
//   - conformance: conformance class matching and the versioned check registry
//   - stac: STAC document model (Catalog, Collection, Item, ItemCollection)
//   - schema: JSON Schema validation of returned documents
//   - probe: HTTP probing with bounded retries and timeouts
//   - check: scenario batteries and behavioral rules per conformance class
//   - config: versioned scenario parameter matrices
//   - engine: run orchestration
//   - worker: bounded worker pool
//   - cache: shared sample cache for scenario derivation
//   - cli, cmd/stac-api-validator: command-line surface
//
// # Usage
//
//	v, err := engine.New("https://example.com/stac", stacvalidator.WithPOST(true))
//	if err != nil {
//	    return err
//	}
//	report, err := v.Validate(ctx)
//
// A run aborts only when the root URL is unreachable; any other failure is
// confined to its conformance class and recorded as a FAIL finding.
package stacvalidator
