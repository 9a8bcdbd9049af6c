package check

import (
	"context"
	"strconv"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/cache"
	"github.com/jisantuc/stac-api-validator/config"
	"github.com/jisantuc/stac-api-validator/conformance"
	"github.com/jisantuc/stac-api-validator/discovery"
	"github.com/jisantuc/stac-api-validator/probe"
	"github.com/jisantuc/stac-api-validator/schema"
	"github.com/jisantuc/stac-api-validator/stac"
)

// Context carries the per-run collaborators a battery needs. It is built
// once by the orchestrator after discovery and shared read-only across
// batteries.
type Context struct {
	// Client issues the HTTP probes.
	Client *probe.Client

	// Discovery holds the capability set and link map from the root URL.
	Discovery *discovery.Discovery

	// Scenarios holds the versioned parameter matrices.
	Scenarios *config.Scenarios

	// Schema validates returned documents.
	Schema *schema.Validator

	// ProbePOST enables POST variants of search scenarios.
	ProbePOST bool

	// MaxPages caps pagination chains.
	MaxPages int

	// Samples caches item pages fetched for parameter derivation, keyed by
	// sample size. Several batteries derive scenarios from the same live
	// data; the cache keeps that to one request per size.
	Samples *cache.Cache[int, []map[string]any]

	// class is set by the orchestrator before dispatching a battery so
	// findings carry the advertised class URI.
	class string
}

// WithClass returns a shallow copy bound to the given class URI.
func (c *Context) WithClass(classURI string) *Context {
	bound := *c
	bound.class = classURI
	return &bound
}

// ClassURI returns the conformance class URI findings should carry.
func (c *Context) ClassURI() string {
	return c.class
}

// finding starts a builder pre-bound to the battery's class and check.
func (c *Context) finding(severity sv.Severity, ruleID, checkID string) *sv.FindingBuilder {
	return sv.NewFinding(severity, ruleID).Class(c.class).Check(checkID)
}

// prerequisiteAbsent records that a scenario could not even be attempted.
// This is an explicit FAIL, never a silent skip: the owning class is
// advertised, so the prerequisite should exist.
func (c *Context) prerequisiteAbsent(checkID, what string) sv.Finding {
	return c.finding(sv.SeverityFail, RulePrerequisite, checkID).
		Message(what + " is required but absent").
		Build()
}

// searchURL resolves the search endpoint, falling back to the
// specification-default path. fromLink is false on fallback.
func (c *Context) searchURL() (href string, fromLink bool) {
	return c.Discovery.Links.HrefOrDefault(stac.RelSearch)
}

// collectionsURL resolves the collections endpoint.
func (c *Context) collectionsURL() (href string, fromLink bool) {
	return c.Discovery.Links.HrefOrDefault(stac.RelData)
}

// get wraps a probe GET, converting a transport failure into a FAIL finding
// so a single unreachable endpoint degrades one scenario, not the run.
func (c *Context) get(ctx context.Context, checkID, ruleID, url string, query map[string][]string, accept string) (*probe.Response, *sv.Finding) {
	resp, err := c.Client.Get(ctx, url, query, accept)
	if err != nil {
		f := c.finding(sv.SeverityFail, ruleID, checkID).
			Message("request failed: "+err.Error()).
			With("url", url).
			Build()
		return nil, &f
	}
	return resp, nil
}

// expectStatus converts a status mismatch into a FAIL finding, or records a
// PASS when wantPass is set.
func (c *Context) expectStatus(checkID, ruleID string, resp *probe.Response, want int, scenario string) *sv.Finding {
	if resp.StatusCode == want {
		return nil
	}
	f := c.finding(sv.SeverityFail, ruleID, checkID).
		Message(scenario+" returned status "+httpStatus(resp.StatusCode)+", want "+httpStatus(want)).
		With("url", resp.URL).
		With("status", httpStatus(resp.StatusCode)).
		Build()
	return &f
}

func httpStatus(code int) string {
	return strconv.Itoa(code)
}

// classFor reports the advertised URI for a class.
func (c *Context) classFor(class conformance.Class, registryVersion string) string {
	return c.Discovery.ClassURI(class, registryVersion)
}
