// Package engine provides the main conformance validation engine. It
// discovers a deployment's capability set from its landing page and runs
// the check batteries for every advertised class.
package engine

import (
	"context"
	"fmt"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/cache"
	"github.com/jisantuc/stac-api-validator/check"
	"github.com/jisantuc/stac-api-validator/config"
	"github.com/jisantuc/stac-api-validator/conformance"
	"github.com/jisantuc/stac-api-validator/discovery"
	"github.com/jisantuc/stac-api-validator/pkg/logger"
	"github.com/jisantuc/stac-api-validator/probe"
	"github.com/jisantuc/stac-api-validator/schema"
	"github.com/jisantuc/stac-api-validator/worker"
)

// Validator coordinates discovery, check dispatch, and report assembly for
// one deployment.
type Validator struct {
	rootURL string
	options *sv.Options

	client    *probe.Client
	schema    *schema.Validator
	scenarios *config.Scenarios
	registry  *conformance.Registry
	checks    []check.Check

	metrics *sv.Metrics
}

// New creates a Validator for the deployment rooted at rootURL.
func New(rootURL string, opts ...sv.Option) (*Validator, error) {
	options := sv.DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	scenarios, err := config.Load(options.ScenarioVersion)
	if err != nil {
		return nil, err
	}

	metrics := sv.NewMetrics()

	policy := probe.DefaultRetryPolicy()
	policy.MaxAttempts = options.MaxAttempts

	client := probe.NewClient(
		probe.WithTimeout(options.RequestTimeout),
		probe.WithUserAgent(options.UserAgent),
		probe.WithRetryPolicy(policy),
		probe.WithMetrics(metrics),
	)

	checks := DefaultChecks()
	registry, err := buildRegistry(options.ScenarioVersion, checks)
	if err != nil {
		return nil, err
	}

	return &Validator{
		rootURL:   rootURL,
		options:   options,
		client:    client,
		schema:    schema.NewValidator(),
		scenarios: scenarios,
		registry:  registry,
		checks:    checks,
		metrics:   metrics,
	}, nil
}

// Options returns the resolved configuration.
func (v *Validator) Options() *sv.Options {
	return v.options
}

// Metrics returns the run's metrics collector.
func (v *Validator) Metrics() *sv.Metrics {
	return v.metrics
}

// Registry returns the class-to-check registry the run dispatches from.
func (v *Validator) Registry() *conformance.Registry {
	return v.registry
}

// Validate runs the full conformance suite and returns the finalized
// report. Only an unreachable or malformed landing page aborts the run,
// and even then the report carries a single fatal finding alongside the
// error. Every other failure becomes a finding. Cancelling the context
// yields a well-formed partial report and the context's error.
func (v *Validator) Validate(ctx context.Context) (*sv.Report, error) {
	report := sv.NewReport(v.rootURL)

	disc, err := discovery.New(v.client).Discover(ctx, v.rootURL)
	if err != nil {
		// The run still produces a report: the fatal condition is itself a
		// finding, so rendered output stays uniform.
		report.Add(sv.NewFinding(sv.SeverityFail, check.RuleRootUnreachable).
			Check("discovery").
			Message("landing page discovery failed: "+err.Error()).
			With("url", v.rootURL).
			Build())
		report.Finalize()
		return report, err
	}
	logger.Info("discovered %d conformance URI(s) at %s", len(disc.ConformsTo), v.rootURL)

	// Conformance URIs nobody recognizes still deserve a line in the
	// report: the deployment advertises something this suite cannot judge.
	for _, uri := range disc.UnknownURIs() {
		report.Add(sv.NewFinding(sv.SeveritySkip, check.RuleUnknownClass).
			Class(uri).
			Message("advertised conformance class is not recognized; no checks defined").
			Build())
	}

	cctx := &check.Context{
		Client:    v.client,
		Discovery: disc,
		Scenarios: v.scenarios,
		Schema:    v.schema,
		ProbePOST: v.options.ProbePOST,
		MaxPages:  v.options.MaxPages,
		Samples:   cache.New[int, []map[string]any](16),
	}

	pool := worker.NewPool(ctx, v.options.WorkerCount)

	for _, c := range v.checks {
		class := c.Class()
		classURI := disc.ClassURI(class, v.registry.Version())

		switch {
		case v.excluded(class, classURI):
			report.Add(sv.NewFinding(sv.SeveritySkip, check.RuleExcluded).
				Class(classURI).
				Check(c.ID()).
				Message("class excluded by configuration").
				Build())
		case !disc.Advertises(class):
			// Unadvertised classes are skipped without issuing a single
			// request against their endpoints.
			report.Add(sv.NewFinding(sv.SeveritySkip, check.RuleNotAdvertised).
				Class(classURI).
				Check(c.ID()).
				Message("conformance class is not advertised").
				Build())
		default:
			bound := cctx.WithClass(classURI)
			c := c
			pool.Submit(worker.Job{
				CheckID: c.ID(),
				Class:   classURI,
				Run: func(jobCtx context.Context) []sv.Finding {
					return c.Run(jobCtx, bound)
				},
			})
		}
	}

	for _, result := range pool.CloseAndWait() {
		if result.Err != nil {
			report.Add(sv.NewFinding(sv.SeverityFail, check.RuleInternalError).
				Class(result.Class).
				Check(result.CheckID).
				Message(result.Err.Error()).
				Build())
			continue
		}
		report.AddAll(result.Findings)
		v.metrics.RecordCheck(result.CheckID, result.Duration, len(result.Findings))
	}

	for _, f := range report.Findings {
		v.metrics.RecordFinding(f.Severity)
	}

	report.Finalize()
	tally := report.Tally()
	logger.Info("run complete: %d passed, %d warnings, %d failed, %d skipped",
		tally.Pass, tally.Warn, tally.Fail, tally.Skip)
	return report, ctx.Err()
}

// excluded matches an exclusion against either the short class name or the
// full URI.
func (v *Validator) excluded(class conformance.Class, classURI string) bool {
	return v.options.Excluded(string(class)) || v.options.Excluded(classURI)
}

// buildRegistry indexes the checks by class, rejecting duplicate ids.
func buildRegistry(version string, checks []check.Check) (*conformance.Registry, error) {
	b := conformance.NewRegistryBuilder(version)
	for _, c := range checks {
		b.Register(c.Class(), c.ID())
	}
	registry, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building check registry: %w", err)
	}
	return registry, nil
}

// DefaultChecks returns every battery the suite knows, in class order.
func DefaultChecks() []check.Check {
	return []check.Check{
		check.LandingLinks(),
		check.CatalogSchema(),
		check.Advertisement(),
		check.ConformancePage(),
		check.CollectionsList(),
		check.SearchBasic(),
		check.SearchLimit(),
		check.SearchBBox(),
		check.SearchDatetime(),
		check.SearchIDs(),
		check.SearchCollections(),
		check.SearchIntersects(),
		check.SearchPagination(),
		check.FieldsSubset(),
		check.SortOrder(),
		check.QueryRestrict(),
		check.FilterRestrict(),
		check.ChildrenList(),
		check.BrowseableTraverse(),
		check.TransactionLifecycle(),
	}
}
