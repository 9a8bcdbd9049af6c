package stacvalidator

import (
	"runtime"
	"time"
)

// Option configures a validation run.
type Option func(*Options)

// Options holds all configuration for a validation run.
type Options struct {
	// Probing
	RequestTimeout time.Duration
	MaxAttempts    int
	UserAgent      string

	// Feature toggles
	ProbePOST       bool
	ExcludedClasses []string

	// Concurrency
	WorkerCount int

	// Pagination
	MaxPages int

	// Scenario configuration version (selects the parameter matrices).
	ScenarioVersion string
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		RequestTimeout:  30 * time.Second,
		MaxAttempts:     3,
		UserAgent:       "stac-api-validator/" + Version,
		ProbePOST:       false,
		WorkerCount:     runtime.NumCPU(),
		MaxPages:        20,
		ScenarioVersion: "1.0.0",
	}
}

// WithRequestTimeout bounds each HTTP call. Exceeding the timeout yields a
// FAIL finding for that scenario rather than aborting the run.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.RequestTimeout = d
	}
}

// WithMaxAttempts sets the retry budget for transient network failures.
// Non-transient results (any 4xx/5xx) are never retried.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		o.MaxAttempts = n
	}
}

// WithUserAgent sets the User-Agent header sent on probes.
func WithUserAgent(ua string) Option {
	return func(o *Options) {
		o.UserAgent = ua
	}
}

// WithPOST enables POST variants of search scenarios.
func WithPOST(enable bool) Option {
	return func(o *Options) {
		o.ProbePOST = enable
	}
}

// WithExcludedClasses suppresses checks for the given conformance class URIs,
// e.g. the transaction class against a read-only deployment.
func WithExcludedClasses(classes ...string) Option {
	return func(o *Options) {
		o.ExcludedClasses = append(o.ExcludedClasses, classes...)
	}
}

// WithWorkerCount bounds the number of conformance class batteries probed
// concurrently. Values <= 0 fall back to runtime.NumCPU().
func WithWorkerCount(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.WorkerCount = n
		}
	}
}

// WithMaxPages caps pagination chains.
func WithMaxPages(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxPages = n
		}
	}
}

// WithScenarioVersion selects the scenario configuration version.
func WithScenarioVersion(v string) Option {
	return func(o *Options) {
		o.ScenarioVersion = v
	}
}

// Excluded reports whether a conformance class URI is excluded.
func (o *Options) Excluded(class string) bool {
	for _, c := range o.ExcludedClasses {
		if c == class {
			return true
		}
	}
	return false
}
