package stacvalidator

import (
	"sort"
	"sync"
)

// Report collects findings produced during a validation run.
// It is append-only while the run is in progress and finalized exactly once;
// grouping, not execution order, defines its structure, so the rendered
// report is stable regardless of concurrency scheduling.
type Report struct {
	// RootURL is the deployment the report describes.
	RootURL string `json:"rootUrl"`

	// Findings contains all findings in append order.
	Findings []Finding `json:"findings"`

	mu        sync.Mutex
	finalized bool
}

// NewReport creates an empty report for the given root URL.
func NewReport(rootURL string) *Report {
	return &Report{
		RootURL:  rootURL,
		Findings: make([]Finding, 0, 64),
	}
}

// Add appends a finding to the report. Adding to a finalized report is a
// programming error and the finding is dropped; callers hold the only
// reference to the report until Finalize.
func (r *Report) Add(finding Finding) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return
	}
	r.Findings = append(r.Findings, finding)
}

// AddAll appends multiple findings.
func (r *Report) AddAll(findings []Finding) {
	if len(findings) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return
	}
	r.Findings = append(r.Findings, findings...)
}

// Finalize marks the report complete. Subsequent Add calls are no-ops.
// It is safe to call Finalize more than once; only the first call has effect.
func (r *Report) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized = true
}

// Finalized reports whether the report has been finalized.
func (r *Report) Finalized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalized
}

// HasFailures returns true if any FAIL finding exists.
func (r *Report) HasFailures() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range r.Findings {
		if f.IsFail() {
			return true
		}
	}
	return false
}

// Count returns the number of findings with the given severity.
func (r *Report) Count(severity Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, f := range r.Findings {
		if f.Severity == severity {
			count++
		}
	}
	return count
}

// Tally holds per-severity finding counts.
type Tally struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
	Skip int `json:"skip"`
}

// Tally computes severity counts across all findings.
func (r *Report) Tally() Tally {
	r.mu.Lock()
	defer r.mu.Unlock()

	var t Tally
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityPass:
			t.Pass++
		case SeverityWarn:
			t.Warn++
		case SeverityFail:
			t.Fail++
		case SeveritySkip:
			t.Skip++
		}
	}
	return t
}

// ClassGroup holds the findings for one conformance class, sub-grouped by
// check id in lexical order.
type ClassGroup struct {
	Class  string       `json:"class"`
	Checks []CheckGroup `json:"checks"`
}

// CheckGroup holds the findings for one check within a class.
type CheckGroup struct {
	CheckID  string    `json:"checkId"`
	Findings []Finding `json:"findings"`
}

// Grouped returns findings grouped by conformance class, then check id.
// Classes and checks sort lexically; findings within a check sort by rule id
// then message, so two runs over an unchanged deployment group identically.
func (r *Report) Grouped() []ClassGroup {
	r.mu.Lock()
	defer r.mu.Unlock()

	byClass := make(map[string]map[string][]Finding)
	for _, f := range r.Findings {
		checks, ok := byClass[f.Class]
		if !ok {
			checks = make(map[string][]Finding)
			byClass[f.Class] = checks
		}
		checks[f.CheckID] = append(checks[f.CheckID], f)
	}

	classes := make([]string, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	groups := make([]ClassGroup, 0, len(classes))
	for _, class := range classes {
		checks := byClass[class]
		checkIDs := make([]string, 0, len(checks))
		for id := range checks {
			checkIDs = append(checkIDs, id)
		}
		sort.Strings(checkIDs)

		cg := ClassGroup{Class: class, Checks: make([]CheckGroup, 0, len(checkIDs))}
		for _, id := range checkIDs {
			findings := checks[id]
			sort.SliceStable(findings, func(i, j int) bool {
				if findings[i].RuleID != findings[j].RuleID {
					return findings[i].RuleID < findings[j].RuleID
				}
				return findings[i].Message < findings[j].Message
			})
			cg.Checks = append(cg.Checks, CheckGroup{CheckID: id, Findings: findings})
		}
		groups = append(groups, cg)
	}
	return groups
}

// Failures returns all FAIL findings.
func (r *Report) Failures() []Finding {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failures []Finding
	for _, f := range r.Findings {
		if f.IsFail() {
			failures = append(failures, f)
		}
	}
	return failures
}
