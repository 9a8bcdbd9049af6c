package stacvalidator

// Severity represents the outcome of a single conformance check scenario.
type Severity string

const (
	// SeverityPass indicates the deployment satisfied the check.
	SeverityPass Severity = "PASS"
	// SeverityWarn indicates non-fatal divergence from the specification.
	SeverityWarn Severity = "WARN"
	// SeverityFail indicates a conformance violation.
	SeverityFail Severity = "FAIL"
	// SeveritySkip indicates the owning conformance class is not advertised.
	SeveritySkip Severity = "SKIP"
)

// Finding is a single validation result. Findings are immutable once built:
// they are created during probing and rule evaluation, appended to the
// Report, and never mutated afterward.
type Finding struct {
	// Severity of the finding.
	Severity Severity `json:"severity"`

	// RuleID identifies the specification rule the finding traces to,
	// e.g. "search.bbox.invalid-400".
	RuleID string `json:"ruleId"`

	// Class is the conformance class URI owning the check.
	Class string `json:"class"`

	// CheckID identifies the check battery that produced the finding.
	CheckID string `json:"checkId"`

	// Message contains human-readable details.
	Message string `json:"message"`

	// Context carries scenario parameters and identifiers relevant to the
	// finding (request URL, status code, created item id, ...).
	Context map[string]string `json:"context,omitempty"`
}

// IsFail reports whether the finding is a conformance violation.
func (f Finding) IsFail() bool {
	return f.Severity == SeverityFail
}

// IsWarn reports whether the finding is a warning.
func (f Finding) IsWarn() bool {
	return f.Severity == SeverityWarn
}

// String returns a human-readable representation of the finding.
func (f Finding) String() string {
	return string(f.Severity) + " [" + f.RuleID + "] " + f.Message
}

// FindingBuilder provides a fluent API for building findings.
type FindingBuilder struct {
	finding Finding
}

// NewFinding creates a new FindingBuilder.
func NewFinding(severity Severity, ruleID string) *FindingBuilder {
	return &FindingBuilder{
		finding: Finding{
			Severity: severity,
			RuleID:   ruleID,
		},
	}
}

// Pass creates a PASS finding builder.
func Pass(ruleID string) *FindingBuilder {
	return NewFinding(SeverityPass, ruleID)
}

// Warn creates a WARN finding builder.
func Warn(ruleID string) *FindingBuilder {
	return NewFinding(SeverityWarn, ruleID)
}

// Fail creates a FAIL finding builder.
func Fail(ruleID string) *FindingBuilder {
	return NewFinding(SeverityFail, ruleID)
}

// Skip creates a SKIP finding builder.
func Skip(ruleID string) *FindingBuilder {
	return NewFinding(SeveritySkip, ruleID)
}

// Class sets the conformance class URI.
func (b *FindingBuilder) Class(class string) *FindingBuilder {
	b.finding.Class = class
	return b
}

// Check sets the check id.
func (b *FindingBuilder) Check(id string) *FindingBuilder {
	b.finding.CheckID = id
	return b
}

// Message sets the message.
func (b *FindingBuilder) Message(msg string) *FindingBuilder {
	b.finding.Message = msg
	return b
}

// With adds a context key/value pair.
func (b *FindingBuilder) With(key, value string) *FindingBuilder {
	if b.finding.Context == nil {
		b.finding.Context = make(map[string]string, 4)
	}
	b.finding.Context[key] = value
	return b
}

// Build returns the constructed finding.
func (b *FindingBuilder) Build() Finding {
	return b.finding
}
