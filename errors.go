package stacvalidator

import "fmt"

// The error taxonomy below is carried as data through return values into
// findings. Only FatalRootUnreachable aborts a run; every other kind degrades
// the affected check and evaluation continues.

// FetchError indicates a network-level failure reaching an endpoint.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// HTTPStatusError indicates an endpoint answered with an unexpected status.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Want       int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s returned status %d, want %d", e.URL, e.StatusCode, e.Want)
}

// SchemaValidationError indicates a document failed validation against its
// specification schema.
type SchemaValidationError struct {
	DocumentType string
	Path         string
	Message      string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("%s invalid at %s: %s", e.DocumentType, e.Path, e.Message)
}

// RuleViolation indicates a behavioral rule was broken by the deployment.
type RuleViolation struct {
	RuleID  string
	Message string
}

func (e *RuleViolation) Error() string {
	return fmt.Sprintf("rule %s violated: %s", e.RuleID, e.Message)
}

// UnsupportedVersion indicates no schema bundle matches the document's
// declared specification version. It degrades one check, never the run.
type UnsupportedVersion struct {
	Version string
}

func (e *UnsupportedVersion) Error() string {
	return fmt.Sprintf("no schema bundle for STAC version %q", e.Version)
}

// FatalRootUnreachable indicates the root URL could not be fetched at all.
// This is the only error that aborts a run.
type FatalRootUnreachable struct {
	URL string
	Err error
}

func (e *FatalRootUnreachable) Error() string {
	return fmt.Sprintf("root URL %s unreachable: %v", e.URL, e.Err)
}

func (e *FatalRootUnreachable) Unwrap() error {
	return e.Err
}
