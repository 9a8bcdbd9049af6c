package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	sv "github.com/jisantuc/stac-api-validator"
)

// Exit codes.
const (
	ExitSuccess      = 0 // run completed, no FAIL findings
	ExitFailure      = 1 // run completed with FAIL findings
	ExitCommandError = 2 // run could not complete (bad flags, unreachable root)
)

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. A plain error maps to
// ExitCommandError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// RenderText writes the report grouped by conformance class and check, one
// finding per line, with a tally footer.
func RenderText(w io.Writer, report *sv.Report) error {
	fmt.Fprintf(w, "validating %s\n", report.RootURL)

	for _, class := range report.Grouped() {
		fmt.Fprintf(w, "\n%s\n", class.Class)
		for _, chk := range class.Checks {
			fmt.Fprintf(w, "  %s\n", chk.CheckID)
			for _, f := range chk.Findings {
				fmt.Fprintf(w, "    [%s] %s: %s\n", f.Severity, f.RuleID, f.Message)
				for _, key := range sortedKeys(f.Context) {
					fmt.Fprintf(w, "          %s=%s\n", key, f.Context[key])
				}
			}
		}
	}

	tally := report.Tally()
	fmt.Fprintf(w, "\n%d passed, %d warnings, %d failed, %d skipped\n",
		tally.Pass, tally.Warn, tally.Fail, tally.Skip)
	return nil
}

// jsonReport is the stable JSON rendering of a report.
type jsonReport struct {
	RootURL string           `json:"root_url"`
	Tally   sv.Tally         `json:"tally"`
	Classes []jsonClassGroup `json:"classes"`
}

type jsonClassGroup struct {
	Class  string           `json:"class"`
	Checks []jsonCheckGroup `json:"checks"`
}

type jsonCheckGroup struct {
	CheckID  string       `json:"check"`
	Findings []sv.Finding `json:"findings"`
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, report *sv.Report) error {
	out := jsonReport{
		RootURL: report.RootURL,
		Tally:   report.Tally(),
	}
	for _, class := range report.Grouped() {
		jc := jsonClassGroup{Class: class.Class}
		for _, chk := range class.Checks {
			jc.Checks = append(jc.Checks, jsonCheckGroup{CheckID: chk.CheckID, Findings: chk.Findings})
		}
		out.Classes = append(out.Classes, jc)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
