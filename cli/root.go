// Package cli implements the stac-api-validator command line interface.
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/engine"
	"github.com/jisantuc/stac-api-validator/pkg/logger"
)

// RootOptions holds the flags of the validate command.
type RootOptions struct {
	Format      string // "text" | "json"
	Output      string // file path, empty for stdout
	Exclude     []string
	POST        bool
	Timeout     time.Duration
	MaxAttempts int
	Concurrency int
	MaxPages    int
	UserAgent   string
	Verbose     bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stac-api-validator <root-url>",
		Short: "Validate a STAC API deployment against the specification",
		Long: "Probes a live STAC API deployment, discovers its advertised conformance\n" +
			"classes, and runs the check batteries for each. Exit code 0 means no\n" +
			"failures, 1 means conformance failures, 2 means the run could not complete.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			logger.SetOutput(cmd.ErrOrStderr())
			if opts.Verbose {
				logger.SetLevel(logger.LevelDebug)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "conformance classes to skip (name or URI, repeatable)")
	cmd.Flags().BoolVar(&opts.POST, "post", false, "also probe POST variants of search scenarios")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-request timeout")
	cmd.Flags().IntVar(&opts.MaxAttempts, "max-attempts", 3, "retry budget for transient network failures")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "concurrent check batteries (0 = number of CPUs)")
	cmd.Flags().IntVar(&opts.MaxPages, "max-pages", 20, "pagination chain cap")
	cmd.Flags().StringVar(&opts.UserAgent, "user-agent", "", "override the User-Agent header")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func runValidate(cmd *cobra.Command, opts *RootOptions, rootURL string) error {
	engineOpts := []sv.Option{
		sv.WithRequestTimeout(opts.Timeout),
		sv.WithMaxAttempts(opts.MaxAttempts),
		sv.WithPOST(opts.POST),
		sv.WithWorkerCount(opts.Concurrency),
		sv.WithMaxPages(opts.MaxPages),
		sv.WithExcludedClasses(opts.Exclude...),
	}
	if opts.UserAgent != "" {
		engineOpts = append(engineOpts, sv.WithUserAgent(opts.UserAgent))
	}

	v, err := engine.New(rootURL, engineOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "configuring the validator", err)
	}

	logger.Info("validating %s", rootURL)
	report, err := v.Validate(cmd.Context())
	var fatalErr error
	if err != nil {
		var fatal *sv.FatalRootUnreachable
		switch {
		case errors.As(err, &fatal):
			// The report carries the fatal finding; render it before exiting.
			fatalErr = WrapExitError(ExitCommandError, "landing page unreachable", err)
		case report == nil:
			return WrapExitError(ExitCommandError, "validation aborted", err)
		default:
			// Cancellation mid-run still renders the partial report below.
			logger.Warn("run interrupted: %v", err)
		}
	}

	out := cmd.OutOrStdout()
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return WrapExitError(ExitCommandError, "opening output file", err)
		}
		defer f.Close()
		out = f
	}

	switch opts.Format {
	case "json":
		err = RenderJSON(out, report)
	default:
		err = RenderText(out, report)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "writing the report", err)
	}
	if fatalErr != nil {
		return fatalErr
	}

	if report.HasFailures() {
		tally := report.Tally()
		return NewExitError(ExitFailure, fmt.Sprintf("%d conformance failure(s)", tally.Fail))
	}
	return nil
}

// NewVersionCommand creates the version subcommand.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the validator version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stac-api-validator v%s\n", sv.Version)
		},
	}
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
