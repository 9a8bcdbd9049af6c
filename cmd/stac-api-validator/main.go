// Command stac-api-validator probes a live STAC API deployment and reports
// how it diverges from the specification.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jisantuc/stac-api-validator/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "stac-api-validator: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
