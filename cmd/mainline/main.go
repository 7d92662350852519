package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mainlinehq/mainline/cmd/mainline/cli"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/logging"
)

func main() {
	// Cancel all in-flight operations on interrupt; every operation leaves
	// the session at a consistent resting state when its context ends.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCmd()
	err := rootCmd.ExecuteContext(ctx)

	logging.Close()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	stop()
	os.Exit(cli.ExitCode(err))
}
