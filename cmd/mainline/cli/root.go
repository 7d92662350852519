// Package cli wires the mainline commands: flag parsing, confirmation
// prompts, and result rendering on top of the workflow orchestrator.
package cli

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/config"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/forge"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/paths"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/telemetry"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/versioncheck"
)

const gettingStarted = `

Getting Started:
  Run 'mainline init' inside a git repository to configure the forge
  connection, then 'mainline launch <branch>' to start a workflow.

`

const accessibilityHelp = `
Environment Variables:
  ACCESSIBLE    Set to any value (e.g., ACCESSIBLE=1) to enable accessibility
                mode. This uses simpler text prompts instead of interactive
                TUI elements, which works better with screen readers.
`

// Version information (can be set at build time)
var (
	Version = "dev"
	Commit  = "unknown"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mainline",
		Short: "Linear-history git workflow automation",
		Long:  "Mainline drives feature branches from launch to squash-merge" + gettingStarted + accessibilityHelp,
		// Let main.go handle error printing to avoid duplication
		SilenceErrors: true,
		SilenceUsage:  true,
		// Hide completion command from help but keep it functional
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			// Load telemetry preference from config (ignore errors - nil defaults to disabled)
			var telemetryEnabled *bool
			if stateRoot, err := paths.StateRoot(); err == nil {
				if cfg, err := config.Load(stateRoot); err == nil {
					telemetryEnabled = cfg.Telemetry
				}
			}

			telemetryClient := telemetry.NewClient(Version, telemetryEnabled)
			defer telemetryClient.Close()
			telemetryClient.TrackCommand(cmd, true)

			// Release lookups on mainline's own repository are anonymous; no
			// token needed for public release metadata.
			releases := forge.NewGitHub("mainlinehq", "mainline", "", 2*time.Second)
			versioncheck.CheckAndNotify(cmd, Version, releases.LatestReleaseTag)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newLaunchCmd())
	cmd.AddCommand(newCommitCmd())
	cmd.AddCommand(newShipCmd())
	cmd.AddCommand(newAbortCmd())
	cmd.AddCommand(newSwapCmd())
	cmd.AddCommand(newCleanupCmd())
	cmd.AddCommand(newHotfixCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("mainline %s (%s)\n", Version, Commit)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
