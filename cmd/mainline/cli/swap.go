package cli

import (
	"github.com/spf13/cobra"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/workflow"
)

func newSwapCmd() *cobra.Command {
	var (
		stash bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "swap <branch>",
		Short: "Switch to another session's branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp("swap")
			if err != nil {
				return err
			}

			res, err := a.Orchestrator.Swap(cmd.Context(), workflow.SwapOptions{
				BranchName: args[0],
				Stash:      stash,
				Force:      force,
			})
			writeSessionResult(cmd.OutOrStdout(), res)
			return err
		},
	}

	cmd.Flags().BoolVarP(&stash, "stash", "s", false, "Stash uncommitted changes before switching")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Switch even with uncommitted changes")

	return cmd
}
