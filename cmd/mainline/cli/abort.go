package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/workflow"
)

func newAbortCmd() *cobra.Command {
	var (
		branch       string
		deleteBranch bool
		force        bool
		yes          bool
	)

	cmd := &cobra.Command{
		Use:   "abort",
		Short: "Abandon a session",
		Long: "Terminate a session without merging. Uncommitted changes are stashed and the\n" +
			"stash ref recorded on the session so the work can be recovered later.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp("abort")
			if err != nil {
				return err
			}

			target := branch
			if target == "" {
				target = "the current branch"
			}
			ok, err := confirm("Abort the session on "+target+"?", yes)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "○ abort cancelled")
				return nil
			}

			res, err := a.Orchestrator.Abort(cmd.Context(), workflow.AbortOptions{
				BranchName:   branch,
				DeleteBranch: deleteBranch,
				Force:        force,
			})
			writeSessionResult(cmd.OutOrStdout(), res)
			return err
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch whose session to abort (defaults to current)")
	cmd.Flags().BoolVar(&deleteBranch, "delete-branch", false, "Also delete the branch locally and remotely")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Abandon uncommitted changes instead of stashing")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
