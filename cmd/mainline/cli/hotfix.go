package cli

import (
	"github.com/spf13/cobra"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/workflow"
)

func newHotfixCmd() *cobra.Command {
	var (
		rollback bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "hotfix [branch]",
		Short: "Drive an expedited hotfix workflow",
		Long: "With a branch name, start a hotfix session. Without one, advance the active\n" +
			"hotfix session on the current branch by one stage: commit, push, validate,\n" +
			"deploy, then merge back into the default branch.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp("hotfix")
			if err != nil {
				return err
			}

			opts := workflow.HotfixOptions{
				Rollback: rollback,
				Force:    force,
			}
			if len(args) == 1 {
				opts.BranchName = args[0]
			}

			res, err := a.Orchestrator.Hotfix(cmd.Context(), opts)
			writeSessionResult(cmd.OutOrStdout(), res)
			return err
		},
	}

	cmd.Flags().BoolVar(&rollback, "rollback", false, "Roll a validated or deployed hotfix back to ready")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Demote blocking pre-flight failures to warnings")

	return cmd
}
