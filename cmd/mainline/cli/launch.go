package cli

import (
	"github.com/spf13/cobra"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/workflow"
)

func newLaunchCmd() *cobra.Command {
	var (
		description string
		force       bool
		stashRef    string
	)

	cmd := &cobra.Command{
		Use:   "launch <branch>",
		Short: "Start a new workflow session on a fresh branch",
		Long: "Create a feature branch off the default branch and open a session that tracks it.\n" +
			"Refuses when the working tree is dirty, the default branch is behind the remote,\n" +
			"or the branch name has already been through a merged pull request.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp("launch")
			if err != nil {
				return err
			}

			res, err := a.Orchestrator.Launch(cmd.Context(), workflow.LaunchOptions{
				BranchName:  args[0],
				Description: description,
				Force:       force,
				StashRef:    stashRef,
			})
			writeSessionResult(cmd.OutOrStdout(), res)
			return err
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Short description stored on the session")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Demote blocking pre-flight failures to warnings")
	cmd.Flags().StringVar(&stashRef, "apply-stash", "", "Stash ref to apply onto the new branch")

	return cmd
}
