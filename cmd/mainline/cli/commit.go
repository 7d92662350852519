package cli

import (
	"github.com/spf13/cobra"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/workflow"
)

func newCommitCmd() *cobra.Command {
	var (
		message    string
		stagedOnly bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit working tree changes on the session branch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp("commit")
			if err != nil {
				return err
			}

			res, err := a.Orchestrator.Commit(cmd.Context(), workflow.CommitOptions{
				Message:    message,
				StagedOnly: stagedOnly,
				Force:      force,
			})
			writeSessionResult(cmd.OutOrStdout(), res)
			return err
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message (defaults to a branch-derived message)")
	cmd.Flags().BoolVar(&stagedOnly, "staged", false, "Commit only what is already staged")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Demote blocking pre-flight failures to warnings")

	return cmd
}
