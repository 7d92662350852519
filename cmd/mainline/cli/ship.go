package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/forge"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/workflow"
)

func newShipCmd() *cobra.Command {
	var (
		title       string
		description string
		force       bool
		yes         bool
	)

	cmd := &cobra.Command{
		Use:   "ship",
		Short: "Push, open a pull request, wait for CI, and squash-merge",
		Long: "Run the full delivery pipeline for the current session branch: commit any\n" +
			"leftover changes, push, create or update the pull request, wait for checks,\n" +
			"squash-merge, sync the default branch, and delete the feature branch.\n" +
			"A failed step leaves the session parked at the last completed stage;\n" +
			"re-running ship resumes from there.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp("ship")
			if err != nil {
				return err
			}

			ok, err := confirm("Ship this branch? This merges into "+a.Config.DefaultBranch+" and deletes the branch.", yes)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "○ ship cancelled")
				return nil
			}

			out := cmd.OutOrStdout()
			res, err := a.Orchestrator.Ship(cmd.Context(), workflow.ShipOptions{
				PRTitle:       title,
				PRDescription: description,
				Force:         force,
				OnProgress: func(cs forge.CheckStatus) {
					fmt.Fprintf(out, "  checks: %d passed, %d pending, %d failed\n",
						cs.Passed, cs.Pending, cs.Failed)
				},
			})
			writeForgeResult(out, res)
			return err
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Pull request title (defaults to the branch name)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Pull request description")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Demote blocking pre-flight failures to warnings")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
