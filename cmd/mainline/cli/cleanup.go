package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/workflow"
)

func newCleanupCmd() *cobra.Command {
	var (
		dryRun bool
		days   int
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Sync the default branch and remove stale leftovers",
		Long: "Fast-forward the default branch, delete local branches with no active session,\n" +
			"remove terminal or expired sessions past the age threshold, and reclaim stale locks.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp("cleanup")
			if err != nil {
				return err
			}

			if !dryRun {
				ok, err := confirm("Delete orphan branches and stale sessions?", yes)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "○ cleanup cancelled")
					return nil
				}
			}

			res, err := a.Orchestrator.Cleanup(cmd.Context(), workflow.CleanupOptions{
				DryRun: dryRun,
				Days:   days,
			})
			out := cmd.OutOrStdout()
			if res != nil {
				if report, ok := res.Data.(*workflow.CleanupReport); ok {
					verb := "deleted"
					if report.DryRun {
						verb = "would delete"
					}
					for _, b := range report.OrphanBranches {
						fmt.Fprintf(out, "  %s branch %s\n", verb, b)
					}
					for _, id := range report.DeletedSessions {
						fmt.Fprintf(out, "  %s session %s\n", verb, id)
					}
					for _, l := range report.ReclaimedLocks {
						fmt.Fprintf(out, "  reclaimed lock %s\n", l)
					}
				}
				writeStrings(out, "Warnings:", res.Warnings)
				if res.Message != "" {
					fmt.Fprintln(out, res.Message)
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report what would be removed without removing anything")
	cmd.Flags().IntVar(&days, "days", 0, "Session age threshold in days (default from config)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
