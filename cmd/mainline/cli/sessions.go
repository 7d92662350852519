package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/workflow"
)

func newSessionsCmd() *cobra.Command {
	var (
		all     bool
		asJSON  bool
		auditID string
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List workflow sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp("sessions")
			if err != nil {
				return err
			}

			if auditID != "" {
				return writeAuditTrail(cmd, a, auditID, asJSON)
			}

			res, err := a.Orchestrator.Sessions(cmd.Context(), all)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			rows, ok := res.Data.([]workflow.SessionSummary)
			if !ok || len(rows) == 0 {
				fmt.Fprintln(out, "○ no sessions")
				return nil
			}

			tw := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tBRANCH\tTYPE\tSTATE\tPR\tUPDATED")
			for _, r := range rows {
				id := r.ID
				if len(id) > 8 {
					id = id[:8]
				}
				pr := "-"
				if r.PRNumber > 0 {
					pr = fmt.Sprintf("#%d", r.PRNumber)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					id, r.BranchName, r.WorkflowType, r.State, pr, timeAgo(r.UpdatedAt))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include completed and aborted sessions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the listing as JSON")
	cmd.Flags().StringVar(&auditID, "audit", "", "Replay the audit trail for a session ID")

	return cmd
}

// writeAuditTrail replays a session's audit entries in order.
func writeAuditTrail(cmd *cobra.Command, a *app, sessionID string, asJSON bool) error {
	entries, err := a.Audit.ForSession(sessionID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintf(out, "○ no audit entries for session %s\n", sessionID)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %-8s %s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Operation, e.Event)
		if e.From != "" || e.To != "" {
			fmt.Fprintf(out, "  %s -> %s", e.From, e.To)
		}
		if e.Message != "" {
			fmt.Fprintf(out, "  %s", e.Message)
		}
		fmt.Fprintln(out)
	}
	return nil
}
