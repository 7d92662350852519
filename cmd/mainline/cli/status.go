package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/workflow"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current branch, session, and working tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp("status")
			if err != nil {
				return err
			}

			res, err := a.Orchestrator.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			writeStatus(out, res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the full status as JSON")

	return cmd
}

func writeStatus(w io.Writer, res *workflow.QueryResult) {
	data, ok := res.Data.(*workflow.StatusData)
	if !ok {
		fmt.Fprintln(w, res.Message)
		return
	}

	fmt.Fprintf(w, "Branch: %s\n", data.Branch)
	if bs := data.BranchStatus; bs != nil {
		tree := "clean"
		if !bs.IsClean {
			tree = "dirty"
		}
		remote := "no remote branch"
		if bs.HasRemote {
			remote = fmt.Sprintf("%d ahead, %d behind", bs.Ahead, bs.Behind)
		}
		fmt.Fprintf(w, "Tree:   %s (%s)\n", tree, remote)
	}
	if ds := data.DiffStat; ds != nil && ds.FilesChanged > 0 {
		fmt.Fprintf(w, "Diff:   %d files, +%d -%d\n", ds.FilesChanged, ds.LinesAdded, ds.LinesRemoved)
	}

	if data.SessionID == "" {
		fmt.Fprintln(w, "○ no session on this branch")
	} else {
		fmt.Fprintf(w, "Session: %s [%s] %s", data.SessionID, data.WorkflowType, data.State)
		if data.UpdatedAt != nil {
			fmt.Fprintf(w, " (updated %s)", timeAgo(*data.UpdatedAt))
		}
		fmt.Fprintln(w)
		if data.PRNumber > 0 {
			fmt.Fprintf(w, "PR:      #%d %s\n", data.PRNumber, data.PRURL)
		}
		if len(data.NextStates) > 0 {
			fmt.Fprint(w, "Next:    ")
			for i, st := range data.NextStates {
				if i > 0 {
					fmt.Fprint(w, ", ")
				}
				fmt.Fprint(w, string(st))
			}
			fmt.Fprintln(w)
		}
	}

	writeStrings(w, "Warnings:", res.Warnings)
}
