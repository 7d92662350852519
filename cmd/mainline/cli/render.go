package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/checks"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/workflow"
)

// writeChecks prints a check result list, one line per check.
func writeChecks(w io.Writer, header string, results []checks.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, header)
	for _, r := range results {
		mark := "✓"
		if !r.Passed {
			mark = "✕"
			if r.Severity != checks.SeverityError {
				mark = "!"
			}
		}
		fmt.Fprintf(w, "  %s %s", mark, r.Name)
		if !r.Passed && r.Message != "" {
			fmt.Fprintf(w, ": %s", r.Message)
		}
		fmt.Fprintln(w)
		if !r.Passed && r.Details != nil && r.Details.Suggestion != "" {
			fmt.Fprintf(w, "      hint: %s\n", r.Details.Suggestion)
		}
	}
}

func writeStrings(w io.Writer, header string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(w, header)
	for _, l := range lines {
		fmt.Fprintf(w, "  %s\n", l)
	}
}

// writeSessionResult renders a session-mutating operation's outcome.
func writeSessionResult(w io.Writer, res *workflow.SessionResult) {
	if res == nil {
		return
	}
	writeChecks(w, "Pre-flight:", res.PreFlight)
	writeChecks(w, "Verification:", res.PostFlight)
	writeStrings(w, "Warnings:", res.Warnings)
	if res.Success {
		fmt.Fprintf(w, "✓ %s (%s)\n", res.BranchName, res.State)
	}
	writeStrings(w, "Next steps:", res.NextSteps)
}

// writeForgeResult renders a ship outcome.
func writeForgeResult(w io.Writer, res *workflow.ForgeResult) {
	if res == nil {
		return
	}
	writeChecks(w, "Pre-flight:", res.PreFlight)
	writeStrings(w, "Warnings:", res.Warnings)
	if res.PRNumber > 0 {
		fmt.Fprintf(w, "PR #%d %s\n", res.PRNumber, res.PRURL)
	}
	if res.Checks != nil {
		fmt.Fprintf(w, "Checks: %d passed, %d pending, %d failed\n",
			res.Checks.Passed, res.Checks.Pending, res.Checks.Failed)
	}
	writeStrings(w, "Failed checks:", res.FailedChecks)
	if res.Success && res.Merged {
		fmt.Fprintf(w, "✓ %s merged and cleaned up\n", res.BranchName)
	} else if res.FailedStep != "" {
		fmt.Fprintf(w, "✕ stopped at %s (%s)\n", res.FailedStep, res.State)
	}
	writeStrings(w, "Next steps:", res.NextSteps)
}

// timeAgo formats a time as a human-readable relative duration.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
