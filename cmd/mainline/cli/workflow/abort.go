package workflow

import (
	"context"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/audit"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/checks"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/logging"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

// AbortOptions configures Abort.
type AbortOptions struct {
	// BranchName selects the session to abort; empty means the current branch.
	BranchName string

	// DeleteBranch removes the branch locally (and remotely if pushed).
	DeleteBranch bool

	// Force skips stashing and abandons uncommitted changes to the tree.
	Force bool
}

// Abort terminates a session: uncommitted changes are stashed (the ref is
// kept in session metadata), the session moves to ABORTED, and the caller is
// returned to the default branch.
func (o *Orchestrator) Abort(ctx context.Context, opts AbortOptions) (*SessionResult, error) {
	res := &SessionResult{}
	ctx = logging.WithOperation(ctx, "abort")

	branch := opts.BranchName
	if branch == "" {
		cur, err := o.git.CurrentBranch(ctx)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			return res, err
		}
		branch = cur
	}
	res.BranchName = branch
	ctx = logging.WithBranch(ctx, branch)

	s, err := o.activeSession(branch)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	res.SessionID = s.ID
	res.State = s.CurrentState
	ctx = logging.WithSession(ctx, s.ID)

	err = o.withLock(s, func() error {
		if err := checkCtx(ctx); err != nil {
			return err
		}

		onBranch, cerr := o.git.CurrentBranch(ctx)
		if cerr != nil {
			return cerr
		}

		if onBranch == branch && !opts.Force {
			dirty, derr := o.git.HasUncommittedChanges(ctx)
			if derr != nil {
				return derr
			}
			if dirty {
				ref, serr := o.git.Stash(ctx, "abort "+branch)
				if serr != nil {
					return &StepError{Step: "stash changes", Err: serr}
				}
				s.Metadata.StashRef = ref
				res.Warnings = append(res.Warnings, "uncommitted changes stashed as "+ref)
			}
		}

		if err := o.transition(ctx, "abort", s, state.StateAborted, nil); err != nil {
			return err
		}
		o.record(ctx, audit.Entry{
			Operation: "abort", Event: "session_aborted",
			SessionID: s.ID, Branch: branch,
		})

		if onBranch == branch {
			if err := o.git.CheckoutBranch(ctx, o.cfg.DefaultBranch); err != nil {
				return &StepError{Step: "checkout " + o.cfg.DefaultBranch, Err: err}
			}
		}

		if opts.DeleteBranch {
			if err := o.git.DeleteBranch(ctx, branch, true); err != nil {
				res.Warnings = append(res.Warnings, "delete local branch: "+err.Error())
			}
			if onRemote, rerr := o.git.BranchExistsRemote(ctx, branch); rerr == nil && onRemote {
				if err := o.git.DeleteRemoteBranch(ctx, branch); err != nil {
					res.Warnings = append(res.Warnings, "delete remote branch: "+err.Error())
				}
			}
		}
		return nil
	})
	if err != nil {
		res.State = s.CurrentState
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}

	res.State = s.CurrentState
	res.PostFlight = o.verifyAbort(ctx, s, opts.DeleteBranch)
	res.Success = true
	if s.Metadata.StashRef != "" {
		res.NextSteps = append(res.NextSteps,
			"recover the stashed changes with 'git stash apply "+s.Metadata.StashRef+"'")
	}
	return res, nil
}

// verifyAbort runs the post-flight verifications for abort.
func (o *Orchestrator) verifyAbort(ctx context.Context, s *session.Session, deleted bool) []checks.Result {
	var out []checks.Result

	cur, err := o.git.CurrentBranch(ctx)
	if err == nil && cur == o.cfg.DefaultBranch {
		out = append(out, checks.Result{Name: "On default branch", Passed: true, Severity: checks.SeverityInfo, Message: "on " + cur})
	} else {
		out = append(out, checks.Result{Name: "On default branch", Severity: checks.SeverityWarning, Message: "still on " + cur})
	}

	if s.IsTerminal() {
		out = append(out, checks.Result{Name: "Session terminal", Passed: true, Severity: checks.SeverityInfo, Message: "session aborted"})
	}

	if deleted {
		exists, err := o.git.BranchExistsLocal(ctx, s.BranchName)
		if err == nil && !exists {
			out = append(out, checks.Result{Name: "Branch removed", Passed: true, Severity: checks.SeverityInfo, Message: s.BranchName + " deleted"})
		} else {
			out = append(out, checks.Result{Name: "Branch removed", Severity: checks.SeverityWarning, Message: s.BranchName + " still exists"})
		}
	}
	return out
}
