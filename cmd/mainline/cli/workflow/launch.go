package workflow

import (
	"context"
	"fmt"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/audit"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/checks"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/logging"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/validation"
)

// LaunchOptions configures Launch.
type LaunchOptions struct {
	BranchName  string
	Description string

	// Force demotes error-severity pre-flight failures to warnings.
	Force bool

	// StashRef, when set, is applied to the new branch after creation.
	StashRef string
}

// Launch starts a new session: validates the branch name, runs pre-flight
// checks, creates the session and branch, and advances to BRANCH_READY.
func (o *Orchestrator) Launch(ctx context.Context, opts LaunchOptions) (*SessionResult, error) {
	res := &SessionResult{BranchName: opts.BranchName}
	ctx = logging.WithOperation(ctx, "launch")
	ctx = logging.WithBranch(ctx, opts.BranchName)

	if err := validation.ValidateBranchName(opts.BranchName); err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	if err := checkCtx(ctx); err != nil {
		return res, err
	}

	preflight := []checks.Check{
		checks.OnDefaultBranch(o.git, o.cfg.DefaultBranch),
		checks.CleanWorktree(o.git),
		checks.UpToDateWithRemote(o.git),
		checks.NoActiveSession(o.store, opts.BranchName),
		checks.BranchNameAvailable(o.branchValidator, opts.BranchName),
	}
	outcome := checks.RunSet(ctx, preflight, opts.Force)
	res.PreFlight = outcome.Results
	res.Warnings = resultsToWarnings(outcome.Results)
	if outcome.Blocked {
		err := &PreflightError{Outcome: outcome}
		res.Errors = append(res.Errors, err.Error())
		res.NextSteps = outcome.Suggestions
		return res, err
	}

	s := session.New(opts.BranchName, state.WorkflowLaunch, o.cfg.SessionTTL())
	s.Metadata.ProjectPath = o.repoRoot
	s.Metadata.ForgeKind = o.cfg.Forge.Kind
	s.Metadata.User = o.cfg.User
	if err := o.store.Create(s); err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	res.SessionID = s.ID
	res.State = s.CurrentState
	ctx = logging.WithSession(ctx, s.ID)
	o.record(ctx, audit.Entry{
		Operation: "launch", Event: "session_created",
		SessionID: s.ID, Branch: s.BranchName,
		Message: opts.Description,
	})

	err := o.withLock(s, func() error {
		if err := o.git.CreateBranch(ctx, opts.BranchName, o.cfg.DefaultBranch); err != nil {
			// The branch never existed; a session pinned at INIT would only
			// block the retry. Undo the creation.
			if delErr := o.store.Delete(s.ID); delErr != nil {
				logging.Warn(ctx, "could not remove session after failed branch creation", "error", delErr.Error())
			}
			return &StepError{Step: "create branch", Err: err}
		}
		if err := o.transition(ctx, "launch", s, state.StateBranchReady, nil); err != nil {
			return err
		}
		if opts.StashRef != "" {
			if err := o.git.StashApply(ctx, opts.StashRef); err != nil {
				return &StepError{Step: "apply stash", Err: err}
			}
			s.Metadata.StashRef = opts.StashRef
			if err := o.store.Update(s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}

	res.State = s.CurrentState
	res.PostFlight = o.verifyLaunch(ctx, s, opts.StashRef != "")
	for _, v := range res.PostFlight {
		if !v.Passed {
			res.Warnings = append(res.Warnings, v.Name+": "+v.Message)
		}
	}
	res.Success = true
	res.NextSteps = []string{
		"make your changes, then run 'mainline commit'",
		"run 'mainline ship' when the work is ready to merge",
	}
	return res, nil
}

// verifyLaunch runs the post-flight verifications for launch.
func (o *Orchestrator) verifyLaunch(ctx context.Context, s *session.Session, stashApplied bool) []checks.Result {
	var out []checks.Result

	cur, err := o.git.CurrentBranch(ctx)
	switch {
	case err != nil:
		out = append(out, checks.Result{Name: "Branch checked out", Severity: checks.SeverityWarning, Message: err.Error()})
	case cur != s.BranchName:
		out = append(out, checks.Result{
			Name: "Branch checked out", Severity: checks.SeverityWarning,
			Message: fmt.Sprintf("expected %s, on %s", s.BranchName, cur),
		})
	default:
		out = append(out, checks.Result{Name: "Branch checked out", Passed: true, Severity: checks.SeverityInfo, Message: "on " + cur})
	}

	if s.CurrentState == state.StateBranchReady {
		out = append(out, checks.Result{Name: "Session ready", Passed: true, Severity: checks.SeverityInfo, Message: string(s.CurrentState)})
	} else {
		out = append(out, checks.Result{Name: "Session ready", Severity: checks.SeverityWarning, Message: "state is " + string(s.CurrentState)})
	}

	dirty, err := o.git.HasUncommittedChanges(ctx)
	if err == nil && dirty != stashApplied {
		msg := "working tree should be clean"
		if stashApplied {
			msg = "stash did not restore any changes"
		}
		out = append(out, checks.Result{Name: "Working tree", Severity: checks.SeverityWarning, Message: msg})
	} else {
		out = append(out, checks.Result{Name: "Working tree", Passed: true, Severity: checks.SeverityInfo, Message: "as expected"})
	}
	return out
}
