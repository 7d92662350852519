package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/audit"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/checks"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/forge"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/logging"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

// ShipOptions configures Ship.
type ShipOptions struct {
	PRTitle       string
	PRDescription string

	// Force demotes error-severity pre-flight failures to warnings.
	Force bool

	// OnProgress, if set, receives check status after every CI poll.
	OnProgress func(forge.CheckStatus)
}

// Ship runs the pipeline that takes the session's branch to merged and
// cleaned up: commit leftovers, push, create or update the PR, wait for CI,
// squash-merge, sync the default branch, delete the feature branch.
//
// Each step either advances the persisted state or fails the whole operation;
// every persisted state is a resting point a later ship resumes from.
func (o *Orchestrator) Ship(ctx context.Context, opts ShipOptions) (*ForgeResult, error) {
	res := &ForgeResult{}
	ctx = logging.WithOperation(ctx, "ship")

	branch, err := o.git.CurrentBranch(ctx)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	res.BranchName = branch
	ctx = logging.WithBranch(ctx, branch)

	s, err := o.activeSession(branch)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	if s.WorkflowType == state.WorkflowHotfix {
		err := fmt.Errorf("session %s is a hotfix; use 'mainline hotfix' to advance it", s.ID)
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	res.SessionID = s.ID
	res.State = s.CurrentState
	ctx = logging.WithSession(ctx, s.ID)

	dirty, err := o.git.HasUncommittedChanges(ctx)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}

	preflight := []checks.Check{
		checks.NotOnDefaultBranch(o.git, o.cfg.DefaultBranch),
		checks.ForgeConfigured(o.cfg),
		sessionCurrent(s, o.now()),
		branchReusable(o.branchValidator, s),
		commitsOrChanges(o.git, o.cfg.DefaultBranch, branch, dirty),
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

	// The PR plan is a pre-flight gate too: two open PRs block before any
	// mutation happens.
	plan, err := o.prValidator.Plan(ctx, branch)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		if errors.Is(err, checks.ErrMultiplePRs) {
			res.NextSteps = []string{"close the extra pull requests, keeping at most one open"}
		}
		return res, err
	}

	err = o.withLock(s, func() error {
		return o.shipPipeline(ctx, s, plan, dirty, opts, res)
	})
	if err != nil {
		res.State = s.CurrentState
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}

	res.State = s.CurrentState
	res.Success = true
	res.Merged = true
	return res, nil
}

// shipPipeline executes the seven ship steps under the session lock.
func (o *Orchestrator) shipPipeline(ctx context.Context, s *session.Session, plan *checks.PRPlan, dirty bool, opts ShipOptions, res *ForgeResult) error {
	branch := s.BranchName

	// Step 1: fold uncommitted changes into a commit. A clean tree with
	// commits made outside mainline still needs the state recorded.
	if err := checkCtx(ctx); err != nil {
		return err
	}
	committed := commitTarget(s.WorkflowType)
	if dirty {
		if err := o.git.StageAll(ctx); err != nil {
			return &StepError{Step: "stage changes", Err: err}
		}
		sha, err := o.git.Commit(ctx, fmt.Sprintf("%s: ship", branch), false)
		if err != nil {
			return &StepError{Step: "commit", Err: err}
		}
		if err := o.transition(ctx, "ship", s, committed, map[string]string{"commit": sha}); err != nil {
			return err
		}
	} else if state.CanTransition(s.WorkflowType, s.CurrentState, committed) && s.CurrentState != committed {
		if err := o.transition(ctx, "ship", s, committed, nil); err != nil {
			return err
		}
	}

	// Step 2: push. Failure leaves the session at CHANGES_COMMITTED.
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := o.git.Push(ctx, branch, false); err != nil {
		res.FailedStep = "push"
		return &StepError{Step: "push", Err: err}
	}
	if s.CurrentState != state.StatePushed && state.CanTransition(s.WorkflowType, s.CurrentState, state.StatePushed) {
		if err := o.transition(ctx, "ship", s, state.StatePushed, nil); err != nil {
			return err
		}
	}

	// Step 3: create or update the PR. Failure leaves the session at PUSHED.
	if err := checkCtx(ctx); err != nil {
		return err
	}
	pr, err := o.ensurePR(ctx, s, plan, opts)
	if err != nil {
		res.FailedStep = "pull request"
		return &StepError{Step: "pull request", Err: err}
	}
	res.PRNumber = pr.Number
	res.PRURL = pr.URL
	if s.CurrentState != state.StatePRCreated && state.CanTransition(s.WorkflowType, s.CurrentState, state.StatePRCreated) {
		if err := o.transition(ctx, "ship", s, state.StatePRCreated, map[string]string{"pr": strconv.Itoa(pr.Number)}); err != nil {
			return err
		}
	}

	// Step 4: wait for CI. Cancellation aborts the wait but leaves the PR.
	wait, err := o.forge.WaitForChecks(ctx, pr.Number, forge.WaitOptions{
		Timeout:      o.cfg.CI.Timeout(),
		PollInterval: o.cfg.CI.PollInterval(),
		OnProgress: func(st forge.CheckStatus) {
			res.Checks = &st
			if opts.OnProgress != nil {
				opts.OnProgress(st)
			}
		},
	})
	if err != nil {
		res.FailedStep = "wait for checks"
		if ctx.Err() != nil {
			return ctxErr(ctx.Err())
		}
		return &StepError{Step: "wait for checks", Err: err}
	}
	switch {
	case wait.TimedOut:
		res.FailedStep = "wait for checks"
		res.NextSteps = append(res.NextSteps, "re-run 'mainline ship' once checks settle")
		return fmt.Errorf("%w after %s", ErrCITimeout, o.cfg.CI.Timeout())
	case !wait.Success:
		res.FailedStep = "wait for checks"
		res.FailedChecks = wait.FailedChecks
		res.NextSteps = append(res.NextSteps, "fix the failing checks and re-run 'mainline ship'")
		o.record(ctx, audit.Entry{
			Operation: "ship", Event: "checks_failed",
			SessionID: s.ID, Branch: branch,
			Message: fmt.Sprintf("failed: %v", wait.FailedChecks),
		})
		return fmt.Errorf("%w: %v", ErrCIFailed, wait.FailedChecks)
	}
	if s.CurrentState != state.StateWaitingApproval {
		if err := o.transition(ctx, "ship", s, state.StateWaitingApproval, nil); err != nil {
			return err
		}
	}

	// Step 5: squash merge. A conflict parks the session in
	// CONFLICT_RESOLUTION; other failures leave WAITING_APPROVAL.
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := o.forge.MergePullRequest(ctx, pr.Number); err != nil {
		res.FailedStep = "merge"
		if errors.Is(err, forge.ErrMergeConflict) {
			if terr := o.transition(ctx, "ship", s, state.StateRebasing, nil); terr == nil {
				_ = o.transition(ctx, "ship", s, state.StateConflictResolution, nil)
			}
			res.NextSteps = append(res.NextSteps, "rebase the branch on "+o.cfg.DefaultBranch+" and re-run 'mainline ship'")
		}
		return &StepError{Step: "merge", Err: err}
	}
	if err := s.MarkMerged(o.now()); err != nil {
		return err
	}
	if err := o.transition(ctx, "ship", s, state.StateMerged, map[string]string{"pr": strconv.Itoa(pr.Number)}); err != nil {
		return err
	}
	o.record(ctx, audit.Entry{
		Operation: "ship", Event: "merged",
		SessionID: s.ID, Branch: branch,
		Message: fmt.Sprintf("PR #%d squash-merged", pr.Number),
	})

	// Step 6: sync and cleanup. The merge is authoritative; everything from
	// here is best-effort and degrades to warnings.
	o.shipCleanup(ctx, s, res)

	// Step 7: done.
	return o.transition(ctx, "ship", s, state.StateComplete, nil)
}

// ensurePR creates the PR or updates the open one, recording metadata.pr.
func (o *Orchestrator) ensurePR(ctx context.Context, s *session.Session, plan *checks.PRPlan, opts ShipOptions) (*forge.PullRequest, error) {
	base := o.cfg.DefaultBranch
	title := opts.PRTitle
	if title == "" {
		title = s.BranchName
	}

	var pr *forge.PullRequest
	var err error
	switch plan.Action {
	case checks.PRActionUpdate:
		pr = plan.Existing
		if opts.PRTitle != "" || opts.PRDescription != "" {
			if err = o.forge.UpdatePullRequest(ctx, pr.Number, opts.PRTitle, opts.PRDescription); err != nil {
				return nil, err
			}
		}
	default:
		pr, err = o.forge.CreatePullRequest(ctx, forge.NewPullRequest{
			Title: title,
			Body:  opts.PRDescription,
			Base:  base,
			Head:  s.BranchName,
		})
		if err != nil {
			return nil, err
		}
	}

	s.Metadata.PR = &session.PRMetadata{
		Number: pr.Number,
		URL:    pr.URL,
		Title:  pr.Title,
		Body:   opts.PRDescription,
		Base:   base,
		Head:   s.BranchName,
	}
	return pr, o.store.Update(s)
}

// shipCleanup checks out the default branch, fast-forwards it, and deletes
// the merged feature branch locally and remotely. Failures become warnings.
func (o *Orchestrator) shipCleanup(ctx context.Context, s *session.Session, res *ForgeResult) {
	warn := func(step string, err error) {
		msg := step + ": " + err.Error()
		res.Warnings = append(res.Warnings, msg)
		logging.Warn(ctx, "ship cleanup step failed", "step", step, "error", err.Error())
	}

	if err := o.git.CheckoutBranch(ctx, o.cfg.DefaultBranch); err != nil {
		warn("checkout "+o.cfg.DefaultBranch, err)
		return // deleting the branch we are standing on would fail anyway
	}
	if err := o.git.Pull(ctx, o.cfg.Remote, o.cfg.DefaultBranch); err != nil {
		warn("fast-forward "+o.cfg.DefaultBranch, err)
	}
	if err := o.git.DeleteBranch(ctx, s.BranchName, true); err != nil {
		warn("delete local branch", err)
	}
	if err := o.git.DeleteRemoteBranch(ctx, s.BranchName); err != nil {
		warn("delete remote branch", err)
	}
	s.MarkBranchDeleted(o.now())
	if err := o.store.Update(s); err != nil {
		warn("persist branch deletion", err)
	}
}

// branchReusable wraps the continued-work validation as a check.
func branchReusable(v *checks.BranchValidator, s *session.Session) checks.Check {
	const name = "Branch name usable"
	return checks.Check{Name: name, Run: func(ctx context.Context) checks.Result {
		if err := v.ValidateForContinuedWork(ctx, s); err != nil {
			return checks.Result{
				Name: name, Severity: checks.SeverityError, Message: err.Error(),
				Details: &checks.Details{Suggestion: "launch a fresh branch for this work"},
			}
		}
		return checks.Result{Name: name, Passed: true, Severity: checks.SeverityInfo, Message: s.BranchName + " is usable"}
	}}
}

// commitsOrChanges passes when the branch is ahead of base or the tree is
// dirty (ship will fold the changes into a commit itself).
func commitsOrChanges(git interface {
	AheadBehind(ctx context.Context, base, branch string) (int, int, error)
}, base, branch string, dirty bool) checks.Check {
	const name = "Commits ahead of base"
	return checks.Check{Name: name, Run: func(ctx context.Context) checks.Result {
		if dirty {
			return checks.Result{Name: name, Passed: true, Severity: checks.SeverityInfo, Message: "uncommitted changes will be committed"}
		}
		ahead, _, err := git.AheadBehind(ctx, base, branch)
		if err != nil {
			return checks.Result{Name: name, Severity: checks.SeverityError, Message: err.Error()}
		}
		if ahead == 0 {
			return checks.Result{
				Name: name, Severity: checks.SeverityError,
				Message: fmt.Sprintf("%s has no commits ahead of %s", branch, base),
				Details: &checks.Details{Suggestion: "commit your changes before shipping"},
			}
		}
		return checks.Result{Name: name, Passed: true, Severity: checks.SeverityInfo, Message: fmt.Sprintf("%d commit(s) ahead of %s", ahead, base)}
	}}
}
