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

// HotfixOptions configures Hotfix.
type HotfixOptions struct {
	// BranchName starts a new hotfix session when no active one exists on the
	// current branch.
	BranchName string

	// Rollback moves a validated or deployed hotfix back to HOTFIX_READY.
	Rollback bool

	// Force demotes error-severity pre-flight failures to warnings.
	Force bool
}

// Hotfix drives the hotfix workflow. With a branch name and no active hotfix
// session it behaves like launch over the hotfix state set; invoked again on
// the hotfix branch it advances the session one stage at a time:
// commit leftovers, push, validate, deploy, then merge and clean up.
// Validation and deployment are state transitions only; the external
// deployment itself happens outside the core.
func (o *Orchestrator) Hotfix(ctx context.Context, opts HotfixOptions) (*SessionResult, error) {
	ctx = logging.WithOperation(ctx, "hotfix")

	cur, err := o.git.CurrentBranch(ctx)
	if err != nil {
		return &SessionResult{Errors: []string{err.Error()}}, err
	}

	if s, err := o.store.GetByBranch(cur); err == nil && !s.IsTerminal() && s.WorkflowType == state.WorkflowHotfix {
		return o.hotfixAdvance(ctx, s, opts)
	}

	if opts.BranchName == "" {
		err := fmt.Errorf("no active hotfix session on %s; pass a branch name to start one", cur)
		return &SessionResult{Errors: []string{err.Error()}}, err
	}
	return o.hotfixStart(ctx, opts)
}

// hotfixStart creates the hotfix session and branch, mirroring launch.
func (o *Orchestrator) hotfixStart(ctx context.Context, opts HotfixOptions) (*SessionResult, error) {
	res := &SessionResult{BranchName: opts.BranchName}
	ctx = logging.WithBranch(ctx, opts.BranchName)

	if err := validation.ValidateBranchName(opts.BranchName); err != nil {
		res.Errors = append(res.Errors, err.Error())
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

	s := session.New(opts.BranchName, state.WorkflowHotfix, o.cfg.SessionTTL())
	s.Metadata.ProjectPath = o.repoRoot
	s.Metadata.ForgeKind = o.cfg.Forge.Kind
	s.Metadata.User = o.cfg.User
	if err := o.store.Create(s); err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	res.SessionID = s.ID
	ctx = logging.WithSession(ctx, s.ID)
	o.record(ctx, audit.Entry{
		Operation: "hotfix", Event: "session_created",
		SessionID: s.ID, Branch: s.BranchName,
	})

	err := o.withLock(s, func() error {
		if err := o.git.CreateBranch(ctx, opts.BranchName, o.cfg.DefaultBranch); err != nil {
			if delErr := o.store.Delete(s.ID); delErr != nil {
				logging.Warn(ctx, "could not remove session after failed branch creation", "error", delErr.Error())
			}
			return &StepError{Step: "create branch", Err: err}
		}
		return o.transition(ctx, "hotfix", s, state.StateHotfixReady, nil)
	})
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}

	res.State = s.CurrentState
	res.Success = true
	res.NextSteps = []string{"apply the fix, then run 'mainline hotfix' to advance"}
	return res, nil
}

// hotfixAdvance moves the active hotfix session one stage forward.
func (o *Orchestrator) hotfixAdvance(ctx context.Context, s *session.Session, opts HotfixOptions) (*SessionResult, error) {
	res := &SessionResult{SessionID: s.ID, BranchName: s.BranchName, State: s.CurrentState}
	ctx = logging.WithSession(ctx, s.ID)
	ctx = logging.WithBranch(ctx, s.BranchName)

	preflight := []checks.Check{sessionCurrent(s, o.now())}
	outcome := checks.RunSet(ctx, preflight, opts.Force)
	res.PreFlight = outcome.Results
	res.Warnings = resultsToWarnings(outcome.Results)
	if outcome.Blocked {
		err := &PreflightError{Outcome: outcome}
		res.Errors = append(res.Errors, err.Error())
		res.NextSteps = outcome.Suggestions
		return res, err
	}

	err := o.withLock(s, func() error {
		if err := checkCtx(ctx); err != nil {
			return err
		}

		if opts.Rollback {
			if err := o.transition(ctx, "hotfix", s, state.StateRollback, nil); err != nil {
				return err
			}
			return o.transition(ctx, "hotfix", s, state.StateHotfixReady, nil)
		}

		switch s.CurrentState {
		case state.StateHotfixReady, state.StateHotfixCommitted:
			dirty, err := o.git.HasUncommittedChanges(ctx)
			if err != nil {
				return err
			}
			if dirty {
				if err := o.git.StageAll(ctx); err != nil {
					return &StepError{Step: "stage changes", Err: err}
				}
				sha, err := o.git.Commit(ctx, s.BranchName+": hotfix", false)
				if err != nil {
					return &StepError{Step: "commit", Err: err}
				}
				return o.transition(ctx, "hotfix", s, state.StateHotfixCommitted, map[string]string{"commit": sha})
			}
			if s.CurrentState == state.StateHotfixReady {
				return fmt.Errorf("nothing to commit on %s; apply the fix first", s.BranchName)
			}
			if err := o.git.Push(ctx, s.BranchName, false); err != nil {
				return &StepError{Step: "push", Err: err}
			}
			return o.transition(ctx, "hotfix", s, state.StateHotfixPushed, nil)

		case state.StateHotfixPushed:
			res.NextSteps = append(res.NextSteps, "run 'mainline hotfix' again after verifying the fix to mark it deployed")
			return o.transition(ctx, "hotfix", s, state.StateHotfixValidated, nil)

		case state.StateHotfixValidated:
			return o.transition(ctx, "hotfix", s, state.StateHotfixDeployed, nil)

		case state.StateHotfixDeployed:
			if err := o.transition(ctx, "hotfix", s, state.StateHotfixCleanup, nil); err != nil {
				return err
			}
			o.hotfixMergeBack(ctx, s, res)
			return o.transition(ctx, "hotfix", s, state.StateHotfixComplete, nil)

		default:
			return fmt.Errorf("%w: hotfix session is at %s", state.ErrInvalidTransition, s.CurrentState)
		}
	})
	if err != nil {
		res.State = s.CurrentState
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}

	res.State = s.CurrentState
	res.Success = true
	return res, nil
}

// hotfixMergeBack squash-merges the hotfix branch into the default branch and
// removes it. Failures degrade to warnings; the deploy already happened.
func (o *Orchestrator) hotfixMergeBack(ctx context.Context, s *session.Session, res *SessionResult) {
	warn := func(step string, err error) {
		res.Warnings = append(res.Warnings, step+": "+err.Error())
		logging.Warn(ctx, "hotfix cleanup step failed", "step", step, "error", err.Error())
	}

	if err := o.git.CheckoutBranch(ctx, o.cfg.DefaultBranch); err != nil {
		warn("checkout "+o.cfg.DefaultBranch, err)
		return
	}
	if err := o.git.Pull(ctx, o.cfg.Remote, o.cfg.DefaultBranch); err != nil {
		warn("fast-forward "+o.cfg.DefaultBranch, err)
	}
	if err := o.git.Merge(ctx, s.BranchName, true); err != nil {
		warn("merge "+s.BranchName, err)
		return
	}
	if _, err := o.git.Commit(ctx, s.BranchName+": hotfix", false); err != nil {
		warn("commit merge", err)
		return
	}
	if err := o.git.Push(ctx, o.cfg.DefaultBranch, false); err != nil {
		warn("push "+o.cfg.DefaultBranch, err)
	}
	if err := o.git.DeleteBranch(ctx, s.BranchName, true); err != nil {
		warn("delete local branch", err)
	}
	if exists, err := o.git.BranchExistsRemote(ctx, s.BranchName); err == nil && exists {
		if err := o.git.DeleteRemoteBranch(ctx, s.BranchName); err != nil {
			warn("delete remote branch", err)
		}
	}
	s.MarkBranchDeleted(o.now())
}
