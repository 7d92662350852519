package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/audit"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/checks"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/logging"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

// CommitOptions configures Commit.
type CommitOptions struct {
	Message string

	// StagedOnly commits only what is already staged.
	StagedOnly bool

	// Force demotes error-severity pre-flight failures to warnings.
	Force bool
}

// Commit records the working tree changes on the session's branch and
// advances the session to CHANGES_COMMITTED.
func (o *Orchestrator) Commit(ctx context.Context, opts CommitOptions) (*SessionResult, error) {
	res := &SessionResult{}
	ctx = logging.WithOperation(ctx, "commit")

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
	res.SessionID = s.ID
	res.State = s.CurrentState
	ctx = logging.WithSession(ctx, s.ID)

	committed := commitTarget(s.WorkflowType)
	preflight := []checks.Check{
		checks.ActiveSession(o.store, branch),
		sessionCurrent(s, o.now()),
		checks.HasUncommittedChanges(o.git),
		sessionPermits(s, committed),
		checks.NoStagedSecrets(o.git, o.repoRoot),
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

	message := opts.Message
	if message == "" {
		message = fmt.Sprintf("%s: work in progress", branch)
	}

	err = o.withLock(s, func() error {
		if err := checkCtx(ctx); err != nil {
			return err
		}
		if !opts.StagedOnly {
			if err := o.git.StageAll(ctx); err != nil {
				return &StepError{Step: "stage changes", Err: err}
			}
		}
		sha, err := o.git.Commit(ctx, message, false)
		if err != nil {
			return &StepError{Step: "commit", Err: err}
		}
		o.record(ctx, audit.Entry{
			Operation: "commit", Event: "commit_created",
			SessionID: s.ID, Branch: branch, Message: sha,
		})
		return o.transition(ctx, "commit", s, committed, map[string]string{"commit": sha})
	})
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}

	res.State = s.CurrentState
	if dirty, derr := o.git.HasUncommittedChanges(ctx); derr == nil && dirty && !opts.StagedOnly {
		res.Warnings = append(res.Warnings, "working tree still has changes after commit")
	}
	res.Success = true
	res.NextSteps = []string{"run 'mainline ship' to push, open a PR, and merge"}
	return res, nil
}

// commitTarget is the committed state for the session's workflow type.
func commitTarget(w state.Workflow) state.State {
	if w == state.WorkflowHotfix {
		return state.StateHotfixCommitted
	}
	return state.StateChangesCommitted
}

// sessionCurrent checks that the session's TTL has not elapsed. An expired
// session stays readable and abortable but does not advance unless the
// operation is forced.
func sessionCurrent(s *session.Session, now time.Time) checks.Check {
	const name = "Session not expired"
	return checks.Check{Name: name, Run: func(context.Context) checks.Result {
		if s.Expired(now) {
			return checks.Result{
				Name: name, Severity: checks.SeverityError,
				Message: fmt.Sprintf("session %s expired at %s", s.ID, s.ExpiresAt.Format(time.RFC3339)),
				Details: &checks.Details{
					Actual:     "expired " + now.Sub(s.ExpiresAt).Round(time.Minute).String() + " ago",
					Expected:   "session within its TTL",
					Suggestion: "re-run with --force to continue on it, or 'mainline abort' to retire it",
				},
			}
		}
		return checks.Result{
			Name: name, Passed: true, Severity: checks.SeverityInfo,
			Message: "session valid until " + s.ExpiresAt.Format(time.RFC3339),
		}
	}}
}

// sessionPermits checks that the state machine allows the session to move to
// the target state.
func sessionPermits(s *session.Session, to state.State) checks.Check {
	const name = "Session state allows operation"
	return checks.Check{Name: name, Run: func(context.Context) checks.Result {
		if !state.CanTransition(s.WorkflowType, s.CurrentState, to) {
			return checks.Result{
				Name: name, Severity: checks.SeverityError,
				Message: fmt.Sprintf("cannot move from %s to %s", s.CurrentState, to),
				Details: &checks.Details{
					Actual:     string(s.CurrentState),
					Expected:   string(to),
					Suggestion: "check 'mainline status' for the session's allowed next steps",
				},
			}
		}
		return checks.Result{
			Name: name, Passed: true, Severity: checks.SeverityInfo,
			Message: fmt.Sprintf("%s -> %s is allowed", s.CurrentState, to),
		}
	}}
}
