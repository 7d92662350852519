// Package workflow is the orchestration core: it drives every operation
// (launch, commit, ship, abort, swap, cleanup, hotfix, status, sessions)
// through the same shape: acquire the session lock, run pre-flight checks,
// execute the staged actions, verify, persist, release. All collaborators are
// injected; the package holds no globals.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/audit"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/checks"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/config"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/forge"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/gitport"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/logging"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

// defaultLockWait bounds how long an operation waits for a session lock
// before giving up with ErrLockHeld.
const defaultLockWait = 10 * time.Second

// Deps are the orchestrator's injected collaborators.
type Deps struct {
	Git     gitport.GitPort
	Forge   forge.ForgePort
	Store   session.Store
	History checks.HistorySource
	Audit   audit.Recorder
	Config  *config.Config

	// RepoRoot is the working tree root, used by the secret scan.
	RepoRoot string

	// LockWait overrides the default session lock acquisition deadline.
	LockWait time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Orchestrator executes workflow operations against the injected ports.
// A single Orchestrator serves one repository.
type Orchestrator struct {
	git      gitport.GitPort
	forge    forge.ForgePort
	store    session.Store
	history  checks.HistorySource
	audit    audit.Recorder
	cfg      *config.Config
	repoRoot string
	lockWait time.Duration
	now      func() time.Time

	branchValidator *checks.BranchValidator
	prValidator     *checks.PRValidator
}

// New builds an orchestrator from its dependencies.
func New(d Deps) *Orchestrator {
	if d.LockWait <= 0 {
		d.LockWait = defaultLockWait
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Orchestrator{
		git:             d.Git,
		forge:           d.Forge,
		store:           d.Store,
		history:         d.History,
		audit:           d.Audit,
		cfg:             d.Config,
		repoRoot:        d.RepoRoot,
		lockWait:        d.LockWait,
		now:             d.Now,
		branchValidator: &checks.BranchValidator{History: d.History, Git: d.Git},
		prValidator:     &checks.PRValidator{Forge: d.Forge},
	}
}

// record appends an audit entry; audit failures are logged, never fatal.
func (o *Orchestrator) record(ctx context.Context, e audit.Entry) {
	if o.audit == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = o.now().UTC()
	}
	if err := o.audit.Append(e); err != nil {
		logging.Warn(ctx, "audit append failed", "error", err.Error())
	}
}

// transition applies a state change to the session, persists it, and records
// the audit entry. The session is only mutated if both the state machine and
// the store accept.
func (o *Orchestrator) transition(ctx context.Context, op string, s *session.Session, to state.State, meta map[string]string) error {
	from := s.CurrentState
	if err := s.Apply(to, meta); err != nil {
		return err
	}
	if err := o.store.Update(s); err != nil {
		return err
	}
	last := s.StateHistory[len(s.StateHistory)-1]
	o.record(ctx, audit.Entry{
		Operation: op,
		Event:     "transition",
		SessionID: s.ID,
		Branch:    s.BranchName,
		From:      string(from),
		To:        string(to),
		Trigger:   string(last.Trigger),
	})
	logging.Info(ctx, "state transition",
		"from", string(from), "to", string(to), "trigger", string(last.Trigger))
	return nil
}

// activeSession loads the non-terminal session owning a branch.
func (o *Orchestrator) activeSession(branch string) (*session.Session, error) {
	s, err := o.store.GetByBranch(branch)
	if err != nil {
		return nil, err
	}
	if s.IsTerminal() {
		return nil, fmt.Errorf("%w: no active session for branch %s", session.ErrNoSession, branch)
	}
	return s, nil
}

// withLock runs fn while holding the session's advisory lock. The session is
// reloaded from the store once the lock is held: a copy read before the lock
// may be stale, and mutating it would overwrite transitions another process
// persisted in between.
func (o *Orchestrator) withLock(s *session.Session, fn func() error) error {
	release, err := o.store.AcquireLock(s.ID, o.lockWait)
	if err != nil {
		return err
	}
	defer release()
	cur, err := o.store.Get(s.ID)
	if err != nil {
		return err
	}
	*s = *cur
	return fn()
}

// checkCtx returns the context error mapped to workflow sentinels, or nil.
func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return ctxErr(err)
	}
	return nil
}

// resultsToWarnings extracts failure messages from non-blocking results.
func resultsToWarnings(results []checks.Result) []string {
	var out []string
	for _, r := range results {
		if !r.Passed && r.Severity != checks.SeverityError {
			out = append(out, r.Name+": "+r.Message)
		}
	}
	return out
}
