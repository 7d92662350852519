package checks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/config"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/gitport"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/redact"
)

// Check names are user-visible; failures quote them verbatim.
const (
	CheckOnDefaultBranch     = "On default branch"
	CheckNotOnDefaultBranch  = "Not on default branch"
	CheckCleanWorktree       = "Clean working tree"
	CheckUpToDateWithRemote  = "Up to date with remote"
	CheckNoActiveSession     = "No active session"
	CheckBranchNameAvailable = "Branch name available"
	CheckActiveSession       = "Active session exists"
	CheckUncommittedChanges  = "Uncommitted changes present"
	CheckCommitsAhead        = "Commits ahead of base"
	CheckForgeConfigured     = "Forge configured"
	CheckNoStagedSecrets     = "No staged secrets"
)

// OnDefaultBranch requires the current branch to be the default branch.
func OnDefaultBranch(git gitport.GitPort, defaultBranch string) Check {
	return Check{Name: CheckOnDefaultBranch, Run: func(ctx context.Context) Result {
		cur, err := git.CurrentBranch(ctx)
		if err != nil {
			return fail(CheckOnDefaultBranch, SeverityError, err.Error(), nil)
		}
		if cur != defaultBranch {
			return fail(CheckOnDefaultBranch, SeverityError,
				fmt.Sprintf("currently on %s", cur),
				&Details{
					Expected:   defaultBranch,
					Actual:     cur,
					Suggestion: fmt.Sprintf("git checkout %s", defaultBranch),
				})
		}
		return pass(CheckOnDefaultBranch, fmt.Sprintf("on %s", defaultBranch))
	}}
}

// NotOnDefaultBranch requires the current branch to be a feature branch.
func NotOnDefaultBranch(git gitport.GitPort, defaultBranch string) Check {
	return Check{Name: CheckNotOnDefaultBranch, Run: func(ctx context.Context) Result {
		cur, err := git.CurrentBranch(ctx)
		if err != nil {
			return fail(CheckNotOnDefaultBranch, SeverityError, err.Error(), nil)
		}
		if cur == defaultBranch {
			return fail(CheckNotOnDefaultBranch, SeverityError,
				fmt.Sprintf("cannot run from %s", defaultBranch),
				&Details{Suggestion: "switch to the session's feature branch first"})
		}
		return pass(CheckNotOnDefaultBranch, fmt.Sprintf("on %s", cur))
	}}
}

// CleanWorktree requires no uncommitted changes.
func CleanWorktree(git gitport.GitPort) Check {
	return Check{Name: CheckCleanWorktree, Run: func(ctx context.Context) Result {
		st, err := git.Status(ctx)
		if err != nil {
			return fail(CheckCleanWorktree, SeverityError, err.Error(), nil)
		}
		if !st.Clean {
			n := len(st.Modified) + len(st.Created) + len(st.Deleted) + len(st.Untracked)
			return fail(CheckCleanWorktree, SeverityError,
				fmt.Sprintf("%d uncommitted change(s)", n),
				&Details{
					Expected:   "clean working tree",
					Actual:     fmt.Sprintf("%d changed file(s)", n),
					Suggestion: "commit or stash changes, or pass --force",
				})
		}
		return pass(CheckCleanWorktree, "working tree is clean")
	}}
}

// UpToDateWithRemote requires the current branch to not be behind upstream.
func UpToDateWithRemote(git gitport.GitPort) Check {
	return Check{Name: CheckUpToDateWithRemote, Run: func(ctx context.Context) Result {
		bs, err := git.BranchStatus(ctx)
		if err != nil {
			return fail(CheckUpToDateWithRemote, SeverityError, err.Error(), nil)
		}
		if !bs.HasRemote {
			return pass(CheckUpToDateWithRemote, "no upstream configured")
		}
		if bs.Behind > 0 {
			return fail(CheckUpToDateWithRemote, SeverityError,
				fmt.Sprintf("behind upstream by %d commit(s)", bs.Behind),
				&Details{Suggestion: "git pull --ff-only"})
		}
		return pass(CheckUpToDateWithRemote, "up to date with upstream")
	}}
}

// NoActiveSession requires no non-terminal session to exist for the branch.
func NoActiveSession(store session.Store, branch string) Check {
	return Check{Name: CheckNoActiveSession, Run: func(context.Context) Result {
		s, err := store.GetByBranch(branch)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				return pass(CheckNoActiveSession, "no session for "+branch)
			}
			return fail(CheckNoActiveSession, SeverityError, err.Error(), nil)
		}
		if !s.IsTerminal() {
			return fail(CheckNoActiveSession, SeverityError,
				fmt.Sprintf("session %s is active on %s (state %s)", s.ID, branch, s.CurrentState),
				&Details{Suggestion: fmt.Sprintf("finish or abort session %s first", s.ID)})
		}
		return pass(CheckNoActiveSession, "only terminal sessions for "+branch)
	}}
}

// ActiveSession requires a non-terminal session to exist for the branch.
func ActiveSession(store session.Store, branch string) Check {
	return Check{Name: CheckActiveSession, Run: func(context.Context) Result {
		s, err := store.GetByBranch(branch)
		if err != nil || s.IsTerminal() {
			return fail(CheckActiveSession, SeverityError,
				fmt.Sprintf("no active session for %s", branch),
				&Details{Suggestion: "run launch to start a session on this branch"})
		}
		return pass(CheckActiveSession, fmt.Sprintf("session %s (state %s)", s.ID, s.CurrentState))
	}}
}

// BranchNameAvailable runs the branch validator for a proposed launch name.
func BranchNameAvailable(v *BranchValidator, branch string) Check {
	return Check{Name: CheckBranchNameAvailable, Run: func(ctx context.Context) Result {
		err := v.ValidateForLaunch(ctx, branch)
		if err == nil {
			return pass(CheckBranchNameAvailable, branch+" is available")
		}
		suggestion := ""
		if s, serr := v.Suggest(ctx, branch); serr == nil {
			suggestion = s
		}
		sev := SeverityError
		return fail(CheckBranchNameAvailable, sev, err.Error(), &Details{
			Actual:     branch,
			Suggestion: suggestion,
		})
	}}
}

// HasUncommittedChanges requires something to commit.
func HasUncommittedChanges(git gitport.GitPort) Check {
	return Check{Name: CheckUncommittedChanges, Run: func(ctx context.Context) Result {
		dirty, err := git.HasUncommittedChanges(ctx)
		if err != nil {
			return fail(CheckUncommittedChanges, SeverityError, err.Error(), nil)
		}
		if !dirty {
			return fail(CheckUncommittedChanges, SeverityError,
				"nothing to commit",
				&Details{Suggestion: "make changes before committing"})
		}
		return pass(CheckUncommittedChanges, "changes detected")
	}}
}

// CommitsAhead requires the branch to have commits the base lacks.
func CommitsAhead(git gitport.GitPort, base, branch string) Check {
	return Check{Name: CheckCommitsAhead, Run: func(ctx context.Context) Result {
		ahead, _, err := git.AheadBehind(ctx, base, branch)
		if err != nil {
			return fail(CheckCommitsAhead, SeverityError, err.Error(), nil)
		}
		if ahead == 0 {
			return fail(CheckCommitsAhead, SeverityError,
				fmt.Sprintf("%s has no commits ahead of %s", branch, base),
				&Details{Suggestion: "commit your changes before shipping"})
		}
		return pass(CheckCommitsAhead, fmt.Sprintf("%d commit(s) ahead of %s", ahead, base))
	}}
}

// ForgeConfigured requires forge owner/repo and a token in the environment.
func ForgeConfigured(cfg *config.Config) Check {
	return Check{Name: CheckForgeConfigured, Run: func(context.Context) Result {
		if cfg == nil || cfg.Forge.Owner == "" || cfg.Forge.Repo == "" {
			return fail(CheckForgeConfigured, SeverityError,
				"forge owner/repo not configured",
				&Details{Suggestion: "run init to configure the forge"})
		}
		if cfg.Token() == "" {
			return fail(CheckForgeConfigured, SeverityError,
				fmt.Sprintf("no token in $%s", cfg.Forge.TokenEnv),
				&Details{Suggestion: fmt.Sprintf("export %s with a forge API token", cfg.Forge.TokenEnv)})
		}
		return pass(CheckForgeConfigured, fmt.Sprintf("%s/%s via %s", cfg.Forge.Owner, cfg.Forge.Repo, cfg.Forge.Kind))
	}}
}

// maxSecretScanSize caps how much of a file the secret scan reads.
const maxSecretScanSize = 1 << 20

// NoStagedSecrets scans changed files for secrets before they are committed.
// Findings are warnings, not errors: the working tree already holds the
// secret either way, and blocking the commit does not un-leak it.
func NoStagedSecrets(git gitport.GitPort, repoRoot string) Check {
	return Check{Name: CheckNoStagedSecrets, Run: func(ctx context.Context) Result {
		st, err := git.Status(ctx)
		if err != nil {
			return fail(CheckNoStagedSecrets, SeverityWarning, err.Error(), nil)
		}
		var files []string
		files = append(files, st.Modified...)
		files = append(files, st.Created...)
		files = append(files, st.Untracked...)

		var hits []string
		for _, rel := range files {
			data, err := os.ReadFile(filepath.Join(repoRoot, rel))
			if err != nil || len(data) > maxSecretScanSize || bytes.IndexByte(data, 0) >= 0 {
				continue
			}
			for _, f := range redact.Scan(string(data)) {
				hits = append(hits, fmt.Sprintf("%s:%d (%s)", rel, f.Line, f.RuleID))
			}
		}
		if len(hits) > 0 {
			return fail(CheckNoStagedSecrets, SeverityWarning,
				fmt.Sprintf("possible secret(s): %v", hits),
				&Details{Suggestion: "remove the secret and rotate the credential"})
		}
		return pass(CheckNoStagedSecrets, "no secrets detected in changed files")
	}}
}
