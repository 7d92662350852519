package checks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/gitport"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
)

// Branch validator errors.
var (
	// ErrBranchRetired blocks launching a branch name whose PR was merged.
	// Reusing it would put already-merged history back in review.
	ErrBranchRetired = errors.New("branch name is retired: a pull request from it was already merged")

	// ErrBranchRecreated is the critical variant: the retired branch exists
	// again locally or remotely.
	ErrBranchRecreated = errors.New("branch was recreated after its pull request merged")
)

// maxSuggestionAttempts bounds the -v2, -v3, ... suggestion search.
const maxSuggestionAttempts = 20

// HistorySource provides every session ever recorded for a branch, newest
// first. *session.FileStore satisfies it.
type HistorySource interface {
	History(branch string) ([]*session.Session, error)
}

// BranchValidator classifies a proposed branch name against session history
// and current branch existence. It enforces the rule that a branch name whose
// PR has merged can never be launched again.
type BranchValidator struct {
	History HistorySource
	Git     gitport.GitPort
}

// ValidateForLaunch decides whether branch may be the name of a new launch.
//
//	never used                -> allow
//	only aborted sessions     -> allow
//	merged PR, branch absent  -> ErrBranchRetired
//	merged PR, branch present -> ErrBranchRecreated
func (v *BranchValidator) ValidateForLaunch(ctx context.Context, branch string) error {
	history, err := v.History.History(branch)
	if err != nil {
		return err
	}

	merged := false
	for _, s := range history {
		if s.PRMerged() {
			merged = true
			break
		}
	}
	if !merged {
		return nil
	}

	local, err := v.Git.BranchExistsLocal(ctx, branch)
	if err != nil {
		return err
	}
	remote, err := v.Git.BranchExistsRemote(ctx, branch)
	if err != nil {
		return err
	}
	if local || remote {
		return fmt.Errorf("%w: %s", ErrBranchRecreated, branch)
	}
	return fmt.Errorf("%w: %s", ErrBranchRetired, branch)
}

// ValidateForContinuedWork decides whether an existing session may keep
// committing and shipping on its branch. A merged PR on the same session is
// fine: the next ship creates a fresh PR. Only a recreated retired branch
// from a *different* session blocks.
func (v *BranchValidator) ValidateForContinuedWork(ctx context.Context, s *session.Session) error {
	history, err := v.History.History(s.BranchName)
	if err != nil {
		return err
	}
	for _, prior := range history {
		if prior.ID == s.ID {
			continue
		}
		if prior.PRMerged() {
			return fmt.Errorf("%w: %s (session %s)", ErrBranchRecreated, s.BranchName, prior.ID)
		}
	}
	return nil
}

// MarkRecreated records on the prior merged session that its branch name came
// back, so cleanup and status can surface it.
func MarkRecreated(store session.Store, history HistorySource, branch string, now time.Time) error {
	sessions, err := history.History(branch)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if !s.PRMerged() {
			continue
		}
		if s.Metadata.Branch == nil {
			s.Metadata.Branch = &session.BranchMetadata{}
		}
		t := now.UTC()
		s.Metadata.Branch.Recreated = true
		s.Metadata.Branch.RecreatedAt = &t
		return store.Update(s)
	}
	return nil
}

// Suggest finds the first -v2, -v3, ... variant of base that passes
// validation and does not exist as a branch.
func (v *BranchValidator) Suggest(ctx context.Context, base string) (string, error) {
	for i := 2; i < 2+maxSuggestionAttempts; i++ {
		candidate := fmt.Sprintf("%s-v%d", base, i)
		if err := v.ValidateForLaunch(ctx, candidate); err != nil {
			if errors.Is(err, ErrBranchRetired) || errors.Is(err, ErrBranchRecreated) {
				continue
			}
			return "", err
		}
		local, err := v.Git.BranchExistsLocal(ctx, candidate)
		if err != nil {
			return "", err
		}
		remote, err := v.Git.BranchExistsRemote(ctx, candidate)
		if err != nil {
			return "", err
		}
		if local || remote {
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("no available variant of %s within %d attempts", base, maxSuggestionAttempts)
}
