package workflow

import (
	"context"
	"fmt"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/audit"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/logging"
)

// SwapOptions configures Swap.
type SwapOptions struct {
	BranchName string

	// Stash saves uncommitted changes before switching; the stash ref is
	// recorded on the session being left, when one exists.
	Stash bool

	// Force switches even with uncommitted changes and no stash.
	Force bool
}

// Swap switches the working tree to another session's branch.
func (o *Orchestrator) Swap(ctx context.Context, opts SwapOptions) (*SessionResult, error) {
	res := &SessionResult{BranchName: opts.BranchName}
	ctx = logging.WithOperation(ctx, "swap")
	ctx = logging.WithBranch(ctx, opts.BranchName)

	target, err := o.store.GetByBranch(opts.BranchName)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	res.SessionID = target.ID
	res.State = target.CurrentState

	cur, err := o.git.CurrentBranch(ctx)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	if cur == opts.BranchName {
		err := fmt.Errorf("already on %s", opts.BranchName)
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}

	dirty, err := o.git.HasUncommittedChanges(ctx)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	if dirty && !opts.Stash && !opts.Force {
		err := fmt.Errorf("%w: stash them with --stash or override with --force", ErrDirtyWorkingTree)
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}

	err = o.withLock(target, func() error {
		if err := checkCtx(ctx); err != nil {
			return err
		}
		if dirty && opts.Stash {
			ref, serr := o.git.Stash(ctx, "swap from "+cur)
			if serr != nil {
				return &StepError{Step: "stash changes", Err: serr}
			}
			res.Warnings = append(res.Warnings, "uncommitted changes stashed as "+ref)
			o.recordStash(ctx, cur, ref)
		}
		if err := o.git.CheckoutBranch(ctx, opts.BranchName); err != nil {
			return &StepError{Step: "checkout " + opts.BranchName, Err: err}
		}
		o.record(ctx, audit.Entry{
			Operation: "swap", Event: "branch_switched",
			SessionID: target.ID, Branch: opts.BranchName,
			Message: "from " + cur,
		})
		return nil
	})
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}

	res.Success = true
	return res, nil
}

// recordStash stores the stash ref on the session owning the branch being
// left, so a later swap back can surface it. Best effort.
func (o *Orchestrator) recordStash(ctx context.Context, branch, ref string) {
	s, err := o.store.GetByBranch(branch)
	if err != nil || s.IsTerminal() {
		return
	}
	s.Metadata.StashRef = ref
	if err := o.store.Update(s); err != nil {
		logging.Warn(ctx, "could not record stash ref", "error", err.Error())
	}
}
