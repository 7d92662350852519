package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

func TestAbort_StashesDirtyTree(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	launched := f.launch(t, "feature/x")
	f.git.Dirty = true

	res, err := f.orch.Abort(context.Background(), AbortOptions{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, state.StateAborted, res.State)
	assert.Equal(t, "main", f.git.Branch)
	assert.False(t, f.git.Dirty, "changes moved into the stash")

	s := f.reload(t, launched.ID)
	assert.True(t, s.IsTerminal())
	assert.NotEmpty(t, s.Metadata.StashRef)

	require.NotEmpty(t, res.NextSteps)
	assert.Contains(t, res.NextSteps[0], s.Metadata.StashRef,
		"next steps name the stash ref for recovery")
}

func TestAbort_CleanTreeNeedsNoStash(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	launched := f.launch(t, "feature/x")

	res, err := f.orch.Abort(context.Background(), AbortOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotContains(t, f.git.Calls, "Stash")

	s := f.reload(t, launched.ID)
	assert.Empty(t, s.Metadata.StashRef)
}

func TestAbort_ForceAbandonsChanges(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.launch(t, "feature/x")
	f.git.Dirty = true

	res, err := f.orch.Abort(context.Background(), AbortOptions{Force: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotContains(t, f.git.Calls, "Stash")
	assert.True(t, f.git.Dirty, "force leaves the tree as it was")
}

func TestAbort_DeleteBranchRemovesLocal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.launch(t, "feature/x")

	res, err := f.orch.Abort(context.Background(), AbortOptions{DeleteBranch: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, f.git.Branches["feature/x"])
	assert.NotContains(t, f.git.Calls, "DeleteRemoteBranch", "branch was never pushed")
}

func TestAbort_ByBranchNameFromElsewhere(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	launched := f.launch(t, "feature/x")
	f.git.Branch = "main"
	before := len(f.git.Calls)

	res, err := f.orch.Abort(context.Background(), AbortOptions{BranchName: "feature/x"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotContains(t, f.git.Calls[before:], "CheckoutBranch", "already off the branch")

	s := f.reload(t, launched.ID)
	assert.True(t, s.IsTerminal())
}

func TestAbort_NoActiveSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.orch.Abort(context.Background(), AbortOptions{})
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestAbort_RecordsAuditEntry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.launch(t, "feature/x")

	_, err := f.orch.Abort(context.Background(), AbortOptions{})
	require.NoError(t, err)
	assert.Contains(t, f.auditEvents(), "session_aborted")
}
