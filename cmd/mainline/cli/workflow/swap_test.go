package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
)

// twoSessions launches feature/a and feature/b and leaves the tree on b.
func twoSessions(t *testing.T, f *fixture) (a, b *session.Session) {
	t.Helper()
	a = f.launch(t, "feature/a")
	f.git.Branch = "main"
	b = f.launch(t, "feature/b")
	return a, b
}

func TestSwap_SwitchesBranches(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a, _ := twoSessions(t, f)

	res, err := f.orch.Swap(context.Background(), SwapOptions{BranchName: "feature/a"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, a.ID, res.SessionID)
	assert.Equal(t, "feature/a", f.git.Branch)
	assert.Contains(t, f.auditEvents(), "branch_switched")
}

func TestSwap_AlreadyOnBranch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	twoSessions(t, f)

	_, err := f.orch.Swap(context.Background(), SwapOptions{BranchName: "feature/b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already on")
}

func TestSwap_DirtyTreeWithoutStashBlocks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	twoSessions(t, f)
	f.git.Dirty = true

	_, err := f.orch.Swap(context.Background(), SwapOptions{BranchName: "feature/a"})
	assert.ErrorIs(t, err, ErrDirtyWorkingTree)
	assert.Equal(t, "feature/b", f.git.Branch)
}

func TestSwap_StashRecordsRefOnLeftSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, b := twoSessions(t, f)
	f.git.Dirty = true

	res, err := f.orch.Swap(context.Background(), SwapOptions{BranchName: "feature/a", Stash: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "feature/a", f.git.Branch)

	left := f.reload(t, b.ID)
	assert.NotEmpty(t, left.Metadata.StashRef,
		"the session being left keeps the stash ref for the swap back")
}

func TestSwap_ForceSwitchesDirty(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	twoSessions(t, f)
	f.git.Dirty = true

	res, err := f.orch.Swap(context.Background(), SwapOptions{BranchName: "feature/a", Force: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotContains(t, f.git.Calls, "Stash")
}

func TestSwap_UnknownBranch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.orch.Swap(context.Background(), SwapOptions{BranchName: "feature/nope"})
	assert.ErrorIs(t, err, session.ErrNoSession)
}
