package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

func TestLaunch_HappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res, err := f.orch.Launch(context.Background(), LaunchOptions{
		BranchName:  "feature/login",
		Description: "add login form",
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, state.StateBranchReady, res.State)
	assert.Equal(t, "feature/login", f.git.Branch)
	assert.NotEmpty(t, res.NextSteps)
	for _, v := range res.PostFlight {
		assert.True(t, v.Passed, v.Name)
	}

	s := f.reload(t, res.SessionID)
	assert.Equal(t, state.StateBranchReady, s.CurrentState)
	assert.Equal(t, state.WorkflowLaunch, s.WorkflowType)

	assert.Contains(t, f.auditEvents(), "session_created")
	assert.Contains(t, f.auditEvents(), "transition")
}

func TestLaunch_InvalidBranchName(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.orch.Launch(context.Background(), LaunchOptions{BranchName: "bad name"})
	require.Error(t, err)

	_, err = f.store.GetByBranch("bad name")
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestLaunch_DirtyTreeBlocks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.git.Dirty = true

	_, err := f.orch.Launch(context.Background(), LaunchOptions{BranchName: "feature/x"})

	var pf *PreflightError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, "main", f.git.Branch, "blocked launch must not create the branch")
}

func TestLaunch_ForceDemotesDirtyTreeToWarning(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.git.Dirty = true

	res, err := f.orch.Launch(context.Background(), LaunchOptions{BranchName: "feature/x", Force: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Warnings)
	assert.Equal(t, "feature/x", f.git.Branch)
}

func TestLaunch_NotOnDefaultBranchBlocks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.git.Branch = "feature/elsewhere"
	f.git.Branches["feature/elsewhere"] = true

	_, err := f.orch.Launch(context.Background(), LaunchOptions{BranchName: "feature/x"})

	var pf *PreflightError
	require.ErrorAs(t, err, &pf)
}

func TestLaunch_ActiveSessionOnBranchBlocks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.launch(t, "feature/x")
	f.git.Branch = "main"

	_, err := f.orch.Launch(context.Background(), LaunchOptions{BranchName: "feature/x"})

	var pf *PreflightError
	require.ErrorAs(t, err, &pf)
}

func TestLaunch_RetiredBranchSuggestsVariant(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedMergedSession(t, f.store, "feature/x")

	res, err := f.orch.Launch(context.Background(), LaunchOptions{BranchName: "feature/x"})

	var pf *PreflightError
	require.ErrorAs(t, err, &pf)
	assert.Contains(t, res.NextSteps, "feature/x-v2")
	assert.False(t, f.git.Branches["feature/x"], "retired name must not be recreated")
}

func TestLaunch_BranchCreationFailureRemovesSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.git.Fail["CreateBranch"] = errors.New("ref already locked")

	_, err := f.orch.Launch(context.Background(), LaunchOptions{BranchName: "feature/x"})
	require.Error(t, err)

	_, err = f.store.GetByBranch("feature/x")
	assert.ErrorIs(t, err, session.ErrNoSession,
		"a session pinned at INIT would block the retry")
}

func TestLaunch_AppliesStash(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.git.Stashes["stash-7"] = true

	res, err := f.orch.Launch(context.Background(), LaunchOptions{
		BranchName: "feature/x",
		StashRef:   "stash-7",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)

	s := f.reload(t, res.SessionID)
	assert.Equal(t, "stash-7", s.Metadata.StashRef)
	assert.True(t, f.git.Dirty, "applied stash restores working tree changes")
}

func TestLaunch_CancelledContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orch.Launch(ctx, LaunchOptions{BranchName: "feature/x"})
	assert.ErrorIs(t, err, ErrCancelled)

	_, err = f.store.GetByBranch("feature/x")
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestLaunch_DeadlineExceeded(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := f.orch.Launch(ctx, LaunchOptions{BranchName: "feature/x"})
	assert.ErrorIs(t, err, ErrTimeout)
}
