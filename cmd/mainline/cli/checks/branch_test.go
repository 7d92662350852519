package checks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/gitport"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

// seedSession stores a session on the branch, optionally merged or aborted.
func seedSession(t *testing.T, store *session.MemStore, branch string, merged, aborted bool) *session.Session {
	t.Helper()
	s := session.New(branch, state.WorkflowShip, time.Hour)
	if merged {
		s.Metadata.PR = &session.PRMetadata{Number: 1}
		require.NoError(t, s.MarkMerged(time.Now()))
		require.NoError(t, s.Apply(state.StateAborted, nil)) // terminal so new sessions can be created
	} else if aborted {
		require.NoError(t, s.Apply(state.StateAborted, nil))
	}
	require.NoError(t, store.Create(s))
	return s
}

func TestValidateForLaunch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		merged       bool
		aborted      bool
		branchLocal  bool
		branchRemote bool
		wantErr      error
	}{
		{name: "never_used_allows"},
		{name: "aborted_session_allows", aborted: true},
		{name: "merged_branch_absent_is_retired", merged: true, wantErr: ErrBranchRetired},
		{name: "merged_branch_local_is_recreated", merged: true, branchLocal: true, wantErr: ErrBranchRecreated},
		{name: "merged_branch_remote_is_recreated", merged: true, branchRemote: true, wantErr: ErrBranchRecreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := session.NewMemStore()
			git := gitport.NewFake("main")
			if tt.merged || tt.aborted {
				seedSession(t, store, "feature/x", tt.merged, tt.aborted)
			}
			git.Branches["feature/x"] = tt.branchLocal
			git.RemoteBranches["feature/x"] = tt.branchRemote

			v := &BranchValidator{History: store, Git: git}
			err := v.ValidateForLaunch(context.Background(), "feature/x")
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateForContinuedWork_OwnMergedPRAllowed(t *testing.T) {
	t.Parallel()

	store := session.NewMemStore()
	git := gitport.NewFake("main")

	s := session.New("feature/x", state.WorkflowShip, time.Hour)
	s.Metadata.PR = &session.PRMetadata{Number: 9}
	require.NoError(t, s.MarkMerged(time.Now()))
	require.NoError(t, store.Create(s))

	v := &BranchValidator{History: store, Git: git}
	assert.NoError(t, v.ValidateForContinuedWork(context.Background(), s),
		"a session may keep working on its own branch after its PR merged")
}

func TestValidateForContinuedWork_OtherSessionMergedBlocks(t *testing.T) {
	t.Parallel()

	store := session.NewMemStore()
	git := gitport.NewFake("main")

	seedSession(t, store, "feature/x", true, false)

	current := session.New("feature/x", state.WorkflowShip, time.Hour)
	require.NoError(t, store.Create(current))

	v := &BranchValidator{History: store, Git: git}
	err := v.ValidateForContinuedWork(context.Background(), current)
	assert.ErrorIs(t, err, ErrBranchRecreated)
}

func TestSuggest_FirstFreeVariant(t *testing.T) {
	t.Parallel()

	store := session.NewMemStore()
	git := gitport.NewFake("main")
	v := &BranchValidator{History: store, Git: git}

	got, err := v.Suggest(context.Background(), "feature/x")
	require.NoError(t, err)
	assert.Equal(t, "feature/x-v2", got)
}

func TestSuggest_SkipsRetiredAndExistingVariants(t *testing.T) {
	t.Parallel()

	store := session.NewMemStore()
	git := gitport.NewFake("main")

	// -v2 went through a merged PR; -v3 still exists as a branch.
	seedSession(t, store, "feature/x-v2", true, false)
	git.Branches["feature/x-v3"] = true

	v := &BranchValidator{History: store, Git: git}
	got, err := v.Suggest(context.Background(), "feature/x")
	require.NoError(t, err)
	assert.Equal(t, "feature/x-v4", got)
}

func TestMarkRecreated(t *testing.T) {
	t.Parallel()

	store := session.NewMemStore()
	merged := seedSession(t, store, "feature/x", true, false)

	require.NoError(t, MarkRecreated(store, store, "feature/x", time.Now()))

	got, err := store.Get(merged.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Metadata.Branch)
	assert.True(t, got.Metadata.Branch.Recreated)
	assert.NotNil(t, got.Metadata.Branch.RecreatedAt)
}
