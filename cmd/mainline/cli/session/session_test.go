package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/jsonutil"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

func TestNew(t *testing.T) {
	t.Parallel()

	s := New("feature/login", state.WorkflowLaunch, 30*24*time.Hour)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "feature/login", s.BranchName)
	assert.Equal(t, state.StateInit, s.CurrentState)
	assert.Empty(t, s.StateHistory)
	assert.False(t, s.IsTerminal())
	assert.True(t, s.ExpiresAt.After(s.CreatedAt))
}

func TestNew_HotfixStartsAtHotfixInit(t *testing.T) {
	t.Parallel()

	s := New("hotfix/crash", state.WorkflowHotfix, time.Hour)
	assert.Equal(t, state.StateHotfixInit, s.CurrentState)
}

func TestApply_RecordsHistoryWithDerivedTrigger(t *testing.T) {
	t.Parallel()

	s := New("feature/x", state.WorkflowLaunch, time.Hour)

	require.NoError(t, s.Apply(state.StateBranchReady, map[string]string{"commit": "abc123"}))
	require.NoError(t, s.Apply(state.StateChangesCommitted, nil))

	require.Len(t, s.StateHistory, 2)
	first := s.StateHistory[0]
	assert.Equal(t, state.StateInit, first.From)
	assert.Equal(t, state.StateBranchReady, first.To)
	assert.Equal(t, state.TriggerBranchCreated, first.Trigger)
	assert.Equal(t, "abc123", first.Metadata["commit"])
	assert.False(t, first.Timestamp.IsZero())

	assert.Equal(t, state.TriggerChangesCommitted, s.StateHistory[1].Trigger)
	assert.Equal(t, state.StateChangesCommitted, s.CurrentState)
}

func TestApply_RejectsIllegalTransitionWithoutMutating(t *testing.T) {
	t.Parallel()

	s := New("feature/x", state.WorkflowLaunch, time.Hour)
	before := s.UpdatedAt

	err := s.Apply(state.StateMerged, nil)
	require.ErrorIs(t, err, state.ErrInvalidTransition)

	assert.Equal(t, state.StateInit, s.CurrentState)
	assert.Empty(t, s.StateHistory)
	assert.Equal(t, before, s.UpdatedAt)
}

func TestApply_AbortFromAnyNonTerminalState(t *testing.T) {
	t.Parallel()

	s := New("feature/x", state.WorkflowShip, time.Hour)
	require.NoError(t, s.Apply(state.StateBranchReady, nil))
	require.NoError(t, s.Apply(state.StateAborted, nil))

	assert.True(t, s.IsTerminal())
	assert.Equal(t, state.TriggerAbortCommand, s.StateHistory[1].Trigger)

	// Terminal sessions accept nothing further.
	err := s.Apply(state.StateChangesCommitted, nil)
	assert.ErrorIs(t, err, state.ErrInvalidTransition)
}

func TestExpired(t *testing.T) {
	t.Parallel()

	s := New("feature/x", state.WorkflowLaunch, time.Hour)
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(time.Now().Add(2*time.Hour)))
}

func TestMarkMerged_SetsExactlyOnce(t *testing.T) {
	t.Parallel()

	s := New("feature/x", state.WorkflowShip, time.Hour)

	// No PR metadata yet.
	require.Error(t, s.MarkMerged(time.Now()))

	s.Metadata.PR = &PRMetadata{Number: 42}
	require.NoError(t, s.MarkMerged(time.Now()))
	assert.True(t, s.PRMerged())
	require.NotNil(t, s.Metadata.PR.MergedAt)

	// Second call fails; merged is monotonic.
	err := s.MarkMerged(time.Now())
	require.Error(t, err)
	assert.True(t, s.Metadata.PR.Merged)
}

func TestMarkBranchDeleted(t *testing.T) {
	t.Parallel()

	s := New("feature/x", state.WorkflowShip, time.Hour)
	s.MarkBranchDeleted(time.Now())

	require.NotNil(t, s.Metadata.Branch)
	assert.True(t, s.Metadata.Branch.RemoteDeleted)
	assert.NotNil(t, s.Metadata.Branch.DeletedAt)
}

func TestSession_JSONRoundTripPreservesEverything(t *testing.T) {
	t.Parallel()

	s := New("feature/roundtrip", state.WorkflowShip, time.Hour)
	require.NoError(t, s.Apply(state.StateBranchReady, map[string]string{"head": "deadbeef"}))
	require.NoError(t, s.Apply(state.StateChangesCommitted, nil))
	s.Metadata.PR = &PRMetadata{Number: 7, URL: "https://example.com/pr/7", Head: "feature/roundtrip", Base: "main"}
	s.Metadata.StashRef = "stash@{0}"
	require.NoError(t, s.MarkMerged(time.Now()))

	data, err := jsonutil.MarshalIndentWithNewline(s, "", "  ")
	require.NoError(t, err)

	var loaded Session
	require.NoError(t, json.Unmarshal(data, &loaded))

	again, err := jsonutil.MarshalIndentWithNewline(&loaded, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again), "serialization must be stable across load/save cycles")
}
