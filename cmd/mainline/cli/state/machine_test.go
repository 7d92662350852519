package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitial(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StateInit, Initial(WorkflowLaunch))
	assert.Equal(t, StateInit, Initial(WorkflowShip))
	assert.Equal(t, StateHotfixInit, Initial(WorkflowHotfix))
}

func TestTriggerFor_StandardHappyPath(t *testing.T) {
	t.Parallel()

	steps := []struct {
		from    State
		to      State
		trigger Trigger
	}{
		{StateInit, StateBranchReady, TriggerBranchCreated},
		{StateBranchReady, StateChangesCommitted, TriggerChangesCommitted},
		{StateChangesCommitted, StatePushed, TriggerPushCompleted},
		{StatePushed, StatePRCreated, TriggerPRCreated},
		{StatePRCreated, StateWaitingApproval, TriggerChecksPassed},
		{StateWaitingApproval, StateMerged, TriggerMergeCompleted},
		{StateMerged, StateComplete, TriggerCleanupCompleted},
	}

	for _, step := range steps {
		got, err := TriggerFor(WorkflowShip, step.from, step.to)
		require.NoError(t, err, "%s -> %s", step.from, step.to)
		assert.Equal(t, step.trigger, got)
	}
}

func TestTriggerFor_HotfixHappyPath(t *testing.T) {
	t.Parallel()

	steps := []struct {
		from State
		to   State
	}{
		{StateHotfixInit, StateHotfixReady},
		{StateHotfixReady, StateHotfixCommitted},
		{StateHotfixCommitted, StateHotfixCommitted},
		{StateHotfixCommitted, StateHotfixPushed},
		{StateHotfixPushed, StateHotfixValidated},
		{StateHotfixValidated, StateHotfixDeployed},
		{StateHotfixDeployed, StateHotfixCleanup},
		{StateHotfixCleanup, StateHotfixComplete},
	}

	for _, step := range steps {
		_, err := TriggerFor(WorkflowHotfix, step.from, step.to)
		assert.NoError(t, err, "%s -> %s", step.from, step.to)
	}
}

func TestTriggerFor_RejectsIllegalEdges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		w    Workflow
		from State
		to   State
	}{
		{name: "skip_commit", w: WorkflowShip, from: StateBranchReady, to: StatePushed},
		{name: "skip_to_merged", w: WorkflowShip, from: StateInit, to: StateMerged},
		{name: "backwards_from_merged", w: WorkflowShip, from: StateMerged, to: StatePushed},
		{name: "hotfix_state_in_standard_table", w: WorkflowShip, from: StateInit, to: StateHotfixReady},
		{name: "standard_state_in_hotfix_table", w: WorkflowHotfix, from: StateHotfixReady, to: StatePushed},
		{name: "hotfix_skip_validation", w: WorkflowHotfix, from: StateHotfixPushed, to: StateHotfixDeployed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := TriggerFor(tt.w, tt.from, tt.to)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestTriggerFor_AbortReachableFromEveryNonTerminalState(t *testing.T) {
	t.Parallel()

	nonTerminal := []State{
		StateInit, StateBranchReady, StateChangesCommitted, StatePushed,
		StatePRCreated, StateWaitingApproval, StateMerged,
		StateRebasing, StateConflictResolution,
	}
	for _, from := range nonTerminal {
		got, err := TriggerFor(WorkflowShip, from, StateAborted)
		require.NoError(t, err, "abort from %s", from)
		assert.Equal(t, TriggerAbortCommand, got)
	}

	hotfixNonTerminal := []State{
		StateHotfixInit, StateHotfixReady, StateHotfixCommitted, StateHotfixPushed,
		StateHotfixValidated, StateHotfixDeployed, StateHotfixCleanup, StateRollback,
	}
	for _, from := range hotfixNonTerminal {
		_, err := TriggerFor(WorkflowHotfix, from, StateAborted)
		assert.NoError(t, err, "abort from %s", from)
	}
}

func TestTriggerFor_TerminalStatesHaveNoExits(t *testing.T) {
	t.Parallel()

	targets := []State{
		StateInit, StateBranchReady, StateChangesCommitted, StatePushed,
		StatePRCreated, StateWaitingApproval, StateMerged, StateComplete,
		StateAborted,
	}
	for _, terminal := range []State{StateComplete, StateAborted} {
		for _, to := range targets {
			_, err := TriggerFor(WorkflowShip, terminal, to)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", terminal, to)
		}
	}

	_, err := TriggerFor(WorkflowHotfix, StateHotfixComplete, StateHotfixReady)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCanTransition_MatchesTriggerFor(t *testing.T) {
	t.Parallel()

	all := []State{
		StateInit, StateBranchReady, StateChangesCommitted, StatePushed,
		StatePRCreated, StateWaitingApproval, StateMerged, StateComplete,
		StateRebasing, StateConflictResolution, StateAborted,
	}
	for _, from := range all {
		for _, to := range all {
			_, err := TriggerFor(WorkflowLaunch, from, to)
			assert.Equal(t, err == nil, CanTransition(WorkflowLaunch, from, to),
				"%s -> %s", from, to)
		}
	}
}

func TestTriggerFor_RetryEdges(t *testing.T) {
	t.Parallel()

	// A failed ship may resume by re-committing or re-pushing.
	assert.True(t, CanTransition(WorkflowShip, StatePRCreated, StateChangesCommitted))
	assert.True(t, CanTransition(WorkflowShip, StatePRCreated, StatePushed))
	assert.True(t, CanTransition(WorkflowShip, StatePushed, StateChangesCommitted))
	// Repeated commits are a self-loop.
	assert.True(t, CanTransition(WorkflowShip, StateChangesCommitted, StateChangesCommitted))
}

func TestTriggerFor_ConflictPath(t *testing.T) {
	t.Parallel()

	got, err := TriggerFor(WorkflowShip, StateWaitingApproval, StateRebasing)
	require.NoError(t, err)
	assert.Equal(t, TriggerRebaseStarted, got)

	got, err = TriggerFor(WorkflowShip, StateRebasing, StateConflictResolution)
	require.NoError(t, err)
	assert.Equal(t, TriggerConflictDetected, got)

	got, err = TriggerFor(WorkflowShip, StateConflictResolution, StateRebasing)
	require.NoError(t, err)
	assert.Equal(t, TriggerConflictResolved, got)

	got, err = TriggerFor(WorkflowShip, StateRebasing, StatePushed)
	require.NoError(t, err)
	assert.Equal(t, TriggerPushCompleted, got)
}

func TestTriggerFor_HotfixRollback(t *testing.T) {
	t.Parallel()

	for _, from := range []State{StateHotfixValidated, StateHotfixDeployed} {
		got, err := TriggerFor(WorkflowHotfix, from, StateRollback)
		require.NoError(t, err, "rollback from %s", from)
		assert.Equal(t, TriggerRollbackStarted, got)
	}

	got, err := TriggerFor(WorkflowHotfix, StateRollback, StateHotfixReady)
	require.NoError(t, err)
	assert.Equal(t, TriggerRollbackCompleted, got)
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTerminal(WorkflowShip, StateComplete))
	assert.True(t, IsTerminal(WorkflowShip, StateAborted))
	assert.True(t, IsTerminal(WorkflowHotfix, StateHotfixComplete))
	assert.False(t, IsTerminal(WorkflowShip, StateMerged))
	assert.False(t, IsTerminal(WorkflowHotfix, StateRollback))
}

func TestAllowedFrom(t *testing.T) {
	t.Parallel()

	got := AllowedFrom(WorkflowShip, StatePRCreated)
	assert.ElementsMatch(t, []State{
		StateWaitingApproval, StateChangesCommitted, StatePushed, StateRebasing,
	}, got)

	assert.Empty(t, AllowedFrom(WorkflowShip, StateComplete))
	assert.Empty(t, AllowedFrom(WorkflowShip, StateAborted))

	// Self-loop appears once.
	got = AllowedFrom(WorkflowHotfix, StateHotfixCommitted)
	assert.ElementsMatch(t, []State{StateHotfixCommitted, StateHotfixPushed}, got)
}

func TestKnown(t *testing.T) {
	t.Parallel()

	assert.True(t, Known(WorkflowShip, StateComplete))
	assert.True(t, Known(WorkflowShip, StateAborted))
	assert.False(t, Known(WorkflowShip, StateHotfixReady))
	assert.True(t, Known(WorkflowHotfix, StateHotfixComplete))
	assert.False(t, Known(WorkflowHotfix, State("BOGUS")))
}
