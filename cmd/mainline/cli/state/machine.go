package state

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a transition is not present in the
// table for the workflow type.
var ErrInvalidTransition = errors.New("invalid state transition")

// transition is one legal edge of the table.
type transition struct {
	To      State
	Trigger Trigger
}

// standardTable governs launch and ship workflows.
//
// ABORTED is handled separately: it is reachable from every non-terminal
// state via TriggerAbortCommand (see CanTransition).
var standardTable = map[State][]transition{
	StateInit: {
		{StateBranchReady, TriggerBranchCreated},
	},
	StateBranchReady: {
		{StateChangesCommitted, TriggerChangesCommitted},
	},
	StateChangesCommitted: {
		// Additional commits are legal before pushing.
		{StateChangesCommitted, TriggerChangesCommitted},
		{StatePushed, TriggerPushCompleted},
	},
	StatePushed: {
		{StatePRCreated, TriggerPRCreated},
		{StateChangesCommitted, TriggerChangesCommitted},
	},
	StatePRCreated: {
		{StateWaitingApproval, TriggerChecksPassed},
		// Retrying ship after a CI failure starts over from the commit step.
		{StateChangesCommitted, TriggerChangesCommitted},
		{StatePushed, TriggerPushCompleted},
		{StateRebasing, TriggerRebaseStarted},
	},
	StateWaitingApproval: {
		{StateMerged, TriggerMergeCompleted},
		{StateRebasing, TriggerRebaseStarted},
	},
	StateMerged: {
		{StateComplete, TriggerCleanupCompleted},
	},
	StateRebasing: {
		{StateConflictResolution, TriggerConflictDetected},
		{StatePushed, TriggerPushCompleted},
	},
	StateConflictResolution: {
		{StateRebasing, TriggerConflictResolved},
	},
}

// hotfixTable governs hotfix workflows.
var hotfixTable = map[State][]transition{
	StateHotfixInit: {
		{StateHotfixReady, TriggerBranchCreated},
	},
	StateHotfixReady: {
		{StateHotfixCommitted, TriggerChangesCommitted},
	},
	StateHotfixCommitted: {
		{StateHotfixCommitted, TriggerChangesCommitted},
		{StateHotfixPushed, TriggerPushCompleted},
	},
	StateHotfixPushed: {
		{StateHotfixValidated, TriggerValidationPassed},
		{StateHotfixCommitted, TriggerChangesCommitted},
	},
	StateHotfixValidated: {
		{StateHotfixDeployed, TriggerDeployCompleted},
		{StateRollback, TriggerRollbackStarted},
	},
	StateHotfixDeployed: {
		{StateHotfixCleanup, TriggerCleanupStarted},
		{StateRollback, TriggerRollbackStarted},
	},
	StateHotfixCleanup: {
		{StateHotfixComplete, TriggerCleanupCompleted},
	},
	StateRollback: {
		{StateHotfixReady, TriggerRollbackCompleted},
	},
}

// tableFor returns the transition table for a workflow type.
func tableFor(w Workflow) map[State][]transition {
	if w == WorkflowHotfix {
		return hotfixTable
	}
	return standardTable
}

// Initial returns the entry state for a workflow type.
func Initial(w Workflow) State {
	if w == WorkflowHotfix {
		return StateHotfixInit
	}
	return StateInit
}

// IsTerminal reports whether a state has no outgoing transitions.
func IsTerminal(w Workflow, s State) bool {
	switch s {
	case StateComplete, StateHotfixComplete, StateAborted:
		return true
	default:
		return false
	}
}

// Known reports whether s belongs to the workflow's state set.
func Known(w Workflow, s State) bool {
	if s == StateAborted {
		return true
	}
	table := tableFor(w)
	if _, ok := table[s]; ok {
		return true
	}
	// Terminal states appear only as targets.
	for _, edges := range table {
		for _, e := range edges {
			if e.To == s {
				return true
			}
		}
	}
	return false
}

// CanTransition reports whether moving from -> to is legal for the workflow.
func CanTransition(w Workflow, from, to State) bool {
	_, err := TriggerFor(w, from, to)
	return err == nil
}

// TriggerFor returns the trigger associated with the from -> to edge, or
// ErrInvalidTransition when the table does not contain it.
//
// Every non-terminal state may transition to ABORTED via the abort command.
func TriggerFor(w Workflow, from, to State) (Trigger, error) {
	if IsTerminal(w, from) {
		return "", fmt.Errorf("%w: %s is terminal for %s workflow", ErrInvalidTransition, from, w)
	}
	if to == StateAborted {
		if !Known(w, from) {
			return "", fmt.Errorf("%w: unknown state %s for %s workflow", ErrInvalidTransition, from, w)
		}
		return TriggerAbortCommand, nil
	}
	for _, e := range tableFor(w)[from] {
		if e.To == to {
			return e.Trigger, nil
		}
	}
	return "", fmt.Errorf("%w: %s -> %s is not allowed for %s workflow", ErrInvalidTransition, from, to, w)
}

// AllowedFrom returns the set of states reachable from the given state,
// excluding the always-available ABORTED edge.
func AllowedFrom(w Workflow, from State) []State {
	edges := tableFor(w)[from]
	out := make([]State, 0, len(edges))
	seen := map[State]bool{}
	for _, e := range edges {
		if !seen[e.To] {
			out = append(out, e.To)
			seen[e.To] = true
		}
	}
	return out
}
