// Package state defines the workflow state machine: the states each workflow
// type moves through and the static table of legal transitions. Transition
// logic here is pure; persisting the result is the caller's job.
package state

// Workflow identifies which transition table governs a session.
type Workflow string

const (
	WorkflowLaunch Workflow = "launch"
	WorkflowShip   Workflow = "ship"
	WorkflowHotfix Workflow = "hotfix"
)

// State is a lifecycle stage of a workflow session.
type State string

// Standard workflow states (launch and ship share the table).
const (
	StateInit               State = "INIT"
	StateBranchReady        State = "BRANCH_READY"
	StateChangesCommitted   State = "CHANGES_COMMITTED"
	StatePushed             State = "PUSHED"
	StatePRCreated          State = "PR_CREATED"
	StateWaitingApproval    State = "WAITING_APPROVAL"
	StateMerged             State = "MERGED"
	StateComplete           State = "COMPLETE"
	StateRebasing           State = "REBASING"
	StateConflictResolution State = "CONFLICT_RESOLUTION"
	StateAborted            State = "ABORTED"
)

// Hotfix workflow states.
const (
	StateHotfixInit      State = "HOTFIX_INIT"
	StateHotfixReady     State = "HOTFIX_READY"
	StateHotfixCommitted State = "HOTFIX_COMMITTED"
	StateHotfixPushed    State = "HOTFIX_PUSHED"
	StateHotfixValidated State = "HOTFIX_VALIDATED"
	StateHotfixDeployed  State = "HOTFIX_DEPLOYED"
	StateHotfixCleanup   State = "HOTFIX_CLEANUP"
	StateHotfixComplete  State = "HOTFIX_COMPLETE"
	StateRollback        State = "ROLLBACK"
)

// Trigger names the event that caused a transition. Triggers are recorded in
// the session's state history for forensic replay.
type Trigger string

const (
	TriggerBranchCreated     Trigger = "branch_created"
	TriggerChangesCommitted  Trigger = "changes_committed"
	TriggerPushCompleted     Trigger = "push_completed"
	TriggerPRCreated         Trigger = "pr_created"
	TriggerChecksPassed      Trigger = "checks_passed"
	TriggerMergeCompleted    Trigger = "merge_completed"
	TriggerCleanupStarted    Trigger = "cleanup_started"
	TriggerCleanupCompleted  Trigger = "cleanup_completed"
	TriggerRebaseStarted     Trigger = "rebase_started"
	TriggerConflictDetected  Trigger = "conflict_detected"
	TriggerConflictResolved  Trigger = "conflict_resolved"
	TriggerAbortCommand      Trigger = "abort_command"
	TriggerValidationPassed  Trigger = "validation_passed"
	TriggerDeployCompleted   Trigger = "deploy_completed"
	TriggerRollbackStarted   Trigger = "rollback_started"
	TriggerRollbackCompleted Trigger = "rollback_completed"
)
