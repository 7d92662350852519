// Package session defines the durable workflow session record and its
// file-backed store. A session owns one branch from creation through merge
// (or abort) and is only ever mutated by a caller holding its lock.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

// PRMetadata records the pull request a session created or updated.
// Merged is set to true exactly once; a session whose PR merged can never
// lend its branch name to a future launch.
type PRMetadata struct {
	Number   int        `json:"number"`
	URL      string     `json:"url,omitempty"`
	Title    string     `json:"title,omitempty"`
	Body     string     `json:"body,omitempty"`
	Base     string     `json:"base,omitempty"`
	Head     string     `json:"head,omitempty"`
	Merged   bool       `json:"merged"`
	MergedAt *time.Time `json:"merged_at,omitempty"`
}

// BranchMetadata tracks the remote lifecycle of the session's branch.
type BranchMetadata struct {
	RemoteDeleted bool       `json:"remote_deleted"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	Recreated     bool       `json:"recreated"`
	RecreatedAt   *time.Time `json:"recreated_at,omitempty"`
}

// Metadata is the bag of recognized per-session fields.
type Metadata struct {
	ProjectPath string          `json:"project_path,omitempty"`
	RemoteURL   string          `json:"remote_url,omitempty"`
	ForgeKind   string          `json:"forge_kind,omitempty"`
	User        string          `json:"user,omitempty"`
	StashRef    string          `json:"stash_ref,omitempty"`
	PR          *PRMetadata     `json:"pr,omitempty"`
	Branch      *BranchMetadata `json:"branch,omitempty"`
}

// TransitionRecord is one entry of the append-only state history.
type TransitionRecord struct {
	From      state.State       `json:"from"`
	To        state.State       `json:"to"`
	Trigger   state.Trigger     `json:"trigger"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Session is the durable record of one feature's journey from branch
// creation through merge.
type Session struct {
	ID           string             `json:"id"`
	BranchName   string             `json:"branch_name"`
	WorkflowType state.Workflow     `json:"workflow_type"`
	CurrentState state.State        `json:"current_state"`
	StateHistory []TransitionRecord `json:"state_history"`
	Metadata     Metadata           `json:"metadata"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	ExpiresAt    time.Time          `json:"expires_at"`
}

// New creates a session in the workflow's initial state.
func New(branchName string, workflow state.Workflow, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           uuid.NewString(),
		BranchName:   branchName,
		WorkflowType: workflow,
		CurrentState: state.Initial(workflow),
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

// Apply validates the transition against the state machine, appends it to the
// history, and advances CurrentState. The trigger is derived from the
// transition table so history and table can never disagree.
func (s *Session) Apply(to state.State, meta map[string]string) error {
	trigger, err := state.TriggerFor(s.WorkflowType, s.CurrentState, to)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	s.StateHistory = append(s.StateHistory, TransitionRecord{
		From:      s.CurrentState,
		To:        to,
		Trigger:   trigger,
		Timestamp: now,
		Metadata:  meta,
	})
	s.CurrentState = to
	s.UpdatedAt = now
	return nil
}

// IsTerminal reports whether the session reached a terminal state.
func (s *Session) IsTerminal() bool {
	return state.IsTerminal(s.WorkflowType, s.CurrentState)
}

// Expired reports whether the session's TTL has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// PRMerged reports whether this session's PR has ever been merged.
func (s *Session) PRMerged() bool {
	return s.Metadata.PR != nil && s.Metadata.PR.Merged
}

// MarkMerged records the squash merge. It returns an error if called twice;
// merged is set exactly once.
func (s *Session) MarkMerged(now time.Time) error {
	if s.Metadata.PR == nil {
		return fmt.Errorf("session %s has no PR metadata to mark merged", s.ID)
	}
	if s.Metadata.PR.Merged {
		return fmt.Errorf("session %s PR #%d is already merged", s.ID, s.Metadata.PR.Number)
	}
	t := now.UTC()
	s.Metadata.PR.Merged = true
	s.Metadata.PR.MergedAt = &t
	return nil
}

// MarkBranchDeleted records the remote branch deletion after merge.
func (s *Session) MarkBranchDeleted(now time.Time) {
	if s.Metadata.Branch == nil {
		s.Metadata.Branch = &BranchMetadata{}
	}
	t := now.UTC()
	s.Metadata.Branch.RemoteDeleted = true
	s.Metadata.Branch.DeletedAt = &t
}
