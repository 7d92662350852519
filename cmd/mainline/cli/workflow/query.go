package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/gitport"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/logging"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

// StatusData is the Data payload of Status.
type StatusData struct {
	Branch       string                `json:"branch"`
	SessionID    string                `json:"session_id,omitempty"`
	WorkflowType state.Workflow        `json:"workflow_type,omitempty"`
	State        state.State           `json:"state,omitempty"`
	NextStates   []state.State         `json:"next_states,omitempty"`
	PRNumber     int                   `json:"pr_number,omitempty"`
	PRURL        string                `json:"pr_url,omitempty"`
	BranchStatus *gitport.BranchStatus `json:"branch_status,omitempty"`
	DiffStat     *gitport.DiffStat     `json:"diff_stat,omitempty"`
	UpdatedAt    *time.Time            `json:"updated_at,omitempty"`
}

// Status reports the current branch, its session if any, and the working
// tree's shape. Read-only; takes no locks.
func (o *Orchestrator) Status(ctx context.Context) (*QueryResult, error) {
	res := &QueryResult{}
	ctx = logging.WithOperation(ctx, "status")

	branch, err := o.git.CurrentBranch(ctx)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	data := &StatusData{Branch: branch}
	res.Data = data

	if bs, err := o.git.BranchStatus(ctx); err == nil {
		data.BranchStatus = bs
	} else {
		res.Warnings = append(res.Warnings, err.Error())
	}
	if ds, err := o.git.DiffStat(ctx); err == nil {
		data.DiffStat = ds
	}

	s, err := o.store.GetByBranch(branch)
	switch {
	case errors.Is(err, session.ErrNoSession):
		res.Message = "no session for " + branch
	case err != nil:
		res.Errors = append(res.Errors, err.Error())
		return res, err
	default:
		data.SessionID = s.ID
		data.WorkflowType = s.WorkflowType
		data.State = s.CurrentState
		data.NextStates = state.AllowedFrom(s.WorkflowType, s.CurrentState)
		t := s.UpdatedAt
		data.UpdatedAt = &t
		if s.Metadata.PR != nil {
			data.PRNumber = s.Metadata.PR.Number
			data.PRURL = s.Metadata.PR.URL
		}
		if s.Expired(o.now().UTC()) && !s.IsTerminal() {
			res.Warnings = append(res.Warnings, "session has expired; cleanup may remove it")
		}
	}

	res.Success = true
	return res, nil
}

// SessionSummary is one row of the Sessions listing.
type SessionSummary struct {
	ID           string         `json:"id"`
	BranchName   string         `json:"branch_name"`
	WorkflowType state.Workflow `json:"workflow_type"`
	State        state.State    `json:"state"`
	Terminal     bool           `json:"terminal"`
	PRNumber     int            `json:"pr_number,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Sessions lists sessions, optionally including terminal ones.
func (o *Orchestrator) Sessions(ctx context.Context, includeTerminal bool) (*QueryResult, error) {
	res := &QueryResult{}
	_ = logging.WithOperation(ctx, "sessions")

	all, err := o.store.List(includeTerminal)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}

	rows := make([]SessionSummary, 0, len(all))
	for _, s := range all {
		row := SessionSummary{
			ID:           s.ID,
			BranchName:   s.BranchName,
			WorkflowType: s.WorkflowType,
			State:        s.CurrentState,
			Terminal:     s.IsTerminal(),
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
		}
		if s.Metadata.PR != nil {
			row.PRNumber = s.Metadata.PR.Number
		}
		rows = append(rows, row)
	}

	res.Data = rows
	res.Success = true
	return res, nil
}
