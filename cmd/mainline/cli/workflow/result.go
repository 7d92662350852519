package workflow

import (
	"github.com/mainlinehq/mainline/cmd/mainline/cli/checks"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/forge"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

// ToolResult is the tagged union returned by every operation. The concrete
// type tells the caller what to render.
type ToolResult interface {
	Succeeded() bool
}

// SessionResult reports a session-mutating operation (launch, commit, abort,
// swap, hotfix).
type SessionResult struct {
	Success    bool            `json:"success"`
	SessionID  string          `json:"session_id,omitempty"`
	BranchName string          `json:"branch_name,omitempty"`
	State      state.State     `json:"state,omitempty"`
	PreFlight  []checks.Result `json:"pre_flight_checks,omitempty"`
	PostFlight []checks.Result `json:"post_flight_verifications,omitempty"`
	Errors     []string        `json:"errors,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
	NextSteps  []string        `json:"next_steps,omitempty"`
}

func (r *SessionResult) Succeeded() bool { return r.Success }

// ForgeResult reports ship: session outcome plus pull-request and CI detail.
type ForgeResult struct {
	Success      bool               `json:"success"`
	SessionID    string             `json:"session_id,omitempty"`
	BranchName   string             `json:"branch_name,omitempty"`
	State        state.State        `json:"state,omitempty"`
	PRNumber     int                `json:"pr_number,omitempty"`
	PRURL        string             `json:"pr_url,omitempty"`
	Merged       bool               `json:"merged"`
	Checks       *forge.CheckStatus `json:"checks,omitempty"`
	FailedChecks []string           `json:"failed_checks,omitempty"`
	FailedStep   string             `json:"failed_step,omitempty"`
	PreFlight    []checks.Result    `json:"pre_flight_checks,omitempty"`
	Errors       []string           `json:"errors,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
	NextSteps    []string           `json:"next_steps,omitempty"`
}

func (r *ForgeResult) Succeeded() bool { return r.Success }

// QueryResult reports a read-only operation (status, sessions, cleanup's
// report).
type QueryResult struct {
	Success  bool     `json:"success"`
	Data     any      `json:"data,omitempty"`
	Message  string   `json:"message,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r *QueryResult) Succeeded() bool { return r.Success }
