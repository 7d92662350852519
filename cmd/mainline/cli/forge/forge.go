// Package forge abstracts the remote hosting service (GitHub, GitLab, ...)
// behind the narrow interface the workflow core needs: pull requests, check
// runs, and squash merges.
package forge

import (
	"context"
	"errors"
	"time"
)

// Forge errors.
var (
	// ErrForgeFailure wraps transport or API failures.
	ErrForgeFailure = errors.New("forge operation failed")

	// ErrMergeConflict is returned when the forge refuses a merge because
	// the head branch conflicts with the base.
	ErrMergeConflict = errors.New("pull request is not mergeable")
)

// PR state filter values for ListPullRequests.
const (
	PRStateOpen   = "open"
	PRStateClosed = "closed"
	PRStateAll    = "all"
)

// NewPullRequest describes a PR to create.
type NewPullRequest struct {
	Title string
	Body  string
	Base  string
	Head  string
}

// PullRequest is the forge's record of a pull request.
type PullRequest struct {
	Number   int
	URL      string
	Title    string
	State    string
	HeadSHA  string
	MergedAt *time.Time
}

// Merged reports whether the PR has been merged.
func (p *PullRequest) Merged() bool { return p.MergedAt != nil }

// CheckStatus summarizes check runs for a commit.
type CheckStatus struct {
	Passed      int
	Pending     int
	Failed      int
	FailedNames []string
}

// AllPassed reports whether every check completed successfully.
func (c *CheckStatus) AllPassed() bool {
	return c.Failed == 0 && c.Pending == 0
}

// WaitOptions controls the wait-for-checks loop.
type WaitOptions struct {
	// Timeout bounds the whole wait. Zero means no extra bound beyond ctx.
	Timeout time.Duration

	// PollInterval is the delay between polls.
	PollInterval time.Duration

	// OnProgress, if set, is called after every poll with the latest status.
	OnProgress func(CheckStatus)
}

// WaitResult is the outcome of a wait-for-checks loop.
type WaitResult struct {
	Success      bool
	TimedOut     bool
	FailedChecks []string
}

// ForgePort is the remote forge interface the workflow core depends on.
type ForgePort interface {
	CreatePullRequest(ctx context.Context, pr NewPullRequest) (*PullRequest, error)
	UpdatePullRequest(ctx context.Context, number int, title, body string) error
	GetPullRequest(ctx context.Context, number int) (*PullRequest, error)

	// ListPullRequests returns PRs whose head is the given branch, filtered
	// by state (open/closed/all).
	ListPullRequests(ctx context.Context, head, prState string) ([]*PullRequest, error)

	// GetCheckStatus summarizes check runs for a commit ref.
	GetCheckStatus(ctx context.Context, ref string) (*CheckStatus, error)

	// WaitForChecks polls check runs for the PR's head commit until all
	// succeed, any fails, the timeout elapses, or ctx is cancelled.
	// Cancellation returns ctx.Err; a failing or timed-out run returns a
	// WaitResult describing it, not an error.
	WaitForChecks(ctx context.Context, prNumber int, opts WaitOptions) (*WaitResult, error)

	// MergePullRequest squash-merges the PR. Returns ErrMergeConflict when
	// the forge reports the head is not mergeable.
	MergePullRequest(ctx context.Context, number int) error

	// LatestReleaseTag returns the tag of the repository's latest release,
	// or empty string when there are no releases.
	LatestReleaseTag(ctx context.Context) (string, error)
}
