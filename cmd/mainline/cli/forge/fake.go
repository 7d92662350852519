package forge

import (
	"context"
	"fmt"
	"time"
)

// Fake is an in-memory ForgePort for tests. Check statuses are scripted as a
// queue consumed one entry per poll; the last entry repeats.
type Fake struct {
	PRs        map[int]*PullRequest
	HeadOf     map[int]string // PR number -> head branch
	nextNumber int

	// CheckSequence is consumed by successive GetCheckStatus calls.
	CheckSequence []CheckStatus

	// MergeErr, when set, is returned by MergePullRequest.
	MergeErr error

	// CreateErr, when set, is returned by CreatePullRequest.
	CreateErr error

	ReleaseTag string

	Calls []string
}

// NewFakeForge returns an empty fake forge.
func NewFakeForge() *Fake {
	return &Fake{
		PRs:        map[int]*PullRequest{},
		HeadOf:     map[int]string{},
		nextNumber: 100,
	}
}

// SeedPR registers an existing PR with the given head branch and state.
func (f *Fake) SeedPR(head, prState string, mergedAt *time.Time) *PullRequest {
	f.nextNumber++
	pr := &PullRequest{
		Number:   f.nextNumber,
		URL:      fmt.Sprintf("https://forge.example/pr/%d", f.nextNumber),
		State:    prState,
		HeadSHA:  fmt.Sprintf("sha-%d", f.nextNumber),
		MergedAt: mergedAt,
	}
	f.PRs[pr.Number] = pr
	f.HeadOf[pr.Number] = head
	return pr
}

func (f *Fake) record(op string) {
	f.Calls = append(f.Calls, op)
}

func (f *Fake) CreatePullRequest(_ context.Context, pr NewPullRequest) (*PullRequest, error) {
	f.record("CreatePullRequest")
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.nextNumber++
	created := &PullRequest{
		Number:  f.nextNumber,
		URL:     fmt.Sprintf("https://forge.example/pr/%d", f.nextNumber),
		Title:   pr.Title,
		State:   PRStateOpen,
		HeadSHA: fmt.Sprintf("sha-%d", f.nextNumber),
	}
	f.PRs[created.Number] = created
	f.HeadOf[created.Number] = pr.Head
	return created, nil
}

func (f *Fake) UpdatePullRequest(_ context.Context, number int, title, body string) error {
	f.record("UpdatePullRequest")
	pr, ok := f.PRs[number]
	if !ok {
		return fmt.Errorf("%w: no PR #%d", ErrForgeFailure, number)
	}
	if title != "" {
		pr.Title = title
	}
	_ = body
	return nil
}

func (f *Fake) GetPullRequest(_ context.Context, number int) (*PullRequest, error) {
	f.record("GetPullRequest")
	pr, ok := f.PRs[number]
	if !ok {
		return nil, fmt.Errorf("%w: no PR #%d", ErrForgeFailure, number)
	}
	return pr, nil
}

func (f *Fake) ListPullRequests(_ context.Context, head, prState string) ([]*PullRequest, error) {
	f.record("ListPullRequests")
	var out []*PullRequest
	for num, pr := range f.PRs {
		if f.HeadOf[num] != head {
			continue
		}
		if prState != "" && prState != PRStateAll && pr.State != prState {
			continue
		}
		out = append(out, pr)
	}
	return out, nil
}

func (f *Fake) GetCheckStatus(context.Context, string) (*CheckStatus, error) {
	f.record("GetCheckStatus")
	if len(f.CheckSequence) == 0 {
		return &CheckStatus{Passed: 1}, nil
	}
	status := f.CheckSequence[0]
	if len(f.CheckSequence) > 1 {
		f.CheckSequence = f.CheckSequence[1:]
	}
	return &status, nil
}

func (f *Fake) WaitForChecks(ctx context.Context, prNumber int, opts WaitOptions) (*WaitResult, error) {
	f.record("WaitForChecks")
	pr, err := f.GetPullRequest(ctx, prNumber)
	if err != nil {
		return nil, err
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Millisecond
	}
	return waitForChecks(ctx, func(ctx context.Context) (*CheckStatus, error) {
		return f.GetCheckStatus(ctx, pr.HeadSHA)
	}, opts)
}

func (f *Fake) MergePullRequest(_ context.Context, number int) error {
	f.record("MergePullRequest")
	if f.MergeErr != nil {
		return f.MergeErr
	}
	pr, ok := f.PRs[number]
	if !ok {
		return fmt.Errorf("%w: no PR #%d", ErrForgeFailure, number)
	}
	now := time.Now().UTC()
	pr.State = PRStateClosed
	pr.MergedAt = &now
	return nil
}

func (f *Fake) LatestReleaseTag(context.Context) (string, error) {
	f.record("LatestReleaseTag")
	return f.ReleaseTag, nil
}
