package forge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// GitHub implements ForgePort against the GitHub REST API.
// The client is safe for concurrent use.
type GitHub struct {
	client      *github.Client
	owner       string
	repo        string
	callTimeout time.Duration
}

// NewGitHub builds a GitHub forge client. An empty token yields an
// unauthenticated client, which is enough for public-repo reads.
func NewGitHub(owner, repo, token string, callTimeout time.Duration) *GitHub {
	var httpClient *http.Client
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), src)
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &GitHub{
		client:      github.NewClient(httpClient),
		owner:       owner,
		repo:        repo,
		callTimeout: callTimeout,
	}
}

// callCtx bounds a single API call with the per-call timeout.
func (g *GitHub) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.callTimeout)
}

// CreatePullRequest opens a PR.
func (g *GitHub) CreatePullRequest(ctx context.Context, pr NewPullRequest) (*PullRequest, error) {
	cctx, cancel := g.callCtx(ctx)
	defer cancel()

	created, _, err := g.client.PullRequests.Create(cctx, g.owner, g.repo, &github.NewPullRequest{
		Title: github.Ptr(pr.Title),
		Body:  github.Ptr(pr.Body),
		Base:  github.Ptr(pr.Base),
		Head:  github.Ptr(pr.Head),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating pull request: %v", ErrForgeFailure, err)
	}
	return fromGitHubPR(created), nil
}

// UpdatePullRequest updates the PR's title and/or body. Empty fields are
// left unchanged.
func (g *GitHub) UpdatePullRequest(ctx context.Context, number int, title, body string) error {
	cctx, cancel := g.callCtx(ctx)
	defer cancel()

	patch := &github.PullRequest{}
	if title != "" {
		patch.Title = github.Ptr(title)
	}
	if body != "" {
		patch.Body = github.Ptr(body)
	}
	if _, _, err := g.client.PullRequests.Edit(cctx, g.owner, g.repo, number, patch); err != nil {
		return fmt.Errorf("%w: updating pull request #%d: %v", ErrForgeFailure, number, err)
	}
	return nil
}

// GetPullRequest fetches one PR by number.
func (g *GitHub) GetPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	cctx, cancel := g.callCtx(ctx)
	defer cancel()

	pr, _, err := g.client.PullRequests.Get(cctx, g.owner, g.repo, number)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching pull request #%d: %v", ErrForgeFailure, number, err)
	}
	return fromGitHubPR(pr), nil
}

// ListPullRequests lists PRs whose head is the given branch.
func (g *GitHub) ListPullRequests(ctx context.Context, head, prState string) ([]*PullRequest, error) {
	cctx, cancel := g.callCtx(ctx)
	defer cancel()

	if prState == "" {
		prState = PRStateAll
	}
	opts := &github.PullRequestListOptions{
		Head:        g.owner + ":" + head,
		State:       prState,
		ListOptions: github.ListOptions{PerPage: 50},
	}

	var out []*PullRequest
	for {
		prs, resp, err := g.client.PullRequests.List(cctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: listing pull requests for %s: %v", ErrForgeFailure, head, err)
		}
		for _, pr := range prs {
			out = append(out, fromGitHubPR(pr))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// GetCheckStatus summarizes check runs for a commit ref. Neutral and skipped
// conclusions count as passed.
func (g *GitHub) GetCheckStatus(ctx context.Context, ref string) (*CheckStatus, error) {
	cctx, cancel := g.callCtx(ctx)
	defer cancel()

	opts := &github.ListCheckRunsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	status := &CheckStatus{}
	for {
		runs, resp, err := g.client.Checks.ListCheckRunsForRef(cctx, g.owner, g.repo, ref, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: listing check runs for %s: %v", ErrForgeFailure, ref, err)
		}
		for _, run := range runs.CheckRuns {
			if run.GetStatus() != "completed" {
				status.Pending++
				continue
			}
			switch run.GetConclusion() {
			case "success", "neutral", "skipped":
				status.Passed++
			default:
				status.Failed++
				status.FailedNames = append(status.FailedNames, run.GetName())
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return status, nil
}

// WaitForChecks polls the PR's head commit checks until a verdict.
func (g *GitHub) WaitForChecks(ctx context.Context, prNumber int, opts WaitOptions) (*WaitResult, error) {
	pr, err := g.GetPullRequest(ctx, prNumber)
	if err != nil {
		return nil, err
	}
	return waitForChecks(ctx, func(ctx context.Context) (*CheckStatus, error) {
		return g.GetCheckStatus(ctx, pr.HeadSHA)
	}, opts)
}

// MergePullRequest squash-merges the PR.
func (g *GitHub) MergePullRequest(ctx context.Context, number int) error {
	cctx, cancel := g.callCtx(ctx)
	defer cancel()

	result, resp, err := g.client.PullRequests.Merge(cctx, g.owner, g.repo, number, "", &github.PullRequestOptions{
		MergeMethod: "squash",
	})
	if err != nil {
		// 405 is GitHub's "not mergeable" answer (conflicts, blocked).
		if resp != nil && resp.StatusCode == http.StatusMethodNotAllowed {
			return fmt.Errorf("%w: #%d", ErrMergeConflict, number)
		}
		if strings.Contains(err.Error(), "not mergeable") {
			return fmt.Errorf("%w: #%d", ErrMergeConflict, number)
		}
		return fmt.Errorf("%w: merging pull request #%d: %v", ErrForgeFailure, number, err)
	}
	if !result.GetMerged() {
		return fmt.Errorf("%w: merging pull request #%d: %s", ErrForgeFailure, number, result.GetMessage())
	}
	return nil
}

// LatestReleaseTag returns the latest release tag, or "" when the repository
// has no releases.
func (g *GitHub) LatestReleaseTag(ctx context.Context) (string, error) {
	cctx, cancel := g.callCtx(ctx)
	defer cancel()

	rel, resp, err := g.client.Repositories.GetLatestRelease(cctx, g.owner, g.repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", fmt.Errorf("%w: fetching latest release: %v", ErrForgeFailure, err)
	}
	return rel.GetTagName(), nil
}

// fromGitHubPR converts the API type to the port type.
func fromGitHubPR(pr *github.PullRequest) *PullRequest {
	out := &PullRequest{
		Number:  pr.GetNumber(),
		URL:     pr.GetHTMLURL(),
		Title:   pr.GetTitle(),
		State:   pr.GetState(),
		HeadSHA: pr.GetHead().GetSHA(),
	}
	if t := pr.GetMergedAt(); !t.IsZero() {
		ts := t.Time
		out.MergedAt = &ts
	}
	return out
}
