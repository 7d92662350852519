package checks

import (
	"context"
	"errors"
	"fmt"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/forge"
)

// ErrMultiplePRs blocks shipping while more than one PR is open for the same
// head branch; the operator must close the extras first.
var ErrMultiplePRs = errors.New("multiple open pull requests for branch")

// PRAction is the ship pipeline's decision for step three.
type PRAction string

const (
	PRActionCreate PRAction = "create"
	PRActionUpdate PRAction = "update"
)

// PRPlan is the PR validator's verdict: what to do and, for update, which PR.
type PRPlan struct {
	Action   PRAction
	Existing *forge.PullRequest
}

// PRValidator decides whether ship creates a new PR or updates an open one.
type PRValidator struct {
	Forge forge.ForgePort
}

// Plan classifies the open and merged PRs whose head is the given branch.
//
//	0 open, 0 merged -> create
//	1 open           -> update it
//	0 open, N merged -> create (continued work after merge)
//	2+ open          -> ErrMultiplePRs
func (v *PRValidator) Plan(ctx context.Context, head string) (*PRPlan, error) {
	prs, err := v.Forge.ListPullRequests(ctx, head, forge.PRStateAll)
	if err != nil {
		return nil, err
	}

	var open []*forge.PullRequest
	for _, pr := range prs {
		if pr.State == forge.PRStateOpen {
			open = append(open, pr)
		}
	}

	switch {
	case len(open) >= 2:
		nums := make([]int, len(open))
		for i, pr := range open {
			nums[i] = pr.Number
		}
		return nil, fmt.Errorf("%w %s: %v", ErrMultiplePRs, head, nums)
	case len(open) == 1:
		return &PRPlan{Action: PRActionUpdate, Existing: open[0]}, nil
	default:
		return &PRPlan{Action: PRActionCreate}, nil
	}
}
