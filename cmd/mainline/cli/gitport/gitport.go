// Package gitport abstracts the local git repository behind a narrow
// interface. The production implementation uses go-git for repository reads
// and commits, and shells out to the git binary for network and stash
// operations so credential helpers and transfer protocols keep working.
package gitport

import (
	"context"
	"errors"
)

// ErrGitFailure wraps failures from the underlying repository or git binary.
var ErrGitFailure = errors.New("git operation failed")

// Status describes the working tree.
type Status struct {
	Clean     bool
	Modified  []string
	Created   []string
	Deleted   []string
	Untracked []string
}

// BranchStatus describes the current branch relative to its upstream.
type BranchStatus struct {
	Ahead     int
	Behind    int
	HasRemote bool
	IsClean   bool
}

// DiffStat summarizes line-level changes in the working tree against HEAD.
type DiffStat struct {
	FilesChanged int
	LinesAdded   int
	LinesRemoved int
}

// GitPort is the local repository interface the workflow core depends on.
type GitPort interface {
	CurrentBranch(ctx context.Context) (string, error)
	Head(ctx context.Context) (string, error)
	Status(ctx context.Context) (*Status, error)
	BranchStatus(ctx context.Context) (*BranchStatus, error)
	HasUncommittedChanges(ctx context.Context) (bool, error)

	StageAll(ctx context.Context) error
	Commit(ctx context.Context, message string, noVerify bool) (string, error)

	CreateBranch(ctx context.Context, name, baseRef string) error
	CheckoutBranch(ctx context.Context, name string) error
	DeleteBranch(ctx context.Context, name string, force bool) error
	DeleteRemoteBranch(ctx context.Context, name string) error
	BranchExistsLocal(ctx context.Context, name string) (bool, error)
	BranchExistsRemote(ctx context.Context, name string) (bool, error)

	// LocalBranches lists the short names of all local branches.
	LocalBranches(ctx context.Context) ([]string, error)

	Fetch(ctx context.Context, remote, ref string) error
	Pull(ctx context.Context, remote, ref string) error
	Push(ctx context.Context, branch string, force bool) error
	Merge(ctx context.Context, branch string, squash bool) error

	Stash(ctx context.Context, message string) (string, error)
	StashApply(ctx context.Context, ref string) error
	StashPop(ctx context.Context, ref string) error

	// AheadBehind counts commits the branch has over base and vice versa.
	AheadBehind(ctx context.Context, base, branch string) (ahead, behind int, err error)

	// DiffStat summarizes uncommitted line changes against HEAD.
	DiffStat(ctx context.Context) (*DiffStat, error)
}
