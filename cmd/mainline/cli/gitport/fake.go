package gitport

import (
	"context"
	"fmt"
	"sort"
)

// Fake is an in-memory GitPort for orchestrator tests. State is mutated the
// way the real port would mutate a repository; individual operations can be
// made to fail by name via Fail.
type Fake struct {
	Branch         string
	HeadSHA        string
	Dirty          bool
	Untracked      []string
	Branches       map[string]bool
	RemoteBranches map[string]bool
	AheadOfBase    int
	BehindBase     int
	CommitCount    int
	Stashes        map[string]bool

	// Calls records every operation in order, for asserting pipelines.
	Calls []string

	// Fail maps an operation name (e.g. "Push") to the error it returns.
	Fail map[string]error
}

// NewFake returns a fake positioned on a clean default branch.
func NewFake(branch string) *Fake {
	return &Fake{
		Branch:         branch,
		HeadSHA:        "deadbeef0000",
		Branches:       map[string]bool{branch: true},
		RemoteBranches: map[string]bool{branch: true},
		Stashes:        map[string]bool{},
		Fail:           map[string]error{},
	}
}

func (f *Fake) record(op string) error {
	f.Calls = append(f.Calls, op)
	if err, ok := f.Fail[op]; ok {
		return err
	}
	return nil
}

func (f *Fake) CurrentBranch(context.Context) (string, error) {
	if err := f.record("CurrentBranch"); err != nil {
		return "", err
	}
	return f.Branch, nil
}

func (f *Fake) Head(context.Context) (string, error) {
	if err := f.record("Head"); err != nil {
		return "", err
	}
	return f.HeadSHA, nil
}

func (f *Fake) Status(context.Context) (*Status, error) {
	if err := f.record("Status"); err != nil {
		return nil, err
	}
	st := &Status{Clean: !f.Dirty && len(f.Untracked) == 0, Untracked: f.Untracked}
	if f.Dirty {
		st.Modified = []string{"file.go"}
	}
	return st, nil
}

func (f *Fake) BranchStatus(context.Context) (*BranchStatus, error) {
	if err := f.record("BranchStatus"); err != nil {
		return nil, err
	}
	return &BranchStatus{
		Ahead:     f.AheadOfBase,
		Behind:    f.BehindBase,
		HasRemote: f.RemoteBranches[f.Branch],
		IsClean:   !f.Dirty,
	}, nil
}

func (f *Fake) HasUncommittedChanges(context.Context) (bool, error) {
	if err := f.record("HasUncommittedChanges"); err != nil {
		return false, err
	}
	return f.Dirty || len(f.Untracked) > 0, nil
}

func (f *Fake) StageAll(context.Context) error {
	if err := f.record("StageAll"); err != nil {
		return err
	}
	f.Untracked = nil
	return nil
}

func (f *Fake) Commit(_ context.Context, message string, _ bool) (string, error) {
	if err := f.record("Commit"); err != nil {
		return "", err
	}
	f.Dirty = false
	f.Untracked = nil
	f.CommitCount++
	f.AheadOfBase++
	f.HeadSHA = fmt.Sprintf("commit%04d", f.CommitCount)
	_ = message
	return f.HeadSHA, nil
}

func (f *Fake) CreateBranch(_ context.Context, name, _ string) error {
	if err := f.record("CreateBranch"); err != nil {
		return err
	}
	f.Branches[name] = true
	f.Branch = name
	return nil
}

func (f *Fake) CheckoutBranch(_ context.Context, name string) error {
	if err := f.record("CheckoutBranch"); err != nil {
		return err
	}
	if !f.Branches[name] {
		return fmt.Errorf("%w: branch %s does not exist", ErrGitFailure, name)
	}
	f.Branch = name
	return nil
}

func (f *Fake) DeleteBranch(_ context.Context, name string, _ bool) error {
	if err := f.record("DeleteBranch"); err != nil {
		return err
	}
	delete(f.Branches, name)
	return nil
}

func (f *Fake) DeleteRemoteBranch(_ context.Context, name string) error {
	if err := f.record("DeleteRemoteBranch"); err != nil {
		return err
	}
	delete(f.RemoteBranches, name)
	return nil
}

func (f *Fake) BranchExistsLocal(_ context.Context, name string) (bool, error) {
	if err := f.record("BranchExistsLocal"); err != nil {
		return false, err
	}
	return f.Branches[name], nil
}

func (f *Fake) LocalBranches(context.Context) ([]string, error) {
	if err := f.record("LocalBranches"); err != nil {
		return nil, err
	}
	var out []string
	for name := range f.Branches {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (f *Fake) BranchExistsRemote(_ context.Context, name string) (bool, error) {
	if err := f.record("BranchExistsRemote"); err != nil {
		return false, err
	}
	return f.RemoteBranches[name], nil
}

func (f *Fake) Fetch(context.Context, string, string) error {
	return f.record("Fetch")
}

func (f *Fake) Pull(context.Context, string, string) error {
	if err := f.record("Pull"); err != nil {
		return err
	}
	f.BehindBase = 0
	return nil
}

func (f *Fake) Push(_ context.Context, branch string, _ bool) error {
	if err := f.record("Push"); err != nil {
		return err
	}
	f.RemoteBranches[branch] = true
	return nil
}

func (f *Fake) Merge(context.Context, string, bool) error {
	return f.record("Merge")
}

func (f *Fake) Stash(_ context.Context, _ string) (string, error) {
	if err := f.record("Stash"); err != nil {
		return "", err
	}
	ref := fmt.Sprintf("stash%04d", len(f.Stashes))
	f.Stashes[ref] = true
	f.Dirty = false
	f.Untracked = nil
	return ref, nil
}

func (f *Fake) StashApply(_ context.Context, ref string) error {
	if err := f.record("StashApply"); err != nil {
		return err
	}
	if !f.Stashes[ref] {
		return fmt.Errorf("%w: no stash %s", ErrGitFailure, ref)
	}
	f.Dirty = true
	return nil
}

func (f *Fake) StashPop(_ context.Context, ref string) error {
	if err := f.record("StashPop"); err != nil {
		return err
	}
	if !f.Stashes[ref] {
		return fmt.Errorf("%w: no stash %s", ErrGitFailure, ref)
	}
	delete(f.Stashes, ref)
	f.Dirty = true
	return nil
}

func (f *Fake) AheadBehind(context.Context, string, string) (int, int, error) {
	if err := f.record("AheadBehind"); err != nil {
		return 0, 0, err
	}
	return f.AheadOfBase, f.BehindBase, nil
}

func (f *Fake) DiffStat(context.Context) (*DiffStat, error) {
	if err := f.record("DiffStat"); err != nil {
		return nil, err
	}
	if !f.Dirty {
		return &DiffStat{}, nil
	}
	return &DiffStat{FilesChanged: 1, LinesAdded: 3, LinesRemoved: 1}, nil
}
