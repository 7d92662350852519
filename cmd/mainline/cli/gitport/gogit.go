package gitport

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Repo is the production GitPort backed by go-git with git-binary fallbacks.
type Repo struct {
	root   string
	remote string
	repo   *git.Repository
}

// Open opens the repository at root. The remote name is used for all
// network operations (usually "origin").
func Open(root, remote string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	if remote == "" {
		remote = "origin"
	}
	return &Repo{root: root, remote: remote, repo: repo}, nil
}

// Root returns the repository root path.
func (r *Repo) Root() string { return r.root }

// CurrentBranch returns the short name of the checked-out branch.
// Returns an error on detached HEAD.
func (r *Repo) CurrentBranch(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("%w: reading HEAD: %v", ErrGitFailure, err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("%w: detached HEAD", ErrGitFailure)
	}
	return head.Name().Short(), nil
}

// Head returns the commit hash HEAD points at.
func (r *Repo) Head(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("%w: reading HEAD: %v", ErrGitFailure, err)
	}
	return head.Hash().String(), nil
}

// Status reports the working tree state.
func (r *Repo) Status(_ context.Context) (*Status, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%w: opening worktree: %v", ErrGitFailure, err)
	}
	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("%w: reading status: %v", ErrGitFailure, err)
	}

	out := &Status{}
	for path, fs := range st {
		switch {
		case fs.Staging == git.Untracked && fs.Worktree == git.Untracked:
			out.Untracked = append(out.Untracked, path)
		case fs.Staging == git.Added || fs.Worktree == git.Added:
			out.Created = append(out.Created, path)
		case fs.Staging == git.Deleted || fs.Worktree == git.Deleted:
			out.Deleted = append(out.Deleted, path)
		case fs.Staging == git.Modified || fs.Worktree == git.Modified ||
			fs.Staging == git.Renamed || fs.Worktree == git.Renamed:
			out.Modified = append(out.Modified, path)
		}
	}
	out.Clean = len(out.Modified) == 0 && len(out.Created) == 0 &&
		len(out.Deleted) == 0 && len(out.Untracked) == 0
	return out, nil
}

// HasUncommittedChanges reports whether the working tree differs from HEAD,
// including untracked files.
func (r *Repo) HasUncommittedChanges(ctx context.Context) (bool, error) {
	st, err := r.Status(ctx)
	if err != nil {
		return false, err
	}
	return !st.Clean, nil
}

// BranchStatus reports ahead/behind counts against the branch's upstream.
func (r *Repo) BranchStatus(ctx context.Context) (*BranchStatus, error) {
	branch, err := r.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	st, err := r.Status(ctx)
	if err != nil {
		return nil, err
	}

	out := &BranchStatus{IsClean: st.Clean}

	upstream := r.remote + "/" + branch
	_, err = r.repo.Reference(plumbing.NewRemoteReferenceName(r.remote, branch), true)
	if err != nil {
		// No upstream tracking ref; the branch was never pushed.
		return out, nil
	}
	out.HasRemote = true
	out.Ahead, out.Behind, err = r.AheadBehind(ctx, upstream, branch)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StageAll stages every change in the working tree, including untracked files.
func (r *Repo) StageAll(_ context.Context) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: opening worktree: %v", ErrGitFailure, err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("%w: staging changes: %v", ErrGitFailure, err)
	}
	return nil
}

// Commit writes a commit with the staged changes and returns its hash.
// noVerify skips commit hooks; go-git does not run hooks, so the flag only
// matters on the binary fallback path.
func (r *Repo) Commit(ctx context.Context, message string, noVerify bool) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("%w: opening worktree: %v", ErrGitFailure, err)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{})
	if err != nil {
		// Repositories with commit hooks or unusual config are handled by
		// the git binary.
		args := []string{"commit", "-m", message}
		if noVerify {
			args = append(args, "--no-verify")
		}
		if _, execErr := r.runGit(ctx, args...); execErr != nil {
			return "", fmt.Errorf("%w: commit: %v", ErrGitFailure, err)
		}
		return r.Head(ctx)
	}
	return hash.String(), nil
}

// CreateBranch creates and checks out a branch at baseRef (HEAD when empty).
func (r *Repo) CreateBranch(ctx context.Context, name, baseRef string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: opening worktree: %v", ErrGitFailure, err)
	}
	opts := &git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	}
	if baseRef != "" {
		hash, err := r.repo.ResolveRevision(plumbing.Revision(baseRef))
		if err != nil {
			return fmt.Errorf("%w: resolving %s: %v", ErrGitFailure, baseRef, err)
		}
		opts.Hash = *hash
	}
	if err := wt.Checkout(opts); err != nil {
		return fmt.Errorf("%w: creating branch %s: %v", ErrGitFailure, name, err)
	}
	_ = ctx
	return nil
}

// CheckoutBranch switches to an existing branch.
func (r *Repo) CheckoutBranch(_ context.Context, name string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: opening worktree: %v", ErrGitFailure, err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(name)}); err != nil {
		return fmt.Errorf("%w: checking out %s: %v", ErrGitFailure, name, err)
	}
	return nil
}

// DeleteBranch deletes a local branch. The non-force path uses the git binary
// so "not fully merged" protection stays intact.
func (r *Repo) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	if _, err := r.runGit(ctx, "branch", flag, name); err != nil {
		return fmt.Errorf("%w: deleting branch %s: %v", ErrGitFailure, name, err)
	}
	return nil
}

// DeleteRemoteBranch deletes the branch on the configured remote.
func (r *Repo) DeleteRemoteBranch(ctx context.Context, name string) error {
	if _, err := r.runGit(ctx, "push", r.remote, "--delete", name); err != nil {
		return fmt.Errorf("%w: deleting remote branch %s: %v", ErrGitFailure, name, err)
	}
	return nil
}

// BranchExistsLocal reports whether a local branch ref exists.
func (r *Repo) BranchExistsLocal(_ context.Context, name string) (bool, error) {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return false, nil
		}
		return false, fmt.Errorf("%w: reading ref %s: %v", ErrGitFailure, name, err)
	}
	return true, nil
}

// LocalBranches lists the short names of all local branches, sorted.
func (r *Repo) LocalBranches(_ context.Context) ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("%w: listing branches: %v", ErrGitFailure, err)
	}
	defer iter.Close()

	var out []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		out = append(out, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing branches: %v", ErrGitFailure, err)
	}
	sort.Strings(out)
	return out, nil
}

// BranchExistsRemote asks the remote whether the branch exists.
func (r *Repo) BranchExistsRemote(ctx context.Context, name string) (bool, error) {
	out, err := r.runGit(ctx, "ls-remote", "--heads", r.remote, name)
	if err != nil {
		return false, fmt.Errorf("%w: ls-remote %s: %v", ErrGitFailure, name, err)
	}
	return strings.TrimSpace(out) != "", nil
}

// Fetch fetches a ref from the remote.
func (r *Repo) Fetch(ctx context.Context, remote, ref string) error {
	args := []string{"fetch", remote}
	if ref != "" {
		args = append(args, ref)
	}
	if _, err := r.runGit(ctx, args...); err != nil {
		return fmt.Errorf("%w: fetch: %v", ErrGitFailure, err)
	}
	return nil
}

// Pull fast-forwards the current branch from the remote. Non-fast-forward
// pulls are refused; linear history is the point.
func (r *Repo) Pull(ctx context.Context, remote, ref string) error {
	args := []string{"pull", "--ff-only", remote}
	if ref != "" {
		args = append(args, ref)
	}
	if _, err := r.runGit(ctx, args...); err != nil {
		return fmt.Errorf("%w: pull: %v", ErrGitFailure, err)
	}
	return nil
}

// Push pushes a branch to the remote, setting upstream on first push.
func (r *Repo) Push(ctx context.Context, branch string, force bool) error {
	args := []string{"push", "--set-upstream"}
	if force {
		args = append(args, "--force-with-lease")
	}
	args = append(args, r.remote, branch)
	if _, err := r.runGit(ctx, args...); err != nil {
		return fmt.Errorf("%w: push %s: %v", ErrGitFailure, branch, err)
	}
	return nil
}

// Merge merges a branch into the current one, optionally squashing.
func (r *Repo) Merge(ctx context.Context, branch string, squash bool) error {
	args := []string{"merge"}
	if squash {
		args = append(args, "--squash")
	}
	args = append(args, branch)
	if _, err := r.runGit(ctx, args...); err != nil {
		return fmt.Errorf("%w: merge %s: %v", ErrGitFailure, branch, err)
	}
	return nil
}

// Stash saves the working tree to a stash entry and returns its ref.
func (r *Repo) Stash(ctx context.Context, message string) (string, error) {
	args := []string{"stash", "push", "--include-untracked"}
	if message != "" {
		args = append(args, "-m", message)
	}
	if _, err := r.runGit(ctx, args...); err != nil {
		return "", fmt.Errorf("%w: stash: %v", ErrGitFailure, err)
	}
	// The newest stash is always stash@{0}; resolve it to a stable hash so
	// the ref survives later stashes.
	out, err := r.runGit(ctx, "rev-parse", "stash@{0}")
	if err != nil {
		return "stash@{0}", nil
	}
	return strings.TrimSpace(out), nil
}

// StashApply applies a stash without dropping it.
func (r *Repo) StashApply(ctx context.Context, ref string) error {
	if _, err := r.runGit(ctx, "stash", "apply", ref); err != nil {
		return fmt.Errorf("%w: stash apply %s: %v", ErrGitFailure, ref, err)
	}
	return nil
}

// StashPop applies and drops a stash.
func (r *Repo) StashPop(ctx context.Context, ref string) error {
	if _, err := r.runGit(ctx, "stash", "pop", ref); err != nil {
		return fmt.Errorf("%w: stash pop %s: %v", ErrGitFailure, ref, err)
	}
	return nil
}

// AheadBehind counts commits in branch not in base (ahead) and commits in
// base not in branch (behind).
func (r *Repo) AheadBehind(ctx context.Context, base, branch string) (int, int, error) {
	out, err := r.runGit(ctx, "rev-list", "--left-right", "--count", base+"..."+branch)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: rev-list %s...%s: %v", ErrGitFailure, base, branch, err)
	}
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%w: unexpected rev-list output %q", ErrGitFailure, out)
	}
	var behind, ahead int
	if _, err := fmt.Sscanf(fields[0], "%d", &behind); err != nil {
		return 0, 0, fmt.Errorf("%w: parsing rev-list output %q", ErrGitFailure, out)
	}
	if _, err := fmt.Sscanf(fields[1], "%d", &ahead); err != nil {
		return 0, 0, fmt.Errorf("%w: parsing rev-list output %q", ErrGitFailure, out)
	}
	return ahead, behind, nil
}
