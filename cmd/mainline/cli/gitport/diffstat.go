package gitport

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffStat summarizes uncommitted line changes against HEAD: modified files
// are diffed line-by-line, created and untracked files count as all-added,
// deleted files as all-removed.
func (r *Repo) DiffStat(ctx context.Context) (*DiffStat, error) {
	st, err := r.Status(ctx)
	if err != nil {
		return nil, err
	}

	headTree, err := r.headTree()
	if err != nil {
		return nil, err
	}

	out := &DiffStat{}
	for _, path := range st.Modified {
		before := r.blobContent(headTree, path)
		after := r.worktreeContent(path)
		added, removed := countLineChanges(before, after)
		out.LinesAdded += added
		out.LinesRemoved += removed
		out.FilesChanged++
	}
	for _, path := range append(st.Created, st.Untracked...) {
		out.LinesAdded += lineCount(r.worktreeContent(path))
		out.FilesChanged++
	}
	for _, path := range st.Deleted {
		out.LinesRemoved += lineCount(r.blobContent(headTree, path))
		out.FilesChanged++
	}
	return out, nil
}

// headTree returns the tree of the HEAD commit, or nil in an empty repository.
func (r *Repo) headTree() (*object.Tree, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, nil //nolint:nilnil // empty repo: everything is new
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, nil //nolint:nilnil
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, nil //nolint:nilnil
	}
	return tree, nil
}

// blobContent reads a file's content from a tree. Missing files yield "".
func (r *Repo) blobContent(tree *object.Tree, path string) string {
	if tree == nil {
		return ""
	}
	f, err := tree.File(path)
	if err != nil {
		return ""
	}
	reader, err := f.Reader()
	if err != nil {
		return ""
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return string(data)
}

// worktreeContent reads a file from the working tree. Missing files yield "".
func (r *Repo) worktreeContent(path string) string {
	data, err := os.ReadFile(filepath.Join(r.root, path)) //nolint:gosec // path comes from git status
	if err != nil {
		return ""
	}
	return string(data)
}

// countLineChanges diffs two texts in line mode and counts added and removed
// lines.
func countLineChanges(before, after string) (added, removed int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		n := lineCount(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		case diffmatchpatch.DiffEqual:
		}
	}
	return added, removed
}

// lineCount counts newline-terminated lines, treating a trailing partial
// line as one line.
func lineCount(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
