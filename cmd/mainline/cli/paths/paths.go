// Package paths centralizes the on-disk layout of the mainline state
// directory and repository root discovery.
package paths

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Directory constants, all relative to the repository root.
const (
	StateDir    = ".mainline"
	SessionsDir = ".mainline/sessions"
	LocksDir    = ".mainline/locks"
	AuditDir    = ".mainline/audit"
	LogsDir     = ".mainline/logs"
	TmpDir      = ".mainline/tmp"
)

// File names inside the state directory.
const (
	ConfigFileName       = "config.yaml"
	SessionIndexFileName = "session-index.json"
)

// repoRootCache caches the repository root to avoid repeated git commands.
// The cache is keyed by the current working directory to handle directory changes.
var (
	repoRootMu       sync.RWMutex
	repoRootCache    string
	repoRootCacheDir string
)

// RepoRoot returns the git repository root directory.
// Uses 'git rev-parse --show-toplevel' which works from any subdirectory.
// The result is cached per working directory.
// Returns an error if not inside a git repository.
func RepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	repoRootMu.RLock()
	if repoRootCache != "" && repoRootCacheDir == cwd {
		root := repoRootCache
		repoRootMu.RUnlock()
		return root, nil
	}
	repoRootMu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", errors.New("not inside a git repository")
	}
	root := strings.TrimSpace(string(output))

	repoRootMu.Lock()
	repoRootCache = root
	repoRootCacheDir = cwd
	repoRootMu.Unlock()

	return root, nil
}

// ResetRepoRootCache clears the cached repository root (for testing).
func ResetRepoRootCache() {
	repoRootMu.Lock()
	repoRootCache = ""
	repoRootCacheDir = ""
	repoRootMu.Unlock()
}

// StateRoot returns the absolute path of the state directory for the
// enclosing repository.
func StateRoot() (string, error) {
	root, err := RepoRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, StateDir), nil
}

// AbsPath resolves a state-relative path against the repository root.
// Falls back to the path as given when not inside a repository.
func AbsPath(rel string) (string, error) {
	root, err := RepoRoot()
	if err != nil {
		return rel, err
	}
	return filepath.Join(root, rel), nil
}

// ConfigFile returns the absolute path of config.yaml for the given state root.
func ConfigFile(stateRoot string) string {
	return filepath.Join(stateRoot, ConfigFileName)
}

// SessionFile returns the path of a serialized session inside stateRoot.
func SessionFile(stateRoot, id string) string {
	return filepath.Join(stateRoot, "sessions", id+".json")
}

// SessionIndexFile returns the path of the branch index inside stateRoot.
func SessionIndexFile(stateRoot string) string {
	return filepath.Join(stateRoot, "sessions", SessionIndexFileName)
}

// LockFile returns the path of a session lock file inside stateRoot.
func LockFile(stateRoot, id string) string {
	return filepath.Join(stateRoot, "locks", id+".lock")
}

// EnsureLayout creates the state directory tree under stateRoot.
func EnsureLayout(stateRoot string) error {
	for _, dir := range []string{"", "sessions", "locks", "audit", "logs", "tmp"} {
		if err := os.MkdirAll(filepath.Join(stateRoot, dir), 0o750); err != nil {
			return fmt.Errorf("creating state directory: %w", err)
		}
	}
	return nil
}
