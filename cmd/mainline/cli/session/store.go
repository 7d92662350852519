package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/jsonutil"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/paths"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/validation"
)

// Store errors.
var (
	// ErrNoSession is returned when no session matches the lookup.
	ErrNoSession = errors.New("no session found")

	// ErrSessionExists is returned when creating a session for a branch that
	// already has a non-terminal one.
	ErrSessionExists = errors.New("an active session already exists for this branch")

	// ErrPersistence is returned when an atomic write failed; durable state
	// is unchanged.
	ErrPersistence = errors.New("failed to persist session state")
)

// indexVersion is bumped when the index file format changes.
const indexVersion = 1

// IndexEntry is one row of session-index.json, enough to answer
// list/by-branch queries without opening every session file.
type IndexEntry struct {
	ID           string `json:"id"`
	BranchName   string `json:"branchName"`
	WorkflowType string `json:"workflowType"`
	CurrentState string `json:"currentState"`
	StartedAt    string `json:"startedAt"`
	LastModified string `json:"lastModified"`
}

type indexFile struct {
	Sessions []IndexEntry `json:"sessions"`
	Version  int          `json:"version"`
}

// Store is the durable session repository. Implementations must keep exactly
// one non-terminal session per branch name.
type Store interface {
	Create(s *Session) error
	Get(id string) (*Session, error)
	GetByBranch(branch string) (*Session, error)
	List(includeTerminal bool) ([]*Session, error)
	Update(s *Session) error
	Delete(id string) error

	// AcquireLock takes the session's advisory lock, blocking up to the
	// given wait. The returned release function must be called on all exit
	// paths. Returns ErrLockHeld when the lock cannot be acquired in time.
	AcquireLock(id string, wait time.Duration) (release func(), err error)

	// ReclaimStaleLocks removes lock files older than the threshold.
	// Returns the ids whose locks were reclaimed.
	ReclaimStaleLocks(olderThan time.Duration) ([]string, error)
}

// FileStore persists sessions as JSON files under <stateRoot>/sessions with
// an append-maintained branch index and per-session flock files under
// <stateRoot>/locks.
type FileStore struct {
	stateRoot string
}

// NewFileStore creates the store and its directory layout.
func NewFileStore(stateRoot string) (*FileStore, error) {
	if err := paths.EnsureLayout(stateRoot); err != nil {
		return nil, err
	}
	return &FileStore{stateRoot: stateRoot}, nil
}

// Create persists a new session. It refuses when a non-terminal session for
// the same branch already exists (one active session per branch).
func (fs *FileStore) Create(s *Session) error {
	if err := validation.ValidateSessionID(s.ID); err != nil {
		return err
	}

	existing, err := fs.GetByBranch(s.BranchName)
	if err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	if existing != nil && !existing.IsTerminal() {
		return fmt.Errorf("%w: %s owned by session %s", ErrSessionExists, s.BranchName, existing.ID)
	}

	if err := fs.writeSession(s); err != nil {
		return err
	}
	return fs.rebuildIndex()
}

// Get loads a session by id.
func (fs *FileStore) Get(id string) (*Session, error) {
	if err := validation.ValidateSessionID(id); err != nil {
		return nil, err
	}
	var s Session
	if err := jsonutil.DecodeFile(paths.SessionFile(fs.stateRoot, id), &s); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: id %s", ErrNoSession, id)
		}
		return nil, err
	}
	return &s, nil
}

// GetByBranch returns the most relevant session for a branch: the
// non-terminal one if present, otherwise the most recently updated terminal
// one. Reads go through the index; a missing or corrupt index falls back to
// scanning the sessions directory.
func (fs *FileStore) GetByBranch(branch string) (*Session, error) {
	sessions, err := fs.List(true)
	if err != nil {
		return nil, err
	}

	var latest *Session
	for _, s := range sessions {
		if s.BranchName != branch {
			continue
		}
		if !s.IsTerminal() {
			return s, nil
		}
		if latest == nil || s.UpdatedAt.After(latest.UpdatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: branch %s", ErrNoSession, branch)
	}
	return latest, nil
}

// History returns every session ever recorded for a branch, newest first.
// Used by the branch validator to detect retired branch names.
func (fs *FileStore) History(branch string) ([]*Session, error) {
	sessions, err := fs.List(true)
	if err != nil {
		return nil, err
	}
	var out []*Session
	for _, s := range sessions {
		if s.BranchName == branch {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// List returns all sessions, optionally including terminal ones.
func (fs *FileStore) List(includeTerminal bool) ([]*Session, error) {
	ids, err := fs.sessionIDs()
	if err != nil {
		return nil, err
	}
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		s, err := fs.Get(id)
		if err != nil {
			if errors.Is(err, ErrNoSession) {
				continue // deleted between listing and reading
			}
			return nil, err
		}
		if !includeTerminal && s.IsTerminal() {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Update persists a mutated session atomically and refreshes the index.
func (fs *FileStore) Update(s *Session) error {
	if err := validation.ValidateSessionID(s.ID); err != nil {
		return err
	}
	if _, err := os.Stat(paths.SessionFile(fs.stateRoot, s.ID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: id %s", ErrNoSession, s.ID)
		}
		return err
	}
	if err := fs.writeSession(s); err != nil {
		return err
	}
	return fs.rebuildIndex()
}

// Delete removes a session file, its lock file, and its index entry.
func (fs *FileStore) Delete(id string) error {
	if err := validation.ValidateSessionID(id); err != nil {
		return err
	}
	if err := os.Remove(paths.SessionFile(fs.stateRoot, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	_ = os.Remove(paths.LockFile(fs.stateRoot, id))
	return fs.rebuildIndex()
}

// writeSession writes the session JSON atomically: temp file in the same
// directory, fsync, rename.
func (fs *FileStore) writeSession(s *Session) error {
	data, err := jsonutil.MarshalIndentWithNewline(s, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return fs.atomicWrite(paths.SessionFile(fs.stateRoot, s.ID), data)
}

// rebuildIndex rewrites session-index.json from the session files, with the
// same atomic discipline as session writes. The index is a read optimization;
// readers tolerate a stale one.
func (fs *FileStore) rebuildIndex() error {
	ids, err := fs.sessionIDsFromScan()
	if err != nil {
		return err
	}
	idx := indexFile{Version: indexVersion}
	for _, id := range ids {
		s, err := fs.Get(id)
		if err != nil {
			continue
		}
		idx.Sessions = append(idx.Sessions, IndexEntry{
			ID:           s.ID,
			BranchName:   s.BranchName,
			WorkflowType: string(s.WorkflowType),
			CurrentState: string(s.CurrentState),
			StartedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
			LastModified: s.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	data, err := jsonutil.MarshalIndentWithNewline(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return fs.atomicWrite(paths.SessionIndexFile(fs.stateRoot), data)
}

// ReadIndex returns the persisted index entries. Falls back to a directory
// scan when the index file is missing or unreadable.
func (fs *FileStore) ReadIndex() ([]IndexEntry, error) {
	var idx indexFile
	if err := jsonutil.DecodeFile(paths.SessionIndexFile(fs.stateRoot), &idx); err == nil {
		return idx.Sessions, nil
	}
	sessions, err := fs.List(true)
	if err != nil {
		return nil, err
	}
	entries := make([]IndexEntry, 0, len(sessions))
	for _, s := range sessions {
		entries = append(entries, IndexEntry{
			ID:           s.ID,
			BranchName:   s.BranchName,
			WorkflowType: string(s.WorkflowType),
			CurrentState: string(s.CurrentState),
			StartedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
			LastModified: s.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return entries, nil
}

// sessionIDs lists ids from the index when fresh, falling back to a scan.
func (fs *FileStore) sessionIDs() ([]string, error) {
	var idx indexFile
	if err := jsonutil.DecodeFile(paths.SessionIndexFile(fs.stateRoot), &idx); err == nil && idx.Version == indexVersion {
		ids := make([]string, 0, len(idx.Sessions))
		for _, e := range idx.Sessions {
			ids = append(ids, e.ID)
		}
		// The index can lag behind an unflushed write; union with the scan.
		scanned, err := fs.sessionIDsFromScan()
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			seen[id] = true
		}
		for _, id := range scanned {
			if !seen[id] {
				ids = append(ids, id)
			}
		}
		return ids, nil
	}
	return fs.sessionIDsFromScan()
}

// sessionIDsFromScan lists session ids by reading the sessions directory.
func (fs *FileStore) sessionIDsFromScan() ([]string, error) {
	dir := filepath.Join(fs.stateRoot, "sessions")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning sessions: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || name == paths.SessionIndexFileName {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// atomicWrite writes data to target via a sibling temp file, fsync, rename.
func (fs *FileStore) atomicWrite(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
