package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/paths"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestFileStore_CreateAndGet(t *testing.T) {
	t.Parallel()
	fs := newTestStore(t)

	s := New("feature/a", state.WorkflowLaunch, time.Hour)
	require.NoError(t, fs.Create(s))

	got, err := fs.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "feature/a", got.BranchName)
	assert.Equal(t, state.StateInit, got.CurrentState)
}

func TestFileStore_Get_NotFound(t *testing.T) {
	t.Parallel()
	fs := newTestStore(t)

	_, err := fs.Get("missing-session-id")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestFileStore_Create_RefusesSecondActiveSessionOnBranch(t *testing.T) {
	t.Parallel()
	fs := newTestStore(t)

	first := New("feature/a", state.WorkflowLaunch, time.Hour)
	require.NoError(t, fs.Create(first))

	second := New("feature/a", state.WorkflowLaunch, time.Hour)
	err := fs.Create(second)
	assert.ErrorIs(t, err, ErrSessionExists)
}

func TestFileStore_Create_AllowsNewSessionAfterTerminal(t *testing.T) {
	t.Parallel()
	fs := newTestStore(t)

	first := New("feature/a", state.WorkflowLaunch, time.Hour)
	require.NoError(t, first.Apply(state.StateAborted, nil))
	require.NoError(t, fs.Create(first))

	second := New("feature/a", state.WorkflowLaunch, time.Hour)
	assert.NoError(t, fs.Create(second))
}

func TestFileStore_GetByBranch_PrefersActiveSession(t *testing.T) {
	t.Parallel()
	fs := newTestStore(t)

	old := New("feature/a", state.WorkflowLaunch, time.Hour)
	require.NoError(t, old.Apply(state.StateAborted, nil))
	require.NoError(t, fs.Create(old))

	active := New("feature/a", state.WorkflowLaunch, time.Hour)
	require.NoError(t, fs.Create(active))

	got, err := fs.GetByBranch("feature/a")
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)
}

func TestFileStore_GetByBranch_FallsBackToLatestTerminal(t *testing.T) {
	t.Parallel()
	fs := newTestStore(t)

	s := New("feature/a", state.WorkflowLaunch, time.Hour)
	require.NoError(t, s.Apply(state.StateAborted, nil))
	require.NoError(t, fs.Create(s))

	got, err := fs.GetByBranch("feature/a")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = fs.GetByBranch("feature/unknown")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestFileStore_Update_PersistsTransitions(t *testing.T) {
	t.Parallel()
	fs := newTestStore(t)

	s := New("feature/a", state.WorkflowLaunch, time.Hour)
	require.NoError(t, fs.Create(s))

	require.NoError(t, s.Apply(state.StateBranchReady, nil))
	require.NoError(t, fs.Update(s))

	got, err := fs.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, state.StateBranchReady, got.CurrentState)
	require.Len(t, got.StateHistory, 1)
	assert.Equal(t, state.TriggerBranchCreated, got.StateHistory[0].Trigger)
}

func TestFileStore_Update_UnknownSession(t *testing.T) {
	t.Parallel()
	fs := newTestStore(t)

	s := New("feature/a", state.WorkflowLaunch, time.Hour)
	err := fs.Update(s)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestFileStore_Delete(t *testing.T) {
	t.Parallel()
	fs := newTestStore(t)

	s := New("feature/a", state.WorkflowLaunch, time.Hour)
	require.NoError(t, fs.Create(s))
	require.NoError(t, fs.Delete(s.ID))

	_, err := fs.Get(s.ID)
	assert.ErrorIs(t, err, ErrNoSession)

	// Deleting twice is fine.
	assert.NoError(t, fs.Delete(s.ID))
}

func TestFileStore_List(t *testing.T) {
	t.Parallel()
	fs := newTestStore(t)

	active := New("feature/a", state.WorkflowLaunch, time.Hour)
	require.NoError(t, fs.Create(active))

	done := New("feature/b", state.WorkflowLaunch, time.Hour)
	require.NoError(t, done.Apply(state.StateAborted, nil))
	require.NoError(t, fs.Create(done))

	onlyActive, err := fs.List(false)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, active.ID, onlyActive[0].ID)

	all, err := fs.List(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFileStore_History_NewestFirst(t *testing.T) {
	t.Parallel()
	fs := newTestStore(t)

	old := New("feature/a", state.WorkflowLaunch, time.Hour)
	old.UpdatedAt = time.Now().Add(-time.Hour).UTC()
	require.NoError(t, old.Apply(state.StateAborted, nil))
	old.UpdatedAt = time.Now().Add(-time.Hour).UTC()
	require.NoError(t, fs.Create(old))

	recent := New("feature/a", state.WorkflowLaunch, time.Hour)
	require.NoError(t, fs.Create(recent))

	other := New("feature/b", state.WorkflowLaunch, time.Hour)
	require.NoError(t, fs.Create(other))

	hist, err := fs.History("feature/a")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, recent.ID, hist[0].ID)
	assert.Equal(t, old.ID, hist[1].ID)
}

func TestFileStore_IndexSurvivesCorruption(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	s := New("feature/a", state.WorkflowLaunch, time.Hour)
	require.NoError(t, fs.Create(s))

	// Corrupt the index; reads fall back to scanning session files.
	require.NoError(t, os.WriteFile(paths.SessionIndexFile(dir), []byte("not json"), 0o600))

	got, err := fs.GetByBranch("feature/a")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func TestFileStore_SessionFilePermissions(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	s := New("feature/a", state.WorkflowLaunch, time.Hour)
	require.NoError(t, fs.Create(s))

	info, err := os.Stat(paths.SessionFile(dir, s.ID))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_AcquireLock_Contention(t *testing.T) {
	t.Parallel()
	fs := newTestStore(t)

	release, err := fs.AcquireLock("session-1", time.Second)
	require.NoError(t, err)

	_, err = fs.AcquireLock("session-1", 200*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockHeld)

	release()

	release2, err := fs.AcquireLock("session-1", time.Second)
	require.NoError(t, err)
	release2()
}

func TestFileStore_AcquireLock_IndependentSessions(t *testing.T) {
	t.Parallel()
	fs := newTestStore(t)

	r1, err := fs.AcquireLock("session-1", time.Second)
	require.NoError(t, err)
	defer r1()

	r2, err := fs.AcquireLock("session-2", time.Second)
	require.NoError(t, err)
	defer r2()
}

func TestFileStore_ReclaimStaleLocks(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	stale := paths.LockFile(dir, "old-session")
	require.NoError(t, os.WriteFile(stale, nil, 0o600))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	fresh := paths.LockFile(dir, "new-session")
	require.NoError(t, os.WriteFile(fresh, nil, 0o600))

	reclaimed, err := fs.ReclaimStaleLocks(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old-session"}, reclaimed)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "locks", "new-session.lock"))
	assert.NoError(t, err)
}
