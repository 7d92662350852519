package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

// seedOldSession stores a terminal session last touched 40 days ago.
func seedOldSession(t *testing.T, store *session.MemStore, branch string) *session.Session {
	t.Helper()
	s := session.New(branch, state.WorkflowShip, 30*24*time.Hour)
	require.NoError(t, s.Apply(state.StateAborted, nil))
	s.UpdatedAt = time.Now().UTC().Add(-40 * 24 * time.Hour)
	require.NoError(t, store.Create(s))
	return s
}

func TestCleanup_DryRunReportsWithoutDeleting(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.launch(t, "feature/active")
	f.git.Branches["feature/orphan"] = true
	old := seedOldSession(t, f.store, "feature/old")

	res, err := f.orch.Cleanup(context.Background(), CleanupOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.Success)

	report, ok := res.Data.(*CleanupReport)
	require.True(t, ok)
	assert.True(t, report.DryRun)
	assert.Equal(t, []string{"feature/orphan"}, report.OrphanBranches)
	assert.Equal(t, []string{old.ID}, report.DeletedSessions)

	assert.True(t, f.git.Branches["feature/orphan"], "dry run must not delete")
	_, err = f.store.Get(old.ID)
	assert.NoError(t, err, "dry run must not delete")
}

func TestCleanup_RemovesOrphansAndOldSessions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.launch(t, "feature/active")
	f.git.Branches["feature/orphan"] = true
	old := seedOldSession(t, f.store, "feature/old")

	res, err := f.orch.Cleanup(context.Background(), CleanupOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Message)

	assert.Equal(t, "main", f.git.Branch, "cleanup returns to the default branch")
	assert.False(t, f.git.Branches["feature/orphan"])
	assert.True(t, f.git.Branches["feature/active"], "active session's branch survives")

	_, err = f.store.Get(old.ID)
	assert.ErrorIs(t, err, session.ErrNoSession)
	assert.Contains(t, f.auditEvents(), "session_deleted")
}

func TestCleanup_RecentTerminalSessionSurvives(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := session.New("feature/recent", state.WorkflowShip, 30*24*time.Hour)
	require.NoError(t, s.Apply(state.StateAborted, nil))
	require.NoError(t, f.store.Create(s))

	_, err := f.orch.Cleanup(context.Background(), CleanupOptions{})
	require.NoError(t, err)

	_, err = f.store.Get(s.ID)
	assert.NoError(t, err, "terminal but fresh sessions stay until the TTL passes")
}

func TestCleanup_DaysOverridesThreshold(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := session.New("feature/x", state.WorkflowShip, 30*24*time.Hour)
	require.NoError(t, s.Apply(state.StateAborted, nil))
	s.UpdatedAt = time.Now().UTC().Add(-3 * 24 * time.Hour)
	require.NoError(t, f.store.Create(s))

	_, err := f.orch.Cleanup(context.Background(), CleanupOptions{Days: 1})
	require.NoError(t, err)

	_, err = f.store.Get(s.ID)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestCleanup_ActiveUnexpiredSessionNeverDeleted(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	launched := f.launch(t, "feature/x")
	// Make it old but not expired.
	s := f.reload(t, launched.ID)
	s.UpdatedAt = time.Now().UTC().Add(-40 * 24 * time.Hour)
	s.ExpiresAt = time.Now().UTC().Add(24 * time.Hour)
	require.NoError(t, f.store.Update(s))

	_, err := f.orch.Cleanup(context.Background(), CleanupOptions{})
	require.NoError(t, err)

	_, err = f.store.Get(launched.ID)
	assert.NoError(t, err)
}
