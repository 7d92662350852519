package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/audit"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/config"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/forge"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/gitport"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

// fixture wires an orchestrator to in-memory fakes of every port.
type fixture struct {
	git   *gitport.Fake
	forge *forge.Fake
	store *session.MemStore
	rec   *audit.MemRecorder
	cfg   *config.Config
	orch  *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.New()
	cfg.Forge = config.ForgeConfig{Kind: "github", Owner: "acme", Repo: "widgets", TokenEnv: "MAINLINE_TEST_TOKEN"}

	f := &fixture{
		git:   gitport.NewFake("main"),
		forge: forge.NewFakeForge(),
		store: session.NewMemStore(),
		rec:   &audit.MemRecorder{},
		cfg:   cfg,
	}
	f.orch = New(Deps{
		Git:      f.git,
		Forge:    f.forge,
		Store:    f.store,
		History:  f.store,
		Audit:    f.rec,
		Config:   cfg,
		RepoRoot: t.TempDir(),
		LockWait: time.Second,
	})
	return f
}

// launch starts a session on branch and returns the stored copy.
func (f *fixture) launch(t *testing.T, branch string) *session.Session {
	t.Helper()
	res, err := f.orch.Launch(context.Background(), LaunchOptions{BranchName: branch})
	require.NoError(t, err)
	require.True(t, res.Success)
	return f.reload(t, res.SessionID)
}

// commit dirties the tree and folds it into a commit on the current branch.
func (f *fixture) commit(t *testing.T) {
	t.Helper()
	f.git.Dirty = true
	_, err := f.orch.Commit(context.Background(), CommitOptions{Message: "work"})
	require.NoError(t, err)
}

func (f *fixture) reload(t *testing.T, id string) *session.Session {
	t.Helper()
	s, err := f.store.Get(id)
	require.NoError(t, err)
	return s
}

// expire backdates the session's TTL so it reads as expired.
func (f *fixture) expire(t *testing.T, id string) {
	t.Helper()
	s := f.reload(t, id)
	s.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, f.store.Update(s))
}

// auditEvents flattens the recorded audit trail for assertions.
func (f *fixture) auditEvents() []string {
	var out []string
	for _, e := range f.rec.Entries {
		out = append(out, e.Event)
	}
	return out
}

// seedMergedSession stores a terminal session whose PR was merged, which
// retires the branch name for future launches.
func seedMergedSession(t *testing.T, store *session.MemStore, branch string) *session.Session {
	t.Helper()
	s := session.New(branch, state.WorkflowShip, time.Hour)
	s.Metadata.PR = &session.PRMetadata{Number: 1}
	require.NoError(t, s.MarkMerged(time.Now()))
	require.NoError(t, s.Apply(state.StateAborted, nil))
	require.NoError(t, store.Create(s))
	return s
}
