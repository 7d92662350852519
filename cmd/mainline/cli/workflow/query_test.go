package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/state"
)

func TestStatus_NoSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res, err := f.orch.Status(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "no session")

	data, ok := res.Data.(*StatusData)
	require.True(t, ok)
	assert.Equal(t, "main", data.Branch)
	assert.Empty(t, data.SessionID)
	assert.NotNil(t, data.BranchStatus)
}

func TestStatus_WithActiveSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	launched := f.launch(t, "feature/x")

	res, err := f.orch.Status(context.Background())
	require.NoError(t, err)

	data, ok := res.Data.(*StatusData)
	require.True(t, ok)
	assert.Equal(t, launched.ID, data.SessionID)
	assert.Equal(t, state.StateBranchReady, data.State)
	assert.NotEmpty(t, data.NextStates)
	assert.NotNil(t, data.UpdatedAt)
}

func TestStatus_SurfacesPRMetadata(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	launched := f.launch(t, "feature/x")

	s := f.reload(t, launched.ID)
	s.Metadata.PR = &session.PRMetadata{Number: 42, URL: "https://forge.example/pr/42"}
	require.NoError(t, f.store.Update(s))

	res, err := f.orch.Status(context.Background())
	require.NoError(t, err)

	data := res.Data.(*StatusData)
	assert.Equal(t, 42, data.PRNumber)
	assert.Equal(t, "https://forge.example/pr/42", data.PRURL)
}

func TestSessions_FiltersTerminal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.launch(t, "feature/a")
	f.git.Branch = "main"
	f.launch(t, "feature/b")
	_, err := f.orch.Abort(context.Background(), AbortOptions{BranchName: "feature/b"})
	require.NoError(t, err)

	active, err := f.orch.Sessions(context.Background(), false)
	require.NoError(t, err)
	rows, ok := active.Data.([]SessionSummary)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "feature/a", rows[0].BranchName)

	all, err := f.orch.Sessions(context.Background(), true)
	require.NoError(t, err)
	rows = all.Data.([]SessionSummary)
	assert.Len(t, rows, 2)
}

func TestSessions_EmptyStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res, err := f.orch.Sessions(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, res.Success)
	rows := res.Data.([]SessionSummary)
	assert.Empty(t, rows)
}
