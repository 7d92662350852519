package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/paths"
)

func TestLoad_NotInitialized(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := New()
	cfg.Forge = ForgeConfig{Kind: "github", Owner: "acme", Repo: "widgets", TokenEnv: "ACME_TOKEN"}
	cfg.DefaultBranch = "trunk"
	cfg.CI.TimeoutMinutes = 5
	cfg.CI.PollIntervalSeconds = 10

	require.NoError(t, Save(dir, cfg))

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "github", got.Forge.Kind)
	assert.Equal(t, "acme", got.Forge.Owner)
	assert.Equal(t, "widgets", got.Forge.Repo)
	assert.Equal(t, "trunk", got.DefaultBranch)
	assert.Equal(t, 5*time.Minute, got.CI.Timeout())
	assert.Equal(t, 10*time.Second, got.CI.PollInterval())
}

func TestLoad_AppliesDefaultsForMissingFields(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, paths.EnsureLayout(dir))
	require.NoError(t, os.WriteFile(paths.ConfigFile(dir), []byte("forge:\n  kind: github\n"), 0o600))

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultRemote, got.Remote)
	assert.Equal(t, DefaultBranch, got.DefaultBranch)
	assert.Equal(t, DefaultCIWaitTimeout, got.CI.Timeout())
	assert.Equal(t, DefaultCIPollInterval, got.CI.PollInterval())
	assert.Equal(t, time.Duration(DefaultSessionTTLDays)*24*time.Hour, got.SessionTTL())
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, paths.EnsureLayout(dir))
	require.NoError(t, os.WriteFile(paths.ConfigFile(dir), []byte("[unclosed"), 0o600))

	_, err := Load(dir)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotInitialized)
}

func TestForgeConfig_Configured(t *testing.T) {
	t.Parallel()

	assert.False(t, ForgeConfig{}.Configured())
	assert.False(t, ForgeConfig{Kind: "github", Owner: "acme"}.Configured())
	assert.True(t, ForgeConfig{Kind: "github", Owner: "acme", Repo: "widgets"}.Configured())
}

func TestToken_ResolvesFromEnvironment(t *testing.T) {
	cfg := New()
	cfg.Forge.TokenEnv = "MAINLINE_TEST_TOKEN"
	t.Setenv("MAINLINE_TEST_TOKEN", "tok-123")
	assert.Equal(t, "tok-123", cfg.Token())
}

func TestToken_DefaultsToGitHubToken(t *testing.T) {
	cfg := New()
	t.Setenv("GITHUB_TOKEN", "gh-tok")
	assert.Equal(t, "gh-tok", cfg.Token())
}
