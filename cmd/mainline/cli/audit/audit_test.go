package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendAndReplayForSession(t *testing.T) {
	t.Parallel()

	l, err := NewLog(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, l.Append(Entry{Operation: "launch", Event: "transition", SessionID: "s1", From: "INIT", To: "BRANCH_READY"}))
	require.NoError(t, l.Append(Entry{Operation: "ship", Event: "transition", SessionID: "s2"}))
	require.NoError(t, l.Append(Entry{Operation: "ship", Event: "merged", SessionID: "s1"}))

	got, err := l.ForSession("s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "launch", got[0].Operation)
	assert.Equal(t, "merged", got[1].Event)
	assert.Equal(t, "BRANCH_READY", got[0].To)
}

func TestLog_Since(t *testing.T) {
	t.Parallel()

	l, err := NewLog(t.TempDir())
	require.NoError(t, err)

	old := time.Now().Add(-2 * time.Hour).UTC()
	require.NoError(t, l.Append(Entry{Timestamp: old, Operation: "launch", Event: "old"}))
	require.NoError(t, l.Append(Entry{Operation: "ship", Event: "recent"}))

	got, err := l.Since(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].Event)
}

func TestLog_DailyFileNaming(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := NewLog(dir)
	require.NoError(t, err)

	ts := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	require.NoError(t, l.Append(Entry{Timestamp: ts, Operation: "launch", Event: "transition"}))

	_, err = os.Stat(filepath.Join(dir, "2026-03-14.log"))
	assert.NoError(t, err)
}

func TestLog_MessageIsRedacted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := NewLog(dir)
	require.NoError(t, err)

	secret := "sk-ant-REDACTED"
	require.NoError(t, l.Append(Entry{Operation: "commit", Event: "commit_created", Message: "token " + secret}))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(data), secret)
	assert.Contains(t, string(data), "REDACTED")
}

func TestLog_ReplaySkipsCorruptLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := NewLog(dir)
	require.NoError(t, err)

	require.NoError(t, l.Append(Entry{Operation: "launch", Event: "transition", SessionID: "s1"}))

	// Simulate a torn write from a crashed process.
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	name := filepath.Join(dir, files[0].Name())
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("{\"timestamp\":\"2026-01-\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, l.Append(Entry{Operation: "ship", Event: "merged", SessionID: "s1"}))

	got, err := l.ForSession("s1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLog_EntriesAreSingleJSONLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := NewLog(dir)
	require.NoError(t, err)

	require.NoError(t, l.Append(Entry{Operation: "launch", Event: "transition"}))
	require.NoError(t, l.Append(Entry{Operation: "ship", Event: "transition"}))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "{"), "line must be a JSON object: %s", line)
	}
}

func TestMemRecorder(t *testing.T) {
	t.Parallel()

	m := &MemRecorder{}
	require.NoError(t, m.Append(Entry{Operation: "launch"}))
	require.Len(t, m.Entries, 1)
	assert.False(t, m.Entries[0].Timestamp.IsZero())
}
