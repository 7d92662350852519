// Package audit writes the append-only operation journal: one JSON line per
// event, grouped into daily files under the state directory. Entries are
// redacted before they touch disk and are never rewritten; replay is the only
// read path.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mainlinehq/mainline/redact"
)

// Entry is one audit record.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	Event     string    `json:"event"`
	SessionID string    `json:"session_id,omitempty"`
	Branch    string    `json:"branch,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Trigger   string    `json:"trigger,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Recorder is the write side of the journal. The orchestrator records through
// it; tests substitute a memory recorder.
type Recorder interface {
	Append(e Entry) error
}

// Log is the file-backed Recorder. Safe for concurrent use within a process;
// cross-process appends rely on O_APPEND line atomicity.
type Log struct {
	dir string
	mu  sync.Mutex
}

// NewLog creates the audit directory if needed.
func NewLog(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	return &Log{dir: dir}, nil
}

// Append writes one redacted JSON line to today's file.
func (l *Log) Append(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.Timestamp = e.Timestamp.UTC()
	e.Message = redact.String(e.Message)

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	name := filepath.Join(l.dir, e.Timestamp.Format("2006-01-02")+".log")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// ForSession replays every entry recorded for a session, in write order.
// Unparseable lines are skipped; the journal tolerates partial writes from a
// crashed process.
func (l *Log) ForSession(sessionID string) ([]Entry, error) {
	return l.read(func(e Entry) bool { return e.SessionID == sessionID })
}

// Since replays every entry recorded at or after the cutoff.
func (l *Log) Since(cutoff time.Time) ([]Entry, error) {
	return l.read(func(e Entry) bool { return !e.Timestamp.Before(cutoff) })
}

func (l *Log) read(keep func(Entry) bool) ([]Entry, error) {
	files, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading audit directory: %w", err)
	}
	var names []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".log") {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names) // daily files sort chronologically by name

	var out []Entry
	for _, name := range names {
		f, err := os.Open(filepath.Join(l.dir, name))
		if err != nil {
			return nil, fmt.Errorf("opening audit file %s: %w", name, err)
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			var e Entry
			if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
				continue
			}
			if keep(e) {
				out = append(out, e)
			}
		}
		f.Close()
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scanning audit file %s: %w", name, err)
		}
	}
	return out, nil
}

// MemRecorder collects entries in memory for tests.
type MemRecorder struct {
	mu      sync.Mutex
	Entries []Entry
}

func (m *MemRecorder) Append(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	m.Entries = append(m.Entries, e)
	return nil
}
