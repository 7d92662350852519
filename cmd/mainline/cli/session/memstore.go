package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store for tests. Sessions are deep-copied on the
// way in and out so callers cannot mutate stored state behind the lock.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	locked   map[string]bool

	// LockErr, when set, is returned by AcquireLock.
	LockErr error
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		sessions: map[string]*Session{},
		locked:   map[string]bool{},
	}
}

func clone(s *Session) *Session {
	data, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	var out Session
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

func (m *MemStore) Create(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.BranchName == s.BranchName && !existing.IsTerminal() {
			return fmt.Errorf("%w: %s owned by session %s", ErrSessionExists, s.BranchName, existing.ID)
		}
	}
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *MemStore) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrNoSession, id)
	}
	return clone(s), nil
}

func (m *MemStore) GetByBranch(branch string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Session
	for _, s := range m.sessions {
		if s.BranchName != branch {
			continue
		}
		if !s.IsTerminal() {
			return clone(s), nil
		}
		if latest == nil || s.UpdatedAt.After(latest.UpdatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: branch %s", ErrNoSession, branch)
	}
	return clone(latest), nil
}

func (m *MemStore) History(branch string) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.BranchName == branch {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemStore) List(includeTerminal bool) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, s := range m.sessions {
		if !includeTerminal && s.IsTerminal() {
			continue
		}
		out = append(out, clone(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) Update(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return fmt.Errorf("%w: id %s", ErrNoSession, s.ID)
	}
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *MemStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.locked, id)
	return nil
}

func (m *MemStore) AcquireLock(id string, wait time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LockErr != nil {
		return nil, m.LockErr
	}
	if m.locked[id] {
		return nil, fmt.Errorf("%w: session %s", ErrLockHeld, id)
	}
	m.locked[id] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.locked, id)
	}, nil
}

func (m *MemStore) ReclaimStaleLocks(time.Duration) ([]string, error) {
	return nil, nil
}
