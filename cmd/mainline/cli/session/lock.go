package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/paths"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/validation"
)

// ErrLockHeld is returned when the session lock cannot be acquired within
// the caller's wait budget.
var ErrLockHeld = errors.New("session is locked by another operation")

// lockRetryInterval is how often a blocked acquirer retries the flock.
const lockRetryInterval = 100 * time.Millisecond

// StaleLockThreshold is how old a lock file must be before cleanup reclaims
// it. Flocks release on process death, so a file this old is leftover debris,
// not a live holder.
const StaleLockThreshold = 24 * time.Hour

// AcquireLock takes an exclusive advisory lock for the session id. It blocks
// up to wait, then fails with ErrLockHeld. The release function is safe to
// call exactly once and must be called on all exit paths.
func (fs *FileStore) AcquireLock(id string, wait time.Duration) (func(), error) {
	if err := validation.ValidateSessionID(id); err != nil {
		return nil, err
	}
	lockPath := paths.LockFile(fs.stateRoot, id)
	fl := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrLockHeld, id)
		}
		return nil, fmt.Errorf("acquiring session lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, id)
	}

	release := func() {
		_ = fl.Unlock()
	}
	return release, nil
}

// ReclaimStaleLocks removes lock files whose modification time is older than
// the threshold. Returns the session ids whose locks were removed.
func (fs *FileStore) ReclaimStaleLocks(olderThan time.Duration) ([]string, error) {
	dir := filepath.Join(fs.stateRoot, "locks")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning locks: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	var reclaimed []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".lock") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		id := strings.TrimSuffix(name, ".lock")
		// Skip locks that are still flocked by a live process.
		fl := flock.New(filepath.Join(dir, name))
		locked, err := fl.TryLock()
		if err != nil || !locked {
			continue
		}
		_ = fl.Unlock()
		if err := os.Remove(filepath.Join(dir, name)); err == nil {
			reclaimed = append(reclaimed, id)
		}
	}
	return reclaimed, nil
}
