package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	basalterrors "basalt.dev/basalt/internal/errors"
)

const lockFileName = "lock"

// Lock guards the metadata file against concurrent basalt invocations.
// Acquire fails fast when another process holds the lock; it never waits.
type Lock struct {
	path string
	held bool
}

// NewLock creates a lock for the store's metadata directory
func (s *Store) NewLock() *Lock {
	return &Lock{path: filepath.Join(s.Dir(), lockFileName)}
}

// Acquire takes the lock by creating the lock file exclusively. If the file
// already exists, another invocation is in progress and a LockError is
// returned immediately.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return &basalterrors.LockError{
				Path: l.path,
				PID:  l.holderPID(),
			}
		}
		return fmt.Errorf("failed to acquire lock %s: %w", l.path, err)
	}

	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	if err := f.Close(); err != nil {
		_ = os.Remove(l.path)
		return fmt.Errorf("failed to write lock %s: %w", l.path, err)
	}

	l.held = true
	return nil
}

// Release removes the lock file. Safe to call when the lock was never taken.
func (l *Lock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false

	err := os.Remove(l.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to release lock %s: %w", l.path, err)
	}
	return nil
}

// holderPID reads the pid recorded in an existing lock file, 0 if unknown
func (l *Lock) holderPID() int {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
