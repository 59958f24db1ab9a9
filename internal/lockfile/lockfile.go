// Package lockfile guards a database directory against concurrent opens by
// two processes. §6.2 makes the on-disk layout one directory per database;
// two processes pointed at the same directory at once must fail loudly at
// open time instead of corrupting the bbolt file underneath it.
//
// Grounded on cmd/bd/jsonl_lock.go, which wraps github.com/gofrs/flock with
// a bounded poll-and-retry acquire loop rather than a single blocking call,
// so a hung lock holder produces a readable timeout error instead of an
// indefinite wait.
package lockfile

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	fileName     = ".k9db.lock"
	pollInterval = 25 * time.Millisecond
)

// ErrBusy is returned when the lock is held by another process and the
// caller asked for a non-blocking attempt.
var ErrBusy = fmt.Errorf("lockfile: database directory is locked by another process")

// Lock guards one database directory's exclusive lock file.
type Lock struct {
	flock *flock.Flock
}

// New returns a Lock for dataDir. The lock file itself lives inside dataDir
// so it travels with the database if the directory is moved.
func New(dataDir string) *Lock {
	return &Lock{flock: flock.New(filepath.Join(dataDir, fileName))}
}

// TryAcquire attempts to take the lock without blocking.
func (l *Lock) TryAcquire() (bool, error) {
	locked, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("lockfile: acquire %s: %w", l.flock.Path(), err)
	}
	return locked, nil
}

// Acquire blocks (polling) until the lock is taken or ctx is done.
func (l *Lock) Acquire(ctx context.Context) error {
	for {
		locked, err := l.TryAcquire()
		if err != nil {
			return err
		}
		if locked {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("lockfile: timed out waiting for %s: %w", l.flock.Path(), ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Release is idempotent.
func (l *Lock) Release() error {
	if l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}
