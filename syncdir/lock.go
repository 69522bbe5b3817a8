package syncdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/h2kv/h2kv/ignore"
)

// ErrLocked is returned when another process holds the sync directory.
var ErrLocked = errors.New("sync directory is locked by another process")

// Lock is an exclusive, advisory lock on a sync directory.
type Lock struct {
	flock *flock.Flock
}

// AcquireLock locks dir. It fails with ErrLocked instead of waiting.
func AcquireLock(dir string) (*Lock, error) {
	fl := flock.New(filepath.Join(dir, ignore.LockFile))

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock sync directory: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	return &Lock{flock: fl}, nil
}

// Release unlocks the directory and removes the lock file.
func (l *Lock) Release() error {
	// if this process hasn't locked the directory, then don't delete the lock file
	if !l.flock.Locked() {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock sync directory: %w", err)
	}

	return os.Remove(l.flock.Path())
}
