package supervisor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned by AcquireInstanceLock when another supervisor holds the lock.
var ErrAlreadyRunning = errors.New("another screensaver supervisor is already running")

// DefaultInstanceLockPath returns screensaver.lock in $XDG_RUNTIME_DIR, or in the temporary
// directory when that is not set.
func DefaultInstanceLockPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}

	return filepath.Join(dir, "screensaver.lock")
}

// AcquireInstanceLock takes an exclusive, non-blocking lock on path.
// Release it with Unlock once the supervisor has torn down.
func AcquireInstanceLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}

	return lock, nil
}
