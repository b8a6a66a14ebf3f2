package cmd

import (
	"fmt"

	"github.com/gofrs/flock"

	"github.com/rangepull/rangepull/internal/config"
)

var instanceLock *flock.Flock

// AcquireLock attempts to become the single running instance. Returns
// true if this process is now the master; false means another instance
// already holds the lock.
func AcquireLock() (bool, error) {
	if err := config.EnsureDirs(); err != nil {
		return false, fmt.Errorf("failed to ensure app dirs: %w", err)
	}

	fileLock := flock.New(config.GetLockPath())
	locked, err := fileLock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock: %w", err)
	}
	if !locked {
		return false, nil
	}
	instanceLock = fileLock
	return true, nil
}

// ReleaseLock releases the lock held by this process, if any.
func ReleaseLock() error {
	if instanceLock == nil {
		return nil
	}
	return instanceLock.Unlock()
}
