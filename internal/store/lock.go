package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lockRetry is how often a busy lock file is retried.
const lockRetry = 10 * time.Millisecond

// lockFile takes an exclusive advisory lock on path, creating the file if
// needed. It waits until the lock is free or ctx is done.
func lockFile(ctx context.Context, path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	// #nosec G304 - lock file sits beside the configured profile store
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	ticker := time.NewTicker(lockRetry)
	defer ticker.Stop()
	for {
		locked, err := tryLock(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to lock %s: %w", path, err)
		}
		if locked {
			return func() {
				_ = unlock(file)
				file.Close()
			}, nil
		}

		select {
		case <-ctx.Done():
			file.Close()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// lockPath returns the lock file used for the store at path.
func lockPath(path string) string {
	return path + ".lock"
}
