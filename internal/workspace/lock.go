// Package workspace provides exclusive access to a repository working copy.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

const DefaultLockTimeout = time.Minute

const (
	lockFileName   = "mergekeeper.lock"
	lockRetryDelay = 500 * time.Millisecond
)

var ErrLocked = errors.New("working copy is locked by another process")

// Lock is an exclusive file lock on a working copy.
type Lock struct {
	flock  *flock.Flock
	logger *zap.Logger
}

// LockPath returns the path of the lock file of the working copy in dir.
// The file is stored in the .hg directory when it exists, to not appear as
// untracked file.
func LockPath(dir string) string {
	hgDir := filepath.Join(dir, ".hg")
	if fi, err := os.Stat(hgDir); err == nil && fi.IsDir() {
		return filepath.Join(hgDir, lockFileName)
	}

	return filepath.Join(dir, "."+lockFileName)
}

// Acquire locks the working copy in dir.
// If it is locked by another process, acquiring is retried until timeout
// expired, then ErrLocked is returned.
func Acquire(ctx context.Context, dir string, timeout time.Duration) (*Lock, error) {
	path := LockPath(dir)
	logger := zap.L().Named("workspace").With(logfields.WorkingDir(dir), zap.String("lock_file", path))

	fl := flock.New(path)

	ctx, cancelFn := context.WithTimeout(ctx, timeout)
	defer cancelFn()

	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: waited %s", ErrLocked, path, timeout)
		}

		return nil, fmt.Errorf("locking %s failed: %w", path, err)
	}

	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	logger.Debug("working copy locked", logfields.Event("workspace_locked"))

	return &Lock{flock: fl, logger: logger}, nil
}

// Release unlocks the working copy.
func (l *Lock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("unlocking %s failed: %w", l.flock.Path(), err)
	}

	l.logger.Debug("working copy unlocked", logfields.Event("workspace_unlocked"))

	return nil
}
