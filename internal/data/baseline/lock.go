package baseline

import (
	coreerrors "archratchet/internal/core/errors"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const lockPollInterval = 25 * time.Millisecond

// fileLock is an exclusive flock(2) on a sidecar file next to the baseline.
type fileLock struct {
	path string
	file *os.File
}

func newFileLock(baselinePath string) *fileLock {
	return &fileLock{path: baselinePath + ".lock"}
}

// tryLock attempts the lock without blocking. It reports false when another
// process holds it.
func (fl *fileLock) tryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(fl.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, fmt.Errorf("open lock file: %w", err)
	}

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return false, nil
		}
		return false, fmt.Errorf("flock: %w", err)
	}

	fl.file = f
	return true, nil
}

// lock polls until the lock is acquired or ctx is done.
func (fl *fileLock) lock(ctx context.Context) error {
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		ok, err := fl.tryLock()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return coreerrors.Wrap(ctx.Err(), coreerrors.CodeLocked, "baseline is locked by another process").
				WithContext(coreerrors.CtxPath, fl.path).
				WithRemediation("wait for the other archratchet run to finish")
		case <-ticker.C:
		}
	}
}

func (fl *fileLock) unlock() error {
	if fl.file == nil {
		return nil
	}

	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = fl.file.Close()
		fl.file = nil
		return fmt.Errorf("funlock: %w", err)
	}

	err := fl.file.Close()
	fl.file = nil
	return err
}
