package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrIndexBusy is returned when another indexing run holds the writer lock.
var ErrIndexBusy = errors.New("another indexing run is in progress")

const lockRetryDelay = 50 * time.Millisecond

// writerLock serializes writers within the process and, through a lock file next to
// the vector file, across processes.
type writerLock struct {
	mu      sync.Mutex
	file    *flock.Flock
	timeout time.Duration
}

func newWriterLock(path string, timeout time.Duration) *writerLock {
	return &writerLock{file: flock.New(path), timeout: timeout}
}

// acquire takes the lock or fails with ErrIndexBusy. The in-process check fails
// immediately; the file lock is retried until the timeout.
func (l *writerLock) acquire(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrIndexBusy
	}
	if err := os.MkdirAll(filepath.Dir(l.file.Path()), 0755); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	lockCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	locked, err := l.file.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil && ctx.Err() != nil {
		l.mu.Unlock()
		return nil, ctx.Err()
	}
	if !locked {
		l.mu.Unlock()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("failed to lock %s: %w", l.file.Path(), err)
		}
		return nil, ErrIndexBusy
	}
	return func() {
		_ = l.file.Unlock()
		l.mu.Unlock()
	}, nil
}
