package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const fileRetryDelay = 100 * time.Millisecond

// FileLocker takes flock(2) locks under a directory, one file per key. It
// serializes processes on the same host, which is what a SQLite database needs.
type FileLocker struct {
	dir  string
	mu   sync.Mutex
	held map[string]*flock.Flock
}

// NewFileLocker creates the lock directory and returns a locker rooted there.
func NewFileLocker(dir string) (*FileLocker, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return &FileLocker{dir: dir, held: make(map[string]*flock.Flock)}, nil
}

// Acquire takes the file lock for key, retrying until wait elapses.
func (l *FileLocker) Acquire(ctx context.Context, key string, wait time.Duration) error {
	l.mu.Lock()
	if _, exists := l.held[key]; exists {
		l.mu.Unlock()
		return ErrAlreadyHeld
	}
	l.mu.Unlock()

	fl := flock.New(l.path(key))

	if wait < fileRetryDelay {
		wait = fileRetryDelay
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	locked, err := fl.TryLockContext(waitCtx, fileRetryDelay)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil || !locked {
		return ErrNotAcquired
	}

	l.mu.Lock()
	l.held[key] = fl
	l.mu.Unlock()
	return nil
}

// Release unlocks the file for key.
func (l *FileLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	fl, ok := l.held[key]
	if ok {
		delete(l.held, key)
	}
	l.mu.Unlock()

	if !ok {
		return nil
	}
	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("release file lock: %w", err)
	}
	return nil
}

func (l *FileLocker) path(key string) string {
	name := strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(key)
	return filepath.Join(l.dir, name+".lock")
}
