package lock

import (
	"context"
	"errors"
	"time"
)

var ErrAlreadyHeld = errors.New("lock already held by this process")
var ErrNotAcquired = errors.New("lock not acquired")

// Locker abstracts exclusive, releasable locks. Ops cooldown windows live in
// package opslock; Locker guards work that must not run twice at once.
type Locker interface {
	// Acquire waits up to wait for the lock on key.
	Acquire(ctx context.Context, key string, wait time.Duration) error
	// Release frees the lock for the given key.
	Release(ctx context.Context, key string) error
}
