package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// compareAndDelete removes KEYS[1] only while it still carries our token.
var compareAndDelete = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

const redisPollInterval = 100 * time.Millisecond

// RedisLocker holds owner-tokened Redis keys. A key expires after the
// configured hold time even if its owner never releases it.
type RedisLocker struct {
	client *redis.Client
	hold   time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLocker(client *redis.Client, hold time.Duration) *RedisLocker {
	return &RedisLocker{client: client, hold: hold, tokens: make(map[string]string)}
}

// Acquire sets key with NX, polling until wait elapses. A zero wait tries once.
func (l *RedisLocker) Acquire(ctx context.Context, key string, wait time.Duration) error {
	if l.owns(key) {
		return ErrAlreadyHeld
	}

	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.hold).Result()
		if err != nil {
			return err
		}
		if ok {
			l.mu.Lock()
			l.tokens[key] = token
			l.mu.Unlock()
			return nil
		}
		if time.Until(deadline) < redisPollInterval {
			return ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(redisPollInterval):
		}
	}
}

// Release deletes key if it still carries this locker's token. Keys that
// expired and were taken by another owner are left alone.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	return compareAndDelete.Run(ctx, l.client, []string{key}, token).Err()
}

func (l *RedisLocker) owns(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.tokens[key]
	return ok
}
