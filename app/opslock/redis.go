package opslock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vibast-solutions/ms-go-autonomax/app/entity"
)

const DefaultRedisPrefix = "autonomax:ops-lock:"

// RedisStore keeps each window as a key that expires with the window. An
// expired key is gone, which is the same as a record that was never written.
//
// It differs from the SQL stores in two ways. Expiry runs on the Redis server
// clock, and Redis drops a key only once its expiry time has passed, so a call
// landing on the exact millisecond the window ends is still denied. Records are
// deleted on expiry, so List and Find only see active windows.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a Redis-backed Store; keys are prefix+name.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// TryAcquire sets the key with NX and a TTL of until-now.
func (s *RedisStore) TryAcquire(ctx context.Context, name string, now time.Time, until time.Time) (bool, error) {
	ttl := until.Sub(now)
	if ttl <= 0 {
		return false, fmt.Errorf("window end %s is not after %s", until, now)
	}
	ok, err := s.client.SetNX(ctx, s.prefix+name, until.UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", s.prefix+name, err)
	}
	return ok, nil
}

// Find reads the window end stored under name; missing keys yield nil.
func (s *RedisStore) Find(ctx context.Context, name string) (*entity.OpsLock, error) {
	raw, err := s.client.Get(ctx, s.prefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.prefix+name, err)
	}
	until, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("parse window end for %s: %w", name, err)
	}
	return &entity.OpsLock{Name: name, LockedUntil: until}, nil
}

// List scans every live key under the prefix.
func (s *RedisStore) List(ctx context.Context) ([]entity.OpsLock, error) {
	var locks []entity.OpsLock
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		name := strings.TrimPrefix(iter.Val(), s.prefix)
		l, err := s.Find(ctx, name)
		if err != nil {
			return nil, err
		}
		if l != nil {
			locks = append(locks, *l)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s*: %w", s.prefix, err)
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].Name < locks[j].Name })
	return locks, nil
}
