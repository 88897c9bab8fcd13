package lock

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

const advisoryPollInterval = 250 * time.Millisecond

type advisoryQueries struct {
	acquire string
	release string
	// timed is set when acquire takes a wait-seconds argument and blocks server side.
	timed bool
}

var (
	mysqlAdvisory = advisoryQueries{
		acquire: "SELECT GET_LOCK(?, ?)",
		release: "SELECT RELEASE_LOCK(?)",
		timed:   true,
	}
	postgresAdvisory = advisoryQueries{
		acquire: "SELECT pg_try_advisory_lock(hashtext($1))",
		release: "SELECT pg_advisory_unlock(hashtext($1))",
	}
)

// AdvisoryLocker holds database session-level advisory locks. Each held key
// pins its own connection until released.
type AdvisoryLocker struct {
	db      *sql.DB
	queries advisoryQueries
	mu      sync.Mutex
	conns   map[string]*sql.Conn
}

// NewMySQLLocker constructs a locker on MySQL GET_LOCK/RELEASE_LOCK.
func NewMySQLLocker(db *sql.DB) *AdvisoryLocker {
	return newAdvisoryLocker(db, mysqlAdvisory)
}

// NewPostgresLocker constructs a locker on pg_try_advisory_lock.
func NewPostgresLocker(db *sql.DB) *AdvisoryLocker {
	return newAdvisoryLocker(db, postgresAdvisory)
}

func newAdvisoryLocker(db *sql.DB, queries advisoryQueries) *AdvisoryLocker {
	return &AdvisoryLocker{
		db:      db,
		queries: queries,
		conns:   make(map[string]*sql.Conn),
	}
}

// Acquire obtains a named advisory lock and holds its connection.
func (l *AdvisoryLocker) Acquire(ctx context.Context, key string, wait time.Duration) error {
	l.mu.Lock()
	if _, exists := l.conns[key]; exists {
		l.mu.Unlock()
		return ErrAlreadyHeld
	}
	l.mu.Unlock()

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return err
	}

	acquired, err := l.tryAcquire(ctx, conn, key, wait)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if !acquired {
		_ = conn.Close()
		return ErrNotAcquired
	}

	l.mu.Lock()
	l.conns[key] = conn
	l.mu.Unlock()

	return nil
}

func (l *AdvisoryLocker) tryAcquire(ctx context.Context, conn *sql.Conn, key string, wait time.Duration) (bool, error) {
	if l.queries.timed {
		timeoutSeconds := int(wait.Seconds())
		if timeoutSeconds < 1 {
			timeoutSeconds = 1
		}
		var acquired sql.NullBool
		if err := conn.QueryRowContext(ctx, l.queries.acquire, key, timeoutSeconds).Scan(&acquired); err != nil {
			return false, err
		}
		return acquired.Valid && acquired.Bool, nil
	}

	deadline := time.Now().Add(wait)
	for {
		var acquired sql.NullBool
		if err := conn.QueryRowContext(ctx, l.queries.acquire, key).Scan(&acquired); err != nil {
			return false, err
		}
		if acquired.Valid && acquired.Bool {
			return true, nil
		}
		if time.Now().Add(advisoryPollInterval).After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(advisoryPollInterval):
		}
	}
}

// Release frees a named advisory lock and closes its connection.
func (l *AdvisoryLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	conn, ok := l.conns[key]
	if ok {
		delete(l.conns, key)
	}
	l.mu.Unlock()

	if !ok {
		return nil
	}

	defer conn.Close()
	if _, err := conn.ExecContext(ctx, l.queries.release, key); err != nil {
		return err
	}
	return nil
}
