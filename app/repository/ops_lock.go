package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-autonomax/app/entity"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

type OpsLockRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewOpsLockRepository constructs the ops lock repository for the given dialect.
func NewOpsLockRepository(db *sql.DB, dialect Dialect) *OpsLockRepository {
	return &OpsLockRepository{db: db, dialect: dialect}
}

// TryAcquire inserts the lock row or moves an expired window to until in one
// statement. It reports whether a row was written.
func (r *OpsLockRepository) TryAcquire(ctx context.Context, name string, now time.Time, until time.Time) (bool, error) {
	query := `
		INSERT INTO ops_locks (name, locked_until)
		VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET locked_until = excluded.locked_until
		WHERE ops_locks.locked_until <= ?
	`
	if r.dialect == MySQL {
		// Affected rows: 1 inserted, 2 updated, 0 left untouched.
		query = `
			INSERT INTO ops_locks (name, locked_until)
			VALUES (?, ?)
			ON DUPLICATE KEY UPDATE locked_until = IF(locked_until <= ?, VALUES(locked_until), locked_until)
		`
	}

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), name, r.dialect.timeArg(until), r.dialect.timeArg(now))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FindByName loads a single lock record.
func (r *OpsLockRepository) FindByName(ctx context.Context, name string) (*entity.OpsLock, error) {
	const query = `
		SELECT name, locked_until
		FROM ops_locks
		WHERE name = ?
	`
	var l entity.OpsLock
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), name).Scan(&l.Name, &l.LockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	l.LockedUntil = l.LockedUntil.UTC()
	return &l, nil
}

// List returns every lock record ordered by name.
func (r *OpsLockRepository) List(ctx context.Context) ([]entity.OpsLock, error) {
	const query = `
		SELECT name, locked_until
		FROM ops_locks
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locks []entity.OpsLock
	for rows.Next() {
		var l entity.OpsLock
		if err := rows.Scan(&l.Name, &l.LockedUntil); err != nil {
			return nil, err
		}
		l.LockedUntil = l.LockedUntil.UTC()
		locks = append(locks, l)
	}
	return locks, rows.Err()
}
