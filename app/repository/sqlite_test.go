package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-autonomax/app/database"
	"github.com/vibast-solutions/ms-go-autonomax/app/lock"
	"github.com/vibast-solutions/ms-go-autonomax/app/migrate"
	"github.com/vibast-solutions/ms-go-autonomax/app/repository"
	"golang.org/x/sync/errgroup"
)

func setupSQLite(t *testing.T) *sql.DB {
	t.Helper()

	dir := t.TempDir()
	dsn := "file:" + filepath.Join(dir, "autonomax.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := database.Open(context.Background(), repository.SQLite, dsn, database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	guard, err := lock.NewFileLocker(filepath.Join(dir, "locks"))
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	_, err = migrate.New(db, repository.SQLite, guard, logger).Up(context.Background())
	require.NoError(t, err)
	return db
}

func TestSQLiteOpsLockWindow(t *testing.T) {
	db := setupSQLite(t)
	repo := repository.NewOpsLockRepository(db, repository.SQLite)
	ctx := context.Background()

	t0 := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	ttl := 120 * time.Second

	t.Run("fresh name is granted and persisted", func(t *testing.T) {
		granted, err := repo.TryAcquire(ctx, "ops:hourly-batch", t0, t0.Add(ttl))
		require.NoError(t, err)
		assert.True(t, granted)

		l, err := repo.FindByName(ctx, "ops:hourly-batch")
		require.NoError(t, err)
		assert.True(t, l.LockedUntil.Equal(t0.Add(ttl)), "locked_until = %v", l.LockedUntil)
	})

	t.Run("active window is denied and untouched", func(t *testing.T) {
		now := t0.Add(60 * time.Second)
		granted, err := repo.TryAcquire(ctx, "ops:hourly-batch", now, now.Add(ttl))
		require.NoError(t, err)
		assert.False(t, granted)

		l, err := repo.FindByName(ctx, "ops:hourly-batch")
		require.NoError(t, err)
		assert.True(t, l.LockedUntil.Equal(t0.Add(ttl)), "locked_until = %v", l.LockedUntil)
	})

	t.Run("window ending exactly now is granted", func(t *testing.T) {
		now := t0.Add(ttl)
		granted, err := repo.TryAcquire(ctx, "ops:hourly-batch", now, now.Add(ttl))
		require.NoError(t, err)
		assert.True(t, granted)

		l, err := repo.FindByName(ctx, "ops:hourly-batch")
		require.NoError(t, err)
		assert.True(t, l.LockedUntil.Equal(now.Add(ttl)), "locked_until = %v", l.LockedUntil)
	})

	t.Run("sub-second ordering holds", func(t *testing.T) {
		base := t0.Add(time.Hour)
		granted, err := repo.TryAcquire(ctx, "ops:precise", base, base.Add(500*time.Millisecond))
		require.NoError(t, err)
		require.True(t, granted)

		early := base.Add(499 * time.Millisecond)
		granted, err = repo.TryAcquire(ctx, "ops:precise", early, early.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, granted)

		late := base.Add(501 * time.Millisecond)
		granted, err = repo.TryAcquire(ctx, "ops:precise", late, late.Add(time.Second))
		require.NoError(t, err)
		assert.True(t, granted)
	})

	t.Run("list returns every record", func(t *testing.T) {
		locks, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, locks, 2)
		assert.Equal(t, "ops:hourly-batch", locks[0].Name)
		assert.Equal(t, "ops:precise", locks[1].Name)
	})
}

func TestSQLiteOpsLockConcurrentAcquire(t *testing.T) {
	db := setupSQLite(t)
	repo := repository.NewOpsLockRepository(db, repository.SQLite)

	now := time.Now().UTC()
	var grants atomic.Int32
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			granted, err := repo.TryAcquire(context.Background(), "x", now, now.Add(time.Minute))
			if granted {
				grants.Add(1)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), grants.Load())
}

func TestSQLiteUserDuplicate(t *testing.T) {
	db := setupSQLite(t)
	repo := repository.NewUserRepository(db, repository.SQLite)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "a@b.com", "hash"))
	assert.ErrorIs(t, repo.Create(ctx, "a@b.com", "hash"), repository.ErrDuplicate)

	u, err := repo.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", u.PasswordHash)
}
