package migrate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-autonomax/app/database"
	"github.com/vibast-solutions/ms-go-autonomax/app/lock"
	"github.com/vibast-solutions/ms-go-autonomax/app/repository"
)

type stubLocker struct {
	acquireErr error
	acquired   []string
	released   []string
}

func (l *stubLocker) Acquire(_ context.Context, key string, _ time.Duration) error {
	if l.acquireErr != nil {
		return l.acquireErr
	}
	l.acquired = append(l.acquired, key)
	return nil
}

func (l *stubLocker) Release(_ context.Context, key string) error {
	l.released = append(l.released, key)
	return nil
}

func TestLoadEveryDialect(t *testing.T) {
	for _, d := range []repository.Dialect{repository.MySQL, repository.SQLite, repository.Postgres} {
		migrations, err := Load(d)
		require.NoError(t, err, d)
		require.Len(t, migrations, 2, d)
		assert.Equal(t, 1, migrations[0].Version)
		assert.Equal(t, "create_users", migrations[0].Name)
		assert.Equal(t, 2, migrations[1].Version)
		assert.Equal(t, "create_ops_locks", migrations[1].Name)
		assert.Contains(t, migrations[1].SQL, "locked_until")
	}
}

func TestUpSQLiteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	db, err := database.Open(context.Background(), repository.SQLite, "file:"+filepath.Join(dir, "m.db")+"?_busy_timeout=5000", database.Options{})
	require.NoError(t, err)
	defer db.Close()

	guard, err := lock.NewFileLocker(filepath.Join(dir, "locks"))
	require.NoError(t, err)
	logger, hook := test.NewNullLogger()
	m := New(db, repository.SQLite, guard, logger)

	applied, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)
	assert.Len(t, hook.AllEntries(), 2)

	applied, err = m.Up(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)

	status, err := m.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, status, 2)
	for _, s := range status {
		assert.True(t, s.Applied, "migration %d", s.Version)
	}

	_, err = db.Exec(`INSERT INTO ops_locks (name, locked_until) VALUES ('ops:a', '2026-10-17 12:00:00.000000000')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO ops_locks (name, locked_until) VALUES ('ops:a', '2026-10-17 12:00:00.000000000')`)
	assert.Error(t, err, "ops_locks.name must be unique")
}

func TestUpStopsWhenGuardIsHeld(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	guard := &stubLocker{acquireErr: lock.ErrNotAcquired}
	logger, _ := test.NewNullLogger()

	_, err = New(db, repository.MySQL, guard, logger).Up(context.Background())
	assert.True(t, errors.Is(err, lock.ErrNotAcquired), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpMySQLAppliesPending(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ops_locks").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	guard := &stubLocker{}
	logger, _ := test.NewNullLogger()

	applied, err := New(db, repository.MySQL, guard, logger).Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2}, applied)
	assert.Equal(t, []string{GuardKey}, guard.acquired)
	assert.Equal(t, []string{GuardKey}, guard.released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	got := splitStatements("CREATE TABLE a (x INT);\n\nCREATE INDEX i ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, got)
}
