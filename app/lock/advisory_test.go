package lock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestMySQLLockerAcquireRelease(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	locker := NewMySQLLocker(db)
	mock.ExpectQuery("SELECT GET_LOCK").
		WithArgs("autonomax:migrate", 120).
		WillReturnRows(sqlmock.NewRows([]string{"acquired"}).AddRow(1))

	if err := locker.Acquire(context.Background(), "autonomax:migrate", 2*time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := locker.Acquire(context.Background(), "autonomax:migrate", 2*time.Minute); err != ErrAlreadyHeld {
		t.Fatalf("expected ErrAlreadyHeld, got %v", err)
	}

	mock.ExpectExec("SELECT RELEASE_LOCK").
		WithArgs("autonomax:migrate").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := locker.Release(context.Background(), "autonomax:migrate"); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMySQLLockerNotAcquired(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	locker := NewMySQLLocker(db)
	mock.ExpectQuery("SELECT GET_LOCK").
		WithArgs("autonomax:migrate", 1).
		WillReturnRows(sqlmock.NewRows([]string{"acquired"}).AddRow(0))

	if err := locker.Acquire(context.Background(), "autonomax:migrate", 10*time.Millisecond); err != ErrNotAcquired {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresLockerPollsUntilAcquired(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	locker := NewPostgresLocker(db)
	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs("autonomax:migrate").
		WillReturnRows(sqlmock.NewRows([]string{"acquired"}).AddRow(false))
	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs("autonomax:migrate").
		WillReturnRows(sqlmock.NewRows([]string{"acquired"}).AddRow(true))

	if err := locker.Acquire(context.Background(), "autonomax:migrate", 5*time.Second); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs("autonomax:migrate").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := locker.Release(context.Background(), "autonomax:migrate"); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresLockerGivesUpAfterWait(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	locker := NewPostgresLocker(db)
	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs("autonomax:migrate").
		WillReturnRows(sqlmock.NewRows([]string{"acquired"}).AddRow(false))

	if err := locker.Acquire(context.Background(), "autonomax:migrate", 0); err != ErrNotAcquired {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdvisoryLockerReleaseUnknownKey(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	if err := NewMySQLLocker(db).Release(context.Background(), "missing"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
