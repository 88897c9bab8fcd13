package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vibast-solutions/ms-go-autonomax/app/repository"
)

// ErrClientFoundRows rejects MySQL DSNs that report matched instead of changed
// rows; ops lock grants are read from the changed-row count.
var ErrClientFoundRows = errors.New("mysql dsn must not set clientFoundRows")

type Options struct {
	MaxOpen int
	MaxIdle int
	MaxLife time.Duration
}

// Open connects to the database for dialect and verifies it answers.
func Open(ctx context.Context, dialect repository.Dialect, dsn string, opts Options) (*sql.DB, error) {
	dsn, err := PrepareDSN(dialect, dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == repository.SQLite {
		// SQLite has a single writer.
		opts.MaxOpen, opts.MaxIdle = 1, 1
	}
	if opts.MaxOpen > 0 {
		db.SetMaxOpenConns(opts.MaxOpen)
	}
	if opts.MaxIdle > 0 {
		db.SetMaxIdleConns(opts.MaxIdle)
	}
	if opts.MaxLife > 0 {
		db.SetConnMaxLifetime(opts.MaxLife)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, nil
}

// PrepareDSN normalizes a MySQL DSN: DATETIME columns scan into time.Time in
// UTC, and clientFoundRows is refused. Other dialects pass through.
func PrepareDSN(dialect repository.Dialect, dsn string) (string, error) {
	if dialect != repository.MySQL {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	if cfg.ClientFoundRows {
		return "", ErrClientFoundRows
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}
