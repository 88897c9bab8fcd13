// Package migrate applies the embedded, versioned schema for each SQL dialect.
// Migrations run from the CLI, never on the request path.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-autonomax/app/lock"
	"github.com/vibast-solutions/ms-go-autonomax/app/repository"
)

//go:embed sql
var migrationsFS embed.FS

const (
	// GuardKey names the exclusive lock held while migrating.
	GuardKey  = "autonomax:migrate"
	guardWait = 30 * time.Second
)

type Migration struct {
	Version int
	Name    string
	SQL     string
}

type Status struct {
	Version int
	Name    string
	Applied bool
}

type Migrator struct {
	db      *sql.DB
	dialect repository.Dialect
	guard   lock.Locker
	logger  logrus.FieldLogger
}

// New builds a migrator; guard serializes concurrent migrators.
func New(db *sql.DB, dialect repository.Dialect, guard lock.Locker, logger logrus.FieldLogger) *Migrator {
	return &Migrator{db: db, dialect: dialect, guard: guard, logger: logger}
}

// Load returns the embedded migrations for dialect ordered by version.
func Load(dialect repository.Dialect) ([]Migration, error) {
	dir := path.Join("sql", string(dialect))
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations for %s: %w", dialect, err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		prefix, name, ok := strings.Cut(strings.TrimSuffix(entry.Name(), ".sql"), "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: expected <version>_<name>.sql", entry.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version: %w", entry.Name(), err)
		}
		body, err := fs.ReadFile(migrationsFS, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(body)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// Up applies every pending migration and returns the versions applied.
func (m *Migrator) Up(ctx context.Context) ([]int, error) {
	if err := m.guard.Acquire(ctx, GuardKey, guardWait); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		if err := m.guard.Release(context.Background(), GuardKey); err != nil {
			m.logger.WithError(err).Warn("release migration lock")
		}
	}()

	migrations, err := Load(m.dialect)
	if err != nil {
		return nil, err
	}
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var done []int
	for _, mig := range migrations {
		if applied[mig.Version] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return done, fmt.Errorf("migration %03d_%s: %w", mig.Version, mig.Name, err)
		}
		m.logger.WithFields(logrus.Fields{"version": mig.Version, "name": mig.Name}).Info("migration applied")
		done = append(done, mig.Version)
	}
	return done, nil
}

// Status reports each known migration and whether it has been applied.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	migrations, err := Load(m.dialect)
	if err != nil {
		return nil, err
	}
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(migrations))
	for _, mig := range migrations {
		out = append(out, Status{Version: mig.Version, Name: mig.Name, Applied: applied[mig.Version]})
	}
	return out, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	const query = `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL PRIMARY KEY)`
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// apply runs one migration's statements and records its version. MySQL
// commits DDL implicitly, so the transaction only protects the bookkeeping there.
func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(mig.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, m.dialect.Rebind(`INSERT INTO schema_migrations (version) VALUES (?)`), mig.Version); err != nil {
		return err
	}
	return tx.Commit()
}

func splitStatements(body string) []string {
	var out []string
	for _, stmt := range strings.Split(body, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
