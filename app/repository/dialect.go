package repository

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// Dialect names a supported SQL driver; it matches the database/sql driver name.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "pgx"
)

// sqliteTimeLayout is fixed width so lexical comparison in SQL matches time order.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

// ParseDialect maps a driver name onto a dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(driver)); d {
	case MySQL, SQLite, Postgres:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect: %s", driver)
	}
}

// Rebind rewrites '?' placeholders into the dialect's positional form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg converts an instant into the value bound for the dialect.
func (d Dialect) timeArg(t time.Time) any {
	t = t.UTC()
	if d == SQLite {
		return t.Format(sqliteTimeLayout)
	}
	return t
}

// isDuplicate reports whether err is a unique-key violation for the dialect's driver.
func isDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}
