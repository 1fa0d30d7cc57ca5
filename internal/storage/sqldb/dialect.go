package sqldb

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	domainerrors "github.com/mmynk/giftwiser/internal/errors"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// rebind rewrites '?' placeholders to '$n' for PostgreSQL.
// Queries in this package never contain '?' inside string literals.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
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

// Transient PostgreSQL error classes and codes.
var (
	pgTransientClasses = map[pq.ErrorClass]bool{
		"08": true, // connection exception
		"53": true, // insufficient resources
		"57": true, // operator intervention (shutdown, cancel)
	}
	pgTransientCodes = map[pq.ErrorCode]bool{
		"40001": true, // serialization_failure
		"40P01": true, // deadlock_detected
	}
)

// isUniqueViolation reports whether err is a unique or primary key constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// isTransientDriverError reports whether a driver error is safe to retry.
func isTransientDriverError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgTransientClasses[pqErr.Code.Class()] || pgTransientCodes[pqErr.Code]
	}
	return false
}

// wrap annotates a driver error, tagging retryable failures as transient.
func (s *Store) wrap(op string, err error) error {
	wrapped := fmt.Errorf("failed to %s: %w", op, err)
	if isTransientDriverError(err) {
		return domainerrors.Transient(wrapped)
	}
	return wrapped
}

// notFound maps sql.ErrNoRows to a typed not found error.
func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domainerrors.NotFoundf("%s not found: %s", what, id)
	}
	return nil
}
