// Package sqlstore implements repository.Store on top of database/sql.
//
// DATABASE/SQL OVERVIEW:
// Go's standard library provides "database/sql" — a generic interface for SQL
// databases. It works with any database through "drivers". Key types:
//   - sql.DB   — a connection pool (NOT a single connection!)
//   - sql.Tx   — a transaction pinned to one connection
//   - sql.Row  — a single result row
//   - sql.Rows — multiple result rows (must be closed!)
//
// The queries here are plain SQL that both SQLite and Postgres accept. The
// only differences between backends live in a Dialect: placeholder syntax and
// how a UNIQUE violation is reported. The driver-specific packages
// (repository/sqlite, repository/postgres) open the connection, run their
// own schema migration, and hand the pool to New.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sakif/todo-service/internal/repository"
)

// Dialect captures what differs between SQL backends.
type Dialect struct {
	Name string

	// NumberedPlaceholders selects $1, $2, ... (Postgres) instead of ? (SQLite).
	NumberedPlaceholders bool

	// IsUniqueViolation reports whether err came from a UNIQUE constraint.
	IsUniqueViolation func(err error) bool
}

// querier is the subset of methods shared by *sql.DB and *sql.Tx.
// Repository methods run against a querier, so the same code works both
// inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn    *sql.DB
	q       querier
	dialect Dialect
	inTx    bool
}

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

// New wraps an open, migrated connection pool.
func New(conn *sql.DB, dialect Dialect) *DB {
	if dialect.IsUniqueViolation == nil {
		dialect.IsUniqueViolation = func(error) bool { return false }
	}
	return &DB{conn: conn, q: conn, dialect: dialect}
}

// Dialect returns the backend name ("sqlite", "postgres"), used in logs.
func (db *DB) Dialect() string {
	return db.dialect.Name
}

// Pool exposes the connection pool for sql.DBStats metrics.
func (db *DB) Pool() *sql.DB {
	return db.conn
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// WithTx runs fn inside one transaction.
//
// SCOPED SESSION PER OPERATION:
// Begin → fn(txStore) → Commit, with Rollback on every other exit path:
// an error from fn, a failed commit, or a panic. Whatever fn wrote is either
// all visible to other requests or none of it is.
//
// The Store passed to fn runs every query on the *sql.Tx. Code inside fn
// must use that Store, not the outer one — with SQLite's single connection
// the outer pool would block until the transaction finishes.
func (db *DB) WithTx(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	if db.inTx {
		return fn(db)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	txDB := &DB{conn: db.conn, q: tx, dialect: db.dialect, inTx: true}
	if err := fn(txDB); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("sqlstore: rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: committing transaction: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number them.
// None of our queries contain a literal '?', so a plain scan is enough.
func (db *DB) rebind(query string) string {
	return Rebind(db.dialect, query)
}

// Rebind is exported for the driver packages' tests.
func Rebind(d Dialect, query string) string {
	if !d.NumberedPlaceholders {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// checkAffected turns "0 rows affected" into the given not-found error.
// Update and Delete use it instead of a SELECT-then-write round trip.
func checkAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
