// Package sqlite opens the SQLite backend for the todo service.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single file.
// No separate database server to install or manage, and ":memory:" gives every
// test a throwaway database.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code.
//
// The queries themselves live in repository/sqlstore and are shared with the
// Postgres backend. This package only owns the connection setup, the schema,
// and the SQLite way of reporting a UNIQUE violation.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// The sqlite package's init() registers a database/sql driver named
	// "sqlite". We also need its Error type, so this isn't a blank import.
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/todo-service/internal/repository/sqlstore"
)

// Dialect is the SQLite flavour of sqlstore.Dialect.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite",
	IsUniqueViolation: isUniqueViolation,
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/todos.db"  → file-based database (persistent)
//   - ":memory:"       → in-memory database (tests, lost on close)
//
// ONE CONNECTION:
// Every pooled connection to ":memory:" would be a separate, empty database,
// and SQLite only allows one writer at a time anyway. Capping the pool at one
// connection keeps both cases correct; requests simply queue for it.
func New(dbPath string) (*sqlstore.DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Ping verifies the connection actually works.
	// Without this, a bad path or permissions issue would only surface
	// on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL (Write-Ahead Logging) mode lets readers proceed while a write is
	// in progress. It's a no-op for ":memory:".
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite (for backwards compatibility).
	// todos.owner_id → users.id depends on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return sqlstore.New(conn, Dialect), nil
}

// migrate creates the schema.
//
// For now, CREATE TABLE IF NOT EXISTS is safe — it won't error if the table exists.
func migrate(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			username        TEXT NOT NULL UNIQUE,
			email           TEXT NOT NULL DEFAULT '',
			first_name      TEXT NOT NULL DEFAULT '',
			last_name       TEXT NOT NULL DEFAULT '',
			hashed_password TEXT NOT NULL,
			is_active       BOOLEAN NOT NULL DEFAULT 1,
			role            TEXT NOT NULL DEFAULT 'user',
			phone_number    TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = conn.Exec(`
		CREATE TABLE IF NOT EXISTS todos (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			priority    INTEGER NOT NULL,
			complete    BOOLEAN NOT NULL DEFAULT 0,
			owner_id    INTEGER NOT NULL REFERENCES users(id)
		);
		CREATE INDEX IF NOT EXISTS idx_todos_owner_id ON todos(owner_id);
	`)
	if err != nil {
		return fmt.Errorf("creating todos table: %w", err)
	}

	// Databases created before the phone number feature lack the column.
	if err := addColumnIfNotExists(conn, "users", "phone_number",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding phone_number to users: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent — safe to run multiple times.
func addColumnIfNotExists(conn *sql.DB, table, column, definition string) error {
	var count int
	err := conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// isUniqueViolation detects SQLITE_CONSTRAINT_UNIQUE. The driver turns on
// extended result codes, so a bare SQLITE_CONSTRAINT is usually some other
// constraint (NOT NULL, FOREIGN KEY); the message decides in that case.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}
