// Package postgres opens the PostgreSQL backend for the todo service.
//
// The SQLite backend is the default; Postgres is selected with
// DB_DRIVER=postgres and DATABASE_URL. Both share the queries in
// repository/sqlstore. Postgres differs only in $n placeholders, its schema
// types, and how a UNIQUE violation surfaces (SQLSTATE 23505).
package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/sakif/todo-service/internal/repository/sqlstore"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Dialect is the Postgres flavour of sqlstore.Dialect.
var Dialect = sqlstore.Dialect{
	Name:                 "postgres",
	NumberedPlaceholders: true,
	IsUniqueViolation:    isUniqueViolation,
}

// New connects to the database at dsn (a postgres:// URL or key=value
// string), verifies the connection, and runs migrations.
func New(dsn string) (*sqlstore.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db, err := NewFromDB(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// NewFromDB migrates an already-open pool and wraps it. Tests pass a
// go-sqlmock connection here.
func NewFromDB(conn *sql.DB) (*sqlstore.DB, error) {
	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}
	return sqlstore.New(conn, Dialect), nil
}

func migrate(conn *sql.DB) error {
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS users (
		id              BIGSERIAL PRIMARY KEY,
		username        TEXT NOT NULL UNIQUE,
		email           TEXT NOT NULL DEFAULT '',
		first_name      TEXT NOT NULL DEFAULT '',
		last_name       TEXT NOT NULL DEFAULT '',
		hashed_password TEXT NOT NULL,
		is_active       BOOLEAN NOT NULL DEFAULT TRUE,
		role            TEXT NOT NULL DEFAULT 'user',
		phone_number    TEXT NOT NULL DEFAULT ''
	)`); err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS todos (
		id          BIGSERIAL PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority    INTEGER NOT NULL,
		complete    BOOLEAN NOT NULL DEFAULT FALSE,
		owner_id    BIGINT NOT NULL REFERENCES users(id)
	)`); err != nil {
		return fmt.Errorf("creating todos table: %w", err)
	}

	if _, err := conn.Exec(`CREATE INDEX IF NOT EXISTS idx_todos_owner_id ON todos(owner_id)`); err != nil {
		return fmt.Errorf("creating todos owner index: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
