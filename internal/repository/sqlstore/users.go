package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/todo-service/internal/apperror"
	"github.com/sakif/todo-service/internal/model"
)

const userColumns = `id, username, email, first_name, last_name, hashed_password, is_active, role, phone_number`

// CreateUser inserts a new user and fills in user.ID.
//
// RETURNING id works on both Postgres and SQLite (3.35+), so there's no need
// for LastInsertId, which lib/pq doesn't support.
//
// The UNIQUE constraint on username is the last line of defence against
// duplicate registrations: even if two requests race past the service's
// existence check, only one INSERT can win.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	err := db.q.QueryRowContext(ctx, db.rebind(
		`INSERT INTO users (username, email, first_name, last_name, hashed_password, is_active, role, phone_number)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		user.Username,
		user.Email,
		user.FirstName,
		user.LastName,
		user.HashedPassword,
		user.IsActive,
		string(user.Role),
		user.PhoneNumber,
	).Scan(&user.ID)
	if err != nil {
		if db.dialect.IsUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlstore: inserting user %q: %w", user.Username, err)
	}
	return nil
}

// GetUserByUsername looks a user up by login name.
// Returns apperror.ErrNotFound if no user has that username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := db.q.QueryRowContext(ctx, db.rebind(
		`SELECT `+userColumns+` FROM users WHERE username = ?`), username)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlstore: getting user %q: %w", username, err)
	}
	return u, nil
}

// GetUserByID retrieves a user by numeric id.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := db.q.QueryRowContext(ctx, db.rebind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlstore: getting user %d: %w", id, err)
	}
	return u, nil
}

// UpdatePasswordHash is a compare-and-swap on the digest, so the caller can
// run bcrypt without holding a transaction open.
func (db *DB) UpdatePasswordHash(ctx context.Context, id int64, oldHash, newHash string) error {
	result, err := db.q.ExecContext(ctx, db.rebind(
		`UPDATE users SET hashed_password = ? WHERE id = ? AND hashed_password = ?`), newHash, id, oldHash)
	if err != nil {
		return fmt.Errorf("sqlstore: updating password for user %d: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("user", id))
}

func (db *DB) UpdatePhoneNumber(ctx context.Context, id int64, phoneNumber string) error {
	result, err := db.q.ExecContext(ctx, db.rebind(
		`UPDATE users SET phone_number = ? WHERE id = ?`), phoneNumber, id)
	if err != nil {
		return fmt.Errorf("sqlstore: updating phone number for user %d: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("user", id))
}

// scanUser reads one users row. Column order must match userColumns.
func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.HashedPassword,
		&u.IsActive,
		&role,
		&u.PhoneNumber,
	); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}
