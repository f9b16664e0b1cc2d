package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/todo-service/internal/apperror"
	"github.com/sakif/todo-service/internal/model"
)

const todoColumns = `id, title, description, priority, complete, owner_id`

// CreateTodo inserts todo and fills in todo.ID. The caller sets OwnerID.
func (db *DB) CreateTodo(ctx context.Context, todo *model.Todo) error {
	err := db.q.QueryRowContext(ctx, db.rebind(
		`INSERT INTO todos (title, description, priority, complete, owner_id)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`),
		todo.Title,
		todo.Description,
		todo.Priority,
		todo.Complete,
		todo.OwnerID,
	).Scan(&todo.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: creating todo for owner %d: %w", todo.OwnerID, err)
	}
	return nil
}

// ListTodos returns every todo belonging to ownerID, oldest first.
func (db *DB) ListTodos(ctx context.Context, ownerID int64) ([]model.Todo, error) {
	rows, err := db.q.QueryContext(ctx, db.rebind(
		`SELECT `+todoColumns+` FROM todos WHERE owner_id = ? ORDER BY id`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing todos for owner %d: %w", ownerID, err)
	}
	return scanTodos(rows)
}

// GetTodo returns the todo with id only if ownerID owns it. Someone else's
// todo is indistinguishable from a missing one.
func (db *DB) GetTodo(ctx context.Context, ownerID, id int64) (*model.Todo, error) {
	var t model.Todo
	err := db.q.QueryRowContext(ctx, db.rebind(
		`SELECT `+todoColumns+` FROM todos WHERE id = ? AND owner_id = ?`), id, ownerID,
	).Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Complete, &t.OwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("todo", id)
		}
		return nil, fmt.Errorf("sqlstore: getting todo %d: %w", id, err)
	}
	return &t, nil
}

// UpdateTodo replaces every mutable field of the todo identified by
// (todo.ID, ownerID). todo.OwnerID is ignored; ownership never changes.
func (db *DB) UpdateTodo(ctx context.Context, ownerID int64, todo *model.Todo) error {
	result, err := db.q.ExecContext(ctx, db.rebind(
		`UPDATE todos
		 SET title = ?, description = ?, priority = ?, complete = ?
		 WHERE id = ? AND owner_id = ?`),
		todo.Title,
		todo.Description,
		todo.Priority,
		todo.Complete,
		todo.ID,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating todo %d: %w", todo.ID, err)
	}
	if err := checkAffected(result, apperror.NotFound("todo", todo.ID)); err != nil {
		return err
	}
	todo.OwnerID = ownerID
	return nil
}

func (db *DB) DeleteTodo(ctx context.Context, ownerID, id int64) error {
	result, err := db.q.ExecContext(ctx, db.rebind(
		`DELETE FROM todos WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting todo %d: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("todo", id))
}

// ListAllTodos ignores ownership. Only the admin service path calls it.
func (db *DB) ListAllTodos(ctx context.Context) ([]model.Todo, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT `+todoColumns+` FROM todos ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing all todos: %w", err)
	}
	return scanTodos(rows)
}

// DeleteAnyTodo deletes by id alone. Only the admin service path calls it.
func (db *DB) DeleteAnyTodo(ctx context.Context, id int64) error {
	result, err := db.q.ExecContext(ctx, db.rebind(`DELETE FROM todos WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting todo %d: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("todo", id))
}

// scanTodos drains rows into a slice and always closes them.
//
// An empty result is an empty slice, not nil, so it encodes as [] in JSON.
func scanTodos(rows *sql.Rows) ([]model.Todo, error) {
	defer rows.Close()

	todos := make([]model.Todo, 0)
	for rows.Next() {
		var t model.Todo
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Complete, &t.OwnerID); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning todo row: %w", err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating todos: %w", err)
	}
	return todos, nil
}
