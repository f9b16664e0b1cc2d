// Package repository declares the storage interfaces the service layer needs.
//
// The service never imports a concrete backend. server.New picks sqlite or
// postgres at startup, and tests hand the services an in-memory fake.
package repository

import (
	"context"

	"github.com/sakif/todo-service/internal/model"
)

// UserRepository is the credential store.
type UserRepository interface {
	// CreateUser inserts user and sets user.ID. A taken username returns
	// an apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	// UpdatePasswordHash swaps oldHash for newHash. It returns ErrNotFound
	// when the user is gone or the stored digest is no longer oldHash.
	UpdatePasswordHash(ctx context.Context, id int64, oldHash, newHash string) error
	UpdatePhoneNumber(ctx context.Context, id int64, phoneNumber string) error
}

// TodoRepository is the resource store.
//
// OWNERSHIP BY CONSTRUCTION:
// Every method that a regular user can reach takes ownerID as a mandatory
// argument and filters on it in SQL. There is no "get todo by id" without an
// owner; the only owner-less methods are the explicitly named admin ones.
type TodoRepository interface {
	CreateTodo(ctx context.Context, todo *model.Todo) error
	ListTodos(ctx context.Context, ownerID int64) ([]model.Todo, error)
	GetTodo(ctx context.Context, ownerID, id int64) (*model.Todo, error)
	UpdateTodo(ctx context.Context, ownerID int64, todo *model.Todo) error
	DeleteTodo(ctx context.Context, ownerID, id int64) error

	ListAllTodos(ctx context.Context) ([]model.Todo, error)
	DeleteAnyTodo(ctx context.Context, id int64) error
}

// Store bundles both repositories with transaction scoping.
type Store interface {
	UserRepository
	TodoRepository

	// WithTx runs fn inside a single transaction. fn receives a Store bound
	// to that transaction; everything it does commits together when fn
	// returns nil, and rolls back when fn returns an error or panics.
	// Calling WithTx on a Store that is already inside a transaction reuses it.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	Ping(ctx context.Context) error
}
