package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/todo-service/internal/apperror"
	"github.com/sakif/todo-service/internal/auth"
	"github.com/sakif/todo-service/internal/model"
	"github.com/sakif/todo-service/internal/repository"
)

// Validation constants for todos.
const (
	MinTitleLength       = 3
	MinDescriptionLength = 3
	MaxDescriptionLength = 100
	MinPriority          = 1
	MaxPriority          = 5
)

// TodoService is owner-scoped CRUD over todos, plus the admin overrides.
//
// Every method takes the caller's auth.Identity and passes caller.UserID
// to the repository as the owner filter. There is no code path from a
// regular method to another user's row.
type TodoService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewTodoService(store repository.Store, logger *slog.Logger) *TodoService {
	return &TodoService{
		store:  store,
		logger: logger,
	}
}

// TodoInput is the writable part of a todo, used by both create and update.
type TodoInput struct {
	Title       string
	Description string
	Priority    int
	Complete    bool
}

// validate trims in place and checks every field. The first failure wins.
func (in *TodoInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if err := checkLength("title", in.Title, MinTitleLength, 0); err != nil {
		return err
	}
	if err := checkLength("description", in.Description, MinDescriptionLength, MaxDescriptionLength); err != nil {
		return err
	}
	if in.Priority < MinPriority || in.Priority > MaxPriority {
		return apperror.ValidationFailed("priority", "priority must be between 1 and 5")
	}
	return nil
}

// List returns the caller's todos.
func (s *TodoService) List(ctx context.Context, caller auth.Identity) ([]model.Todo, error) {
	var todos []model.Todo
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		todos, err = tx.ListTodos(ctx, caller.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return todos, nil
}

// Get returns one of the caller's todos. Another owner's todo is reported
// as apperror.ErrNotFound, never as forbidden, so ids can't be probed.
func (s *TodoService) Get(ctx context.Context, caller auth.Identity, id int64) (*model.Todo, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	var todo *model.Todo
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		todo, err = tx.GetTodo(ctx, caller.UserID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return todo, nil
}

// Create validates in and stores a new todo owned by the caller.
func (s *TodoService) Create(ctx context.Context, caller auth.Identity, in TodoInput) (*model.Todo, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	todo := &model.Todo{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Complete:    in.Complete,
		OwnerID:     caller.UserID,
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		return tx.CreateTodo(ctx, todo)
	})
	if err != nil {
		s.logger.Error("failed to create todo",
			slog.Int64("ownerID", caller.UserID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("todo created",
		slog.Int64("id", todo.ID),
		slog.Int64("ownerID", todo.OwnerID),
	)
	return todo, nil
}

// Update replaces every mutable field of one of the caller's todos.
func (s *TodoService) Update(ctx context.Context, caller auth.Identity, id int64, in TodoInput) (*model.Todo, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	todo := &model.Todo{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Complete:    in.Complete,
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		return tx.UpdateTodo(ctx, caller.UserID, todo)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("todo updated",
		slog.Int64("id", todo.ID),
		slog.Int64("ownerID", caller.UserID),
	)
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, caller auth.Identity, id int64) error {
	if err := checkID(id); err != nil {
		return err
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		return tx.DeleteTodo(ctx, caller.UserID, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("todo deleted",
		slog.Int64("id", id),
		slog.Int64("ownerID", caller.UserID),
	)
	return nil
}

// ListAll returns every todo in the system. Admin only.
//
// The router already puts admin routes behind auth.RequireRole, but the
// service checks again: it's the last stop before an unfiltered query.
func (s *TodoService) ListAll(ctx context.Context, caller auth.Identity) ([]model.Todo, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	var todos []model.Todo
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		todos, err = tx.ListAllTodos(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return todos, nil
}

// DeleteAny deletes a todo regardless of owner. Admin only.
func (s *TodoService) DeleteAny(ctx context.Context, caller auth.Identity, id int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		return tx.DeleteAnyTodo(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("admin deleted todo",
		slog.Int64("id", id),
		slog.Int64("adminID", caller.UserID),
	)
	return nil
}

func requireAdmin(caller auth.Identity) error {
	if !caller.Role.IsAdmin() {
		return apperror.Forbidden("admin role required")
	}
	return nil
}
