package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/sakif/todo-service/internal/apperror"
	"github.com/sakif/todo-service/internal/model"
	"github.com/sakif/todo-service/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore is an in-memory repository.Store. It mirrors the SQL backends'
// contract (owner filtering, NotFound on zero rows, Conflict on duplicate
// usernames) without a database, so service tests run in microseconds.
//
// WithTx doesn't roll anything back; it only counts calls so tests can
// assert that every operation went through a transaction.
type fakeStore struct {
	mu      sync.Mutex
	users   map[int64]*model.User
	todos   map[int64]*model.Todo
	nextUID int64
	nextTID int64

	txCalls int

	// set to a non-nil error to simulate a database failure
	failErr error
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[int64]*model.User),
		todos: make(map[int64]*model.Todo),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	f.mu.Lock()
	f.txCalls++
	f.mu.Unlock()
	return fn(f)
}

func (f *fakeStore) Ping(context.Context) error { return f.failErr }

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	for _, u := range f.users {
		if u.Username == user.Username {
			return apperror.Conflict("user", user.Username)
		}
	}
	f.nextUID++
	user.ID = f.nextUID
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	for _, u := range f.users {
		if u.Username == username {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (f *fakeStore) UpdatePasswordHash(_ context.Context, id int64, oldHash, newHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.HashedPassword != oldHash {
		return apperror.NotFound("user", id)
	}
	u.HashedPassword = newHash
	return nil
}

func (f *fakeStore) UpdatePhoneNumber(_ context.Context, id int64, phoneNumber string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.PhoneNumber = phoneNumber
	return nil
}

func (f *fakeStore) CreateTodo(_ context.Context, todo *model.Todo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.nextTID++
	todo.ID = f.nextTID
	stored := *todo
	f.todos[todo.ID] = &stored
	return nil
}

func (f *fakeStore) ListTodos(_ context.Context, ownerID int64) ([]model.Todo, error) {
	return f.collect(func(t *model.Todo) bool { return t.OwnerID == ownerID }), nil
}

func (f *fakeStore) GetTodo(_ context.Context, ownerID, id int64) (*model.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.todos[id]
	if !ok || t.OwnerID != ownerID {
		return nil, apperror.NotFound("todo", id)
	}
	result := *t
	return &result, nil
}

func (f *fakeStore) UpdateTodo(_ context.Context, ownerID int64, todo *model.Todo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.todos[todo.ID]
	if !ok || t.OwnerID != ownerID {
		return apperror.NotFound("todo", todo.ID)
	}
	todo.OwnerID = ownerID
	stored := *todo
	f.todos[todo.ID] = &stored
	return nil
}

func (f *fakeStore) DeleteTodo(_ context.Context, ownerID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.todos[id]
	if !ok || t.OwnerID != ownerID {
		return apperror.NotFound("todo", id)
	}
	delete(f.todos, id)
	return nil
}

func (f *fakeStore) ListAllTodos(context.Context) ([]model.Todo, error) {
	return f.collect(func(*model.Todo) bool { return true }), nil
}

func (f *fakeStore) DeleteAnyTodo(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.todos[id]; !ok {
		return apperror.NotFound("todo", id)
	}
	delete(f.todos, id)
	return nil
}

// collect returns matching todos ordered by id, like the SQL ORDER BY id.
func (f *fakeStore) collect(keep func(*model.Todo) bool) []model.Todo {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]model.Todo, 0, len(f.todos))
	for _, t := range f.todos {
		if keep(t) {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
