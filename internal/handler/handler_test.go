package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/todo-service/internal/auth"
	"github.com/sakif/todo-service/internal/books"
	"github.com/sakif/todo-service/internal/handler"
	"github.com/sakif/todo-service/internal/model"
	"github.com/sakif/todo-service/internal/repository/sqlite"
	"github.com/sakif/todo-service/internal/service"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fixture wires real services over an in-memory SQLite database. The token
// middleware is replaced by asUser, which puts an Identity on the context
// directly, so these tests exercise the handlers and nothing in front of them.
type fixture struct {
	auth  *service.AuthService
	todos *handler.TodoHandler
	users *handler.UserHandler
	login *handler.AuthHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := quietLogger()
	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", 20*time.Minute)
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest()

	authService := service.NewAuthService(db, tokens, passwords, logger)
	return &fixture{
		auth:  authService,
		todos: handler.NewTodoHandler(service.NewTodoService(db, logger), logger),
		users: handler.NewUserHandler(service.NewUserService(db, passwords, logger), logger),
		login: handler.NewAuthHandler(authService, logger),
	}
}

func (f *fixture) register(t *testing.T, username, role string) auth.Identity {
	t.Helper()
	u, err := f.auth.Register(context.Background(), service.RegisterInput{
		Username: username,
		Password: "pw123456",
		Role:     role,
	})
	require.NoError(t, err)
	return auth.Identity{Username: u.Username, UserID: u.ID, Role: u.Role}
}

// router mounts the handlers the way the server does, minus RequireAuth.
func (f *fixture) router(id auth.Identity) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), id)))
		})
	})
	r.Post("/auth/", f.login.HandleRegister)
	r.Post("/auth/token", f.login.HandleToken)
	r.Get("/todo/", f.todos.HandleList)
	r.Get("/todo/{id}", f.todos.HandleGet)
	r.Post("/todo", f.todos.HandleCreate)
	r.Put("/todo/{id}", f.todos.HandleUpdate)
	r.Delete("/todo/{id}", f.todos.HandleDelete)
	r.Get("/admin/todo", f.todos.HandleAdminList)
	r.Delete("/admin/todo/{id}", f.todos.HandleAdminDelete)
	r.Get("/user/", f.users.HandleMe)
	r.Put("/user/password", f.users.HandleChangePassword)
	r.Put("/user/phonenumber/{phone}", f.users.HandleChangePhoneNumber)
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var res handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	return res
}

func TestAuthHandler_HandleRegister(t *testing.T) {
	f := newFixture(t)
	h := f.router(auth.Identity{})

	t.Run("creates user without password digest", func(t *testing.T) {
		rr := serve(h, http.MethodPost, "/auth/",
			`{"username":"alice","email":"a@x.io","first_name":"A","last_name":"L","password":"pw123456","role":"user","phone_number":"555"}`)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.NotContains(t, rr.Body.String(), "$2a$")
		assert.NotContains(t, rr.Body.String(), "hashed_password")

		var u model.User
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
		assert.Equal(t, "alice", u.Username)
		assert.Equal(t, model.RoleUser, u.Role)
		assert.True(t, u.IsActive)
		assert.NotZero(t, u.ID)
	})

	t.Run("duplicate username", func(t *testing.T) {
		rr := serve(h, http.MethodPost, "/auth/", `{"username":"alice","password":"other-pass"}`)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "conflict", decodeError(t, rr).Error)
	})

	t.Run("unknown role", func(t *testing.T) {
		rr := serve(h, http.MethodPost, "/auth/", `{"username":"carol","password":"pw123456","role":"superuser"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "validation_error", decodeError(t, rr).Error)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		rr := serve(h, http.MethodPost, "/auth/", `{"username":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		rr := serve(h, http.MethodPost, "/auth/", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "request body is required", decodeError(t, rr).Detail)
	})
}

func TestAuthHandler_HandleToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "user")
	h := f.router(auth.Identity{})

	postForm := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	t.Run("valid credentials", func(t *testing.T) {
		rr := postForm(url.Values{"username": {"alice"}, "password": {"pw123456"}, "grant_type": {"password"}})

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

		var res handler.TokenResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "bearer", res.TokenType)
		assert.NotEmpty(t, res.AccessToken)
		assert.InDelta(t, (20 * time.Minute).Seconds(), res.ExpiresIn, 5)
	})

	t.Run("wrong password and unknown user look the same", func(t *testing.T) {
		wrong := postForm(url.Values{"username": {"alice"}, "password": {"nope-nope"}})
		unknown := postForm(url.Values{"username": {"mallory"}, "password": {"pw123456"}})

		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	})

	t.Run("missing fields", func(t *testing.T) {
		rr := postForm(url.Values{"username": {"alice"}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestTodoHandler(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "user")
	bob := f.register(t, "bob", "user")
	root := f.register(t, "root", "admin")

	asAlice := f.router(alice)
	asBob := f.router(bob)
	asRoot := f.router(root)

	var created model.Todo
	t.Run("create", func(t *testing.T) {
		rr := serve(asAlice, http.MethodPost, "/todo", `{"title":"buy milk","description":"2% milk","priority":3}`)
		require.Equal(t, http.StatusCreated, rr.Code)
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
		assert.NotZero(t, created.ID)
		assert.Equal(t, alice.UserID, created.OwnerID)
		assert.False(t, created.Complete)
	})

	t.Run("create rejects invalid priority", func(t *testing.T) {
		rr := serve(asAlice, http.MethodPost, "/todo", `{"title":"buy milk","description":"2% milk","priority":9}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("owner can get", func(t *testing.T) {
		rr := serve(asAlice, http.MethodGet, "/todo/"+itoa(created.ID), "")
		require.Equal(t, http.StatusOK, rr.Code)

		var got model.Todo
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, created, got)
	})

	t.Run("other user gets 404", func(t *testing.T) {
		rr := serve(asBob, http.MethodGet, "/todo/"+itoa(created.ID), "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "not_found", decodeError(t, rr).Error)
	})

	t.Run("bad id", func(t *testing.T) {
		rr := serve(asAlice, http.MethodGet, "/todo/abc", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = serve(asAlice, http.MethodGet, "/todo/0", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list is scoped to owner", func(t *testing.T) {
		rr := serve(asBob, http.MethodGet, "/todo/", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())

		rr = serve(asAlice, http.MethodGet, "/todo/", "")
		var todos []model.Todo
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&todos))
		assert.Len(t, todos, 1)
	})

	t.Run("update replaces every field", func(t *testing.T) {
		rr := serve(asAlice, http.MethodPut, "/todo/"+itoa(created.ID),
			`{"title":"buy oat milk","description":"the barista one","priority":5,"complete":true}`)
		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Body.String())

		rr = serve(asAlice, http.MethodGet, "/todo/"+itoa(created.ID), "")
		var got model.Todo
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, "buy oat milk", got.Title)
		assert.Equal(t, 5, got.Priority)
		assert.True(t, got.Complete)
	})

	t.Run("other user cannot update or delete", func(t *testing.T) {
		rr := serve(asBob, http.MethodPut, "/todo/"+itoa(created.ID),
			`{"title":"hijacked","description":"not mine","priority":1}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = serve(asBob, http.MethodDelete, "/todo/"+itoa(created.ID), "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("admin list sees everything", func(t *testing.T) {
		serve(asBob, http.MethodPost, "/todo", `{"title":"walk dog","description":"around the block","priority":2}`)

		rr := serve(asRoot, http.MethodGet, "/admin/todo", "")
		require.Equal(t, http.StatusOK, rr.Code)
		var todos []model.Todo
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&todos))
		assert.Len(t, todos, 2)
	})

	t.Run("non-admin on admin handler is forbidden", func(t *testing.T) {
		rr := serve(asAlice, http.MethodGet, "/admin/todo", "")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("admin delete", func(t *testing.T) {
		rr := serve(asRoot, http.MethodDelete, "/admin/todo/"+itoa(created.ID), "")
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = serve(asAlice, http.MethodGet, "/todo/"+itoa(created.ID), "")
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = serve(asRoot, http.MethodDelete, "/admin/todo/"+itoa(created.ID), "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("owner delete", func(t *testing.T) {
		rr := serve(asBob, http.MethodGet, "/todo/", "")
		var todos []model.Todo
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&todos))
		require.Len(t, todos, 1)

		rr = serve(asBob, http.MethodDelete, "/todo/"+itoa(todos[0].ID), "")
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func TestUserHandler(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "user")
	h := f.router(alice)

	t.Run("me", func(t *testing.T) {
		rr := serve(h, http.MethodGet, "/user/", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var u model.User
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
		assert.Equal(t, alice.UserID, u.ID)
		assert.Equal(t, "alice", u.Username)
	})

	t.Run("change password with wrong current password", func(t *testing.T) {
		rr := serve(h, http.MethodPut, "/user/password", `{"password":"wrong-one","new_password":"newpass1"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Error on Password Change", decodeError(t, rr).Detail)
	})

	t.Run("change password too short", func(t *testing.T) {
		rr := serve(h, http.MethodPut, "/user/password", `{"password":"pw123456","new_password":"abc"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("change password", func(t *testing.T) {
		rr := serve(h, http.MethodPut, "/user/password", `{"password":"pw123456","new_password":"newpass1"}`)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		_, err := f.auth.Login(context.Background(), "alice", "newpass1")
		assert.NoError(t, err)
		_, err = f.auth.Login(context.Background(), "alice", "pw123456")
		assert.Error(t, err)
	})

	t.Run("change phone number decodes path once", func(t *testing.T) {
		tests := []struct {
			target string
			want   string
		}{
			{"/user/phonenumber/+1%20555%200100", "+1 555 0100"},
			{"/user/phonenumber/555%25x", "555%x"},
			{"/user/phonenumber/%2B44%2F20", "+44/20"},
			{"/user/phonenumber/100%2525", "100%25"},
		}

		for _, tt := range tests {
			rr := serve(h, http.MethodPut, tt.target, "")
			require.Equal(t, http.StatusNoContent, rr.Code, tt.target)

			rr = serve(h, http.MethodGet, "/user/", "")
			var u model.User
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
			assert.Equal(t, tt.want, u.PhoneNumber, tt.target)
		}
	})
}

func TestHandlers_WithoutIdentity(t *testing.T) {
	f := newFixture(t)

	// Mounted without the identity middleware: a mis-wired route must
	// answer 401, not panic.
	r := chi.NewRouter()
	r.Get("/todo/", f.todos.HandleList)
	r.Get("/user/", f.users.HandleMe)

	for _, target := range []string{"/todo/", "/user/"} {
		rr := serve(r, http.MethodGet, target, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, target)
		assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"), target)
	}
}

func TestBooksHandler(t *testing.T) {
	h := handler.NewBooksHandler(books.NewSeededStore(), quietLogger())

	r := chi.NewRouter()
	r.Get("/books", h.HandleList)
	r.Get("/books/", h.HandleByRating)
	r.Get("/books/publish/", h.HandleByPublishedDate)
	r.Get("/books/{id}", h.HandleGet)
	r.Post("/create_book", h.HandleCreate)
	r.Put("/books/update_book", h.HandleUpdate)
	r.Delete("/books/{id}", h.HandleDelete)

	decodeBooks := func(t *testing.T, rr *httptest.ResponseRecorder) []model.Book {
		t.Helper()
		var res []model.Book
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		return res
	}

	t.Run("list", func(t *testing.T) {
		rr := serve(r, http.MethodGet, "/books", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decodeBooks(t, rr), 6)
	})

	t.Run("get", func(t *testing.T) {
		rr := serve(r, http.MethodGet, "/books/4", "")
		require.Equal(t, http.StatusOK, rr.Code)
		var b model.Book
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&b))
		assert.Equal(t, "HP1", b.Title)

		rr = serve(r, http.MethodGet, "/books/99", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("by rating", func(t *testing.T) {
		rr := serve(r, http.MethodGet, "/books/?book_rating=5", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decodeBooks(t, rr), 3)

		rr = serve(r, http.MethodGet, "/books/?book_rating=6", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = serve(r, http.MethodGet, "/books/", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("by published date", func(t *testing.T) {
		rr := serve(r, http.MethodGet, "/books/publish/?publish_date=2016", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decodeBooks(t, rr), 2)

		rr = serve(r, http.MethodGet, "/books/publish/?publish_date=1900", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("create update delete", func(t *testing.T) {
		rr := serve(r, http.MethodPost, "/create_book",
			`{"id":42,"title":"Go in Action","author":"someone","description":"concurrency","rating":4,"published_date":2015}`)
		require.Equal(t, http.StatusCreated, rr.Code)
		var b model.Book
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&b))
		assert.Equal(t, 7, b.ID)

		rr = serve(r, http.MethodPut, "/books/update_book",
			`{"id":7,"title":"Go in Action 2e","author":"someone","description":"concurrency","rating":5,"published_date":2020}`)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = serve(r, http.MethodGet, "/books/7", "")
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&b))
		assert.Equal(t, "Go in Action 2e", b.Title)

		rr = serve(r, http.MethodDelete, "/books/7", "")
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = serve(r, http.MethodDelete, "/books/7", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("create rejects invalid book", func(t *testing.T) {
		rr := serve(r, http.MethodPost, "/create_book", `{"title":"Go","author":"x","description":"y","rating":0,"published_date":2015}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestHandlers_LogRejectedBodies(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	todos := handler.NewTodoHandler(service.NewTodoService(db, logger), logger)
	users := handler.NewUserHandler(service.NewUserService(db, auth.NewPasswordServiceForTest(), logger), logger)

	id := auth.Identity{Username: "alice", UserID: 1, Role: model.RoleUser}
	withID := func(h http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}

	rr := serve(withID(todos.HandleCreate), http.MethodPost, "/todo", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, logs.String(), "invalid todo request body")
	assert.Contains(t, logs.String(), "userID=1")

	rr = serve(withID(users.HandleChangePassword), http.MethodPut, "/user/password", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, logs.String(), "invalid change password body")
}
