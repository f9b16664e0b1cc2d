package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/todo-service/internal/apperror"
	"github.com/sakif/todo-service/internal/service"
)

// TodoHandler serves the owner-scoped /todo routes and the /admin/todo
// overrides. Every route sits behind auth.RequireAuth; the admin ones also
// behind auth.RequireRole(model.RoleAdmin).
type TodoHandler struct {
	todos  *service.TodoService
	logger *slog.Logger
}

func NewTodoHandler(todos *service.TodoService, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{todos: todos, logger: logger}
}

// TodoRequest is the JSON body for create and update. Every field is
// replaced on update, so a missing "complete" means false.
type TodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Complete    bool   `json:"complete"`
}

func (req TodoRequest) input() service.TodoInput {
	return service.TodoInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Complete:    req.Complete,
	}
}

// HandleList returns the caller's todos.
//
// HTTP: GET /todo/
func (h *TodoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	todos, err := h.todos.List(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

// HandleGet returns one of the caller's todos.
//
// HTTP: GET /todo/{id}
func (h *TodoHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	todoID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	todo, err := h.todos.Get(r.Context(), id, todoID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// HandleCreate stores a new todo owned by the caller.
//
// HTTP: POST /todo
// RESPONSE: 201 with the created todo, including its id.
func (h *TodoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req TodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid todo request body",
			slog.Int64("userID", id.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	todo, err := h.todos.Create(r.Context(), id, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, todo)
}

// HandleUpdate replaces one of the caller's todos.
//
// HTTP: PUT /todo/{id}
// RESPONSE: 204 No Content
func (h *TodoHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	todoID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req TodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid todo request body",
			slog.Int64("userID", id.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	if _, err := h.todos.Update(r.Context(), id, todoID, req.input()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete removes one of the caller's todos.
//
// HTTP: DELETE /todo/{id}
func (h *TodoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	todoID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.todos.Delete(r.Context(), id, todoID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAdminList returns every todo from every owner.
//
// HTTP: GET /admin/todo
func (h *TodoHandler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	todos, err := h.todos.ListAll(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

// HandleAdminDelete deletes any todo by id.
//
// HTTP: DELETE /admin/todo/{id}
func (h *TodoHandler) HandleAdminDelete(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	todoID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.todos.DeleteAny(r.Context(), id, todoID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			h.logger.Info("admin delete: todo not found",
				slog.Int64("adminID", id.UserID),
				slog.Int64("todoID", todoID),
			)
		}
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
