package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/todo-service/internal/apperror"
	"github.com/sakif/todo-service/internal/service"
)

// UserHandler serves /user, the caller's own account.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// ChangePasswordRequest is the body of PUT /user/password.
type ChangePasswordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"new_password"`
}

// HandleMe returns the caller's profile.
//
// HTTP: GET /user/
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.GetSelf(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Valid token, but the account behind it is gone.
			h.logger.Error("HandleMe: user not found", slog.Int64("userID", id.UserID))
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleChangePassword re-checks the current password, then replaces it.
//
// HTTP: PUT /user/password
// REQUEST BODY: {"password": "current", "new_password": "at least 6 chars"}
func (h *UserHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid change password body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if err := h.users.ChangePassword(r.Context(), id, req.Password, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChangePhoneNumber sets the caller's phone number from the URL.
//
// HTTP: PUT /user/phonenumber/{phone}
func (h *UserHandler) HandleChangePhoneNumber(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	phone, err := phoneParam(r)
	if err != nil {
		h.logger.Warn("invalid phone number path", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("phone", "invalid phone number"))
		return
	}

	if err := h.users.ChangePhoneNumber(r.Context(), id, phone); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// phoneParam returns the {phone} segment decoded exactly once.
//
// chi matches against r.URL.RawPath when it is set and r.URL.Path (already
// decoded) otherwise, so the parameter only needs unescaping in the first
// case. Unescaping unconditionally would turn a stored "%" into an error.
func phoneParam(r *http.Request) (string, error) {
	phone := chi.URLParam(r, "phone")
	if r.URL.RawPath == "" {
		return phone, nil
	}
	return url.PathUnescape(phone)
}
