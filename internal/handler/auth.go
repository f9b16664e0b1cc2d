package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/todo-service/internal/apperror"
	"github.com/sakif/todo-service/internal/service"
)

// AuthHandler serves registration and the token endpoint.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger, now: time.Now}
}

// RegisterRequest is the JSON body of POST /auth/.
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	PhoneNumber string `json:"phone_number"`
}

// TokenResponse is the body of a successful POST /auth/token. The field
// names follow RFC 6749 §5.1 so stock OAuth2 clients can read it.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HandleRegister creates a user account.
//
// HTTP: POST /auth/
// RESPONSE: 201 with the new user (never the password digest).
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid register request body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Password:    req.Password,
		Role:        req.Role,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// HandleToken exchanges a username and password for a bearer token.
//
// HTTP: POST /auth/token
// REQUEST: application/x-www-form-urlencoded, username=...&password=...
//
// This is the OAuth2 "resource owner password credentials" grant, which is
// why the body is a form and not JSON. grant_type and client_id, if sent,
// are ignored.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("invalid token request form", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "invalid form body"))
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		writeError(w, apperror.ValidationFailed("username", "username and password are required"))
		return
	}

	tok, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		writeError(w, err)
		return
	}

	// Tokens must not be cached by intermediaries (RFC 6749 §5.1).
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: tok.Token,
		TokenType:   "bearer",
		ExpiresIn:   tok.ExpiresIn(h.now()),
	})
}
