package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/todo-service/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. A plain string key could be
// read or shadowed by any package that happens to use the same string. Only
// this package can create a contextKey, so only this package can store or
// read the Identity.
type contextKey string

const identityKey contextKey = "identity"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the "Authorization: Bearer <token>" header, validates the token,
// and stores the resulting Identity in the request context. A missing header,
// a bad signature, an expired token, or malformed claims all produce the same
// 401 response; the precise reason is only logged.
//
// MIDDLEWARE PATTERN IN GO:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
func RequireAuth(tokens *TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated", "Could not validate user")
				return
			}

			id, err := tokens.Validate(raw)
			if err != nil {
				logger.Debug("token rejected",
					slog.String("path", r.URL.Path),
					slog.String("reason", err.Error()),
				)
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated", "Could not validate user")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole is the authorization gate. It must run after RequireAuth.
//
// RoleUser admits any authenticated caller; RoleAdmin admits only admins.
// A request that somehow reaches it without an Identity gets 401, a valid
// identity with the wrong role gets 403.
func RequireRole(required model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated", "Could not validate user")
				return
			}
			if !Allows(id.Role, required) {
				writeAuthError(w, http.StatusForbidden, "forbidden", "admin role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Allows reports whether a caller holding role may use a route that
// requires required.
func Allows(role, required model.Role) bool {
	switch required {
	case model.RoleAdmin:
		return role == model.RoleAdmin
	case model.RoleUser:
		return role == model.RoleUser || role == model.RoleAdmin
	default:
		return false
	}
}

// WithIdentity returns a copy of ctx carrying id.
// RequireAuth uses it; tests use it to fake an authenticated request.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the caller set by RequireAuth.
// Returns (Identity{}, false) on routes that aren't behind RequireAuth.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.Username != ""
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively, as RFC 6750 allows.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, status int, kind, detail string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "detail": detail})
}
