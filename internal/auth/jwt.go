// Package auth issues and validates the bearer tokens that identify callers,
// hashes passwords, and provides the HTTP middleware that guards routes.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Client POSTs username + password to /auth/token
//  2. AuthService looks up the user and checks the password with bcrypt
//  3. TokenService signs a JWT carrying {sub, id, role, exp}
//  4. Client sends "Authorization: Bearer <jwt>" on every later call
//  5. RequireAuth validates the JWT and puts an Identity in the request context
//
// WHY JWT?
// JWT (JSON Web Token) is stateless — the server doesn't store sessions.
// Everything needed (username, user id, role, expiry) is inside the signed
// token, and the HMAC signature means nobody can change a claim without the
// secret key. The flip side: a token can't be revoked before it expires, so
// lifetimes are kept short (20 minutes by default).
//
// JWT STRUCTURE (three base64url parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:    {"alg":"HS256","typ":"JWT"}
//	- Payload:   {"id":7,"role":"user","iss":"todo-service","sub":"alice","exp":1700000000,...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/sakif/todo-service/internal/model"
)

// DefaultTokenTTL is how long an access token stays valid.
const DefaultTokenTTL = 20 * time.Minute

// issuer is stamped into every token and checked on validation so tokens
// minted by another service sharing the secret are rejected.
const issuer = "todo-service"

// Validation errors. Callers (the middleware) treat all of them as
// "unauthenticated"; they're distinct so tests and logs can tell them apart.
var (
	ErrTokenExpired     = errors.New("auth: token expired")
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrMalformedClaims  = errors.New("auth: token is missing required claims")
	ErrMalformedToken   = errors.New("auth: malformed token")
)

// Identity is who a validated token says the caller is.
//
// It's a fixed-shape struct rather than a map so that every handler and
// service reads the same three fields, checked by the compiler.
type Identity struct {
	Username string
	UserID   int64
	Role     model.Role
}

// claims is the JWT payload.
//
// UserID is a pointer so that a token with no "id" claim decodes to nil
// instead of 0 — otherwise a missing id would look like user 0.
type claims struct {
	UserID *int64 `json:"id,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenService handles JWT creation and validation.
//
// The secret is read-only after construction, so one TokenService is safely
// shared by every request goroutine.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time // swapped in tests to move the clock
}

// NewTokenService creates a TokenService with the given HMAC secret and
// token lifetime. A non-positive ttl selects DefaultTokenTTL.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for id using the configured lifetime.
// It returns the signed token and its expiry instant.
func (s *TokenService) Issue(id Identity) (string, time.Time, error) {
	return s.IssueWithTTL(id, s.ttl)
}

// IssueWithTTL signs a token with a custom lifetime. A negative ttl produces
// an already-expired token, which is handy in tests.
//
// Signing algorithm: HS256 (HMAC-SHA256), symmetric — the same secret signs
// and verifies, which is all a single service needs.
func (s *TokenService) IssueWithTTL(id Identity, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(ttl)
	userID := id.UserID

	c := claims{
		UserID: &userID,
		Role:   id.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        xid.New().String(), // jti: unique per token, handy when grepping logs
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}

	// NumericDate has second precision; report the instant the token will
	// actually stop validating.
	return signed, c.ExpiresAt.Time, nil
}

// Validate parses and verifies a JWT string and returns the Identity it carries.
//
// VALIDATION CHECKS:
//   - Algorithm is HS256 (blocks "alg":"none" and algorithm-confusion attacks)
//   - Signature verifies against our secret          → ErrInvalidSignature
//   - exp is present and still in the future         → ErrTokenExpired
//   - iss is ours, sub and id are present, role is known → ErrMalformedClaims
//
// It does NOT look the user up in the database: a token is trusted until it expires.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Identity{}, translateParseError(err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, ErrMalformedClaims
	}
	if c.Subject == "" || c.UserID == nil {
		return Identity{}, ErrMalformedClaims
	}

	role, err := model.ParseRole(c.Role)
	if err != nil || c.Role == "" {
		return Identity{}, ErrMalformedClaims
	}

	return Identity{
		Username: c.Subject,
		UserID:   *c.UserID,
		Role:     role,
	}, nil
}

// translateParseError maps the jwt library's error chain onto our four
// sentinels. Order matters: a token can be both tampered and expired, and
// the library reports the signature problem first.
func translateParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing), errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", ErrMalformedClaims, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}
