package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/todo-service/internal/apperror"
	"github.com/sakif/todo-service/internal/auth"
	"github.com/sakif/todo-service/internal/model"
	"github.com/sakif/todo-service/internal/repository"
)

const MaxUsernameLength = 50

// AuthService handles registration and login.
//
//	AuthHandler (HTTP) → AuthService → Store (users)
//	                   ↘ PasswordService (bcrypt)
//	                   ↘ TokenService (JWT)
type AuthService struct {
	store     repository.Store
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger

	// dummyDigest is verified against when the username doesn't exist,
	// so an unknown user costs the same bcrypt work as a wrong password.
	dummyOnce   sync.Once
	dummyDigest string
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	store repository.Store,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:     store,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// RegisterInput carries the registration form. Password is plaintext and
// is dropped as soon as it has been hashed.
type RegisterInput struct {
	Username    string
	Email       string
	FirstName   string
	LastName    string
	Password    string
	Role        string
	PhoneNumber string
}

// AccessToken is a freshly issued bearer token.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// ExpiresIn is the remaining lifetime in whole seconds, as OAuth2's
// expires_in field wants it.
func (t *AccessToken) ExpiresIn(now time.Time) int64 {
	secs := int64(t.ExpiresAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// Register creates a new, active user account.
//
// DUPLICATE USERNAMES:
// The lookup inside the transaction gives a clean 409 in the common case.
// The UNIQUE constraint on users.username catches the race where two
// registrations for the same name interleave; the repository maps that to
// the same apperror.ErrConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	if err := checkLength("username", username, 1, MaxUsernameLength); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	role, err := model.ParseRole(in.Role)
	if err != nil {
		return nil, apperror.ValidationFailed("role", "role must be \"user\" or \"admin\"")
	}

	// Hash before opening the transaction: bcrypt is slow and
	// shouldn't hold a database connection.
	digest, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Username:       username,
		Email:          strings.TrimSpace(in.Email),
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		HashedPassword: digest,
		IsActive:       true,
		Role:           role,
		PhoneNumber:    strings.TrimSpace(in.PhoneNumber),
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		_, err := tx.GetUserByUsername(ctx, username)
		switch {
		case err == nil:
			return apperror.Conflict("user", username)
		case !errors.Is(err, apperror.ErrNotFound):
			return err
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			s.logger.Error("failed to register user",
				slog.String("username", username),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
		slog.String("role", user.Role.String()),
	)
	return user, nil
}

// Login checks a username/password pair and issues an access token.
//
// NO USER ENUMERATION:
// "no such user", "wrong password" and "account inactive" all return the
// same apperror.InvalidCredentials(). The unknown-user path still runs a
// bcrypt comparison so response time doesn't give the answer away either.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AccessToken, error) {
	username = strings.TrimSpace(username)

	var user *model.User
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		u, err := tx.GetUserByUsername(ctx, username)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.Verify(password, s.dummy())
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if !s.passwords.Verify(password, user.HashedPassword) || !user.IsActive {
		s.logger.Debug("login rejected", slog.Int64("userID", user.ID))
		return nil, apperror.InvalidCredentials()
	}

	token, expiresAt, err := s.tokens.Issue(auth.Identity{
		Username: user.Username,
		UserID:   user.ID,
		Role:     user.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return &AccessToken{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		digest, err := s.passwords.Hash("not-a-real-password")
		if err == nil {
			s.dummyDigest = digest
		}
	})
	return s.dummyDigest
}
