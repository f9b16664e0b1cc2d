package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/todo-service/internal/apperror"
	"github.com/sakif/todo-service/internal/auth"
	"github.com/sakif/todo-service/internal/model"
	"github.com/sakif/todo-service/internal/repository"
)

// MinPasswordLength applies to password changes.
const MinPasswordLength = 6

// UserService is the caller's view of their own account.
type UserService struct {
	store     repository.Store
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(store repository.Store, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{
		store:     store,
		passwords: passwords,
		logger:    logger,
	}
}

// GetSelf returns the caller's user record. model.User never serializes
// the password digest.
func (s *UserService) GetSelf(ctx context.Context, caller auth.Identity) (*model.User, error) {
	var user *model.User
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		u, err := tx.GetUserByID(ctx, caller.UserID)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the caller's password after re-checking the old one.
//
// BCRYPT OUTSIDE THE TRANSACTION:
// Verify and Hash each take a noticeable slice of CPU time, and SQLite has a
// single connection. So the digest is read in one short transaction, both
// bcrypt calls run with no transaction open, and the write is a second short
// transaction that only succeeds if the stored digest is still the one we
// verified against. A concurrent change in between makes this one fail with
// the same error as a wrong password.
func (s *UserService) ChangePassword(ctx context.Context, caller auth.Identity, oldPassword, newPassword string) error {
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return apperror.ValidationFailed("new_password",
			fmt.Sprintf("new_password must be at least %d characters", MinPasswordLength))
	}
	if len(newPassword) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("new_password",
			fmt.Sprintf("new_password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}

	var current string
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		user, err := tx.GetUserByID(ctx, caller.UserID)
		if err != nil {
			return err
		}
		current = user.HashedPassword
		return nil
	})
	if err != nil {
		return err
	}

	if !s.passwords.Verify(oldPassword, current) {
		return passwordChangeFailed()
	}

	digest, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("service/user: %w", err)
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		err := tx.UpdatePasswordHash(ctx, caller.UserID, current, digest)
		if errors.Is(err, apperror.ErrNotFound) {
			return passwordChangeFailed()
		}
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("password changed", slog.Int64("userID", caller.UserID))
	return nil
}

func passwordChangeFailed() error {
	return &apperror.AppError{
		Err:     apperror.ErrInvalidCredentials,
		Message: "Error on Password Change",
		Field:   "password",
	}
}

// ChangePhoneNumber overwrites the caller's phone number. The value is
// stored as given (trimmed); there is no format check.
func (s *UserService) ChangePhoneNumber(ctx context.Context, caller auth.Identity, phoneNumber string) error {
	phoneNumber = strings.TrimSpace(phoneNumber)

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		return tx.UpdatePhoneNumber(ctx, caller.UserID, phoneNumber)
	})
	if err != nil {
		return err
	}

	s.logger.Info("phone number changed", slog.Int64("userID", caller.UserID))
	return nil
}
