// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import (
	"fmt"
	"strings"
)

// Role is the access level attached to a user account and carried inside
// every access token.
//
// WHY A NAMED TYPE INSTEAD OF A PLAIN STRING?
// A plain string lets any typo ("Admin", "admni") slip through to the
// authorization check and silently fail. With a named type, the only valid
// values are the constants below, and ParseRole is the single door through
// which untrusted text becomes a Role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole converts untrusted input (request body, token claim) into a Role.
// An empty string defaults to RoleUser.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// IsAdmin reports whether the role grants access to admin-only routes.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

// User represents a registered user account.
//
// PASSWORD DIGEST:
// HashedPassword holds the bcrypt digest, never the plaintext. The `json:"-"`
// tag tells encoding/json to skip the field entirely, so the digest can't
// leak into an API response even if a handler encodes the whole struct.
//
// WHY int64 IDs?
// The database assigns ids with an auto-incrementing INTEGER column. int64
// matches SQLite's INTEGER and Postgres' BIGSERIAL without conversion.
type User struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Role           Role   `json:"role"`
	PhoneNumber    string `json:"phone_number"`
	IsActive       bool   `json:"is_active"`
	HashedPassword string `json:"-"`
}
