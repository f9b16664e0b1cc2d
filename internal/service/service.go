// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take plain Go values (an auth.Identity, strings, ints), never
// *http.Request, and return apperror values that the handler maps to status
// codes. The same code could back a CLI or a background job.
//
// DEPENDENCY INJECTION:
// Every service takes a repository.Store (interface), NOT a *sqlstore.DB.
// Tests pass an in-memory fake (see fake_store_test.go); server.New passes
// SQLite or Postgres depending on config.
//
// ONE TRANSACTION PER OPERATION:
// Each public method wraps its storage calls in store.WithTx. A check-then-write
// sequence like "verify old password, then store new hash" either commits as a
// whole or leaves nothing behind.
package service

import (
	"fmt"
	"unicode/utf8"

	"github.com/sakif/todo-service/internal/apperror"
)

// checkLength validates a string field's length in characters (not bytes).
// max <= 0 means no upper bound.
func checkLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min {
		if min == 1 {
			return apperror.ValidationFailed(field, field+" is required")
		}
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be at least %d characters", field, min))
	}
	if max > 0 && n > max {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be %d characters or less", field, max))
	}
	return nil
}

// checkID rejects non-positive path ids before they reach the database.
func checkID(id int64) error {
	if id <= 0 {
		return apperror.ValidationFailed("id", "id must be greater than 0")
	}
	return nil
}
