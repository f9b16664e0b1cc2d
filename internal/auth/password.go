// Package auth — password hashing.
//
// WHY BCRYPT?
// bcrypt is deliberately slow and salted. Every call to Hash picks a fresh
// random salt and embeds it, together with the cost, in the output string:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 rounds)
//	 version
//
// so the database needs a single column and Verify can recover the salt and
// cost from the digest itself. Two users with the same password get
// different digests.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used in production.
// Cost 12 takes roughly 250ms on a modern server: negligible for a login,
// expensive for anyone brute-forcing a stolen digest.
const DefaultCost = 12

// MaxPasswordBytes is a bcrypt limit. Longer inputs would be silently truncated.
const MaxPasswordBytes = 72

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so the cost can be injected: tests use
// cost 4 (the bcrypt minimum) to keep each hash in the millisecond range.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the given bcrypt cost.
// Out-of-range costs fall back to DefaultCost.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest creates a PasswordService with bcrypt.MinCost.
// Do NOT use in production — cost 4 is far too weak.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{cost: bcrypt.MinCost}
}

// Hash returns the bcrypt digest of plaintext.
//
// The plaintext is only ever held in memory for the duration of this call;
// callers store the returned digest and drop the plaintext.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored digest.
//
// It never returns an error: a malformed digest, a wrong password, and a
// password over the bcrypt limit all simply produce false. The comparison
// inside bcrypt is constant-time, so response timing doesn't reveal how
// close a guess was.
func (p *PasswordService) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
