// Package password hashes and verifies account secrets with bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dzaytsev/credkeeper/internal/common"
)

// Cost is the bcrypt work factor. Raising it slows both hashing and
// verification for every login.
const Cost = 10

// Hash produces a salted bcrypt digest of the secret. The salt is generated
// by bcrypt itself, so two hashes of the same secret differ.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", common.ErrorValidation)
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), Cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether secret matches the stored digest. A malformed digest
// is an error, not a mismatch, so storage corruption is never reported to the
// caller as a wrong password.
func Verify(secret, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("verify secret: %w", err)
}
