package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest secret bcrypt will accept.
const MaxPasswordBytes = 72

var (
	// ErrPasswordMismatch means the hash is well formed but the secret differs.
	ErrPasswordMismatch = errors.New("password does not match")
	// ErrPasswordTooLong means the secret exceeds MaxPasswordBytes.
	ErrPasswordTooLong = fmt.Errorf("password longer than %d bytes", MaxPasswordBytes)
)

// HashPassword stores plain as a bcrypt hash at the default cost.
func HashPassword(plain string) ([]byte, error) {
	if len(plain) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

// ComparePassword returns ErrPasswordMismatch on a wrong secret. Any other
// error points at a corrupt stored hash.
func ComparePassword(hash []byte, plain string) error {
	err := bcrypt.CompareHashAndPassword(hash, []byte(plain))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("compare password: %w", err)
	}
}
