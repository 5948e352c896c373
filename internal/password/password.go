// Package password wraps bcrypt hashing for user passwords.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinLength is the password policy floor enforced at the API boundary.
const MinLength = 8

// Hash returns a salted bcrypt hash of the plaintext password.
func Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Check reports whether plain matches the stored bcrypt hash.
func Check(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
