// Package auth provides password hashing and session token primitives.
package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is fixed and not user-tunable; 12 matches the cost the
// account passwords were originally hashed with.
const bcryptCost = 12

// HashPassword returns a one-way salted hash of the plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the hash.
// bcrypt's comparison is constant-time over the derived key.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
