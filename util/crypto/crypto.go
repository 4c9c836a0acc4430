// Package crypto provides password hashing and verification.
package crypto

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when an account does not exist, so a
// failed login costs the same whether or not the username is known.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("registry-dummy-password"), bcrypt.DefaultCost)

// HashPasswordAsBcrypt generates a salted bcrypt hash of the given password.
func HashPasswordAsBcrypt(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPasswordHash verifies if the given password matches the bcrypt hash.
func CheckPasswordHash(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// BurnComparison performs a throwaway bcrypt comparison.
func BurnComparison(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
