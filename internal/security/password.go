package security

import "golang.org/x/crypto/bcrypt"

// bcryptCost is the work factor for stored login passwords.
const bcryptCost = 12

// HashPassword derives the bcrypt hash stored on the user row.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext matches the stored hash. It is
// deliberately a bare bool; the caller maps a mismatch to the uniform
// bad-credentials rejection.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
