package auth

import "golang.org/x/crypto/bcrypt"

// Credentials are stored as bcrypt hashes. Plain-text comparison is not an
// option anywhere in this codebase.

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
