package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost matches the library default; raising it trades login latency
// for brute-force resistance, not worth tuning without a measured threat
// model.
const bcryptCost = bcrypt.DefaultCost

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored bcrypt hash.
func VerifyPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
