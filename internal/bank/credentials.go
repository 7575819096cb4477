package bank

import "golang.org/x/crypto/bcrypt"

// hashPassword bcrypt-hashes a plaintext credential for the bootstrap
// credential file. Only the BP hashes or compares passwords; the CO
// (internal/token) mints tokens and never sees a password hash.
func hashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// comparePassword reports whether plaintext matches hash.
func comparePassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
