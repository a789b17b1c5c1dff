package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt-hashes a plain password.  The cost comes from config
// so tests can run at bcrypt.MinCost while production uses a higher setting.
func HashPassword(plain string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.  The
// comparison runs in constant time.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
