package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidSecret = errors.New("invalid login secret")

// HashSecret returns the bcrypt hash of secret, suitable for the login_secret
// setting.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("hash secret: empty secret")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// CheckSecret compares given against the configured login secret, which is
// either a bcrypt hash or plain text. An empty configured secret accepts
// anything.
func CheckSecret(configured, given string) error {
	if configured == "" {
		return nil
	}
	if isBcryptHash(configured) {
		if err := bcrypt.CompareHashAndPassword([]byte(configured), []byte(given)); err != nil {
			return ErrInvalidSecret
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(configured), []byte(given)) != 1 {
		return ErrInvalidSecret
	}
	return nil
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
