package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateSecret returns a random 64 character hex string suitable for
// ADMIN_JWT_SECRET.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
