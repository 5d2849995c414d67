// Package auth derives and verifies password credentials.
//
// The credential format is "<iterations>:<base64 salt>:<base64 key>" with
// PBKDF2-HMAC-SHA256, and it is persisted as-is in the user repository, so
// both halves of the format live here.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 work factor.
	Iterations = 65536
	saltBytes  = 16
	keyBytes   = 16 // 128-bit derived key
)

// Hash derives a storable credential from a plaintext password.
func Hash(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, Iterations, keyBytes, sha256.New)

	return fmt.Sprintf("%d:%s:%s",
		Iterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether the password matches the stored credential. The
// iteration count and key length are read back from the credential, so old
// rows verify even if the defaults change.
func Verify(password, credential string) bool {
	parts := strings.Split(credential, ":")
	if len(parts) != 3 {
		return false
	}

	iterations, err := strconv.Atoi(parts[0])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	key, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(key) == 0 {
		return false
	}

	derived := pbkdf2.Key([]byte(password), salt, iterations, len(key), sha256.New)
	return hmac.Equal(derived, key)
}
