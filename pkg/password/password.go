// Package password hashes and verifies credentials. Stored hashes use
// the form "pbkdf2$<iterations>$<base64 salt>$<base64 key>". Legacy
// rows hold bare plaintext; Verify still accepts those so callers can
// migrate them to the hashed form on the next successful login.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	prefix     = "pbkdf2"
	iterations = 210000
	saltBytes  = 16
	keyBytes   = 32
)

// IsHashed reports whether stored is in the structured hashed form.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, prefix+"$")
}

// Hash derives a salted PBKDF2-SHA256 key from the plaintext. A fresh
// random salt is drawn on every call.
func Hash(plaintext string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(plaintext), salt, iterations, keyBytes, sha256.New)

	return fmt.Sprintf("%s$%d$%s$%s",
		prefix,
		iterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify checks the plaintext against a stored credential. Hashed
// forms run the full derivation and compare in constant time; legacy
// plaintext forms compare by equality. Malformed stored forms return
// false rather than an error.
func Verify(plaintext, stored string) bool {
	if stored == "" {
		return false
	}
	if !IsHashed(stored) {
		return stored == plaintext
	}

	parts := strings.Split(stored, "$")
	if len(parts) != 4 {
		return false
	}

	iter, err := strconv.Atoi(parts[1])
	if err != nil || iter <= 0 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}

	expected, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(expected) == 0 {
		return false
	}

	derived := pbkdf2.Key([]byte(plaintext), salt, iter, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(derived, expected) == 1
}
