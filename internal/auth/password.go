package auth

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
	saltBytes = 16
	keyBytes  = 32
)

// PasswordHasher derives and verifies PBKDF2-HMAC-SHA256 password hashes.
// Iterations is read from config (AuthConfig.PBKDF2Iterations) so the cost
// can be raised over time without changing the storage format: the
// iteration count travels with the hash string itself.
type PasswordHasher struct {
	Iterations int
}

// NewPasswordHasher builds a hasher; iterations below 100,000 are rejected
// since that is the floor this gateway's threat model requires.
func NewPasswordHasher(iterations int) (*PasswordHasher, error) {
	if iterations < 100_000 {
		return nil, fmt.Errorf("auth: pbkdf2 iterations must be at least 100000, got %d", iterations)
	}
	return &PasswordHasher{Iterations: iterations}, nil
}

// Hash returns an encoded string of the form
// "pbkdf2-sha256$<iterations>$<salt>$<derivedKey>" (each of the last two
// base64-url, unpadded) suitable for storage in LocalAuth.PasswordHash.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generating salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, h.Iterations, keyBytes, sha256.New)
	return fmt.Sprintf("pbkdf2-sha256$%d$%s$%s",
		h.Iterations,
		base64.RawURLEncoding.EncodeToString(salt),
		base64.RawURLEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against an encoded hash produced by Hash, using
// the iteration count embedded in the hash rather than h.Iterations, so a
// hasher whose configured cost changed can still verify older hashes.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != "pbkdf2-sha256" {
		return false, fmt.Errorf("auth: unrecognized password hash format")
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false, fmt.Errorf("auth: invalid iteration count in hash")
	}
	salt, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return false, fmt.Errorf("auth: invalid salt encoding")
	}
	want, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil {
		return false, fmt.Errorf("auth: invalid key encoding")
	}
	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
