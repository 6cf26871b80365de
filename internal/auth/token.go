// Package auth provides the gateway's self-issued session token codec and
// password hasher. Tokens bind a session to its tenant and role set with an
// HMAC signature so a compromised tenant cannot forge another tenant's
// session; credentials are hashed with PBKDF2-HMAC-SHA256 at a configurable
// iteration count.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVersion is embedded in every issued token so a future signing-scheme
// change can be rolled out without breaking verification of older tokens
// still in flight.
const TokenVersion = 1

// Claims is the payload bound into a session token.
type Claims struct {
	Version     int      `json:"ver"`
	SessionID   string   `json:"sid"`
	UserID      string   `json:"sub"`
	TenantID    string   `json:"tenant"`
	Roles       []string `json:"roles"`
	Fingerprint string   `json:"fp"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies session tokens with a single HMAC secret.
// It is the gateway's equivalent of the teacher's OAuth/JWT validator, but
// for self-issued (not third-party) tokens.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec builds a codec from a non-empty HMAC secret.
func NewTokenCodec(secret string) (*TokenCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: token secret must not be empty")
	}
	return &TokenCodec{secret: []byte(secret)}, nil
}

// Sign issues a signed token string for the given session.
func (c *TokenCodec) Sign(sessionID, userID, tenantID string, roles []string, fingerprint string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		Version:     TokenVersion,
		SessionID:   sessionID,
		UserID:      userID,
		TenantID:    tenantID,
		Roles:       roles,
		Fingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify parses and validates a token string, rejecting anything signed
// with an unexpected algorithm, expired, or carrying an unknown version.
func (c *TokenCodec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: token failed validation")
	}
	if claims.Version != TokenVersion {
		return nil, fmt.Errorf("auth: unsupported token version %d", claims.Version)
	}
	return claims, nil
}
