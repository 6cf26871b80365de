// Package session wraps internal/repo/rbac.RBACService's session lifecycle
// methods with the token codec, turning a validated request token into a
// *models.Session and back again. Its callers are the HTTP auth middleware
// (Authenticate) and the login, logout and tenant-switch handlers in
// internal/api (Open, Close, SwitchTenant).
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/platformbuilds/tenant-gateway-core/internal/apperr"
	"github.com/platformbuilds/tenant-gateway-core/internal/auth"
	"github.com/platformbuilds/tenant-gateway-core/internal/models"
)

// Service is the subset of RBACService the session Manager depends on.
type Service interface {
	OpenSession(ctx context.Context, tenantID, userID string, roles []string, fingerprint string, ttl time.Duration) (*models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	CloseSession(ctx context.Context, actorUserID, sessionID, reason string) error
	InvalidateSessions(ctx context.Context, tenantID, userID, reason string) error
	SwitchTenant(ctx context.Context, currentSessionID, newTenantID string, ttl time.Duration) (*models.Session, error)
}

// Manager issues and authenticates session tokens, layering the token
// codec's stateless signature check on top of the server-side session
// record so a revoked session is rejected even with a still-unexpired,
// correctly-signed token.
type Manager struct {
	svc   Service
	codec *auth.TokenCodec
	ttl   time.Duration
}

// NewManager builds a Manager. ttl is the default session lifetime used
// when opening new sessions.
func NewManager(svc Service, codec *auth.TokenCodec, ttl time.Duration) *Manager {
	return &Manager{svc: svc, codec: codec, ttl: ttl}
}

// Open creates a new session for (tenantID, userID, roles) and returns the
// signed bearer token for it along with the session record.
func (m *Manager) Open(ctx context.Context, tenantID, userID string, roles []string, fingerprint string) (string, *models.Session, error) {
	sess, err := m.svc.OpenSession(ctx, tenantID, userID, roles, fingerprint, m.ttl)
	if err != nil {
		return "", nil, err
	}
	token, err := m.codec.Sign(sess.ID, sess.UserID, sess.TenantID, sess.Roles, sess.Fingerprint, sess.IssuedAt, sess.ExpiresAt)
	if err != nil {
		return "", nil, apperr.New(apperr.Internal, "session.Open", err)
	}
	return token, sess, nil
}

// Authenticate verifies tokenString's signature and expiry, then confirms
// the referenced session is still Active server-side — a token surviving
// past a CloseSession/InvalidateSessions call must not authenticate.
func (m *Manager) Authenticate(ctx context.Context, tokenString, clientFingerprint string) (*models.Session, error) {
	claims, err := m.codec.Verify(tokenString)
	if err != nil {
		return nil, apperr.New(apperr.BadToken, "session.Authenticate", err)
	}

	sess, err := m.svc.GetSession(ctx, claims.SessionID)
	if err != nil {
		return nil, apperr.New(apperr.BadToken, "session.Authenticate", err)
	}
	if sess.Status != "active" {
		return nil, apperr.New(apperr.ExpiredToken, "session.Authenticate", fmt.Errorf("session status is %s", sess.Status))
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, apperr.New(apperr.ExpiredToken, "session.Authenticate", fmt.Errorf("session expired at %s", sess.ExpiresAt))
	}
	if clientFingerprint != "" && sess.Fingerprint != "" && clientFingerprint != sess.Fingerprint {
		return nil, apperr.New(apperr.BadToken, "session.Authenticate", fmt.Errorf("fingerprint mismatch"))
	}
	return sess, nil
}

// Close revokes a single session.
func (m *Manager) Close(ctx context.Context, actorUserID, sessionID, reason string) error {
	return m.svc.CloseSession(ctx, actorUserID, sessionID, reason)
}

// SwitchTenant closes currentSessionID and opens a replacement bound to
// newTenantID, returning a freshly signed token for it.
func (m *Manager) SwitchTenant(ctx context.Context, currentSessionID, newTenantID string) (string, *models.Session, error) {
	sess, err := m.svc.SwitchTenant(ctx, currentSessionID, newTenantID, m.ttl)
	if err != nil {
		return "", nil, err
	}
	token, err := m.codec.Sign(sess.ID, sess.UserID, sess.TenantID, sess.Roles, sess.Fingerprint, sess.IssuedAt, sess.ExpiresAt)
	if err != nil {
		return "", nil, apperr.New(apperr.Internal, "session.SwitchTenant", err)
	}
	return token, sess, nil
}
