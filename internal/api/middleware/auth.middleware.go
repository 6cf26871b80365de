// internal/api/middleware/auth.middleware.go
package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/tenant-gateway-core/internal/config"
	"github.com/platformbuilds/tenant-gateway-core/internal/models"
	"github.com/platformbuilds/tenant-gateway-core/internal/repo/rbac"
	"github.com/platformbuilds/tenant-gateway-core/internal/session"
	"github.com/platformbuilds/tenant-gateway-core/pkg/cache"
)

const (
	// DefaultTenantID is the fallback tenant ID when none is specified
	DefaultTenantID = "default"
	// UnknownTenantID represents an unknown/unset tenant
	UnknownTenantID = "unknown"
	// apiKeyPrefix marks a bearer token as a long-lived API key rather than
	// a short-lived session token minted by internal/session.Manager.
	apiKeyPrefix = "tgk_"
)

// AuthMiddleware authenticates every request via either a session token
// (minted and verified by internal/session.Manager) or an API key, and
// populates the gin context with the resolved tenant/user/role set that
// downstream RBAC and tenant-isolation middleware rely on.
func AuthMiddleware(authConfig config.AuthConfig, sessions *session.Manager, cch cache.ValkeyCluster, rbacRepo rbac.RBACRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isPublicEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		c.Set("auth_config", authConfig)

		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "authentication required"})
			c.Abort()
			return
		}

		var sess *models.Session
		var err error

		if strings.HasPrefix(token, apiKeyPrefix) {
			sess, err = validateAPIKeyToken(c, token, cch, rbacRepo)
		} else {
			sess, err = sessions.Authenticate(c.Request.Context(), token, c.ClientIP())
		}

		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "invalid authentication token"})
			c.Abort()
			return
		}

		c.Set("session", sess)
		c.Set("user_id", sess.UserID)
		c.Set("tenant_id", sess.TenantID)
		c.Set("user_roles", sess.Roles)
		c.Set("session_id", sess.ID)
		if user, uerr := rbacRepo.GetUser(c.Request.Context(), sess.UserID); uerr == nil && user != nil {
			c.Set("global_role", user.GlobalRole)
		}

		ApplySecurityHeaders(c, DefaultSecurityHeaders())

		c.Next()
	}
}

// extractToken gets the authentication token from whichever of the
// supported carriers the request used.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
		return apiKey
	}

	if sessionToken := c.GetHeader("X-Session-Token"); sessionToken != "" {
		return sessionToken
	}

	if cookie, err := c.Cookie("tenant_gateway_session"); err == nil {
		return cookie
	}

	return ""
}

// validateAPIKeyToken validates a "tgk_"-prefixed API key against the RBAC
// repository and synthesizes a short-lived *models.Session for it so the
// rest of the request pipeline never needs to know API keys exist.
func validateAPIKeyToken(c *gin.Context, token string, cch cache.ValkeyCluster, rbacRepo rbac.RBACRepository) (*models.Session, error) {
	keyHash := models.HashAPIKey(token)

	tenantID := c.GetString("tenant_id")
	if tenantID == "" {
		tenantID = DefaultTenantID
	}

	apiKey, err := rbacRepo.ValidateAPIKey(c.Request.Context(), tenantID, keyHash)
	if err != nil {
		return nil, fmt.Errorf("invalid API key: %w", err)
	}
	if !apiKey.IsValid() {
		return nil, fmt.Errorf("API key is inactive or expired")
	}

	if err := checkAPIKeyRateLimit(c, cch, apiKey.ID, tenantID); err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &models.Session{
		ID:        "apikey:" + apiKey.ID,
		UserID:    apiKey.UserID,
		TenantID:  apiKey.TenantID,
		Roles:     apiKey.Roles,
		Status:    "active",
		AuthType:  "api_key",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
		Settings:  map[string]interface{}{"api_key_id": apiKey.ID, "api_key_prefix": models.ExtractKeyPrefix(token)},
	}

	return sess, nil
}

// checkAPIKeyRateLimit implements per-API-key rate limiting using the cache
// backend, blocking the key outright once it has exceeded its window quota.
func checkAPIKeyRateLimit(c *gin.Context, cch cache.ValkeyCluster, apiKeyID, tenantID string) error {
	authConfigVal, exists := c.Get("auth_config")
	if !exists {
		return nil
	}

	cfg, ok := authConfigVal.(config.AuthConfig)
	if !ok || !cfg.APIKeyRateLimit.Enabled {
		return nil
	}

	rateLimitKey := fmt.Sprintf("apikey_ratelimit:%s:%s", tenantID, apiKeyID)
	blockKey := fmt.Sprintf("apikey_blocked:%s:%s", tenantID, apiKeyID)

	if _, err := cch.Get(c.Request.Context(), blockKey); err == nil {
		return fmt.Errorf("API key is temporarily blocked due to rate limit violations")
	}

	maxRequests := int64(cfg.APIKeyRateLimit.MaxRequests)
	windowDuration := cfg.APIKeyRateLimit.WindowDuration

	count := int64(0)
	if currentCountBytes, err := cch.Get(c.Request.Context(), rateLimitKey); err == nil && len(currentCountBytes) > 0 {
		if parsed, err := strconv.ParseInt(string(currentCountBytes), 10, 64); err == nil {
			count = parsed
		}
	}

	if count >= maxRequests {
		if err := cch.Set(c.Request.Context(), blockKey, "1", cfg.APIKeyRateLimit.BlockDuration); err == nil {
			cch.Set(c.Request.Context(), rateLimitKey, "0", windowDuration)
		}
		return fmt.Errorf("API key rate limit exceeded (%d/%d requests per %v)", count, maxRequests, windowDuration)
	}

	newCount := count + 1
	if err := cch.Set(c.Request.Context(), rateLimitKey, strconv.FormatInt(newCount, 10), windowDuration); err != nil {
		return nil
	}

	remaining := maxRequests - newCount
	if remaining < 0 {
		remaining = 0
	}
	c.Header("X-RateLimit-Limit", strconv.FormatInt(maxRequests, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(windowDuration).Unix(), 10))

	return nil
}

// isPublicEndpoint reports whether a path may be served without authentication.
func isPublicEndpoint(path string) bool {
	publicPaths := []string{
		"/health",
		"/ready",
		"/api/openapi.json",
		"/api/openapi.yaml",
		"/swagger/",
		"/metrics",
		"/api/v1/auth/login",
	}

	for _, publicPath := range publicPaths {
		if strings.HasPrefix(path, publicPath) {
			return true
		}
	}

	return false
}

// RequireAuth is a helper middleware that ensures authentication has already run.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get("user_id"); !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "authentication required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireTenant ensures tenant context is available.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetString("tenant_id")
		if tenantID == "" || tenantID == UnknownTenantID {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "tenant context required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
