package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestExtractToken_Sources(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/x?token=qt", http.NoBody)
	if got := extractToken(c); got != "" {
		t.Fatalf("query token should be rejected, got %q", got)
	}

	c.Request = httptest.NewRequest(http.MethodGet, "/x", http.NoBody)
	c.Request.Header.Set("X-Session-Token", "xs")
	if got := extractToken(c); got != "xs" {
		t.Fatalf("x-session got %q", got)
	}

	c.Request = httptest.NewRequest(http.MethodGet, "/x", http.NoBody)
	c.Request.Header.Set("Authorization", "Bearer abcd")
	if got := extractToken(c); got != "abcd" {
		t.Fatalf("auth got %q", got)
	}

	c.Request = httptest.NewRequest(http.MethodGet, "/x", http.NoBody)
	c.Request.Header.Set("X-API-Key", "tgk_abc123")
	if got := extractToken(c); got != "tgk_abc123" {
		t.Fatalf("x-api-key got %q", got)
	}
}

func TestRequireTenant_Enforces(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireTenant())
	r.GET("/t", func(c *gin.Context) { c.String(200, "ok") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", http.NoBody))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRequireAuth_Enforces(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireAuth())
	r.GET("/a", func(c *gin.Context) { c.String(200, "ok") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/a", http.NoBody))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestIsPublicEndpoint(t *testing.T) {
	cases := map[string]bool{
		"/health":              true,
		"/metrics":             true,
		"/api/v1/auth/login":   true,
		"/api/v1/tenants/acme": false,
	}
	for path, want := range cases {
		if got := isPublicEndpoint(path); got != want {
			t.Fatalf("isPublicEndpoint(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestAPIKeyPrefix_Recognized(t *testing.T) {
	if !strings.HasPrefix("tgk_abc123def456", apiKeyPrefix) {
		t.Fatalf("expected tgk_ prefixed token to be recognized as an API key")
	}
	if strings.HasPrefix("sess_abc123", apiKeyPrefix) {
		t.Fatalf("session token must not be misclassified as an API key")
	}
}
