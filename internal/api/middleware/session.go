// internal/api/middleware/session.go
package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders contains common security headers for tenant gateway
// responses.
type SecurityHeaders struct {
	ContentTypeOptions    string
	FrameOptions          string
	XSSProtection         string
	ReferrerPolicy        string
	ContentSecurityPolicy string
}

// DefaultSecurityHeaders returns secure defaults for tenant gateway
// responses.
func DefaultSecurityHeaders() SecurityHeaders {
	return SecurityHeaders{
		ContentTypeOptions:    "nosniff",
		FrameOptions:          "DENY",
		XSSProtection:         "1; mode=block",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:",
	}
}

// ApplySecurityHeaders applies security headers to response.
func ApplySecurityHeaders(c *gin.Context, headers SecurityHeaders) {
	c.Header("X-Content-Type-Options", headers.ContentTypeOptions)
	c.Header("X-Frame-Options", headers.FrameOptions)
	c.Header("X-XSS-Protection", headers.XSSProtection)
	c.Header("Referrer-Policy", headers.ReferrerPolicy)
	if headers.ContentSecurityPolicy != "" {
		c.Header("Content-Security-Policy", headers.ContentSecurityPolicy)
	}
}
