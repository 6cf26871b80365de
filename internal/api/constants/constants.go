// Package constants holds sentinel values shared across the API middleware
// stack that don't belong to any single middleware file.
package constants

// AnonymousTenantID equals the user ID NoAuthMiddleware assigns when
// authentication is disabled; the RBAC middleware skips enforcement for that
// user. RateLimiter also uses it as the bucket key for requests that carry no
// tenant_id, and still enforces the limit on that bucket.
const AnonymousTenantID = "anonymous"
