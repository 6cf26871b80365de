// Package apperr defines the closed error taxonomy shared by every layer of
// the gateway: RBAC, session management, the connection pool, the circuit
// breaker, and the query dispatcher all return one of these Kinds so that
// the HTTP layer (internal/api/middleware/error.middleware.go) can translate
// any error into a stable status code and machine-readable code without
// string-matching error messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error classes the gateway can produce.
// Do not add to this set casually: every Kind must have an HTTP mapping in
// the error middleware and a documented invariant in SPEC_FULL.md.
type Kind string

const (
	Unauthenticated     Kind = "unauthenticated"
	Forbidden           Kind = "forbidden"
	RateLimited         Kind = "rate_limited"
	InvalidCredential   Kind = "invalid_credential"
	NoAccess            Kind = "no_access"
	AlreadyGranted      Kind = "already_granted"
	DuplicateIdentifier Kind = "duplicate_identifier"
	BadToken            Kind = "bad_token"
	ExpiredToken        Kind = "expired_token"
	TenantInactive      Kind = "tenant_inactive"
	TenantNotFound      Kind = "tenant_not_found"
	PoolTimeout         Kind = "pool_timeout"
	PoolExhausted       Kind = "pool_exhausted"
	CircuitOpen         Kind = "circuit_open"
	NoDeployment        Kind = "no_deployment"
	Untranslatable      Kind = "untranslatable"
	QueryRejected       Kind = "query_rejected"
	QueryExecutionFailed Kind = "query_execution_failed"
	Deadline            Kind = "deadline"
	Cancelled           Kind = "cancelled"
	Conflict            Kind = "conflict"
	NotFound            Kind = "not_found"
	Internal            Kind = "internal"
)

// Error is the concrete error type every internal package returns for a
// classified failure. Op names the operation that failed ("pool.Acquire",
// "rbac.DecideAccessRequest") so log lines carry a stable breadcrumb.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error for op, wrapping cause (which may be nil).
func New(kind Kind, op string, cause error) error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf extracts the Kind from err, falling back to Internal for any error
// that was not produced through this package.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
