// Package dispatch implements the query dispatcher: validate against the
// caller's effective permission level, reject syntactic deny-list matches,
// consult the result cache, execute against a pooled connection behind the
// tenant's circuit breaker, filter the result by role scope, and record a
// QueryResult for audit.
package dispatch

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/platformbuilds/tenant-gateway-core/internal/apperr"
	"github.com/platformbuilds/tenant-gateway-core/internal/breaker"
	"github.com/platformbuilds/tenant-gateway-core/internal/cache"
	"github.com/platformbuilds/tenant-gateway-core/internal/metrics"
	"github.com/platformbuilds/tenant-gateway-core/internal/pool"
	"github.com/platformbuilds/tenant-gateway-core/internal/rbac"
)

// Classification is the translator's verdict on a query: what kind of
// operation it is, how sensitive it is, and which tables it touches.
type Classification struct {
	Type           string   // e.g. "select", "aggregate", "mutation"
	SecurityLevel  rbac.Level
	TouchedTables  []string
	RequiresWrite  bool
	Deterministic  bool // whether the result is safe to cache
}

// Translation is what the external translator returns for a query.
type Translation struct {
	Query          string
	Classification Classification
}

// SchemaView is the tenant schema handle passed to the translator; the
// concrete shape is owned by whatever schema cache component builds it.
type SchemaView interface{}

// Translator is the out-of-scope external collaborator that turns user text
// into an executable query plus its classification. It must be pure: no
// connection pool access, no I/O beyond the schema view it is handed.
type Translator interface {
	Translate(ctx context.Context, text string, schema SchemaView, roles []string) (*Translation, error)
}

// Request is one dispatch call.
type Request struct {
	TenantID      string
	UserID        string
	Roles         []string
	EffectiveLevel rbac.Level
	QueryText     string
	Schema        SchemaView
	MaxRows       int
}

// Result is the recorded outcome of a dispatched query.
type Result struct {
	QueryID         string
	TenantID        string
	UserID          string
	OriginalQuery   string
	ExecutedQuery   string
	Rows            []map[string]interface{}
	ExecutionTime   time.Duration
	Cached          bool
	SecurityFiltered bool
}

// RowFilter strips columns/rows a role is not permitted to see from a raw
// result set before it is cached or returned.
type RowFilter func(rows []map[string]interface{}, roles []string) (filtered []map[string]interface{}, changed bool)

// Executor runs an executed query string against a pooled connection and
// returns raw rows.
type Executor func(ctx context.Context, conn pool.Conn, query string, maxRows int) ([]map[string]interface{}, error)

// AuditSink is called once for every dispatched query, successful or not;
// result is nil when the query failed before execution began.
type AuditSink func(ctx context.Context, result *Result, err error)

var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bDROP\s+(TABLE|DATABASE|SCHEMA)\b`),
	regexp.MustCompile(`(?i)\bDELETE\s+FROM\s+\S+\s*(;|$)`), // DELETE with no WHERE
	regexp.MustCompile(`(?i)\b(GRANT|REVOKE)\b`),
	regexp.MustCompile(`(?i)\bCREATE\s+USER\b`),
	regexp.MustCompile(`(?i)\bDROP\s+USER\b`),
	regexp.MustCompile(`(?i)\bALTER\s+USER\b`),
}

// Dispatcher wires the translator, permission check, deny-list, cache, pool
// and breaker into the single "validate -> execute -> filter -> cache ->
// audit" pipeline described by the query dispatcher contract.
type Dispatcher struct {
	translator Translator
	pool       *pool.Manager
	breaker    *breaker.Manager
	cache      *cache.Cache
	execute    Executor
	filter     RowFilter
	audit      AuditSink
}

// New builds a Dispatcher. filter and audit may be nil (no-op).
func New(translator Translator, pm *pool.Manager, bm *breaker.Manager, cch *cache.Cache, execute Executor, filter RowFilter, audit AuditSink) *Dispatcher {
	return &Dispatcher{translator: translator, pool: pm, breaker: bm, cache: cch, execute: execute, filter: filter, audit: audit}
}

// Dispatch runs req through the full validate/cache/execute/filter pipeline.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result, err := d.dispatch(ctx, req)
	duration := time.Since(start)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.QueryExecutionDuration.WithLabelValues(req.TenantID, status).Observe(duration.Seconds())
	if result != nil {
		result.ExecutionTime = duration
	}
	if d.audit != nil {
		d.audit(ctx, result, err)
	}
	return result, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (*Result, error) {
	translation, err := d.translator.Translate(ctx, req.QueryText, req.Schema, req.Roles)
	if err != nil {
		metrics.QueryRejections.WithLabelValues(req.TenantID, "untranslatable").Inc()
		return nil, apperr.New(apperr.Untranslatable, "dispatch.Dispatch", err)
	}

	if translation.Classification.RequiresWrite && !req.EffectiveLevel.Satisfies(rbac.LevelWrite) {
		metrics.QueryRejections.WithLabelValues(req.TenantID, "permission").Inc()
		return nil, apperr.New(apperr.Forbidden, "dispatch.Dispatch", nil)
	}
	if !req.EffectiveLevel.Satisfies(translation.Classification.SecurityLevel) {
		metrics.QueryRejections.WithLabelValues(req.TenantID, "permission").Inc()
		return nil, apperr.New(apperr.Forbidden, "dispatch.Dispatch", nil)
	}

	if violated, pattern := matchesDenyList(translation.Query); violated {
		metrics.QueryRejections.WithLabelValues(req.TenantID, "deny_list").Inc()
		return nil, apperr.New(apperr.QueryRejected, "dispatch.Dispatch", denyErr(pattern))
	}

	queryHash := cache.QueryHash(translation.Query + "|" + roleScopeDigest(req.Roles))

	result := &Result{
		TenantID:      req.TenantID,
		UserID:        req.UserID,
		OriginalQuery: req.QueryText,
		ExecutedQuery: translation.Query,
	}

	var cached bool
	rows, err := d.executeOrFetchCache(ctx, req, translation, queryHash, &cached)
	if err != nil {
		return result, err
	}
	result.Cached = cached
	result.Rows = rows

	if d.filter != nil {
		filtered, changed := d.filter(rows, req.Roles)
		result.Rows = filtered
		result.SecurityFiltered = changed
	}

	return result, nil
}

func (d *Dispatcher) executeOrFetchCache(ctx context.Context, req Request, translation *Translation, queryHash string, cached *bool) ([]map[string]interface{}, error) {
	fetch := func(ctx context.Context) (interface{}, error) {
		var rows []map[string]interface{}
		err := d.breaker.Guard(ctx, req.TenantID, func(ctx context.Context) error {
			lease, aerr := d.pool.Acquire(ctx, req.TenantID)
			if aerr != nil {
				return aerr
			}
			defer lease.Release()
			r, eerr := d.execute(ctx, lease.Conn, translation.Query, req.MaxRows)
			if eerr != nil {
				return apperr.New(apperr.QueryExecutionFailed, "dispatch.executeOrFetchCache", eerr)
			}
			rows = r
			return nil
		})
		return rows, err
	}

	if !translation.Classification.Deterministic || d.cache == nil {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return v.([]map[string]interface{}), nil
	}

	fetched := false
	b, err := d.cache.GetOrFetchResult(ctx, req.TenantID, queryHash, func(ctx context.Context) (interface{}, error) {
		fetched = true
		return fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	*cached = !fetched
	return decodeRows(b)
}

func decodeRows(b []byte) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, apperr.New(apperr.Internal, "dispatch.decodeRows", err)
	}
	return rows, nil
}

func matchesDenyList(query string) (bool, *regexp.Regexp) {
	for _, p := range denyPatterns {
		if p.MatchString(query) {
			return true, p
		}
	}
	return false, nil
}

func denyErr(pattern *regexp.Regexp) error {
	return &denyListError{pattern: pattern.String()}
}

type denyListError struct{ pattern string }

func (e *denyListError) Error() string { return "query matches deny-list pattern: " + e.pattern }

func roleScopeDigest(roles []string) string {
	digest := ""
	for _, r := range roles {
		digest += r + ","
	}
	return digest
}
