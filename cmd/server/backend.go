package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/platformbuilds/tenant-gateway-core/internal/dispatch"
	"github.com/platformbuilds/tenant-gateway-core/internal/models"
	"github.com/platformbuilds/tenant-gateway-core/internal/pool"
	"github.com/platformbuilds/tenant-gateway-core/internal/rbac"
)

// httpConn is a pool.Conn that pins an *http.Client to one deployment's DSN.
// The gateway is backend-agnostic: a deployment's DSN is the base URL of
// whatever query endpoint the tenant's clone exposes, so this is the one
// transport every deployment can be assumed to speak without a vendor
// driver in go.mod.
type httpConn struct {
	baseURL string
	client  *http.Client
}

func (c *httpConn) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend %s unhealthy: status %d", c.baseURL, resp.StatusCode)
	}
	return nil
}

func (c *httpConn) Close() error { return nil }

// dialHTTP is the pool.Dialer for deployments whose DSN is an http(s) base URL.
func dialHTTP(ctx context.Context, deployment *models.TenantDeployment) (pool.Conn, error) {
	conn := &httpConn{
		baseURL: deployment.DSN,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// executeHTTP is the dispatch.Executor for httpConn: it POSTs the translated
// query to the pinned backend and decodes the JSON row array it returns.
func executeHTTP(ctx context.Context, conn pool.Conn, query string, maxRows int) ([]map[string]interface{}, error) {
	hc, ok := conn.(*httpConn)
	if !ok {
		return nil, fmt.Errorf("executeHTTP: unexpected connection type %T", conn)
	}

	body, err := json.Marshal(map[string]interface{}{"query": query, "maxRows": maxRows})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hc.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend query failed: status %d", resp.StatusCode)
	}

	var rows []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

var (
	mutationPattern       = regexp.MustCompile(`(?i)^\s*(INSERT|UPDATE|DELETE|MERGE|REPLACE)\b`)
	nondeterministicMarks = regexp.MustCompile(`(?i)(\bNOW\(\)|\bRANDOM\(\)|\bRAND\(\)|\bCURRENT_TIMESTAMP\b)`)
	tableRefPattern       = regexp.MustCompile(`(?i)\bFROM\s+([a-zA-Z_][a-zA-Z0-9_.]*)`)
)

// passthroughTranslator implements dispatch.Translator with keyword-based
// classification: the gateway has no SQL dialect of its own, so it forwards
// the caller's query text verbatim to the backend and classifies it from
// surface syntax alone (mutation keywords, non-deterministic markers).
type passthroughTranslator struct{}

func (passthroughTranslator) Translate(ctx context.Context, text string, schema dispatch.SchemaView, roles []string) (*dispatch.Translation, error) {
	if text == "" {
		return nil, fmt.Errorf("empty query text")
	}

	classification := dispatch.Classification{
		Type:          "select",
		SecurityLevel: rbac.LevelRead,
		Deterministic: true,
	}

	if mutationPattern.MatchString(text) {
		classification.Type = "mutation"
		classification.RequiresWrite = true
		classification.SecurityLevel = rbac.LevelWrite
		classification.Deterministic = false
	} else if nondeterministicMarks.MatchString(text) {
		classification.Deterministic = false
	}

	if m := tableRefPattern.FindAllStringSubmatch(text, -1); len(m) > 0 {
		for _, match := range m {
			classification.TouchedTables = append(classification.TouchedTables, match[1])
		}
	}

	return &dispatch.Translation{Query: text, Classification: classification}, nil
}
