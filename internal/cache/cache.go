// Package cache layers a tenant-scoped result cache and schema cache on top
// of pkg/cache's ValkeyCluster, deduplicating concurrent misses for the same
// key via singleflight so a burst of identical queries triggers exactly one
// fetch from the backend.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/platformbuilds/tenant-gateway-core/internal/metrics"
	"github.com/platformbuilds/tenant-gateway-core/pkg/cache"
)

// Fetch loads the value for a cache miss. It is only ever called once per
// key even under concurrent callers, courtesy of singleflight.
type Fetch func(ctx context.Context) (interface{}, error)

// Cache is a tenant-scoped, two-tier (result + schema) cache backed by a
// ValkeyCluster.
type Cache struct {
	store      cache.ValkeyCluster
	resultTTL  time.Duration
	schemaTTL  time.Duration
	group      singleflight.Group
}

// New builds a Cache backed by store, with resultTTL/schemaTTL as the
// default TTLs for each tier.
func New(store cache.ValkeyCluster, resultTTL, schemaTTL time.Duration) *Cache {
	return &Cache{store: store, resultTTL: resultTTL, schemaTTL: schemaTTL}
}

// QueryHash returns the stable identifier GetOrFetchResult uses to key a
// tenant's cached result for a given translated query text.
func QueryHash(translated string) string {
	sum := sha256.Sum256([]byte(translated))
	return hex.EncodeToString(sum[:])
}

// GetOrFetchResult returns the cached result for tenantID's queryHash,
// calling fetch and populating the cache on miss.
func (c *Cache) GetOrFetchResult(ctx context.Context, tenantID, queryHash string, fetch Fetch) ([]byte, error) {
	key := resultKey(tenantID, queryHash)
	return c.getOrFetch(ctx, "result", key, c.resultTTL, fetch)
}

// InvalidateResult evicts a tenant's cached result for queryHash, e.g. after
// a write the dispatcher knows invalidates prior reads.
func (c *Cache) InvalidateResult(ctx context.Context, tenantID, queryHash string) error {
	return c.store.Delete(ctx, resultKey(tenantID, queryHash))
}

// GetOrFetchSchema returns the cached schema document identified by
// schemaKey for tenantID, calling fetch and populating the cache on miss.
func (c *Cache) GetOrFetchSchema(ctx context.Context, tenantID, schemaKey string, fetch Fetch) ([]byte, error) {
	key := schemaKeyFor(tenantID, schemaKey)
	return c.getOrFetch(ctx, "schema", key, c.schemaTTL, fetch)
}

// InvalidateSchema evicts a tenant's cached schema document, called when the
// registry refreshes a tenant's deployments or a DDL change is observed.
func (c *Cache) InvalidateSchema(ctx context.Context, tenantID, schemaKey string) error {
	return c.store.Delete(ctx, schemaKeyFor(tenantID, schemaKey))
}

func (c *Cache) getOrFetch(ctx context.Context, tier, key string, ttl time.Duration, fetch Fetch) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.CacheRequestDuration.WithLabelValues(tier).Observe(time.Since(start).Seconds())
	}()

	if b, err := c.store.Get(ctx, key); err == nil {
		metrics.RecordCacheOperation(tier, "hit")
		return b, nil
	}

	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		v, ferr := fetch(ctx)
		if ferr != nil {
			return nil, ferr
		}
		b, merr := json.Marshal(v)
		if merr != nil {
			return nil, fmt.Errorf("cache.getOrFetch: marshal %s: %w", tier, merr)
		}
		if serr := c.store.Set(ctx, key, b, ttl); serr != nil {
			return nil, fmt.Errorf("cache.getOrFetch: store %s: %w", tier, serr)
		}
		return b, nil
	})
	if err != nil {
		metrics.RecordCacheOperation(tier, "error")
		return nil, err
	}
	if shared {
		metrics.RecordCacheOperation(tier, "shared_fetch")
	} else {
		metrics.RecordCacheOperation(tier, "miss")
	}
	return result.([]byte), nil
}

func resultKey(tenantID, queryHash string) string {
	return fmt.Sprintf("result:%s:%s", tenantID, queryHash)
}

func schemaKeyFor(tenantID, schemaKey string) string {
	return fmt.Sprintf("schema:%s:%s", tenantID, schemaKey)
}
