// Package integration exercises the registry -> pool -> breaker -> cache ->
// dispatch pipeline end to end, the same wiring cmd/server assembles, against
// in-memory backends so it runs without any external dependency.
package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/tenant-gateway-core/internal/breaker"
	gwcache "github.com/platformbuilds/tenant-gateway-core/internal/cache"
	"github.com/platformbuilds/tenant-gateway-core/internal/config"
	"github.com/platformbuilds/tenant-gateway-core/internal/dispatch"
	"github.com/platformbuilds/tenant-gateway-core/internal/models"
	"github.com/platformbuilds/tenant-gateway-core/internal/pool"
	"github.com/platformbuilds/tenant-gateway-core/internal/rbac"
	"github.com/platformbuilds/tenant-gateway-core/internal/registry"
	rbacrepo "github.com/platformbuilds/tenant-gateway-core/internal/repo/rbac"
	"github.com/platformbuilds/tenant-gateway-core/pkg/cache"
	"github.com/platformbuilds/tenant-gateway-core/pkg/logger"
)

const tenantID = "acme"

type fakeConn struct{ dialed int }

func (c *fakeConn) Ping(ctx context.Context) error { return nil }
func (c *fakeConn) Close() error                   { return nil }

type stubTranslator struct {
	level         rbac.Level
	deterministic bool
	requiresWrite bool
}

func (t stubTranslator) Translate(ctx context.Context, text string, schema dispatch.SchemaView, roles []string) (*dispatch.Translation, error) {
	return &dispatch.Translation{
		Query: text,
		Classification: dispatch.Classification{
			Type:          "select",
			SecurityLevel: t.level,
			Deterministic: t.deterministic,
			RequiresWrite: t.requiresWrite,
		},
	}, nil
}

func newHarness(t *testing.T) (*dispatch.Dispatcher, func() int) {
	t.Helper()

	repo := rbacrepo.NewMemoryRBACRepository()
	require.NoError(t, repo.CreateTenant(context.Background(), &models.Tenant{
		ID:     tenantID,
		Name:   tenantID,
		Status: "active",
		Deployments: []models.TenantDeployment{
			{Environment: "primary", DSN: "inmemory://acme-primary", MaxConns: 5, Priority: 10},
		},
	}))

	reg := registry.New(repo)

	dialCount := 0
	dial := func(ctx context.Context, deployment *models.TenantDeployment) (pool.Conn, error) {
		dialCount++
		return &fakeConn{}, nil
	}
	pm := pool.NewManager(reg, config.PoolConfig{MinConns: 1, MaxConns: 5, AcquireTimeout: time.Second}, dial)

	bm := breaker.NewManager(config.BreakerConfig{FailureThreshold: 3, OpenDuration: time.Minute, HalfOpenProbes: 1})

	store := cache.NewNoopValkeyCache(logger.New("error"))
	cch := gwcache.New(store, time.Minute, time.Minute)

	executeCalls := 0
	execute := func(ctx context.Context, conn pool.Conn, query string, maxRows int) ([]map[string]interface{}, error) {
		executeCalls++
		return []map[string]interface{}{{"query": query, "call": executeCalls}}, nil
	}

	d := dispatch.New(stubTranslator{level: rbac.LevelRead, deterministic: true}, pm, bm, cch, execute, nil, nil)
	return d, func() int { return executeCalls }
}

func TestDispatchCachesDeterministicQueries(t *testing.T) {
	d, executeCalls := newHarness(t)
	ctx := context.Background()

	req := dispatch.Request{
		TenantID:       tenantID,
		UserID:         "u1",
		Roles:          []string{"viewer"},
		EffectiveLevel: rbac.LevelRead,
		QueryText:      "SELECT * FROM orders",
		MaxRows:        10,
	}

	first, err := d.Dispatch(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, executeCalls())

	second, err := d.Dispatch(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, executeCalls(), "second dispatch of an identical deterministic query must hit the cache, not re-execute")
}

func TestDispatchRejectsInsufficientPermission(t *testing.T) {
	d, _ := newHarness(t)
	ctx := context.Background()

	req := dispatch.Request{
		TenantID:       tenantID,
		UserID:         "u2",
		Roles:          []string{"viewer"},
		EffectiveLevel: rbac.LevelNone,
		QueryText:      "SELECT * FROM orders",
		MaxRows:        10,
	}

	_, err := d.Dispatch(ctx, req)
	require.Error(t, err)
}

func TestDispatchRejectsDenyListedQuery(t *testing.T) {
	d, _ := newHarness(t)
	ctx := context.Background()

	req := dispatch.Request{
		TenantID:       tenantID,
		UserID:         "u3",
		Roles:          []string{"viewer"},
		EffectiveLevel: rbac.LevelAdmin,
		QueryText:      "DROP TABLE orders",
		MaxRows:        10,
	}

	_, err := d.Dispatch(ctx, req)
	require.Error(t, err)
}

func TestPoolAcquireHonorsTenantCapacity(t *testing.T) {
	repo := rbacrepo.NewMemoryRBACRepository()
	require.NoError(t, repo.CreateTenant(context.Background(), &models.Tenant{
		ID:     tenantID,
		Status: "active",
		Deployments: []models.TenantDeployment{
			{Environment: "primary", DSN: "inmemory://acme-primary", MaxConns: 1, Priority: 10},
		},
	}))
	reg := registry.New(repo)
	dial := func(ctx context.Context, deployment *models.TenantDeployment) (pool.Conn, error) {
		return &fakeConn{}, nil
	}
	pm := pool.NewManager(reg, config.PoolConfig{MinConns: 1, MaxConns: 1, AcquireTimeout: 50 * time.Millisecond}, dial)

	lease, err := pm.Acquire(context.Background(), tenantID)
	require.NoError(t, err)

	_, err = pm.Acquire(context.Background(), tenantID)
	require.Error(t, err, "a second concurrent acquire beyond MaxConns must time out, not dial")

	lease.Release()
	lease2, err := pm.Acquire(context.Background(), tenantID)
	require.NoError(t, err, "acquiring after release should reuse the returned connection")
	lease2.Release()
}

func TestBreakerTripsAfterFailureThreshold(t *testing.T) {
	bm := breaker.NewManager(config.BreakerConfig{FailureThreshold: 2, OpenDuration: time.Hour, HalfOpenProbes: 1})

	err := bm.Guard(context.Background(), tenantID, func(ctx context.Context) error {
		return fmt.Errorf("backend unreachable")
	})
	require.Error(t, err)
	err = bm.Guard(context.Background(), tenantID, func(ctx context.Context) error {
		return fmt.Errorf("backend unreachable")
	})
	require.Error(t, err)

	assert.Equal(t, breaker.Open, bm.State(tenantID))

	err = bm.Guard(context.Background(), tenantID, func(ctx context.Context) error { return nil })
	require.Error(t, err, "an open breaker must reject calls without invoking fn")
}
