// Package pool manages one connection pool per tenant, each dialing the
// deployment internal/registry hands out. Acquiring a connection for a
// tenant that has never been dialed is deduplicated via singleflight so a
// burst of concurrent first requests triggers exactly one dial.
package pool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/platformbuilds/tenant-gateway-core/internal/apperr"
	"github.com/platformbuilds/tenant-gateway-core/internal/config"
	"github.com/platformbuilds/tenant-gateway-core/internal/metrics"
	"github.com/platformbuilds/tenant-gateway-core/internal/models"
	"github.com/platformbuilds/tenant-gateway-core/internal/registry"
)

// Conn is a single pooled backend connection. Implementations wrap whatever
// transport the deployment's DSN addresses (a SQL driver, an HTTP client
// pinned to a host, etc).
type Conn interface {
	Ping(ctx context.Context) error
	Close() error
}

// Dialer opens a new Conn against a resolved tenant deployment.
type Dialer func(ctx context.Context, deployment *models.TenantDeployment) (Conn, error)

// Lease is a checked-out connection; Release must be called exactly once to
// return it to its tenant pool.
type Lease struct {
	Conn    Conn
	release func()
}

// Release returns the connection to its pool.
func (l *Lease) Release() {
	if l.release != nil {
		l.release()
	}
}

type tenantPool struct {
	mu    sync.Mutex
	idle  []Conn
	inUse int
	max   int
}

// Manager hands out per-tenant connection leases, bounding each tenant to
// its own capacity so one noisy tenant cannot starve another's pool.
type Manager struct {
	registry *registry.Registry
	cfg      config.PoolConfig
	dial     Dialer

	mu      sync.Mutex
	pools   map[string]*tenantPool
	dialing singleflight.Group
}

// NewManager builds a Manager; dial is used to open new backend connections
// on pool miss.
func NewManager(reg *registry.Registry, cfg config.PoolConfig, dial Dialer) *Manager {
	return &Manager{registry: reg, cfg: cfg, dial: dial, pools: make(map[string]*tenantPool)}
}

// Acquire checks out a connection for tenantID, dialing a fresh one against
// the registry's chosen deployment if the idle list is empty and the
// tenant's pool has spare capacity. It blocks up to cfg.AcquireTimeout
// waiting for a slot before returning apperr.PoolTimeout.
func (m *Manager) Acquire(ctx context.Context, tenantID string) (*Lease, error) {
	start := time.Now()
	defer func() {
		metrics.PoolAcquireDuration.WithLabelValues(tenantID).Observe(time.Since(start).Seconds())
	}()

	timeout := m.cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := m.poolFor(tenantID)

	for {
		if conn := p.popIdle(); conn != nil {
			m.setMetrics(tenantID, p)
			return m.leaseFor(tenantID, p, conn), nil
		}

		if p.tryReserve(m.cfg.MaxConns) {
			conn, err := m.dialTenant(acquireCtx, tenantID)
			if err != nil {
				p.release()
				return nil, err
			}
			m.setMetrics(tenantID, p)
			return m.leaseFor(tenantID, p, conn), nil
		}

		select {
		case <-acquireCtx.Done():
			metrics.PoolAcquireTimeouts.WithLabelValues(tenantID).Inc()
			return nil, apperr.New(apperr.PoolTimeout, "pool.Acquire", acquireCtx.Err())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// dialTenant resolves tenantID's next deployment via the registry and dials it.
func (m *Manager) dialTenant(ctx context.Context, tenantID string) (Conn, error) {
	result, err, _ := m.dialing.Do(tenantID+":dial", func() (interface{}, error) {
		deployment, err := m.registry.NextDeployment(ctx, tenantID, "")
		if err != nil {
			return nil, err
		}
		conn, err := m.dial(ctx, deployment)
		if err != nil {
			return nil, apperr.New(apperr.PoolTimeout, "pool.dialTenant", err)
		}
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(Conn), nil
}

func (m *Manager) leaseFor(tenantID string, p *tenantPool, conn Conn) *Lease {
	return &Lease{
		Conn: conn,
		release: func() {
			p.pushIdle(conn, m.cfg.IdleTimeout)
			m.setMetrics(tenantID, p)
		},
	}
}

func (m *Manager) poolFor(tenantID string) *tenantPool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[tenantID]
	if !ok {
		p = &tenantPool{}
		m.pools[tenantID] = p
	}
	return p
}

// Stats reports the current idle/in-use connection counts for a tenant.
func (m *Manager) Stats(tenantID string) (idle, inUse int) {
	p := m.poolFor(tenantID)
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle), p.inUse
}

func (m *Manager) setMetrics(tenantID string, p *tenantPool) {
	p.mu.Lock()
	inUse, idle := p.inUse, len(p.idle)
	p.mu.Unlock()
	metrics.PoolConnectionsInUse.WithLabelValues(tenantID).Set(float64(inUse))
	metrics.PoolConnectionsIdle.WithLabelValues(tenantID).Set(float64(idle))
}

// Close closes every idle connection across every tenant pool. In-flight
// leases are left for their holders to release normally.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pools {
		p.mu.Lock()
		for _, conn := range p.idle {
			conn.Close()
		}
		p.idle = nil
		p.mu.Unlock()
	}
	return nil
}

func (p *tenantPool) popIdle() Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.idle) == 0 {
		return nil
	}
	conn := p.idle[len(p.idle)-1]
	p.idle = p.idle[:len(p.idle)-1]
	p.inUse++
	return conn
}

func (p *tenantPool) pushIdle(conn Conn, idleTimeout time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inUse--
	p.idle = append(p.idle, conn)
}

// tryReserve reserves a capacity slot for a new dial, respecting max. It
// must be paired with a release() on dial failure.
func (p *tenantPool) tryReserve(max int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if max <= 0 {
		max = 1
	}
	if p.inUse+len(p.idle) >= max {
		return false
	}
	p.inUse++
	return true
}

func (p *tenantPool) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inUse--
}
