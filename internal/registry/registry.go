// Package registry maintains each tenant's resolved deployment set — the
// clones a tenant's connection pool may dial — and hands out the next
// deployment to use via a round-robin, priority-ordered selector. Entries
// are held behind atomic.Value so a Refresh can swap in a new Descriptor
// without blocking readers already holding the old one.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/platformbuilds/tenant-gateway-core/internal/apperr"
	"github.com/platformbuilds/tenant-gateway-core/internal/models"
	"github.com/platformbuilds/tenant-gateway-core/internal/repo/rbac"
)

// Descriptor is the resolved, ready-to-use view of a tenant: its record and
// its deployments sorted by descending priority.
type Descriptor struct {
	Tenant      *models.Tenant
	Deployments []models.TenantDeployment
}

// entry pairs an atomic.Value holding *Descriptor with a round-robin cursor
// for deployments sharing the same priority.
type entry struct {
	val    atomic.Value
	cursor uint64
}

// Registry resolves tenant IDs to Descriptors, caching them in memory and
// refreshing from the RBAC repository's tenant store on demand.
type Registry struct {
	repo rbac.RBACRepository

	mu      sync.RWMutex
	entries map[string]*entry
}

// New builds a Registry backed by repo.
func New(repo rbac.RBACRepository) *Registry {
	return &Registry{repo: repo, entries: make(map[string]*entry)}
}

// Resolve returns the cached Descriptor for tenantID, loading and caching it
// from the repository on first use.
func (r *Registry) Resolve(ctx context.Context, tenantID string) (*Descriptor, error) {
	if e := r.get(tenantID); e != nil {
		if d, ok := e.val.Load().(*Descriptor); ok && d != nil {
			return d, nil
		}
	}
	return r.Refresh(ctx, tenantID)
}

// Refresh reloads tenantID from the repository and atomically swaps the
// cached Descriptor, so in-flight readers of the old Descriptor are
// unaffected.
func (r *Registry) Refresh(ctx context.Context, tenantID string) (*Descriptor, error) {
	tenant, err := r.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, apperr.New(apperr.TenantNotFound, "registry.Refresh", err)
	}
	deployments := append([]models.TenantDeployment{}, tenant.Deployments...)
	sort.SliceStable(deployments, func(i, j int) bool { return deployments[i].Priority > deployments[j].Priority })

	d := &Descriptor{Tenant: tenant, Deployments: deployments}
	e := r.getOrCreate(tenantID)
	e.val.Store(d)
	return d, nil
}

// Evict removes tenantID from the cache, forcing the next Resolve to reload
// it from the repository. Call after a tenant's deployments change.
func (r *Registry) Evict(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, tenantID)
}

// NextDeployment returns the next deployment to dial for tenantID, matching
// environment if non-empty, round-robining across deployments that share
// the highest priority among matches.
func (r *Registry) NextDeployment(ctx context.Context, tenantID, environment string) (*models.TenantDeployment, error) {
	d, err := r.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(d.Deployments) == 0 {
		return nil, apperr.New(apperr.NoDeployment, "registry.NextDeployment", fmt.Errorf("tenant %s has no deployments", tenantID))
	}

	candidates := d.Deployments
	if environment != "" {
		filtered := make([]models.TenantDeployment, 0, len(candidates))
		for _, dep := range candidates {
			if dep.Environment == environment {
				filtered = append(filtered, dep)
			}
		}
		if len(filtered) == 0 {
			return nil, apperr.New(apperr.NoDeployment, "registry.NextDeployment", fmt.Errorf("tenant %s has no %q deployment", tenantID, environment))
		}
		candidates = filtered
	}

	topPriority := candidates[0].Priority
	tier := make([]models.TenantDeployment, 0, len(candidates))
	for _, dep := range candidates {
		if dep.Priority == topPriority {
			tier = append(tier, dep)
		}
	}

	e := r.getOrCreate(tenantID)
	idx := atomic.AddUint64(&e.cursor, 1) - 1
	chosen := tier[idx%uint64(len(tier))]
	return &chosen, nil
}

func (r *Registry) get(tenantID string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[tenantID]
}

func (r *Registry) getOrCreate(tenantID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[tenantID]
	if !ok {
		e = &entry{}
		r.entries[tenantID] = e
	}
	return e
}
