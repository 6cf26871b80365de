// Package breaker implements a per-tenant circuit breaker guarding the
// query dispatcher from hammering a backend that is already failing.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/platformbuilds/tenant-gateway-core/internal/apperr"
	"github.com/platformbuilds/tenant-gateway-core/internal/config"
	"github.com/platformbuilds/tenant-gateway-core/internal/metrics"
)

// State is one of the three circuit breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) metricValue() float64 {
	switch s {
	case Open:
		return 1
	case HalfOpen:
		return 2
	default:
		return 0
	}
}

type tenantBreaker struct {
	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	halfOpenCalls int
}

// Manager tracks one circuit breaker per tenant.
type Manager struct {
	cfg config.BreakerConfig

	mu       sync.Mutex
	breakers map[string]*tenantBreaker
}

// NewManager builds a breaker Manager from the gateway's breaker config.
func NewManager(cfg config.BreakerConfig) *Manager {
	return &Manager{cfg: cfg, breakers: make(map[string]*tenantBreaker)}
}

// Allow reports whether a call for tenantID may proceed, transitioning Open
// breakers to HalfOpen once OpenDuration has elapsed.
func (m *Manager) Allow(tenantID string) error {
	b := m.breakerFor(tenantID)
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if time.Since(b.openedAt) < m.cfg.OpenDuration {
			return apperr.New(apperr.CircuitOpen, "breaker.Allow", nil)
		}
		b.state = HalfOpen
		b.halfOpenCalls = 0
		metrics.BreakerState.WithLabelValues(tenantID).Set(HalfOpen.metricValue())
		return nil
	case HalfOpen:
		probes := m.cfg.HalfOpenProbes
		if probes <= 0 {
			probes = 1
		}
		if b.halfOpenCalls >= probes {
			return apperr.New(apperr.CircuitOpen, "breaker.Allow", nil)
		}
		b.halfOpenCalls++
		return nil
	default:
		return nil
	}
}

// RecordSuccess closes the breaker (from Closed or HalfOpen) and resets the
// failure count.
func (m *Manager) RecordSuccess(tenantID string) {
	b := m.breakerFor(tenantID)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state != Closed {
		b.state = Closed
		metrics.BreakerState.WithLabelValues(tenantID).Set(Closed.metricValue())
	}
}

// RecordFailure increments the failure count, tripping the breaker open once
// FailureThreshold is reached (or immediately, from HalfOpen).
func (m *Manager) RecordFailure(tenantID string) {
	b := m.breakerFor(tenantID)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		m.trip(tenantID, b)
		return
	}

	b.failures++
	threshold := m.cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 1
	}
	if b.failures >= threshold {
		m.trip(tenantID, b)
	}
}

func (m *Manager) trip(tenantID string, b *tenantBreaker) {
	b.state = Open
	b.openedAt = time.Now()
	b.failures = 0
	metrics.BreakerState.WithLabelValues(tenantID).Set(Open.metricValue())
	metrics.BreakerTrips.WithLabelValues(tenantID).Inc()
}

// State reports the current state of tenantID's breaker without mutating it.
func (m *Manager) State(tenantID string) State {
	b := m.breakerFor(tenantID)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Guard wraps fn with Allow/RecordSuccess/RecordFailure bookkeeping.
func (m *Manager) Guard(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	if err := m.Allow(tenantID); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		m.RecordFailure(tenantID)
		return err
	}
	m.RecordSuccess(tenantID)
	return nil
}

func (m *Manager) breakerFor(tenantID string) *tenantBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[tenantID]
	if !ok {
		b = &tenantBreaker{}
		m.breakers[tenantID] = b
	}
	return b
}
