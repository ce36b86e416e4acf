// Package cache provides module entry caches for the fieldgate engine.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/fieldgate"
	"github.com/xraph/fieldgate/permission"
)

// Compile-time interface check.
var _ fieldgate.Cache = (*Memory)(nil)

// Memory is an in-process cache of module entries with TTL expiry.
type Memory struct {
	mu      sync.RWMutex
	modules map[string]*entry
	ttl     time.Duration
	maxSize int

	// A module's generation is epoch plus its own counter. Both only grow,
	// so any invalidation changes the sum.
	gens  map[string]uint64
	epoch uint64
}

type entry struct {
	entries   []*permission.Entry
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets how long a module's entries stay cached.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cached modules.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		modules: make(map[string]*entry),
		gens:    make(map[string]uint64),
		ttl:     5 * time.Minute,
		maxSize: 64,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetEntries returns copies of the cached entries of a module.
func (m *Memory) GetEntries(_ context.Context, moduleCode string) ([]*permission.Entry, bool) {
	m.mu.RLock()
	e, ok := m.modules[moduleCode]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.modules[moduleCode]; ok && cur == e {
			delete(m.modules, moduleCode)
		}
		m.mu.Unlock()
		return nil, false
	}
	return copyEntries(e.entries), true
}

// Generation returns the current generation of a module.
func (m *Memory) Generation(_ context.Context, moduleCode string) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch + m.gens[moduleCode], true
}

// SetEntries caches copies of a module's entries unless the module was
// invalidated after gen was read.
func (m *Memory) SetEntries(_ context.Context, moduleCode string, gen uint64, entries []*permission.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch+m.gens[moduleCode] != gen {
		return
	}

	if _, exists := m.modules[moduleCode]; !exists && len(m.modules) >= m.maxSize {
		m.evictExpired()
		if len(m.modules) >= m.maxSize {
			m.evictOne()
		}
	}

	m.modules[moduleCode] = &entry{
		entries:   copyEntries(entries),
		expiresAt: time.Now().Add(m.ttl),
	}
}

// InvalidateModule drops the cached entries of a module.
func (m *Memory) InvalidateModule(_ context.Context, moduleCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[moduleCode]++
	delete(m.modules, moduleCode)
}

// InvalidateAll drops every cached module.
func (m *Memory) InvalidateAll(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	m.modules = make(map[string]*entry)
}

// Len returns the number of cached modules.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.modules)
}

// evictExpired removes all expired modules. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.modules {
		if now.After(e.expiresAt) {
			delete(m.modules, k)
		}
	}
}

// evictOne removes the module closest to expiry. Must hold write lock.
func (m *Memory) evictOne() {
	var oldest string
	var oldestAt time.Time
	for k, e := range m.modules {
		if oldest == "" || e.expiresAt.Before(oldestAt) {
			oldest, oldestAt = k, e.expiresAt
		}
	}
	delete(m.modules, oldest)
}

func copyEntries(in []*permission.Entry) []*permission.Entry {
	out := make([]*permission.Entry, len(in))
	for i, e := range in {
		c := *e
		out[i] = &c
	}
	return out
}
