// Package cache provides the engine's in-memory coalescing result cache.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arenaops/go-arena/internal/ports"
)

var _ ports.Cache = (*Memory)(nil)

type entry struct {
	value   any
	expires time.Time
}

// Memory is an in-process TTL cache with per-key computation coalescing:
// concurrent misses for the same key invoke the producer exactly once and
// all callers receive that single result. A caller abandoning its request
// does not abort a computation other callers are waiting on; a completed
// computation is always stored.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry

	group   singleflight.Group
	metrics ports.MetricsCollector
	now     func() time.Time
}

// NewMemory creates an empty cache. metrics may be nil.
func NewMemory(metrics ports.MetricsCollector) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		metrics: metrics,
		now:     time.Now,
	}
}

// GetOrCompute implements ports.Cache.
func (m *Memory) GetOrCompute(ctx context.Context, key string, ttl time.Duration, producer ports.Producer) (any, error) {
	if value, ok := m.lookup(key); ok {
		m.count("cache_hits_total")
		return value, nil
	}
	m.count("cache_misses_total")

	ch := m.group.DoChan(key, func() (any, error) {
		// Another caller may have populated the key while this one queued.
		if value, ok := m.lookup(key); ok {
			return value, nil
		}
		// The computation is shared between callers, so it must not die
		// with whichever caller happened to start it.
		value, err := producer(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		m.put(key, value, ttl)
		return value, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		// The caller stops waiting; the in-flight computation finishes and
		// is stored for the callers that remain.
		return nil, ctx.Err()
	}
}

// Invalidate implements ports.Cache.
func (m *Memory) Invalidate(key string) {
	m.group.Forget(key)
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Len returns the number of live entries, expired ones included until
// their next lookup.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) lookup(key string) (any, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (m *Memory) put(key string, value any, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *Memory) count(metric string) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordCounter(metric, 1, nil)
}
