package ttlmap

import (
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
)

// shardCount must be a power of 2.
const shardCount = 16

// Map is a concurrent-safe sharded map with per-entry expiry.
type Map[V any] struct {
	shards    []*shard[V]
	shardMask uint32
	ttl       time.Duration
	now       func() time.Time
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
}

// Option configures a Map.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates a map whose entries live for ttl. A non-positive ttl keeps
// entries until they are deleted.
func New[V any](ttl time.Duration, opts ...Option) *Map[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Map[V]{
		shards:    make([]*shard[V], shardCount),
		shardMask: shardCount - 1,
		ttl:       ttl,
		now:       o.now,
	}
	for i := range m.shards {
		m.shards[i] = &shard[V]{items: make(map[string]entry[V])}
	}
	return m
}

func (m *Map[V]) getShard(key string) *shard[V] {
	return m.shards[murmur3.Sum32([]byte(key))&m.shardMask]
}

func (m *Map[V]) expired(e entry[V], now time.Time) bool {
	return m.ttl > 0 && now.Sub(e.storedAt) > m.ttl
}

// TTL returns the entry lifetime.
func (m *Map[V]) TTL() time.Duration {
	return m.ttl
}

// Set stores value under key, restarting its lifetime.
func (m *Map[V]) Set(key string, value V) {
	s := m.getShard(key)
	now := m.now()

	s.mu.Lock()
	s.items[key] = entry[V]{value: value, storedAt: now}
	s.mu.Unlock()
}

// Compute atomically inspects and optionally replaces the entry for key.
//
// fn receives the current value and whether it is live. When fn returns
// store=true the returned value is stored with a fresh lifetime; otherwise
// the entry is left untouched, including its age.
func (m *Map[V]) Compute(key string, fn func(current V, live bool) (next V, store bool)) {
	s := m.getShard(key)
	now := m.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	live := ok && !m.expired(e, now)
	if !live {
		var zero V
		e.value = zero
	}
	next, store := fn(e.value, live)
	if store {
		s.items[key] = entry[V]{value: next, storedAt: now}
	}
}

// Delete removes key.
func (m *Map[V]) Delete(key string) {
	s := m.getShard(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included until swept.
func (m *Map[V]) Len() int {
	count := 0
	for _, s := range m.shards {
		s.mu.RLock()
		count += len(s.items)
		s.mu.RUnlock()
	}
	return count
}

// Sweep removes expired entries and returns how many were removed.
func (m *Map[V]) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	now := m.now()
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if m.expired(e, now) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Clear removes all entries.
func (m *Map[V]) Clear() {
	for _, s := range m.shards {
		s.mu.Lock()
		s.items = make(map[string]entry[V])
		s.mu.Unlock()
	}
}
