// Package cache stores normalized fetch results keyed by canonical request
// key. A get never triggers network I/O; a hit requires the entry to be
// younger than the TTL it was stored with.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Entry is an immutable cached result. Entries are replaced, never mutated.
type Entry struct {
	Key      string          `json:"key"`
	Payload  json.RawMessage `json:"payload"`
	Source   string          `json:"source"`
	StoredAt time.Time       `json:"stored_at"`
}

// Store is the cache contract used by the resolver. TTL is fixed at Put time:
// different data kinds carry different lifetimes (price history short,
// fundamentals long).
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool)
	Put(ctx context.Context, key string, payload json.RawMessage, source string, ttl time.Duration)
}

// Memory is an in-process Store with TTL expiry and a strict LRU bound, so
// memory does not grow with the number of distinct keys ever requested.
// Safe for concurrent use.
type Memory struct {
	maxEntries int

	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element
	now   func() time.Time
}

type memEntry struct {
	entry     Entry
	expiresAt time.Time
}

// DefaultMaxEntries bounds the memory store when no explicit cap is given.
const DefaultMaxEntries = 4096

func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return Entry{}, false
	}
	me := el.Value.(*memEntry)
	if !m.now().Before(me.expiresAt) {
		// Stale entries are never returned; discard eagerly.
		m.ll.Remove(el)
		delete(m.items, key)
		return Entry{}, false
	}
	m.ll.MoveToFront(el)
	return me.entry, true
}

func (m *Memory) Put(_ context.Context, key string, payload json.RawMessage, source string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := m.now()
	me := &memEntry{
		entry:     Entry{Key: key, Payload: payload, Source: source, StoredAt: now},
		expiresAt: now.Add(ttl),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		// Replace, don't mutate: the old entry may still be referenced.
		el.Value = me
		m.ll.MoveToFront(el)
		return
	}
	m.items[key] = m.ll.PushFront(me)
	for m.ll.Len() > m.maxEntries {
		back := m.ll.Back()
		m.ll.Remove(back)
		delete(m.items, back.Value.(*memEntry).entry.Key)
	}
}

// Len reports the current number of entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}
