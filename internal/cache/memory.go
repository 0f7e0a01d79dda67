package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMaxEntries caps the number of artifacts held in memory.
const DefaultMaxEntries = 4096

// Memory is a process-scoped LRU cache with per-entry TTL.
// Storing a new hash for a path evicts the entry for the previous hash.
type Memory struct {
	counters

	lru *expirable.LRU[Key, any]

	mu     sync.Mutex
	latest map[pathScope]string
}

type pathScope struct {
	scope string
	path  string
}

// NewMemory creates a Memory cache. Non-positive arguments select defaults.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		lru:    expirable.NewLRU[Key, any](maxEntries, nil, ttl),
		latest: make(map[pathScope]string),
	}
}

func (m *Memory) Get(key Key) (any, bool) {
	v, ok := m.lru.Get(key)
	m.record(ok)
	return v, ok
}

func (m *Memory) Set(key Key, value any) {
	ps := pathScope{scope: key.Scope, path: key.Path}

	m.mu.Lock()
	prev, had := m.latest[ps]
	m.latest[ps] = key.Hash
	m.mu.Unlock()

	if had && prev != key.Hash {
		m.lru.Remove(Key{Scope: key.Scope, Path: key.Path, Hash: prev})
	}
	m.lru.Add(key, value)
}

func (m *Memory) Stats() Stats {
	return m.snapshot()
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	return m.lru.Len()
}

// Purge drops every entry. Stats are kept.
func (m *Memory) Purge() {
	m.lru.Purge()
	m.mu.Lock()
	m.latest = make(map[pathScope]string)
	m.mu.Unlock()
}
