package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"
)

// DefaultTTL bounds how long an entry is trusted even when its content hash
// still matches.
const DefaultTTL = time.Hour

// Key identifies a cached artifact. Scope separates artifact kinds that are
// derived from the same file (a parsed config versus a marker scan).
type Key struct {
	Scope string
	Path  string // absolute path
	Hash  string // SHA256 of the raw file bytes
}

// Digest returns a stable SHA256 over the key fields, used as the on-disk name.
func (k Key) Digest() string {
	return ComputeHash([]byte(k.Scope + "\x00" + k.Path + "\x00" + k.Hash))
}

// Cache stores parsed artifacts keyed by path and content hash.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key Key) (any, bool)
	Set(key Key, value any)
	Stats() Stats
}

// Stats reports hit and miss counts since creation.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Efficiency returns the hit percentage, or 0 when nothing was looked up.
func (s Stats) Efficiency() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// counters is embedded by implementations to track Stats.
type counters struct {
	hits   atomic.Uint64
	misses atomic.Uint64
}

func (c *counters) record(hit bool) {
	if hit {
		c.hits.Add(1)
		return
	}
	c.misses.Add(1)
}

func (c *counters) snapshot() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Noop never stores anything. Every lookup is a miss.
type Noop struct {
	counters
}

// NewNoop returns a cache that stores nothing.
func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Get(Key) (any, bool) {
	n.record(false)
	return nil, false
}

func (n *Noop) Set(Key, any) {}

func (n *Noop) Stats() Stats {
	return n.snapshot()
}

// ComputeHash computes the SHA256 hash of content and returns the hex string.
func ComputeHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}
