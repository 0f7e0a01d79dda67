package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory(0, 0)
	key := Key{Scope: "markers", Path: "/p/main.go", Hash: ComputeHash([]byte("x"))}

	_, ok := m.Get(key)
	assert.False(t, ok)

	m.Set(key, 42)
	v, ok := m.Get(key)
	require.True(t, ok)
	assert.Equal(t, 42, v)

	assert.Equal(t, Stats{Hits: 1, Misses: 1}, m.Stats())
	assert.InDelta(t, 50.0, m.Stats().Efficiency(), 0.001)
}

func TestMemoryNewHashEvictsOld(t *testing.T) {
	m := NewMemory(0, 0)
	oldKey := Key{Scope: "markers", Path: "/p/a.py", Hash: ComputeHash([]byte("v1"))}
	newKey := Key{Scope: "markers", Path: "/p/a.py", Hash: ComputeHash([]byte("v2"))}

	m.Set(oldKey, "old")
	m.Set(newKey, "new")

	_, ok := m.Get(oldKey)
	assert.False(t, ok, "content change invalidates the previous entry")
	v, ok := m.Get(newKey)
	require.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryScopesAreIndependent(t *testing.T) {
	m := NewMemory(0, 0)
	hash := ComputeHash([]byte("same"))
	m.Set(Key{Scope: "config", Path: "/p/x", Hash: hash}, "cfg")
	m.Set(Key{Scope: "markers", Path: "/p/x", Hash: hash}, "scan")

	v, ok := m.Get(Key{Scope: "config", Path: "/p/x", Hash: hash})
	require.True(t, ok)
	assert.Equal(t, "cfg", v)
}

func TestMemoryTTL(t *testing.T) {
	m := NewMemory(10, 20*time.Millisecond)
	key := Key{Scope: "s", Path: "/p", Hash: "h"}
	m.Set(key, true)

	assert.Eventually(t, func() bool {
		_, ok := m.Get(key)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryPurge(t *testing.T) {
	m := NewMemory(0, 0)
	m.Set(Key{Scope: "s", Path: "/a", Hash: "1"}, 1)
	m.Set(Key{Scope: "s", Path: "/b", Hash: "2"}, 2)
	m.Purge()
	assert.Zero(t, m.Len())
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := NewMemory(0, 0)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key{Scope: "s", Path: "/shared", Hash: ComputeHash([]byte{byte(i)})}
			m.Set(key, i)
			m.Get(key)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, m.Len(), 32)
}

func TestNoop(t *testing.T) {
	n := NewNoop()
	key := Key{Scope: "s", Path: "/p", Hash: "h"}
	n.Set(key, "value")
	_, ok := n.Get(key)
	assert.False(t, ok)
	assert.Equal(t, Stats{Misses: 1}, n.Stats())
	assert.Zero(t, n.Stats().Efficiency())
}

func TestComputeHash(t *testing.T) {
	assert.Equal(t, ComputeHash([]byte("test")), ComputeHash([]byte("test")))
	assert.NotEqual(t, ComputeHash([]byte("test")), ComputeHash([]byte("different")))
	assert.Len(t, ComputeHash(nil), 64)
}
