package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(content string) Key {
	return Key{Scope: "config", Path: "/project/cleanup.yaml", Hash: ComputeHash([]byte(content))}
}

func TestStorePutAndGet(t *testing.T) {
	s, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)

	key := testKey("profiles: {}")
	require.NoError(t, s.Put(key, []byte(`{"profiles":{}}`)))

	got, found, err := s.Get(key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"profiles":{}}`, string(got))
}

func TestStoreGetMiss(t *testing.T) {
	s, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)

	_, found, err := s.Get(testKey("nothing"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreHashChangeIsMiss(t *testing.T) {
	s, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)

	require.NoError(t, s.Put(testKey("v1"), []byte("one")))

	_, found, err := s.Get(testKey("v2"))
	require.NoError(t, err)
	assert.False(t, found, "a different content hash must not hit")
}

func TestStoreExpiredEntry(t *testing.T) {
	s, err := NewStore(t.TempDir(), time.Hour)
	require.NoError(t, err)

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return start }

	key := testKey("ttl")
	require.NoError(t, s.Put(key, []byte("payload")))

	s.now = func() time.Time { return start.Add(59 * time.Minute) }
	_, found, err := s.Get(key)
	require.NoError(t, err)
	assert.True(t, found)

	s.now = func() time.Time { return start.Add(61 * time.Minute) }
	_, found, err = s.Get(key)
	require.NoError(t, err)
	assert.False(t, found, "entries older than the TTL are a miss")

	_, statErr := os.Stat(s.objectPath(key.Digest()))
	assert.True(t, os.IsNotExist(statErr), "expired entry should be removed")
}

func TestStoreCorruptEntry(t *testing.T) {
	s, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)

	key := testKey("corrupt")
	require.NoError(t, s.Put(key, []byte("original")))

	objPath := s.objectPath(key.Digest())
	require.NoError(t, os.WriteFile(objPath, []byte("corrupted"), 0644))

	_, found, err := s.Get(key)
	require.NoError(t, err, "corruption is self-healing, not an error")
	assert.False(t, found)

	_, statErr := os.Stat(objPath)
	assert.True(t, os.IsNotExist(statErr), "corrupt cache entry should be removed")
}

func TestStoreGetReadError(t *testing.T) {
	s, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)

	key := testKey("dir")
	require.NoError(t, os.MkdirAll(s.objectPath(key.Digest()), 0755))

	_, _, err = s.Get(key)
	assert.Error(t, err)
}

func TestStoreSizeAndClear(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 0)
	require.NoError(t, err)

	size, err := s.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	require.NoError(t, s.Put(testKey("a"), []byte("some content for size test")))
	size, err = s.Size()
	require.NoError(t, err)
	assert.Positive(t, size)

	require.NoError(t, s.Clear())
	size, err = s.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.Equal(t, dir, s.Path())
}

func TestStoreObjectPathLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 0)
	require.NoError(t, err)

	digest := "abcdef1234567890"
	assert.Equal(t, filepath.Join(dir, "objects", "ab", digest+".json"), s.objectPath(digest))
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	assert.Equal(t, filepath.Join("/custom/cache", "template-cleanup"), DefaultDir())

	t.Setenv("XDG_CACHE_HOME", "")
	got := DefaultDir()
	assert.NotEmpty(t, got)
	assert.True(t, filepath.IsAbs(got), "DefaultDir should return absolute path, got %q", got)
}
