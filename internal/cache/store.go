package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Store persists cache entries on disk so that repeated invocations over an
// unchanged file can skip re-parsing. Entries are addressed by Key digest and
// verified on retrieval.
type Store struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

type envelope struct {
	Scope    string    `json:"scope"`
	Path     string    `json:"path"`
	Hash     string    `json:"hash"`
	StoredAt time.Time `json:"storedAt"`
	Checksum string    `json:"checksum"`
	Payload  []byte    `json:"payload"`
}

// NewStore creates a Store at the given directory.
// The directory is created if it does not exist.
func NewStore(dir string, ttl time.Duration) (*Store, error) {
	objDir := filepath.Join(dir, "objects")
	if err := os.MkdirAll(objDir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", objDir, err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{dir: dir, ttl: ttl, now: time.Now}, nil
}

// DefaultDir returns the default cache directory.
// Uses XDG_CACHE_HOME if set, otherwise ~/.cache/template-cleanup.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "template-cleanup")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		if runtime.GOOS == "windows" {
			return filepath.Join(os.TempDir(), "template-cleanup-cache")
		}
		return filepath.Join("/tmp", "template-cleanup-cache")
	}
	return filepath.Join(home, ".cache", "template-cleanup")
}

// Get retrieves the payload stored for key.
// Returns nil, false when the entry is absent, expired, or fails verification;
// such entries are removed.
func (s *Store) Get(key Key) ([]byte, bool, error) {
	path := s.objectPath(key.Digest())
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry for %s: %w", key.Path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		_ = os.Remove(path)
		return nil, false, nil
	}

	if env.Scope != key.Scope || env.Path != key.Path || env.Hash != key.Hash ||
		ComputeHash(env.Payload) != env.Checksum {
		_ = os.Remove(path)
		return nil, false, nil
	}

	if s.now().Sub(env.StoredAt) > s.ttl {
		_ = os.Remove(path)
		return nil, false, nil
	}

	return env.Payload, true, nil
}

// Put stores payload for key, replacing any previous entry.
func (s *Store) Put(key Key, payload []byte) error {
	env := envelope{
		Scope:    key.Scope,
		Path:     key.Path,
		Hash:     key.Hash,
		StoredAt: s.now(),
		Checksum: ComputeHash(payload),
		Payload:  payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	path := s.objectPath(key.Digest())
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache subdirectory: %w", err)
	}

	// Atomic write: temp file + rename.
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing cache temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming cache temp file: %w", err)
	}

	success = true
	return nil
}

// Size returns the total size of the cache in bytes.
func (s *Store) Size() (int64, error) {
	var total int64
	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// Clear removes every stored entry.
func (s *Store) Clear() error {
	objDir := filepath.Join(s.dir, "objects")
	if err := os.RemoveAll(objDir); err != nil {
		return fmt.Errorf("clearing cache %s: %w", s.dir, err)
	}
	return os.MkdirAll(objDir, 0755)
}

// Path returns the cache directory path.
func (s *Store) Path() string {
	return s.dir
}

func (s *Store) objectPath(digest string) string {
	return filepath.Join(s.dir, "objects", digest[:2], digest+".json")
}
