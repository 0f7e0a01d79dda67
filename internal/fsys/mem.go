package fsys

import (
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"testing/fstest"
	"time"
)

// Mem is an in-memory FileSystem. Directories are implied by the files they
// contain; empty directories can be added with Mkdir. As on disk, removing
// the last entry of a directory leaves the directory in place.
type Mem struct {
	mu    sync.RWMutex
	files fstest.MapFS
	now   func() time.Time
}

// NewMem creates an in-memory filesystem from name → content pairs.
func NewMem(files map[string]string) *Mem {
	m := &Mem{files: fstest.MapFS{}, now: time.Now}
	for name, content := range files {
		m.files[name] = &fstest.MapFile{Data: []byte(content), Mode: 0644, ModTime: m.now()}
	}
	return m
}

func (m *Mem) Root() string { return "/mem" }

func (m *Mem) Open(name string) (fs.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files.Open(name)
}

func (m *Mem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files.ReadFile(name)
}

func (m *Mem) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files.Stat(name)
}

func (m *Mem) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files.ReadDir(name)
}

func (m *Mem) WriteFile(name string, data []byte) error {
	if !fs.ValidPath(name) || name == "." {
		return &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	mode := fs.FileMode(0644)
	if existing, ok := m.files[name]; ok {
		if existing.Mode.IsDir() {
			return &fs.PathError{Op: "write", Path: name, Err: errors.New("is a directory")}
		}
		mode = existing.Mode
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.files[name] = &fstest.MapFile{Data: buf, Mode: mode, ModTime: m.now()}
	return nil
}

// Mkdir adds an explicit (possibly empty) directory.
func (m *Mem) Mkdir(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = &fstest.MapFile{Mode: fs.ModeDir | 0755, ModTime: m.now()}
}

func (m *Mem) Remove(name string) error {
	if name == "." {
		return &fs.PathError{Op: "remove", Path: name, Err: errors.New("refusing to remove the working directory")}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasChildrenLocked(name) {
		return &fs.PathError{Op: "remove", Path: name, Err: errors.New("directory not empty")}
	}
	if _, ok := m.files[name]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	m.keepParentsLocked(name)
	delete(m.files, name)
	return nil
}

func (m *Mem) RemoveAll(name string) error {
	if name == "." {
		return &fs.PathError{Op: "remove", Path: name, Err: errors.New("refusing to remove the working directory")}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keepParentsLocked(name)
	delete(m.files, name)
	prefix := name + "/"
	for k := range m.files {
		if strings.HasPrefix(k, prefix) {
			delete(m.files, k)
		}
	}
	return nil
}

// Files returns a snapshot of regular file contents keyed by name.
func (m *Mem) Files() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.files))
	for name, f := range m.files {
		if !f.Mode.IsDir() {
			out[name] = string(f.Data)
		}
	}
	return out
}

// Names returns every stored name, sorted.
func (m *Mem) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// keepParentsLocked turns the implied parent directories of name into
// explicit entries.
func (m *Mem) keepParentsLocked(name string) {
	for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if _, ok := m.files[dir]; !ok {
			m.files[dir] = &fstest.MapFile{Mode: fs.ModeDir | 0755, ModTime: m.now()}
		}
	}
}

func (m *Mem) hasChildrenLocked(name string) bool {
	prefix := name + "/"
	for k := range m.files {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}
