package fsys

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// Overlay is a copy-on-write view of a base FileSystem. Writes and removals
// are kept in memory and never reach the base, while reads see them. A dry
// run executes against an Overlay so that later rules observe the effects of
// earlier ones exactly as they would on disk.
//
// Overlay does not create directories: writing a file into a directory that
// does not exist in the view is an error.
type Overlay struct {
	base FileSystem

	mu      sync.RWMutex
	written map[string][]byte
	removed map[string]bool
}

// NewOverlay creates an empty overlay over base.
func NewOverlay(base FileSystem) *Overlay {
	return &Overlay{
		base:    base,
		written: make(map[string][]byte),
		removed: make(map[string]bool),
	}
}

func (o *Overlay) Root() string { return o.base.Root() }

// Changes returns the names written and removed in the overlay, sorted.
func (o *Overlay) Changes() (written, removed []string) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for name := range o.written {
		written = append(written, name)
	}
	for name := range o.removed {
		removed = append(removed, name)
	}
	sort.Strings(written)
	sort.Strings(removed)
	return written, removed
}

// hiddenLocked reports whether name or one of its parents was removed.
func (o *Overlay) hiddenLocked(name string) bool {
	for p := name; p != "." && p != "/" && p != ""; p = path.Dir(p) {
		if o.removed[p] {
			return true
		}
	}
	return false
}

func (o *Overlay) ReadFile(name string) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.hiddenLocked(name) {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	if data, ok := o.written[name]; ok {
		return bytes.Clone(data), nil
	}
	return o.base.ReadFile(name)
}

func (o *Overlay) Stat(name string) (fs.FileInfo, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.statLocked(name)
}

func (o *Overlay) statLocked(name string) (fs.FileInfo, error) {
	if o.hiddenLocked(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	info, err := o.base.Stat(name)
	if data, ok := o.written[name]; ok {
		mode := fs.FileMode(0644)
		if err == nil {
			mode = info.Mode()
		}
		return &overlayInfo{name: path.Base(name), size: int64(len(data)), mode: mode}, nil
	}
	return info, err
}

func (o *Overlay) ReadDir(name string) ([]fs.DirEntry, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.readDirLocked(name)
}

func (o *Overlay) readDirLocked(name string) ([]fs.DirEntry, error) {
	if o.hiddenLocked(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	base, err := o.base.ReadDir(name)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(base))
	out := make([]fs.DirEntry, 0, len(base))
	for _, e := range base {
		child := path.Join(name, e.Name())
		if o.removed[child] {
			continue
		}
		seen[e.Name()] = true
		if _, ok := o.written[child]; ok {
			info, err := o.statLocked(child)
			if err != nil {
				return nil, err
			}
			out = append(out, fs.FileInfoToDirEntry(info))
			continue
		}
		out = append(out, e)
	}

	for child := range o.written {
		if path.Dir(child) != name || seen[path.Base(child)] {
			continue
		}
		info, err := o.statLocked(child)
		if err != nil {
			return nil, err
		}
		out = append(out, fs.FileInfoToDirEntry(info))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (o *Overlay) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	info, err := o.statLocked(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		entries, err := o.readDirLocked(name)
		if err != nil {
			return nil, err
		}
		return &overlayDir{info: info, entries: entries}, nil
	}
	if data, ok := o.written[name]; ok {
		return &overlayFile{info: info, Reader: bytes.NewReader(bytes.Clone(data))}, nil
	}
	return o.base.Open(name)
}

func (o *Overlay) WriteFile(name string, data []byte) error {
	if !fs.ValidPath(name) || name == "." {
		return &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if dir := path.Dir(name); dir != "." {
		info, err := o.statLocked(dir)
		if err != nil {
			return &fs.PathError{Op: "write", Path: name, Err: err}
		}
		if !info.IsDir() {
			return &fs.PathError{Op: "write", Path: name, Err: errors.New("parent is not a directory")}
		}
	}
	if info, err := o.statLocked(name); err == nil && info.IsDir() {
		return &fs.PathError{Op: "write", Path: name, Err: errors.New("is a directory")}
	}

	delete(o.removed, name)
	o.written[name] = bytes.Clone(data)
	return nil
}

func (o *Overlay) Remove(name string) error {
	if name == "." {
		return &fs.PathError{Op: "remove", Path: name, Err: errors.New("refusing to remove the working directory")}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	info, err := o.statLocked(name)
	if err != nil {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	if info.IsDir() {
		entries, err := o.readDirLocked(name)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			return &fs.PathError{Op: "remove", Path: name, Err: errors.New("directory not empty")}
		}
	}
	o.hideLocked(name)
	return nil
}

func (o *Overlay) RemoveAll(name string) error {
	if name == "." {
		return &fs.PathError{Op: "remove", Path: name, Err: errors.New("refusing to remove the working directory")}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.statLocked(name); err != nil {
		return nil
	}
	o.hideLocked(name)
	return nil
}

func (o *Overlay) hideLocked(name string) {
	o.removed[name] = true
	delete(o.written, name)
	prefix := name + "/"
	for k := range o.written {
		if strings.HasPrefix(k, prefix) {
			delete(o.written, k)
		}
	}
}

type overlayInfo struct {
	name string
	size int64
	mode fs.FileMode
}

func (i *overlayInfo) Name() string       { return i.name }
func (i *overlayInfo) Size() int64        { return i.size }
func (i *overlayInfo) Mode() fs.FileMode  { return i.mode }
func (i *overlayInfo) ModTime() time.Time { return time.Time{} }
func (i *overlayInfo) IsDir() bool        { return i.mode.IsDir() }
func (i *overlayInfo) Sys() any           { return nil }

type overlayFile struct {
	*bytes.Reader
	info fs.FileInfo
}

func (f *overlayFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *overlayFile) Close() error               { return nil }

type overlayDir struct {
	info    fs.FileInfo
	entries []fs.DirEntry
	offset  int
}

func (d *overlayDir) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *overlayDir) Close() error               { return nil }

func (d *overlayDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.Name(), Err: errors.New("is a directory")}
}

func (d *overlayDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.offset += n
	return rest[:n], nil
}
