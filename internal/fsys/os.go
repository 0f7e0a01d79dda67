package fsys

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// OS is a FileSystem rooted at a real directory. Mutating operations refuse
// any name that resolves (through symlinks) outside the root, and refuse to
// remove the root itself.
type OS struct {
	root  string
	dirFS fs.FS
}

// NewOS creates an OS filesystem rooted at dir.
func NewOS(dir string) (*OS, error) {
	absRoot, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving root symlinks: %w", err)
	}
	info, err := os.Stat(realRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", realRoot)
	}
	return &OS{root: realRoot, dirFS: os.DirFS(realRoot)}, nil
}

func (o *OS) Root() string { return o.root }

func (o *OS) Open(name string) (fs.File, error) { return o.dirFS.Open(name) }

func (o *OS) ReadFile(name string) ([]byte, error) { return fs.ReadFile(o.dirFS, name) }

func (o *OS) Stat(name string) (fs.FileInfo, error) { return fs.Stat(o.dirFS, name) }

func (o *OS) ReadDir(name string) ([]fs.DirEntry, error) { return fs.ReadDir(o.dirFS, name) }

// WriteFile atomically replaces name via a temp file in the same directory.
func (o *OS) WriteFile(name string, data []byte) error {
	resolved, err := o.resolve(name)
	if err != nil {
		return err
	}

	perm := os.FileMode(0644)
	if info, statErr := os.Stat(resolved); statErr == nil {
		perm = info.Mode().Perm()
	}

	dir := filepath.Dir(resolved)
	tmp, err := os.CreateTemp(dir, ".template-cleanup-*.tmp")
	if err != nil {
		return &fs.PathError{Op: "write", Path: name, Err: err}
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
		return &fs.PathError{Op: "write", Path: name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &fs.PathError{Op: "write", Path: name, Err: err}
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return &fs.PathError{Op: "chmod", Path: name, Err: err}
	}
	if err := os.Rename(tmpPath, resolved); err != nil {
		return &fs.PathError{Op: "rename", Path: name, Err: err}
	}

	success = true
	return nil
}

func (o *OS) Remove(name string) error {
	resolved, err := o.resolveRemovable(name)
	if err != nil {
		return err
	}
	return os.Remove(resolved)
}

func (o *OS) RemoveAll(name string) error {
	resolved, err := o.resolveRemovable(name)
	if err != nil {
		return err
	}
	return os.RemoveAll(resolved)
}

func (o *OS) resolveRemovable(name string) (string, error) {
	resolved, err := o.resolve(name)
	if err != nil {
		return "", err
	}
	if resolved == o.root {
		return "", &fs.PathError{Op: "remove", Path: name, Err: errors.New("refusing to remove the working directory")}
	}
	return resolved, nil
}

// resolve maps name to an absolute path and verifies it stays within root.
func (o *OS) resolve(name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: "resolve", Path: name, Err: fs.ErrInvalid}
	}

	candidate := filepath.Clean(filepath.Join(o.root, filepath.FromSlash(name)))
	resolved, err := resolveExistingPath(candidate)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", name, err)
	}

	// Trailing separator so that "root2" is not accepted for "root".
	rootPrefix := o.root + string(filepath.Separator)
	if resolved != o.root && !strings.HasPrefix(resolved, rootPrefix) {
		return "", fmt.Errorf("path '%s' resolves to '%s' which is outside the working directory '%s'", name, resolved, o.root)
	}
	return resolved, nil
}

// resolveExistingPath resolves symlinks for the longest existing prefix of
// path and appends the non-existing suffix.
func resolveExistingPath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}

	dir := filepath.Dir(path)
	if dir == path {
		return path, nil
	}

	resolvedDir, err := resolveExistingPath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, filepath.Base(path)), nil
}
