// Package fsys abstracts the filesystem operations the cleanup engine needs:
// read, write, remove, stat and glob expansion over a rooted tree.
//
// All names are slash-separated and relative to the root, as in [io/fs].
// Two implementations are provided: [OS], which is sandboxed to a real
// directory, and [Mem], an in-memory tree for tests.
package fsys

import (
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// FileSystem is the capability the engine uses for every file operation.
type FileSystem interface {
	fs.FS
	fs.ReadFileFS
	fs.StatFS
	fs.ReadDirFS

	// WriteFile replaces the content of name, keeping its permissions when
	// the file already exists.
	WriteFile(name string, data []byte) error

	// Remove removes a file or an empty directory.
	Remove(name string) error

	// RemoveAll removes name and any children it contains.
	RemoveAll(name string) error

	// Root returns the absolute path the names are relative to.
	Root() string
}

// Glob expands a doublestar pattern ("**" matches any number of directories)
// relative to the root. Results are sorted and include directories.
func Glob(fsys FileSystem, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Match reports whether name matches the doublestar pattern.
// Malformed patterns never match.
func Match(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

// ValidPattern reports whether pattern is a well-formed doublestar pattern.
func ValidPattern(pattern string) bool {
	return doublestar.ValidatePattern(pattern)
}

// Abs returns the absolute OS path of name within fsys.
func Abs(fsys FileSystem, name string) string {
	return filepath.Join(fsys.Root(), filepath.FromSlash(name))
}

// Clean normalizes a user-supplied relative path to the slash form used
// by FileSystem names.
func Clean(name string) string {
	cleaned := path.Clean(filepath.ToSlash(name))
	for len(cleaned) >= 2 && cleaned[:2] == "./" {
		cleaned = cleaned[2:]
	}
	if cleaned == "" {
		return "."
	}
	return cleaned
}

// IsNotExist reports whether err indicates a missing file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
