// Package pkgmgr removes dependencies from package manifests.
//
// Every ecosystem is handled by an [Adapter]: it locates the manifest,
// deletes the requested entries with a format-appropriate match, and writes
// the file back only when something changed. Formatting outside the removed
// entries is preserved.
package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/bianoble/template-cleanup/internal/fsys"
)

// DefaultManager is used when a rule names no manager.
const DefaultManager = "npm"

var ErrUnknownManager = errors.New("unknown package manager")

// Request describes one prune operation.
type Request struct {
	// Manifest overrides the adapter's default manifest location.
	Manifest string

	Deps    []string
	DevDeps []string

	// DryRun computes removals without writing or deleting anything.
	DryRun bool

	// Skip, when set, reports paths the adapter must not delete, such as
	// lockfiles the caller protects.
	Skip func(path string) bool
}

func (r Request) skip(path string) bool {
	return r.Skip != nil && r.Skip(path)
}

// Removal is one dependency entry removed from a manifest.
type Removal struct {
	Dependency string
	Section    string
	Manifest   string
}

// Result reports what an adapter did (or would do in a dry run).
type Result struct {
	Removals         []Removal
	DeletedLockfiles []string
}

// Adapter prunes dependencies for one package manager.
type Adapter interface {
	Name() string
	Prune(ctx context.Context, fsys fsys.FileSystem, req Request) (*Result, error)
}

// ManifestError reports a manifest that could not be parsed.
type ManifestError struct {
	Manager string
	Path    string
	Err     error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("%s: malformed manifest %s: %v", e.Manager, e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// readManifest returns the manifest content, or ok=false when it does not exist.
func readManifest(fs fsys.FileSystem, name string) ([]byte, bool, error) {
	data, err := fs.ReadFile(name)
	if fsys.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, true, nil
}

func writeManifest(fs fsys.FileSystem, name string, data []byte, dryRun bool) error {
	if dryRun {
		return nil
	}
	if err := fs.WriteFile(name, data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// sibling returns name placed in the directory of manifest.
func sibling(manifest, name string) string {
	dir := path.Dir(manifest)
	if dir == "." {
		return name
	}
	return path.Join(dir, name)
}

// manifests returns req.Manifest when set, otherwise every existing match of
// the default patterns, in order and without duplicates.
func manifests(fs fsys.FileSystem, req Request, patterns ...string) ([]string, error) {
	if req.Manifest != "" {
		return []string{fsys.Clean(req.Manifest)}, nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		matches, err := fsys.Glob(fs, p)
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", p, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}
