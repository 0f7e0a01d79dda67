package pkgmgr

import (
	"context"
	"fmt"

	"golang.org/x/mod/modfile"

	"github.com/bianoble/template-cleanup/internal/fsys"
)

type goAdapter struct{}

// Go prunes require directives from go.mod. Go has no dev dependencies, so
// both lists are treated alike. go.sum is left for `go mod tidy`.
func Go() Adapter { return goAdapter{} }

func (goAdapter) Name() string { return "go" }

func (a goAdapter) Prune(ctx context.Context, fs fsys.FileSystem, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest := "go.mod"
	if req.Manifest != "" {
		manifest = fsys.Clean(req.Manifest)
	}
	data, ok, err := readManifest(fs, manifest)
	if err != nil || !ok {
		return &Result{}, err
	}

	f, err := modfile.Parse(manifest, data, nil)
	if err != nil {
		return nil, &ManifestError{Manager: a.Name(), Path: manifest, Err: err}
	}

	required := make(map[string]*modfile.Require, len(f.Require))
	for _, r := range f.Require {
		required[r.Mod.Path] = r
	}

	res := &Result{}
	for _, dep := range append(append([]string{}, req.Deps...), req.DevDeps...) {
		r, ok := required[dep]
		if !ok {
			continue
		}
		section := "require"
		if r.Indirect {
			section = "require (indirect)"
		}
		if err := f.DropRequire(dep); err != nil {
			return nil, &ManifestError{Manager: a.Name(), Path: manifest, Err: err}
		}
		delete(required, dep)
		res.Removals = append(res.Removals, Removal{Dependency: dep, Section: section, Manifest: manifest})
	}

	if len(res.Removals) == 0 {
		return res, nil
	}

	f.Cleanup()
	out, err := f.Format()
	if err != nil {
		return nil, fmt.Errorf("formatting %s: %w", manifest, err)
	}
	if err := writeManifest(fs, manifest, out, req.DryRun); err != nil {
		return nil, err
	}
	return res, nil
}
