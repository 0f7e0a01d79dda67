package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/bianoble/template-cleanup/internal/fsys"
)

var (
	nodeDepSections = []string{"dependencies", "optionalDependencies", "peerDependencies"}
	nodeDevSections = []string{"devDependencies"}
)

// nodeAdapter edits package.json in place and deletes the manager's
// lockfile after any change. Lockfiles are never patched.
type nodeAdapter struct {
	name      string
	lockfiles []string
}

func NPM() Adapter {
	return &nodeAdapter{name: "npm", lockfiles: []string{"package-lock.json", "npm-shrinkwrap.json"}}
}

func Yarn() Adapter {
	return &nodeAdapter{name: "yarn", lockfiles: []string{"yarn.lock"}}
}

func PNPM() Adapter {
	return &nodeAdapter{name: "pnpm", lockfiles: []string{"pnpm-lock.yaml"}}
}

func (a *nodeAdapter) Name() string { return a.name }

func (a *nodeAdapter) Prune(ctx context.Context, fs fsys.FileSystem, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest := "package.json"
	if req.Manifest != "" {
		manifest = fsys.Clean(req.Manifest)
	}

	data, ok, err := readManifest(fs, manifest)
	if err != nil || !ok {
		return &Result{}, err
	}
	if !gjson.ValidBytes(data) {
		return nil, &ManifestError{Manager: a.name, Path: manifest, Err: errors.New("invalid JSON")}
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, &ManifestError{Manager: a.name, Path: manifest, Err: errors.New("top-level value is not an object")}
	}

	res := &Result{}
	remove := func(deps, sections []string) error {
		for _, dep := range deps {
			for _, section := range sections {
				p := section + "." + escapePath(dep)
				if !gjson.GetBytes(data, p).Exists() {
					continue
				}
				out, err := sjson.DeleteBytes(data, p)
				if err != nil {
					return &ManifestError{Manager: a.name, Path: manifest, Err: fmt.Errorf("removing %s: %w", dep, err)}
				}
				data = out
				res.Removals = append(res.Removals, Removal{Dependency: dep, Section: section, Manifest: manifest})
			}
		}
		return nil
	}
	if err := remove(req.Deps, nodeDepSections); err != nil {
		return nil, err
	}
	if err := remove(req.DevDeps, nodeDevSections); err != nil {
		return nil, err
	}

	if len(res.Removals) == 0 {
		return res, nil
	}

	if err := writeManifest(fs, manifest, data, req.DryRun); err != nil {
		return nil, err
	}

	for _, lf := range a.lockfiles {
		lock := sibling(manifest, lf)
		if _, err := fs.Stat(lock); err != nil || req.skip(lock) {
			continue
		}
		if !req.DryRun {
			if err := fs.Remove(lock); err != nil && !fsys.IsNotExist(err) {
				return nil, fmt.Errorf("deleting %s: %w", lock, err)
			}
		}
		res.DeletedLockfiles = append(res.DeletedLockfiles, lock)
	}

	return res, nil
}

// escapePath escapes a package name for use as one gjson/sjson path
// component. Scoped names such as "@types/node" need the "@" escaped.
func escapePath(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', '[', ']', '{', '}', '(', ')', ',', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
