package pkgmgr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/bianoble/template-cleanup/internal/fsys"
)

const packageJSON = `{
  "name": "demo",
  "dependencies": {
    "left-pad": "1.0.0",
    "react": "^18.2.0",
    "@types/node": "^20.0.0"
  },
  "devDependencies": {
    "jest": "^29.0.0",
    "left-pad": "1.0.0"
  }
}
`

func TestNPMLeftPad(t *testing.T) {
	mem := fsys.NewMem(map[string]string{
		"package.json":      packageJSON,
		"package-lock.json": "{}",
		"yarn.lock":         "",
	})

	res, err := NPM().Prune(context.Background(), mem, Request{Deps: []string{"left-pad"}})
	require.NoError(t, err)

	assert.Equal(t, []Removal{{Dependency: "left-pad", Section: "dependencies", Manifest: "package.json"}}, res.Removals)
	assert.Equal(t, []string{"package-lock.json"}, res.DeletedLockfiles)

	files := mem.Files()
	assert.NotContains(t, files, "package-lock.json")
	assert.Contains(t, files, "yarn.lock", "other managers' lockfiles are kept")

	pkg := files["package.json"]
	assert.True(t, gjson.Valid(pkg))
	assert.False(t, gjson.Get(pkg, "dependencies.left-pad").Exists())
	assert.True(t, gjson.Get(pkg, "dependencies.react").Exists())
	assert.True(t, gjson.Get(pkg, "devDependencies.left-pad").Exists(), "dev section untouched by remove_deps")
	assert.Contains(t, pkg, "\"name\": \"demo\"", "formatting preserved")
}

func TestNodeScopedAndDevDeps(t *testing.T) {
	mem := fsys.NewMem(map[string]string{"package.json": packageJSON, "pnpm-lock.yaml": "x"})

	res, err := PNPM().Prune(context.Background(), mem, Request{
		Deps:    []string{"@types/node"},
		DevDeps: []string{"jest", "missing"},
	})
	require.NoError(t, err)

	require.Len(t, res.Removals, 2)
	assert.Equal(t, "@types/node", res.Removals[0].Dependency)
	assert.Equal(t, Removal{Dependency: "jest", Section: "devDependencies", Manifest: "package.json"}, res.Removals[1])

	pkg := mem.Files()["package.json"]
	assert.False(t, gjson.Get(pkg, `dependencies.\@types/node`).Exists())
	assert.False(t, gjson.Get(pkg, "devDependencies.jest").Exists())
	assert.NotContains(t, mem.Files(), "pnpm-lock.yaml")
}

func TestNodeDryRunWritesNothing(t *testing.T) {
	mem := fsys.NewMem(map[string]string{"package.json": packageJSON, "yarn.lock": "lock"})
	before := mem.Files()

	res, err := Yarn().Prune(context.Background(), mem, Request{Deps: []string{"react"}, DryRun: true})
	require.NoError(t, err)

	assert.Len(t, res.Removals, 1)
	assert.Equal(t, []string{"yarn.lock"}, res.DeletedLockfiles)
	assert.Equal(t, before, mem.Files())
}

func TestNodeNoChangeKeepsLockfile(t *testing.T) {
	mem := fsys.NewMem(map[string]string{"package.json": packageJSON, "package-lock.json": "{}"})

	res, err := NPM().Prune(context.Background(), mem, Request{Deps: []string{"lodash"}})
	require.NoError(t, err)
	assert.Empty(t, res.Removals)
	assert.Empty(t, res.DeletedLockfiles)
	assert.Contains(t, mem.Files(), "package-lock.json")
}

func TestNodeMissingAndMalformed(t *testing.T) {
	res, err := NPM().Prune(context.Background(), fsys.NewMem(nil), Request{Deps: []string{"x"}})
	require.NoError(t, err)
	assert.Empty(t, res.Removals)

	_, err = NPM().Prune(context.Background(), fsys.NewMem(map[string]string{"package.json": "{nope"}), Request{Deps: []string{"x"}})
	var me *ManifestError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "npm", me.Manager)

	_, err = NPM().Prune(context.Background(), fsys.NewMem(map[string]string{"package.json": "[1]"}), Request{Deps: []string{"x"}})
	require.ErrorAs(t, err, &me)
}

func TestNodeCustomManifestPath(t *testing.T) {
	mem := fsys.NewMem(map[string]string{
		"web/package.json":      packageJSON,
		"web/package-lock.json": "{}",
		"package-lock.json":     "{}",
	})

	res, err := NPM().Prune(context.Background(), mem, Request{Manifest: "./web/package.json", Deps: []string{"react"}})
	require.NoError(t, err)
	assert.Equal(t, "web/package.json", res.Removals[0].Manifest)
	assert.Equal(t, []string{"web/package-lock.json"}, res.DeletedLockfiles)
	assert.Contains(t, mem.Files(), "package-lock.json")
}

func TestNodeSkipProtectsLockfile(t *testing.T) {
	mem := fsys.NewMem(map[string]string{"package.json": packageJSON, "package-lock.json": "{}"})
	req := Request{
		Deps: []string{"left-pad"},
		Skip: func(path string) bool { return path == "package-lock.json" },
	}

	res, err := NPM().Prune(context.Background(), mem, req)
	require.NoError(t, err)

	assert.Len(t, res.Removals, 1)
	assert.Empty(t, res.DeletedLockfiles)
	assert.Contains(t, mem.Files(), "package-lock.json")
}
