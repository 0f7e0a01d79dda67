package pkgmgr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bianoble/template-cleanup/internal/fsys"
)

type fakeAdapter struct{ name string }

func (f fakeAdapter) Name() string { return f.name }

func (f fakeAdapter) Prune(context.Context, fsys.FileSystem, Request) (*Result, error) {
	return &Result{}, nil
}

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, []string{"go", "gradle", "maven", "npm", "nuget", "pip", "pnpm", "poetry", "yarn"}, r.Names())

	for _, name := range r.Names() {
		a, err := r.Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, a.Name())
		assert.False(t, r.IsCustom(name))
	}

	a, err := r.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, DefaultManager, a.Name())

	a, err = r.Lookup("NPM")
	require.NoError(t, err)
	assert.Equal(t, "npm", a.Name())
}

func TestRegistryUnknown(t *testing.T) {
	_, err := NewRegistry().Lookup("cargo")
	require.ErrorIs(t, err, ErrUnknownManager)
	assert.Contains(t, err.Error(), "npm")
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(fakeAdapter{name: "cargo"}))
	assert.True(t, r.IsCustom("cargo"))
	require.Error(t, r.Register(fakeAdapter{name: "cargo"}))

	// Built-ins may be replaced once.
	require.NoError(t, r.Register(fakeAdapter{name: "npm"}))
	assert.True(t, r.IsCustom("npm"))
	a, err := r.Lookup("npm")
	require.NoError(t, err)
	assert.IsType(t, fakeAdapter{}, a)
}
