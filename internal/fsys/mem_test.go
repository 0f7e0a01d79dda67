package fsys

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemReadWrite(t *testing.T) {
	m := NewMem(map[string]string{"a/b.txt": "hello"})

	data, err := m.ReadFile("a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, m.WriteFile("a/b.txt", []byte("bye")))
	assert.Equal(t, map[string]string{"a/b.txt": "bye"}, m.Files())

	info, err := m.Stat("a")
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "directories are implied by their files")
}

func TestMemRemove(t *testing.T) {
	m := NewMem(map[string]string{"a/b.txt": "x", "a/c/d.txt": "y", "e.txt": "z"})
	m.Mkdir("empty")

	assert.Error(t, m.Remove("a"), "non-empty directory")
	require.NoError(t, m.Remove("empty"))
	require.NoError(t, m.Remove("e.txt"))
	assert.ErrorIs(t, m.Remove("e.txt"), fs.ErrNotExist)

	require.NoError(t, m.RemoveAll("a"))
	assert.Equal(t, []string{}, m.Names())

	assert.Error(t, m.RemoveAll("."))
}

func TestMemRemoveKeepsParentDirectories(t *testing.T) {
	m := NewMem(map[string]string{"a/b/c.txt": "x"})

	require.NoError(t, m.Remove("a/b/c.txt"))

	info, err := m.Stat("a/b")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := m.ReadDir("a/b")
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, m.Remove("a/b"))
	assert.Equal(t, []string{"a"}, m.Names())

	require.NoError(t, m.RemoveAll("a"))
	assert.Equal(t, []string{}, m.Names())
}

func TestGlobOnMem(t *testing.T) {
	m := NewMem(map[string]string{
		"scripts/setup-template.sh": "x",
		"scripts/build.sh":          "y",
		"README.template.md":        "z",
	})

	matches, err := Glob(m, "**/*template*")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.template.md", "scripts/setup-template.sh"}, matches)
}

func TestMatchAndClean(t *testing.T) {
	assert.True(t, Match("**/*.go", "cmd/app/main.go"))
	assert.True(t, Match("**/node_modules/**", "web/node_modules/x/index.js"))
	assert.False(t, Match("*.go", "cmd/main.go"))
	assert.False(t, Match("[", "x"), "malformed patterns never match")

	assert.True(t, ValidPattern("src/**/*.{ts,tsx}"))
	assert.False(t, ValidPattern("src/[abc"))

	assert.Equal(t, "docs/a.md", Clean("./docs/a.md"))
	assert.Equal(t, "docs/a.md", Clean("docs//x/../a.md"))
	assert.Equal(t, ".", Clean(""))
}
