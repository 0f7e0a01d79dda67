package markers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bianoble/template-cleanup/internal/cache"
)

const pythonFixture = `from fastapi import FastAPI

app = FastAPI()

# TEMPLATE-ONLY:START
def template_only_function():
    return "Should not exist in production"
# TEMPLATE-ONLY:END

@app.get("/")
async def root():
    return {"message": "Hello World"}

# @template-only
def another_template_function():
    pass
`

func TestParsePythonFixture(t *testing.T) {
	p := NewParser(Options{})
	res := p.Parse("src/main.py", []byte(pythonFixture))

	require.Len(t, res.Blocks, 1)
	assert.Equal(t, Block{Type: TypeTemplateOnly, StartLine: 4, EndLine: 7}, res.Blocks[0])
	assert.Equal(t, []int{13}, res.Tags)
}

func TestParseSyntaxPerExtension(t *testing.T) {
	p := NewParser(Options{})

	tests := []struct {
		name    string
		file    string
		content string
		blocks  int
	}{
		{name: "go line comment", file: "main.go", content: "// TEMPLATE-ONLY:START\nx\n// TEMPLATE-ONLY:END\n", blocks: 1},
		{name: "go block comment", file: "main.go", content: "/* TEMPLATE-ONLY:START */\nx\n/* TEMPLATE-ONLY:END */\n", blocks: 1},
		{name: "html", file: "index.html", content: "<!-- TEMPLATE-ONLY:START -->\n<p/>\n<!-- TEMPLATE-ONLY:END -->", blocks: 1},
		{name: "css", file: "a.css", content: "/* TEMPLATE-ONLY:START */\na{}\n/* TEMPLATE-ONLY:END */", blocks: 1},
		{name: "sql", file: "q.sql", content: "-- TEMPLATE-ONLY:START\nSELECT 1;\n-- TEMPLATE-ONLY:END", blocks: 1},
		{name: "wrong token for file", file: "q.sql", content: "# TEMPLATE-ONLY:START\nSELECT 1;\n# TEMPLATE-ONLY:END", blocks: 0},
		{name: "dockerfile base name", file: "build/Dockerfile", content: "# TEMPLATE-ONLY:START\nRUN x\n# TEMPLATE-ONLY:END", blocks: 1},
		{name: "unknown extension falls back", file: "notes.zzz", content: "// TEMPLATE-ONLY:START\nx\n// TEMPLATE-ONLY:END", blocks: 1},
		{name: "token in code is ignored", file: "a.go", content: `s := "TEMPLATE-ONLY:START"` + "\nx\n// TEMPLATE-ONLY:END", blocks: 0},
		{name: "indented markers", file: "a.ts", content: "  // TEMPLATE-ONLY:START\n  x\n\t// TEMPLATE-ONLY:END", blocks: 1},
		{name: "crlf", file: "a.ts", content: "// TEMPLATE-ONLY:START\r\nx\r\n// TEMPLATE-ONLY:END\r\n", blocks: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := p.Parse(tc.file, []byte(tc.content))
			assert.Len(t, res.Blocks, tc.blocks)
		})
	}
}

func TestParseUnterminatedBlockIsDropped(t *testing.T) {
	p := NewParser(Options{})
	res := p.Parse("a.go", []byte("// TEMPLATE-ONLY:START\nx\ny\n"))
	assert.Empty(t, res.Blocks)
}

func TestParseNoNesting(t *testing.T) {
	p := NewParser(Options{})
	content := `// TEMPLATE-ONLY:START
// CONDITIONAL:START
a
// CONDITIONAL:END
b
// TEMPLATE-ONLY:END
// CONDITIONAL:START
c
// CONDITIONAL:END
`
	res := p.Parse("a.go", []byte(content))

	assert.Equal(t, []Block{
		{Type: TypeTemplateOnly, StartLine: 0, EndLine: 5},
		{Type: TypeConditional, StartLine: 6, EndLine: 8},
	}, res.Blocks)
	assert.Len(t, res.BlocksOf(TypeConditional), 1)
	assert.Len(t, res.BlocksOf(TypeTemplateOnly), 1)
}

func TestParseTagsInsideBlocksAndInline(t *testing.T) {
	p := NewParser(Options{})
	content := `// TEMPLATE-ONLY:START
debug() // @template-only
// TEMPLATE-ONLY:END
log("@template-only")
`
	res := p.Parse("a.js", []byte(content))

	require.Len(t, res.Blocks, 1)
	assert.Equal(t, 2, res.Blocks[0].EndLine, "tag inside block does not close it")
	assert.Equal(t, []int{1}, res.Tags, "tag outside a comment is ignored")
}

func TestCustomOptions(t *testing.T) {
	p := NewParser(Options{
		Syntax:  map[string]Syntax{"tpl": {Line: "{{!--"}},
		Pairs:   map[string]Pair{TypeTemplateOnly: {Start: "TEMPLATE-ONLY-START", End: "TEMPLATE-ONLY-END"}},
		LineTag: "@strip",
	})

	res := p.Parse("view.tpl", []byte("{{!-- TEMPLATE-ONLY-START\nx\n{{!-- TEMPLATE-ONLY-END\n{{!-- @strip\n"))
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, []int{3}, res.Tags)

	assert.Equal(t, "@strip", p.LineTag())
	assert.True(t, p.HasType(TypeConditional), "defaults are kept")
	assert.Contains(t, p.Extensions(), ".tpl")
}

func TestDefaultSpellings(t *testing.T) {
	p := NewParser(Options{})

	colon := p.Parse("a.js", []byte("// TEMPLATE-ONLY:START\nx\n// TEMPLATE-ONLY:END\n"))
	hyphen := p.Parse("a.js", []byte("// TEMPLATE-ONLY-START\nx\n// TEMPLATE-ONLY-END\n"))
	cond := p.Parse("a.js", []byte("// CONDITIONAL-START\nx\n// CONDITIONAL-END\n"))
	require.Len(t, colon.Blocks, 1)
	require.Len(t, hyphen.Blocks, 1)
	require.Len(t, cond.BlocksOf(TypeConditional), 1)

	mixed := p.Parse("a.js", []byte("// TEMPLATE-ONLY-START\nx\n// TEMPLATE-ONLY:END\n"))
	assert.Empty(t, mixed.Blocks, "a block closes only with its own spelling")

	custom := NewParser(Options{Pairs: map[string]Pair{TypeTemplateOnly: {Start: "STRIP>", End: "<STRIP"}}})
	assert.Empty(t, custom.Parse("a.js", []byte("// TEMPLATE-ONLY-START\nx\n// TEMPLATE-ONLY-END\n")).Blocks,
		"an overridden pair drops the default spellings")
}

func TestParseCached(t *testing.T) {
	p := NewParser(Options{})
	c := cache.NewMemory(0, 0)
	content := []byte("// TEMPLATE-ONLY:START\nx\n// TEMPLATE-ONLY:END\n")

	first, hit := p.ParseCached(c, "/abs/a.go", content)
	assert.False(t, hit)
	second, hit := p.ParseCached(c, "/abs/a.go", content)
	assert.True(t, hit)
	assert.Equal(t, first, second)

	// Different settings never share entries.
	other := NewParser(Options{LineTag: "@other"})
	_, hit = other.ParseCached(c, "/abs/a.go", content)
	assert.False(t, hit)

	// Nil cache parses directly.
	res, hit := p.ParseCached(nil, "/abs/a.go", content)
	assert.False(t, hit)
	assert.Equal(t, first, res)
}
