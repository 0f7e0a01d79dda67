// Package markers finds comment-delimited template markers in source files.
//
// Detection is lexical: a line is a marker when it is a comment (per the
// file's comment syntax) whose body contains a configured token. Nothing
// about the host language is understood beyond its comment tokens.
package markers

import (
	"sort"
	"strings"

	"github.com/bianoble/template-cleanup/internal/cache"
	"github.com/bianoble/template-cleanup/internal/transform"
)

// Built-in block marker types.
const (
	TypeTemplateOnly = "template_only"
	TypeConditional  = "conditional"
)

// DefaultLineTag marks a single line for removal.
const DefaultLineTag = "@template-only"

// Pair delimits a block.
type Pair struct {
	Start string
	End   string
}

// DefaultPairs are the block markers used unless overridden.
var DefaultPairs = map[string]Pair{
	TypeTemplateOnly: {Start: "TEMPLATE-ONLY:START", End: "TEMPLATE-ONLY:END"},
	TypeConditional:  {Start: "CONDITIONAL:START", End: "CONDITIONAL:END"},
}

// DefaultAliases are further spellings recognized for a default type until
// its pair is overridden. A block must close with the spelling it opened with.
var DefaultAliases = map[string][]Pair{
	TypeTemplateOnly: {{Start: "TEMPLATE-ONLY-START", End: "TEMPLATE-ONLY-END"}},
	TypeConditional:  {{Start: "CONDITIONAL-START", End: "CONDITIONAL-END"}},
}

// Block is a closed marker block. StartLine and EndLine are the 0-based
// indices of the start and end marker lines.
type Block struct {
	Type      string
	StartLine int
	EndLine   int
}

// Span returns the lines covered by the block, markers included.
func (b Block) Span() transform.Span {
	return transform.Span{Start: b.StartLine, End: b.EndLine}
}

// Result holds everything Parse found in one file. Values handed out by
// ParseCached are shared and must not be modified.
type Result struct {
	Blocks []Block
	Tags   []int
}

// BlocksOf returns the blocks of the given type.
func (r Result) BlocksOf(typ string) []Block {
	var out []Block
	for _, b := range r.Blocks {
		if b.Type == typ {
			out = append(out, b)
		}
	}
	return out
}

// Options configure a Parser. Entries are merged over the defaults.
type Options struct {
	Syntax  map[string]Syntax
	Pairs   map[string]Pair
	LineTag string
}

// Parser scans files for markers. It is immutable and safe for concurrent use.
type Parser struct {
	syntax  map[string]Syntax
	pairs   map[string][]Pair
	types   []string
	lineTag string
	scope   string
}

// NewParser builds a Parser from the defaults overlaid with opts.
func NewParser(opts Options) *Parser {
	p := &Parser{
		syntax:  make(map[string]Syntax, len(DefaultSyntax)+len(opts.Syntax)),
		pairs:   make(map[string][]Pair, len(DefaultPairs)+len(opts.Pairs)),
		lineTag: DefaultLineTag,
	}
	for k, v := range DefaultSyntax {
		p.syntax[k] = v
	}
	for k, v := range opts.Syntax {
		p.syntax[normalizeKey(k)] = v
	}
	for k, v := range DefaultPairs {
		p.pairs[k] = append([]Pair{v}, DefaultAliases[k]...)
	}
	for k, v := range opts.Pairs {
		p.pairs[k] = []Pair{v}
	}
	if opts.LineTag != "" {
		p.lineTag = opts.LineTag
	}

	for k := range p.pairs {
		p.types = append(p.types, k)
	}
	sort.Strings(p.types)

	p.scope = "markers/" + cache.ComputeHash([]byte(p.fingerprint()))[:16]
	return p
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	if !strings.HasPrefix(k, ".") && !strings.Contains(k, ".") {
		if _, known := DefaultSyntax[k]; !known {
			return "." + k
		}
	}
	return k
}

// fingerprint identifies the configuration so cached results from a parser
// with different settings are never reused.
func (p *Parser) fingerprint() string {
	var b strings.Builder
	keys := make([]string, 0, len(p.syntax))
	for k := range p.syntax {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k + "=" + p.syntax[k].String() + "\n")
	}
	for _, t := range p.types {
		for _, pair := range p.pairs[t] {
			b.WriteString(t + "=" + pair.Start + "\x00" + pair.End + "\n")
		}
	}
	b.WriteString("tag=" + p.lineTag)
	return b.String()
}

// SyntaxFor returns the comment syntax for name, or Fallback.
func (p *Parser) SyntaxFor(name string) Syntax {
	if s, ok := Lookup(p.syntax, name); ok {
		return s
	}
	return Fallback
}

// Extensions returns the known extensions (with the dot), sorted.
func (p *Parser) Extensions() []string {
	var out []string
	for k := range p.syntax {
		if strings.HasPrefix(k, ".") && strings.Count(k, ".") == 1 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// LineTag returns the active line tag token.
func (p *Parser) LineTag() string { return p.lineTag }

// HasType reports whether typ is a configured block marker type.
func (p *Parser) HasType(typ string) bool {
	_, ok := p.pairs[typ]
	return ok
}

// Parse scans content. Blocks are recorded only once their end marker is
// seen; a block left open at EOF is dropped. Blocks do not nest. Line tags
// are collected independently of block state.
func (p *Parser) Parse(name string, content []byte) Result {
	syn := p.SyntaxFor(name)
	lines := transform.SplitLines(content)

	var res Result
	open := ""
	openLine := 0
	var openPair Pair

	for i, line := range lines {
		if p.lineTag != "" {
			if body, ok := syn.comment(line, true); ok && strings.Contains(body, p.lineTag) {
				res.Tags = append(res.Tags, i)
			}
		}

		body, ok := syn.comment(line, false)
		if !ok {
			continue
		}

		if open != "" {
			if strings.Contains(body, openPair.End) {
				res.Blocks = append(res.Blocks, Block{Type: open, StartLine: openLine, EndLine: i})
				open = ""
			}
			continue
		}

	scan:
		for _, typ := range p.types {
			for _, pair := range p.pairs[typ] {
				if strings.Contains(body, pair.Start) {
					open, openLine, openPair = typ, i, pair
					break scan
				}
			}
		}
	}

	return res
}

// ParseCached is Parse memoized in c under (absPath, content hash). The
// second return reports a cache hit.
func (p *Parser) ParseCached(c cache.Cache, absPath string, content []byte) (Result, bool) {
	if c == nil {
		return p.Parse(absPath, content), false
	}

	key := cache.Key{Scope: p.scope, Path: absPath, Hash: cache.ComputeHash(content)}
	if v, ok := c.Get(key); ok {
		if res, ok := v.(Result); ok {
			return res, true
		}
	}

	res := p.Parse(absPath, content)
	c.Set(key, res)
	return res, false
}
