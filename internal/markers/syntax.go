package markers

import (
	"path"
	"strings"
)

// Syntax describes how comments are written in one kind of file. Either form
// may be empty, but not both.
type Syntax struct {
	Line       string
	BlockStart string
	BlockEnd   string
}

// Fallback is used for files with no known comment syntax.
var Fallback = Syntax{Line: "//"}

var (
	cLike  = Syntax{Line: "//", BlockStart: "/*", BlockEnd: "*/"}
	hash   = Syntax{Line: "#"}
	dashes = Syntax{Line: "--"}
	xml    = Syntax{BlockStart: "<!--", BlockEnd: "-->"}
)

// DefaultSyntax maps extensions (with the dot) and a few well-known base
// names to their comment syntax.
var DefaultSyntax = map[string]Syntax{
	".go": cLike, ".js": cLike, ".jsx": cLike, ".mjs": cLike, ".cjs": cLike,
	".ts": cLike, ".tsx": cLike, ".java": cLike, ".kt": cLike, ".kts": cLike,
	".scala": cLike, ".groovy": cLike, ".gradle": cLike, ".c": cLike, ".h": cLike,
	".cc": cLike, ".cpp": cLike, ".hpp": cLike, ".cs": cLike, ".swift": cLike,
	".rs": cLike, ".dart": cLike, ".php": cLike, ".proto": cLike,
	".scss": cLike, ".less": cLike, ".jsonc": cLike,

	".py": hash, ".rb": hash, ".sh": hash, ".bash": hash, ".zsh": hash,
	".ps1": hash, ".pl": hash, ".r": hash, ".yaml": hash, ".yml": hash,
	".toml": hash, ".tf": hash, ".cfg": hash, ".conf": hash, ".env": hash,
	".mk": hash, ".cmake": hash, ".ex": hash, ".exs": hash, ".nim": hash,
	"dockerfile": hash, "makefile": hash, ".gitignore": hash, ".dockerignore": hash,

	".sql": dashes, ".lua": dashes, ".hs": dashes, ".elm": dashes,

	".html": xml, ".htm": xml, ".xml": xml, ".md": xml, ".vue": xml,
	".svelte": xml, ".csproj": xml, ".svg": xml,

	".css": {BlockStart: "/*", BlockEnd: "*/"},
	".clj": {Line: ";"}, ".ini": {Line: ";"}, ".lisp": {Line: ";"},
	".erl": {Line: "%"}, ".tex": {Line: "%"},
	".vb": {Line: "'"}, ".bas": {Line: "'"},
}

// Lookup returns the syntax for name from table: an exact (lower-cased) base
// name match wins over the extension.
func Lookup(table map[string]Syntax, name string) (Syntax, bool) {
	base := strings.ToLower(path.Base(name))
	if s, ok := table[base]; ok {
		return s, true
	}
	if s, ok := table[path.Ext(base)]; ok {
		return s, true
	}
	return Syntax{}, false
}

// comment returns the comment body of line. A line is a comment when, after
// leading whitespace, it starts with the line token, or when it holds a block
// start token followed by a block end token. With inline set, a line token
// may appear anywhere in the line.
func (s Syntax) comment(line string, inline bool) (string, bool) {
	trimmed := strings.TrimSpace(line)

	if s.Line != "" {
		if body, ok := strings.CutPrefix(trimmed, s.Line); ok {
			return body, true
		}
		if inline {
			if i := strings.Index(trimmed, s.Line); i >= 0 {
				return trimmed[i+len(s.Line):], true
			}
		}
	}

	if s.BlockStart != "" && s.BlockEnd != "" {
		if i := strings.Index(trimmed, s.BlockStart); i >= 0 {
			rest := trimmed[i+len(s.BlockStart):]
			if j := strings.Index(rest, s.BlockEnd); j >= 0 {
				return rest[:j], true
			}
		}
	}

	return "", false
}

func (s Syntax) String() string {
	return s.Line + "\x00" + s.BlockStart + "\x00" + s.BlockEnd
}
