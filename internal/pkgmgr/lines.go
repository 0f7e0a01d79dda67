package pkgmgr

import (
	"regexp"
	"strings"
)

// pythonNamePattern matches a Python distribution name with PEP 503
// normalization: case-insensitive, runs of "-", "_" and "." are equivalent.
func pythonNamePattern(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' || r == '.' })
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return `(?i)` + strings.Join(parts, `[-_.]+`)
}

// dropLines removes the given 0-based line indices from content. Indices are
// expected in ascending order.
func dropLines(content string, drop map[int]bool) string {
	if len(drop) == 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	out := lines[:0]
	for i, l := range lines {
		if !drop[i] {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// bracketDepth returns the net count of opening minus closing brackets and
// braces in line, ignoring quoted strings and trailing comments.
func bracketDepth(line string) int {
	depth := 0
	var quote rune
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '#':
			return depth
		case r == '[' || r == '{':
			depth++
		case r == ']' || r == '}':
			depth--
		}
	}
	return depth
}
