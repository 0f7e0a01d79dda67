// Package transform rewrites file content line by line.
package transform

import (
	"bytes"
	"sort"
	"strings"
	"unicode/utf8"
)

// Span is an inclusive range of 0-based line indices.
type Span struct {
	Start int
	End   int
}

// Len returns the number of lines covered.
func (s Span) Len() int { return s.End - s.Start + 1 }

// SplitLines splits content on "\n". Carriage returns stay attached to their
// line, so JoinLines(SplitLines(b)) == b.
func SplitLines(content []byte) []string {
	return strings.Split(string(content), "\n")
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines []string) []byte {
	return []byte(strings.Join(lines, "\n"))
}

// RemoveSpans deletes every span from lines, splicing in descending order of
// start line so earlier indices stay valid. Out-of-range and overlapping
// spans are clipped. It returns the new lines and the number removed.
func RemoveSpans(lines []string, spans []Span) ([]string, int) {
	if len(spans) == 0 {
		return lines, 0
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	out := make([]string, len(lines))
	copy(out, lines)

	removed := 0
	limit := len(out) // spans must end before this index
	for _, s := range sorted {
		start, end := max(s.Start, 0), min(s.End, limit-1)
		if start > end {
			continue
		}
		out = append(out[:start], out[end+1:]...)
		removed += end - start + 1
		limit = start
	}

	return out, removed
}

// RemoveLines deletes the given line indices. Duplicates are ignored.
func RemoveLines(lines []string, indices []int) ([]string, int) {
	spans := make([]Span, 0, len(indices))
	for _, i := range indices {
		spans = append(spans, Span{Start: i, End: i})
	}
	return RemoveSpans(lines, dedupe(spans))
}

func dedupe(spans []Span) []Span {
	seen := make(map[Span]bool, len(spans))
	out := spans[:0]
	for _, s := range spans {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// IsText reports whether content looks like text: valid UTF-8 with no NUL.
func IsText(content []byte) bool {
	return utf8.Valid(content) && bytes.IndexByte(content, 0) < 0
}

// IsBlank reports whether content is empty once whitespace is trimmed.
func IsBlank(content []byte) bool {
	return len(bytes.TrimSpace(content)) == 0
}
