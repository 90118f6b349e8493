// Package textdiff renders line-oriented unified diffs with
// github.com/pmezard/go-difflib/difflib.
package textdiff

import (
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// DefaultContext is the number of context lines around each hunk
const DefaultContext = 3

// Options controls diff generation
type Options struct {
	// Context lines per hunk. Zero means DefaultContext, negative means none.
	Context int
}

// Unified returns a unified diff turning a into b, or "" when both are equal.
func Unified(aName, bName, a, b string, opt Options) string {
	if a == b {
		return ""
	}

	ctx := opt.Context
	switch {
	case ctx == 0:
		ctx = DefaultContext
	case ctx < 0:
		ctx = 0
	}

	u := difflib.UnifiedDiff{
		A:        splitLines(a),
		B:        splitLines(b),
		FromFile: aName,
		ToFile:   bName,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return ""
	}
	return DropHints(s)
}

// DropHints removes "? " guide lines that mark intraline changes in
// ndiff-style output; they carry no content of their own.
func DropHints(s string) string {
	if !strings.Contains(s, "\n? ") && !strings.HasPrefix(s, "? ") {
		return s
	}
	lines := strings.SplitAfter(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(l, "? ") {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "")
}

// splitLines splits s keeping newlines. A missing final newline is added so
// the last line diffs like any other.
func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	lines := strings.SplitAfter(s, "\n")
	return lines[:len(lines)-1]
}
