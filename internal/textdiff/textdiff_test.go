package textdiff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnified(t *testing.T) {
	got := Unified("a/x.yml", "b/x.yml", "line1\nline2\n", "line1\nline3\n", Options{})
	assert.Contains(t, got, "--- a/x.yml\n+++ b/x.yml\n")
	assert.Contains(t, got, "@@ -1,2 +1,2 @@\n")
	assert.Contains(t, got, " line1\n-line2\n+line3\n")
}

func TestUnified_Equal(t *testing.T) {
	assert.Empty(t, Unified("a", "b", "same\n", "same\n", Options{}))
}

func TestUnified_MissingTrailingNewline(t *testing.T) {
	got := Unified("a", "b", "a: 1", "a: 2", Options{})
	assert.Contains(t, got, "-a: 1\n+a: 2\n")
}

func TestUnified_Created(t *testing.T) {
	got := Unified("a", "b", "", "foo: bar", Options{})
	assert.Contains(t, got, "@@ -0,0 +1 @@\n+foo: bar\n")
}

func TestUnified_ContextLines(t *testing.T) {
	a := "1\n2\n3\n4\n5\n6\n7\n8\n9\n"
	b := "1\n2\n3\n4\nX\n6\n7\n8\n9\n"

	full := Unified("a", "b", a, b, Options{})
	assert.Contains(t, full, " 2\n")

	none := Unified("a", "b", a, b, Options{Context: -1})
	assert.NotContains(t, none, " 4\n")
	assert.Contains(t, none, "-5\n+X\n")
}

func TestDropHints(t *testing.T) {
	in := "- abc\n? ^\n+ abd\n?   ^\n  same\n"
	got := DropHints(in)
	assert.Equal(t, "- abc\n+ abd\n  same\n", got)
	assert.False(t, strings.Contains(got, "?"))

	plain := " a\n-b\n+c\n"
	assert.Equal(t, plain, DropHints(plain))
	assert.Equal(t, "+x\n", DropHints("? ^\n+x\n"))
}
