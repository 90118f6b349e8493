// Package summary renders compare results as a collapsible Markdown/HTML
// document suitable for CI comments and report files.
package summary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/schaermu/dynfiles/internal/discover"
	"github.com/schaermu/dynfiles/internal/dynfile"
	"github.com/schaermu/dynfiles/internal/textdiff"
)

const (
	defaultTitle = "Dynamic Files"
	inSyncLine   = "✅ All dynamic files are in sync with the repository."
)

// Renderer turns compare results into a report document
type Renderer struct {
	title        string
	structured   map[string]bool
	contextLines int
}

// RenderOption configures a Renderer
type RenderOption func(*Renderer)

// WithTitle sets the top-level heading
func WithTitle(title string) RenderOption {
	return func(r *Renderer) {
		if title != "" {
			r.title = title
		}
	}
}

// WithStructuredIDs replaces the ids whose content is JSON and gets
// pretty-printed before diffing
func WithStructuredIDs(ids ...string) RenderOption {
	return func(r *Renderer) {
		r.structured = make(map[string]bool, len(ids))
		for _, id := range ids {
			r.structured[id] = true
		}
	}
}

// WithContextLines sets the number of diff context lines. Zero shows only
// the changed lines.
func WithContextLines(n int) RenderOption {
	return func(r *Renderer) {
		r.contextLines = max(n, 0)
	}
}

// NewRenderer creates a renderer
func NewRenderer(opts ...RenderOption) *Renderer {
	r := &Renderer{
		title:        defaultTitle,
		structured:   map[string]bool{"metadata": true},
		contextLines: textdiff.DefaultContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render produces the report. Paths are displayed relative to root.
func (r *Renderer) Render(root string, items []dynfile.Item, matrix *dynfile.ChangeMatrix) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", r.title)

	changed := matrix != nil && matrix.AnyChanged()
	if !changed {
		b.WriteString(inSyncLine)
		b.WriteString("\n")
	}

	// In sync reports still surface items carrying conflicts.
	byCategory := make(map[dynfile.Category][]dynfile.Item)
	var order []dynfile.Category
	for _, it := range items {
		if !changed && len(it.Diff.Conflicts) == 0 {
			continue
		}
		cat := it.File.Category
		if _, ok := byCategory[cat]; !ok {
			order = append(order, cat)
		}
		byCategory[cat] = append(byCategory[cat], it)
	}
	if len(byCategory) == 0 {
		return b.String()
	}
	if !changed {
		b.WriteString("\n")
	}
	if matrix != nil {
		order = matrix.Categories()
	}

	for _, cat := range order {
		group := byCategory[cat]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", cat)
		for _, it := range group {
			r.writeItem(&b, root, it)
		}
	}

	writeLegend(&b)
	return b.String()
}

func (r *Renderer) writeItem(b *strings.Builder, root string, it dynfile.Item) {
	rel := discover.RelativePath(root, it.File.Path)
	display := rel
	if it.File.IsDir {
		display += "/"
	}
	status := it.Diff.Status

	b.WriteString("<details>\n")
	fmt.Fprintf(b, "<summary>%s %s</summary>\n\n", status.Icon(), html.EscapeString(display))
	fmt.Fprintf(b, "**%s**\n\n", status.Label())

	if status != dynfile.StatusDisabled {
		if it.Diff.PathBefore != "" {
			fmt.Fprintf(b, "- Old path: `%s`\n", discover.RelativePath(root, it.Diff.PathBefore))
			fmt.Fprintf(b, "- New path: `%s`\n\n", rel)
		} else {
			fmt.Fprintf(b, "- Path: `%s`\n\n", rel)
		}
	}

	for _, c := range it.Diff.Conflicts {
		fmt.Fprintf(b, "> [!CAUTION]\n> %s\n\n", c)
	}

	if !it.File.IsDir && status.Changed() {
		if body := r.contentDiff(root, it); body != "" {
			fence := codeFence(body)
			fmt.Fprintf(b, "%sdiff\n%s", fence, body)
			if !strings.HasSuffix(body, "\n") {
				b.WriteString("\n")
			}
			fmt.Fprintf(b, "%s\n\n", fence)
		}
	}

	b.WriteString("</details>\n\n")
}

// contentDiff returns the unified diff of an item's before and after
// content, or "" if there is nothing to show.
func (r *Renderer) contentDiff(root string, it dynfile.Item) string {
	before, after := it.Diff.Before, it.Diff.After
	if r.structured[it.File.ID] {
		before = prettyJSON(before)
		after = prettyJSON(after)
	}

	aPath := it.File.Path
	if it.Diff.PathBefore != "" {
		aPath = it.Diff.PathBefore
	}
	return textdiff.Unified(
		"a/"+discover.RelativePath(root, aPath),
		"b/"+discover.RelativePath(root, it.File.Path),
		before, after,
		textdiff.Options{Context: diffContext(r.contextLines)},
	)
}

// diffContext maps a context line count to textdiff options, where zero
// selects the default.
func diffContext(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

// prettyJSON re-indents s with sorted object keys. Content that is empty or
// not valid JSON is returned unchanged.
func prettyJSON(s string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return s
	}
	if dec.More() {
		return s
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return s
	}
	return buf.String()
}

// codeFence returns a backtick fence longer than any backtick run in body.
func codeFence(body string) string {
	longest, run := 0, 0
	for _, ch := range body {
		if ch == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}

func writeLegend(b *strings.Builder) {
	b.WriteString("#### Legend\n\n")
	b.WriteString("| Icon | Status | Meaning |\n")
	b.WriteString("|:---:|---|---|\n")
	for _, s := range dynfile.AllStatuses() {
		fmt.Fprintf(b, "| %s | %s | %s |\n", s.Icon(), s.Label(), s.Description())
	}
}
