// Package compare reconciles generated dynamic files against the state of a
// repository on disk. It classifies every entry, builds the change matrix and
// renders the summary report. It never writes to the filesystem.
package compare

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/schaermu/dynfiles/internal/discover"
	"github.com/schaermu/dynfiles/internal/dynfile"
	"github.com/schaermu/dynfiles/internal/summary"
)

var (
	// ErrNotRegularFile is returned when a file entry's path holds something
	// other than a regular file.
	ErrNotRegularFile = errors.New("path exists but is not a regular file")

	// ErrNotDirectory is returned when a directory entry's path holds a
	// non-directory.
	ErrNotDirectory = errors.New("path exists but is not a directory")
)

// ConflictPolicy decides how multiple alternate candidates are resolved
type ConflictPolicy string

const (
	// ConflictCanonical keeps the canonical classification on conflict
	ConflictCanonical ConflictPolicy = "canonical"
	// ConflictFirstAlt compares against the first alternate candidate in
	// declared order when the canonical file is absent
	ConflictFirstAlt ConflictPolicy = "first-alt"
)

// Valid reports whether p is a known policy
func (p ConflictPolicy) Valid() bool {
	switch p {
	case ConflictCanonical, ConflictFirstAlt:
		return true
	}
	return false
}

// Entry is a descriptor together with its freshly generated content
type Entry struct {
	File    dynfile.DynamicFile
	Content string
}

// EntryError is the failure to classify a single entry
type EntryError struct {
	File dynfile.DynamicFile
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s/%s (%s): %v", e.File.Category, e.File.ID, e.File.Path, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a comparison pass
type Result struct {
	Items    []dynfile.Item // ordered by category, then relative path
	Matrix   *dynfile.ChangeMatrix
	Summary  string
	Failures []*EntryError
}

// Comparer classifies dynamic files relative to a repository root
type Comparer struct {
	root     string
	logger   *slog.Logger
	order    []dynfile.Category
	policy   ConflictPolicy
	renderer *summary.Renderer
}

// Option configures a Comparer
type Option func(*Comparer)

// WithCategoryOrder fixes the order of categories in results and reports.
// Categories not listed follow in order of first appearance.
func WithCategoryOrder(categories ...dynfile.Category) Option {
	return func(c *Comparer) {
		c.order = append([]dynfile.Category(nil), categories...)
	}
}

// WithConflictPolicy sets how multi-location conflicts are resolved
func WithConflictPolicy(p ConflictPolicy) Option {
	return func(c *Comparer) {
		c.policy = p
	}
}

// WithRenderer replaces the default summary renderer
func WithRenderer(r *summary.Renderer) Option {
	return func(c *Comparer) {
		c.renderer = r
	}
}

// NewComparer creates a comparer for the repository at root
func NewComparer(root string, logger *slog.Logger, opts ...Option) *Comparer {
	c := &Comparer{
		root:   root,
		logger: logger,
		policy: ConflictCanonical,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.renderer == nil {
		c.renderer = summary.NewRenderer()
	}
	return c
}

// Compare classifies every entry against disk. Entries that cannot be
// classified are reported in Result.Failures and in the returned error, the
// remaining entries are still compared and rendered. The returned Result is
// never nil.
func (c *Comparer) Compare(entries []Entry) (*Result, error) {
	items := make([]dynfile.Item, 0, len(entries))
	var failures []*EntryError

	fail := func(f dynfile.DynamicFile, err error) {
		c.logger.Error("failed to compare dynamic file",
			"category", f.Category,
			"id", f.ID,
			"path", f.Path,
			"error", err)
		failures = append(failures, &EntryError{File: f, Err: err})
	}

	idx := newPathIndex(entries)

	// Directories are resolved right away, files afterwards.
	var files []Entry
	for _, e := range entries {
		if !e.File.IsDir {
			files = append(files, e)
			continue
		}
		d, err := c.compareDir(e.File, idx)
		if err != nil {
			fail(e.File, err)
			continue
		}
		items = append(items, dynfile.Item{File: e.File, Diff: d})
	}

	for _, e := range files {
		d, err := c.compareFile(e, idx)
		if err != nil {
			fail(e.File, err)
			continue
		}
		items = append(items, dynfile.Item{File: e.File, Diff: d})
	}

	items, matrix := c.aggregate(items)

	res := &Result{
		Items:    items,
		Matrix:   matrix,
		Summary:  c.renderer.Render(c.root, items, matrix),
		Failures: failures,
	}

	if len(failures) == 0 {
		return res, nil
	}
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return res, errors.Join(errs...)
}

// pathIndex records which entries claim a path, either as their canonical
// location or as an alternate one.
type pathIndex struct {
	primaries map[string]dynfile.DynamicFile
	alts      map[string][]dynfile.DynamicFile
}

func newPathIndex(entries []Entry) *pathIndex {
	idx := &pathIndex{
		primaries: make(map[string]dynfile.DynamicFile, len(entries)),
		alts:      make(map[string][]dynfile.DynamicFile),
	}
	for _, e := range entries {
		idx.primaries[e.File.Path] = e.File
		for _, alt := range e.File.AltPaths {
			if alt == e.File.Path {
				continue
			}
			owners := idx.alts[alt]
			if n := len(owners); n > 0 && sameFile(owners[n-1], e.File) {
				continue
			}
			idx.alts[alt] = append(owners, e.File)
		}
	}
	return idx
}

// otherAltOwner returns an entry other than f that also declares alt as an
// alternate path.
func (x *pathIndex) otherAltOwner(f dynfile.DynamicFile, alt string) (dynfile.DynamicFile, bool) {
	for _, owner := range x.alts[alt] {
		if !sameFile(owner, f) {
			return owner, true
		}
	}
	return dynfile.DynamicFile{}, false
}

func sameFile(a, b dynfile.DynamicFile) bool {
	return a.Category == b.Category && a.ID == b.ID && a.Path == b.Path
}

// claimedPrimary reports whether alt is the canonical path of another entry.
// Such a candidate is annotated on d and must be skipped.
func (c *Comparer) claimedPrimary(f dynfile.DynamicFile, alt string, idx *pathIndex, d *dynfile.Diff) bool {
	owner, ok := idx.primaries[alt]
	if !ok {
		return false
	}
	c.logger.Warn("alternate path collides with another dynamic file",
		"id", f.ID, "path", alt, "owner", owner.ID)
	d.Conflicts = append(d.Conflicts,
		fmt.Sprintf("alternate path %s is the canonical path of %s/%s", alt, owner.Category, owner.ID))
	return true
}

// claimedAlt reports whether an existing alt is also declared as alternate
// path by another entry. Neither entry may move it, so it is annotated on d
// and must be skipped.
func (c *Comparer) claimedAlt(f dynfile.DynamicFile, alt string, idx *pathIndex, d *dynfile.Diff) bool {
	owner, ok := idx.otherAltOwner(f, alt)
	if !ok {
		return false
	}
	c.logger.Warn("alternate path is shared with another dynamic file",
		"id", f.ID, "path", alt, "other", owner.ID)
	d.Conflicts = append(d.Conflicts,
		fmt.Sprintf("alternate path %s is also an alternate path of %s/%s", alt, owner.Category, owner.ID))
	return true
}

// compareDir classifies a directory purely by where it currently exists.
func (c *Comparer) compareDir(f dynfile.DynamicFile, idx *pathIndex) (dynfile.Diff, error) {
	exists, err := dirExists(f.Path)
	if err != nil {
		return dynfile.Diff{}, err
	}
	if exists {
		return dynfile.Diff{Status: dynfile.StatusUnchanged}, nil
	}

	var d dynfile.Diff
	for _, alt := range f.AltPaths {
		if alt == f.Path || c.claimedPrimary(f, alt, idx, &d) {
			continue
		}
		altExists, err := dirExists(alt)
		if err != nil {
			if errors.Is(err, ErrNotDirectory) {
				c.logger.Error("alternate path is not a directory, skipping",
					"id", f.ID, "path", alt)
				d.Conflicts = append(d.Conflicts, fmt.Sprintf("alternate path %s is not a directory", alt))
				continue
			}
			return dynfile.Diff{}, err
		}
		if altExists && !c.claimedAlt(f, alt, idx, &d) {
			d.Status = dynfile.StatusMoved
			d.PathBefore = alt
			return d, nil
		}
	}

	d.Status = dynfile.StatusCreated
	return d, nil
}

type candidate struct {
	path    string
	content string
}

// compareFile classifies a file entry using its canonical path and, when
// declared, its alternate paths.
func (c *Comparer) compareFile(e Entry, idx *pathIndex) (dynfile.Diff, error) {
	f := e.File

	before, exists, err := readRegular(f.Path)
	if err != nil {
		return dynfile.Diff{}, err
	}
	main := dynfile.Diff{
		Status: classify(exists, before, e.Content),
		Before: before,
		After:  e.Content,
	}

	if len(f.AltPaths) == 0 {
		return main, nil
	}

	var candidates []candidate
	for _, alt := range f.AltPaths {
		if alt == f.Path || c.claimedPrimary(f, alt, idx, &main) {
			continue
		}
		content, ok, err := readRegular(alt)
		if err != nil {
			if errors.Is(err, ErrNotRegularFile) {
				c.logger.Error("alternate path is not a regular file, skipping",
					"id", f.ID, "path", alt)
				main.Conflicts = append(main.Conflicts, fmt.Sprintf("alternate path %s is not a regular file", alt))
				continue
			}
			return dynfile.Diff{}, err
		}
		if ok && !c.claimedAlt(f, alt, idx, &main) {
			candidates = append(candidates, candidate{path: alt, content: content})
		}
	}

	if len(candidates) == 0 {
		return main, nil
	}

	canonicalAbsent := !exists
	if canonicalAbsent && len(candidates) == 1 {
		return moved(main, candidates[0]), nil
	}

	paths := make([]string, 0, len(candidates)+1)
	if exists {
		paths = append(paths, f.Path)
	}
	for _, cand := range candidates {
		paths = append(paths, cand.path)
	}
	msg := fmt.Sprintf("found in multiple locations: %s", strings.Join(paths, ", "))
	c.logger.Error("dynamic file exists in multiple locations",
		"category", f.Category,
		"id", f.ID,
		"paths", paths)
	main.Conflicts = append(main.Conflicts, msg)

	if canonicalAbsent && c.policy == ConflictFirstAlt {
		return moved(main, candidates[0]), nil
	}
	return main, nil
}

// moved reclassifies a canonical-absent diff against a single legacy location.
func moved(main dynfile.Diff, cand candidate) dynfile.Diff {
	d := main
	d.Before = cand.content
	d.PathBefore = cand.path
	switch {
	case isEmpty(main.After):
		d.Status = dynfile.StatusMovedRemoved
	case trimmedEqual(cand.content, main.After):
		d.Status = dynfile.StatusMoved
	default:
		d.Status = dynfile.StatusMovedModified
	}
	return d
}

// classify applies the canonical-path decision table.
func classify(exists bool, before, after string) dynfile.Status {
	switch {
	case !exists && isEmpty(after):
		return dynfile.StatusDisabled
	case !exists:
		return dynfile.StatusCreated
	case trimmedEqual(before, after):
		return dynfile.StatusUnchanged
	case isEmpty(after):
		return dynfile.StatusRemoved
	default:
		return dynfile.StatusModified
	}
}

func trimmedEqual(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

func isEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// aggregate orders items by category then relative path and fills the
// change matrix in the same pass.
func (c *Comparer) aggregate(items []dynfile.Item) ([]dynfile.Item, *dynfile.ChangeMatrix) {
	rank := make(map[dynfile.Category]int, len(c.order))
	for _, cat := range c.order {
		if _, ok := rank[cat]; !ok {
			rank[cat] = len(rank)
		}
	}
	for _, it := range items {
		if _, ok := rank[it.File.Category]; !ok {
			rank[it.File.Category] = len(rank)
		}
	}

	sorted := make([]dynfile.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := rank[sorted[i].File.Category], rank[sorted[j].File.Category]
		if ri != rj {
			return ri < rj
		}
		return discover.RelativePath(c.root, sorted[i].File.Path) < discover.RelativePath(c.root, sorted[j].File.Path)
	})

	cats := make([]dynfile.Category, len(rank))
	for cat, r := range rank {
		cats[r] = cat
	}
	matrix := dynfile.NewChangeMatrix(cats...)
	for _, it := range sorted {
		if !matrix.Set(it.File.Category, it.File.ID, it.Diff.Status.Changed()) {
			c.logger.Error("duplicate dynamic file id within category",
				"category", it.File.Category, "id", it.File.ID)
		}
	}
	return sorted, matrix
}

// readRegular reads path if it exists. A missing path is not an error, any
// other stat or read failure is.
func readRegular(path string) (string, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", false, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), true, nil
}

func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s: %w", path, ErrNotDirectory)
	}
	return true, nil
}
