// Package dynfile holds the data model shared by the comparer, the summary
// renderer and the writer: managed file descriptors, their classified diffs
// and the aggregate change matrix.
package dynfile

// Category groups dynamic files into report sections
type Category string

// DynamicFile describes a single generated file or directory
type DynamicFile struct {
	Path     string   // canonical absolute path
	AltPaths []string // legacy locations, in declared order
	Category Category
	ID       string // unique within Category
	IsDir    bool
}

// Diff is the classified comparison of one DynamicFile against disk
type Diff struct {
	Status Status
	Before string // content found on disk, empty if none
	After  string // generated content, empty means disabled

	// PathBefore is the legacy path the entity was found at when it moved.
	PathBefore string

	// Conflicts holds soft diagnostics that did not stop classification.
	Conflicts []string
}

// Item pairs a descriptor with its diff
type Item struct {
	File DynamicFile
	Diff Diff
}
