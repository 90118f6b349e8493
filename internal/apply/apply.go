// Package apply persists compare results to disk: generated content is
// written atomically, removed entries are deleted and moved entries leave
// their legacy location.
package apply

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/schaermu/dynfiles/internal/dynfile"
)

// Writer applies classified diffs to the filesystem
type Writer struct {
	logger *slog.Logger
	dryRun bool
}

// NewWriter creates a new writer
func NewWriter(logger *slog.Logger, dryRun bool) *Writer {
	return &Writer{
		logger: logger,
		dryRun: dryRun,
	}
}

// Stats counts the operations performed by Apply
type Stats struct {
	Written int
	Removed int
	Moved   int
	Skipped int
}

// Apply persists items. Directories are handled before files so relocated
// directories exist before content is written into them.
func (w *Writer) Apply(items []dynfile.Item) (Stats, error) {
	var stats Stats

	ordered := make([]dynfile.Item, 0, len(items))
	for _, it := range items {
		if it.File.IsDir {
			ordered = append(ordered, it)
		}
	}
	for _, it := range items {
		if !it.File.IsDir {
			ordered = append(ordered, it)
		}
	}

	for _, it := range ordered {
		var err error
		if it.File.IsDir {
			err = w.applyDir(it, &stats)
		} else {
			err = w.applyFile(it, &stats)
		}
		if err != nil {
			return stats, fmt.Errorf("failed to apply %s/%s: %w", it.File.Category, it.File.ID, err)
		}
	}

	w.logger.Info("apply complete",
		"written", stats.Written,
		"removed", stats.Removed,
		"moved", stats.Moved,
		"skipped", stats.Skipped,
		"dry_run", w.dryRun)
	return stats, nil
}

func (w *Writer) applyDir(it dynfile.Item, stats *Stats) error {
	path := it.File.Path
	switch it.Diff.Status {
	case dynfile.StatusCreated:
		if w.skip("create directory", "dest", path) {
			stats.Written++
			return nil
		}
		w.logger.Info("creating directory", "dest", path)
		if err := os.MkdirAll(path, 0755); err != nil {
			return err
		}
		stats.Written++

	case dynfile.StatusMoved:
		if w.skip("move directory", "source", it.Diff.PathBefore, "dest", path) {
			stats.Moved++
			return nil
		}
		w.logger.Info("moving directory", "source", it.Diff.PathBefore, "dest", path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.Rename(it.Diff.PathBefore, path); err != nil {
			return err
		}
		stats.Moved++

	default:
		stats.Skipped++
	}
	return nil
}

func (w *Writer) applyFile(it dynfile.Item, stats *Stats) error {
	path := it.File.Path
	switch it.Diff.Status {
	case dynfile.StatusCreated, dynfile.StatusModified:
		if w.skip("write", "dest", path, "status", it.Diff.Status) {
			stats.Written++
			return nil
		}
		w.logger.Info("writing file", "dest", path, "status", it.Diff.Status)
		if err := writeFile(path, it.Diff.After); err != nil {
			return err
		}
		stats.Written++

	case dynfile.StatusRemoved:
		if w.skip("delete", "dest", path) {
			stats.Removed++
			return nil
		}
		w.logger.Info("deleting file", "dest", path)
		if err := removeFile(path); err != nil {
			return err
		}
		stats.Removed++

	case dynfile.StatusMoved, dynfile.StatusMovedModified:
		if w.skip("move", "source", it.Diff.PathBefore, "dest", path, "status", it.Diff.Status) {
			stats.Moved++
			return nil
		}
		w.logger.Info("moving file", "source", it.Diff.PathBefore, "dest", path, "status", it.Diff.Status)
		if err := writeFile(path, it.Diff.After); err != nil {
			return err
		}
		if err := removeFile(it.Diff.PathBefore); err != nil {
			return err
		}
		stats.Moved++

	case dynfile.StatusMovedRemoved:
		if w.skip("delete", "dest", it.Diff.PathBefore) {
			stats.Removed++
			return nil
		}
		w.logger.Info("deleting legacy file", "dest", it.Diff.PathBefore)
		if err := removeFile(it.Diff.PathBefore); err != nil {
			return err
		}
		stats.Removed++

	default:
		stats.Skipped++
	}
	return nil
}

// skip logs the planned operation in dry-run mode and reports whether the
// caller must not touch the filesystem.
func (w *Writer) skip(op string, args ...any) bool {
	if !w.dryRun {
		return false
	}
	w.logger.Info("[dry-run] would "+op, args...)
	return true
}

// writeFile writes content to dst with an atomic rename
func writeFile(dst, content string) error {
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	// Create temp file in destination directory
	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".dynfiles-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := tmpFile.WriteString(content); err != nil {
		_ = tmpFile.Close()
		return err
	}

	// Keep the permissions of an existing file
	mode := os.FileMode(0644)
	if info, err := os.Stat(dst); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmpPath, dst)
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
