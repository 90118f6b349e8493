// Package discover finds rendered files on disk and maps them onto
// repository-relative paths.
package discover

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// skipDirs are VCS metadata directories that never hold generated content
var skipDirs = map[string]bool{
	".git": true,
	".hg":  true,
	".svn": true,
}

// AllFiles returns every regular file below dir in lexical order.
// VCS metadata directories are skipped; other dot-directories such as
// .github are kept since they commonly hold generated files.
func AllFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != dir && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// RelativePath returns target relative to baseDir using forward slashes.
// Targets outside baseDir are returned unchanged.
func RelativePath(baseDir, target string) string {
	if baseDir == "" {
		return filepath.ToSlash(target)
	}
	rel, err := filepath.Rel(baseDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}

// Resolve joins a relative path onto root; absolute paths are cleaned only.
func Resolve(root, path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}
