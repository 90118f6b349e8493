package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/schaermu/dynfiles/internal/compare"
	"github.com/schaermu/dynfiles/internal/discover"
	"github.com/schaermu/dynfiles/internal/dynfile"
	"github.com/schaermu/dynfiles/internal/summary"
)

// Config represents a dynfiles manifest
type Config struct {
	Root           string                 `yaml:"root"`
	Categories     []string               `yaml:"categories"`
	ConflictPolicy compare.ConflictPolicy `yaml:"conflict_policy"`
	Summary        SummaryConfig          `yaml:"summary"`
	GeneratedDir   GeneratedDirConfig     `yaml:"generated_dir"`
	Files          []FileConfig           `yaml:"files"`
}

// SummaryConfig configures the rendered report
type SummaryConfig struct {
	Title         string   `yaml:"title"`
	StructuredIDs []string `yaml:"structured_ids"`
	ContextLines  *int     `yaml:"context_lines"` // nil uses the renderer default
}

// GeneratedDirConfig mirrors a directory of rendered files into the root.
// Every file below Path becomes an entry at the same relative location.
type GeneratedDirConfig struct {
	Path     string `yaml:"path"`
	Category string `yaml:"category"`
}

// FileConfig declares one dynamic file or directory
type FileConfig struct {
	ID       string   `yaml:"id"`
	Category string   `yaml:"category"`
	Path     string   `yaml:"path"`
	AltPaths []string `yaml:"alt_paths"`
	IsDir    bool     `yaml:"is_dir"`
	Content  string   `yaml:"content"`
	Source   string   `yaml:"source"`
}

// Load reads and parses the manifest file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Content is left alone, it may legitimately contain "$".
	cfg.expandEnv()

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all path fields
func (c *Config) expandEnv() {
	c.Root = os.ExpandEnv(c.Root)
	c.GeneratedDir.Path = os.ExpandEnv(c.GeneratedDir.Path)
	for i := range c.Files {
		f := &c.Files[i]
		f.Path = os.ExpandEnv(f.Path)
		f.Source = os.ExpandEnv(f.Source)
		for j := range f.AltPaths {
			f.AltPaths[j] = os.ExpandEnv(f.AltPaths[j])
		}
	}
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.ConflictPolicy == "" {
		c.ConflictPolicy = compare.ConflictCanonical
	}
	if c.Summary.StructuredIDs == nil {
		c.Summary.StructuredIDs = []string{"metadata"}
	}
	if c.GeneratedDir.Path != "" && c.GeneratedDir.Category == "" {
		c.GeneratedDir.Category = "generated"
	}
}

// Validate checks the manifest for errors
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}
	if !filepath.IsAbs(c.Root) {
		return fmt.Errorf("root must be an absolute path: %s", c.Root)
	}

	if !c.ConflictPolicy.Valid() {
		return fmt.Errorf("invalid conflict_policy: %s (must be canonical or first-alt)", c.ConflictPolicy)
	}

	if c.Summary.ContextLines != nil && *c.Summary.ContextLines < 0 {
		return fmt.Errorf("summary.context_lines must not be negative")
	}

	seenCategory := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat == "" {
			return fmt.Errorf("categories must not contain empty names")
		}
		if seenCategory[cat] {
			return fmt.Errorf("category %q declared twice", cat)
		}
		seenCategory[cat] = true
	}

	seenID := make(map[string]bool, len(c.Files))
	seenPath := make(map[string]string, len(c.Files))
	for i, f := range c.Files {
		if f.ID == "" {
			return fmt.Errorf("files[%d].id is required", i)
		}
		if f.Category == "" {
			return fmt.Errorf("files[%d] (%s): category is required", i, f.ID)
		}
		if f.Path == "" {
			return fmt.Errorf("files[%d] (%s): path is required", i, f.ID)
		}
		if f.Content != "" && f.Source != "" {
			return fmt.Errorf("files[%d] (%s): only one of content or source may be set", i, f.ID)
		}
		if f.IsDir && (f.Content != "" || f.Source != "") {
			return fmt.Errorf("files[%d] (%s): directories cannot have content or source", i, f.ID)
		}

		key := f.Category + "/" + f.ID
		if seenID[key] {
			return fmt.Errorf("files[%d]: duplicate id %q in category %q", i, f.ID, f.Category)
		}
		seenID[key] = true

		path := discover.Resolve(c.Root, f.Path)
		if other, ok := seenPath[path]; ok {
			return fmt.Errorf("files[%d] (%s): path %s already used by %s", i, f.ID, path, other)
		}
		seenPath[path] = key
	}

	if c.GeneratedDir.Path != "" && !filepath.IsAbs(c.GeneratedDir.Path) {
		return fmt.Errorf("generated_dir.path must be an absolute path: %s", c.GeneratedDir.Path)
	}

	return nil
}

// CategoryOrder returns declared categories followed by any category used by
// a file entry but not declared, in first-use order.
func (c *Config) CategoryOrder() []dynfile.Category {
	seen := make(map[string]bool)
	var out []dynfile.Category
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, dynfile.Category(name))
	}
	for _, cat := range c.Categories {
		add(cat)
	}
	for _, f := range c.Files {
		add(f.Category)
	}
	if c.GeneratedDir.Path != "" {
		add(c.GeneratedDir.Category)
	}
	return out
}

// ComparerOptions returns the compare options described by the manifest
func (c *Config) ComparerOptions() []compare.Option {
	renderOpts := []summary.RenderOption{
		summary.WithTitle(c.Summary.Title),
		summary.WithStructuredIDs(c.Summary.StructuredIDs...),
	}
	if c.Summary.ContextLines != nil {
		renderOpts = append(renderOpts, summary.WithContextLines(*c.Summary.ContextLines))
	}
	renderer := summary.NewRenderer(renderOpts...)
	return []compare.Option{
		compare.WithCategoryOrder(c.CategoryOrder()...),
		compare.WithConflictPolicy(c.ConflictPolicy),
		compare.WithRenderer(renderer),
	}
}

// Entries builds the compare input: declared files with their content plus
// every file discovered below the generated directory.
func (c *Config) Entries() ([]compare.Entry, error) {
	entries := make([]compare.Entry, 0, len(c.Files))
	paths := make(map[string]string, len(c.Files))

	for _, f := range c.Files {
		content := f.Content
		if f.Source != "" {
			data, err := os.ReadFile(discover.Resolve(c.Root, f.Source))
			if err != nil {
				return nil, fmt.Errorf("failed to read source of %s/%s: %w", f.Category, f.ID, err)
			}
			content = string(data)
		}

		df := dynfile.DynamicFile{
			Path:     discover.Resolve(c.Root, f.Path),
			Category: dynfile.Category(f.Category),
			ID:       f.ID,
			IsDir:    f.IsDir,
		}
		for _, alt := range f.AltPaths {
			df.AltPaths = append(df.AltPaths, discover.Resolve(c.Root, alt))
		}
		paths[df.Path] = f.Category + "/" + f.ID
		entries = append(entries, compare.Entry{File: df, Content: content})
	}

	if c.GeneratedDir.Path == "" {
		return entries, nil
	}

	sources, err := discover.AllFiles(c.GeneratedDir.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to discover generated files: %w", err)
	}
	for _, src := range sources {
		rel := discover.RelativePath(c.GeneratedDir.Path, src)
		dest := filepath.Join(c.Root, filepath.FromSlash(rel))
		if other, ok := paths[dest]; ok {
			return nil, fmt.Errorf("generated file %s collides with declared file %s", rel, other)
		}

		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read generated file %s: %w", src, err)
		}
		entries = append(entries, compare.Entry{
			File: dynfile.DynamicFile{
				Path:     dest,
				Category: dynfile.Category(c.GeneratedDir.Category),
				ID:       rel,
			},
			Content: string(data),
		})
	}

	return entries, nil
}
