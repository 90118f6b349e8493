package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/schaermu/dynfiles/internal/compare"
	"github.com/schaermu/dynfiles/internal/dynfile"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpfile, err := os.CreateTemp("", "dynfiles-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = os.Remove(tmpfile.Name())
	}()

	content := `
root: "/home/user/project"
categories: [workflow, config]

summary:
  title: "Repository Files"
  context_lines: 5

files:
  - id: funding
    category: config
    path: .github/FUNDING.yml
    alt_paths: [FUNDING.yml, docs/FUNDING.yml]
    content: |
      github: someone
  - id: workflows
    category: workflow
    path: .github/workflows
    is_dir: true
`

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Root != "/home/user/project" {
		t.Errorf("expected root /home/user/project, got %s", cfg.Root)
	}
	if cfg.ConflictPolicy != compare.ConflictCanonical {
		t.Errorf("expected default conflict policy canonical, got %s", cfg.ConflictPolicy)
	}
	if cfg.Summary.Title != "Repository Files" || cfg.Summary.ContextLines == nil || *cfg.Summary.ContextLines != 5 {
		t.Errorf("unexpected summary config: %+v", cfg.Summary)
	}
	if len(cfg.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(cfg.Files))
	}
	if cfg.Files[0].Content != "github: someone\n" {
		t.Errorf("unexpected content %q", cfg.Files[0].Content)
	}
	if !cfg.Files[1].IsDir {
		t.Error("expected workflows entry to be a directory")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("root: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected parse error")
	}

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("root: relative/dir\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(invalid); err == nil {
		t.Error("expected validation error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Root:           "/repo",
			ConflictPolicy: compare.ConflictCanonical,
			Files: []FileConfig{
				{ID: "a", Category: "config", Path: "a.yml", Content: "a: 1"},
				{ID: "dir", Category: "workflow", Path: ".github/workflows", IsDir: true},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing root", mutate: func(c *Config) { c.Root = "" }, wantErr: true},
		{name: "relative root", mutate: func(c *Config) { c.Root = "repo" }, wantErr: true},
		{name: "invalid conflict policy", mutate: func(c *Config) { c.ConflictPolicy = "newest" }, wantErr: true},
		{name: "negative context lines", mutate: func(c *Config) { n := -1; c.Summary.ContextLines = &n }, wantErr: true},
		{name: "empty category name", mutate: func(c *Config) { c.Categories = []string{""} }, wantErr: true},
		{name: "duplicate category", mutate: func(c *Config) { c.Categories = []string{"a", "a"} }, wantErr: true},
		{name: "missing id", mutate: func(c *Config) { c.Files[0].ID = "" }, wantErr: true},
		{name: "missing category", mutate: func(c *Config) { c.Files[0].Category = "" }, wantErr: true},
		{name: "missing path", mutate: func(c *Config) { c.Files[0].Path = "" }, wantErr: true},
		{
			name:    "content and source",
			mutate:  func(c *Config) { c.Files[0].Source = "src.yml" },
			wantErr: true,
		},
		{
			name:    "directory with content",
			mutate:  func(c *Config) { c.Files[1].Content = "x" },
			wantErr: true,
		},
		{
			name: "duplicate id in category",
			mutate: func(c *Config) {
				c.Files = append(c.Files, FileConfig{ID: "a", Category: "config", Path: "b.yml"})
			},
			wantErr: true,
		},
		{
			name: "same id in different category",
			mutate: func(c *Config) {
				c.Files = append(c.Files, FileConfig{ID: "a", Category: "other", Path: "b.yml"})
			},
		},
		{
			name: "duplicate path",
			mutate: func(c *Config) {
				c.Files = append(c.Files, FileConfig{ID: "b", Category: "config", Path: "/repo/a.yml"})
			},
			wantErr: true,
		},
		{
			name:    "relative generated dir",
			mutate:  func(c *Config) { c.GeneratedDir.Path = "rendered" },
			wantErr: true,
		},
		{
			name:   "empty content means disabled",
			mutate: func(c *Config) { c.Files[0].Content = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{GeneratedDir: GeneratedDirConfig{Path: "/rendered"}}
	cfg.applyDefaults()

	if cfg.ConflictPolicy != compare.ConflictCanonical {
		t.Errorf("applyDefaults() did not set conflict policy, got %q", cfg.ConflictPolicy)
	}
	if !reflect.DeepEqual(cfg.Summary.StructuredIDs, []string{"metadata"}) {
		t.Errorf("applyDefaults() structured ids = %v", cfg.Summary.StructuredIDs)
	}
	if cfg.GeneratedDir.Category != "generated" {
		t.Errorf("applyDefaults() generated category = %q", cfg.GeneratedDir.Category)
	}

	// Explicit values must not be overwritten
	cfg2 := Config{
		ConflictPolicy: compare.ConflictFirstAlt,
		Summary:        SummaryConfig{StructuredIDs: []string{}},
	}
	cfg2.applyDefaults()

	if cfg2.ConflictPolicy != compare.ConflictFirstAlt {
		t.Errorf("applyDefaults() overwrote explicit conflict policy, got %q", cfg2.ConflictPolicy)
	}
	if len(cfg2.Summary.StructuredIDs) != 0 {
		t.Errorf("applyDefaults() overwrote explicit structured ids: %v", cfg2.Summary.StructuredIDs)
	}
}

func TestCategoryOrder(t *testing.T) {
	cfg := Config{
		Categories: []string{"workflow", "config"},
		Files: []FileConfig{
			{Category: "metadata"},
			{Category: "config"},
			{Category: "extra"},
			{Category: "metadata"},
		},
		GeneratedDir: GeneratedDirConfig{Path: "/rendered", Category: "generated"},
	}

	got := cfg.CategoryOrder()
	want := []dynfile.Category{"workflow", "config", "metadata", "extra", "generated"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CategoryOrder() = %v, want %v", got, want)
	}
}

func TestEntries(t *testing.T) {
	root := t.TempDir()
	rendered := t.TempDir()

	if err := os.MkdirAll(filepath.Join(root, "templates"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "templates", "funding.yml"), []byte("github: me\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(rendered, ".github"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(rendered, ".github", "CODEOWNERS"), []byte("* @me\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Root: root,
		Files: []FileConfig{
			{ID: "funding", Category: "config", Path: ".github/FUNDING.yml", AltPaths: []string{"FUNDING.yml"}, Source: "templates/funding.yml"},
			{ID: "inline", Category: "config", Path: "/abs/inline.txt", Content: "hello"},
			{ID: "dir", Category: "workflow", Path: ".github/workflows", IsDir: true},
		},
		GeneratedDir: GeneratedDirConfig{Path: rendered, Category: "generated"},
	}

	entries, err := cfg.Entries()
	if err != nil {
		t.Fatalf("Entries() error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	funding := entries[0]
	if funding.File.Path != filepath.Join(root, ".github", "FUNDING.yml") {
		t.Errorf("funding path = %s", funding.File.Path)
	}
	if !reflect.DeepEqual(funding.File.AltPaths, []string{filepath.Join(root, "FUNDING.yml")}) {
		t.Errorf("funding alt paths = %v", funding.File.AltPaths)
	}
	if funding.Content != "github: me\n" {
		t.Errorf("funding content = %q", funding.Content)
	}

	if entries[1].File.Path != "/abs/inline.txt" || entries[1].Content != "hello" {
		t.Errorf("inline entry = %+v", entries[1])
	}
	if !entries[2].File.IsDir {
		t.Error("expected dir entry")
	}

	gen := entries[3]
	if gen.File.ID != ".github/CODEOWNERS" || gen.File.Category != "generated" {
		t.Errorf("generated entry = %+v", gen.File)
	}
	if gen.File.Path != filepath.Join(root, ".github", "CODEOWNERS") || gen.Content != "* @me\n" {
		t.Errorf("generated entry path/content = %s %q", gen.File.Path, gen.Content)
	}
}

func TestEntries_Errors(t *testing.T) {
	root := t.TempDir()

	cfg := Config{
		Root:  root,
		Files: []FileConfig{{ID: "x", Category: "c", Path: "x.yml", Source: "missing.yml"}},
	}
	if _, err := cfg.Entries(); err == nil {
		t.Error("expected error for missing source")
	}

	rendered := t.TempDir()
	if err := os.WriteFile(filepath.Join(rendered, "x.yml"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg = Config{
		Root:         root,
		Files:        []FileConfig{{ID: "x", Category: "c", Path: "x.yml", Content: "x"}},
		GeneratedDir: GeneratedDirConfig{Path: rendered, Category: "generated"},
	}
	if _, err := cfg.Entries(); err == nil {
		t.Error("expected collision error between declared and generated file")
	}
}

func TestComparerOptions(t *testing.T) {
	cfg := Config{Root: "/repo", ConflictPolicy: compare.ConflictFirstAlt}
	if got := len(cfg.ComparerOptions()); got != 3 {
		t.Errorf("ComparerOptions() returned %d options, want 3", got)
	}
}

func TestLoad_ContextLines(t *testing.T) {
	for _, tc := range []struct {
		name string
		line string
		want *int
	}{
		{name: "omitted", line: ""},
		{name: "zero", line: "  context_lines: 0\n", want: new(int)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "dynfiles.yaml")
			content := "root: /repo\nsummary:\n  title: T\n" + tc.line
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !reflect.DeepEqual(cfg.Summary.ContextLines, tc.want) {
				t.Errorf("context_lines = %v, want %v", cfg.Summary.ContextLines, tc.want)
			}
		})
	}
}

func TestComparerOptions_ZeroContextLines(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "n.txt"), []byte("1\n2\n3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	zero := 0
	cfg := Config{Root: root, ConflictPolicy: compare.ConflictCanonical, Summary: SummaryConfig{ContextLines: &zero}}
	entries := []compare.Entry{{
		File:    dynfile.DynamicFile{Path: filepath.Join(root, "n.txt"), Category: "config", ID: "n"},
		Content: "1\nX\n3\n",
	}}

	res, err := compare.NewComparer(root, nil, cfg.ComparerOptions()...).Compare(entries)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Summary, "-2\n+X\n") {
		t.Errorf("summary lacks the changed lines:\n%s", res.Summary)
	}
	if strings.Contains(res.Summary, " 1\n") || strings.Contains(res.Summary, " 3\n") {
		t.Errorf("summary has context lines despite context_lines: 0:\n%s", res.Summary)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("DYNFILES_TEST_HOME", "/home/testuser")

	cfg := Config{
		Root:         "${DYNFILES_TEST_HOME}/repo",
		GeneratedDir: GeneratedDirConfig{Path: "${DYNFILES_TEST_HOME}/rendered"},
		Files: []FileConfig{{
			Path:     "${DYNFILES_TEST_HOME}/a.yml",
			AltPaths: []string{"${DYNFILES_TEST_HOME}/old.yml"},
			Source:   "${DYNFILES_TEST_HOME}/src.yml",
			Content:  "run: echo $HOME",
		}},
	}

	cfg.expandEnv()

	checks := []struct {
		name string
		got  string
		want string
	}{
		{"Root", cfg.Root, "/home/testuser/repo"},
		{"GeneratedDir.Path", cfg.GeneratedDir.Path, "/home/testuser/rendered"},
		{"Files[0].Path", cfg.Files[0].Path, "/home/testuser/a.yml"},
		{"Files[0].AltPaths[0]", cfg.Files[0].AltPaths[0], "/home/testuser/old.yml"},
		{"Files[0].Source", cfg.Files[0].Source, "/home/testuser/src.yml"},
		{"Files[0].Content", cfg.Files[0].Content, "run: echo $HOME"},
	}

	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("expandEnv() %s = %s, want %s", c.name, c.got, c.want)
		}
	}
}
