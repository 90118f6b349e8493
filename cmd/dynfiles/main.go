package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/schaermu/dynfiles/internal/apply"
	"github.com/schaermu/dynfiles/internal/compare"
	"github.com/schaermu/dynfiles/internal/config"
	"github.com/schaermu/dynfiles/internal/dynfile"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Diff flags
	summaryFile  string
	matrixFile   string
	matrixFormat string
	showTable    bool
	exitCode     bool

	// Apply flags
	dryRun bool
)

// errChanges signals --exit-code that dynamic files are out of sync
var errChanges = errors.New("dynamic files are out of sync")

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dynfiles",
	Short: "Reconcile generated repository files with what is on disk",
	Long: `dynfiles compares generated ("dynamic") files and directories against the
current state of a repository, classifies every entry (created, modified,
moved, removed, ...) and renders a collapsible change report.

Legacy locations can be declared per file so relocations are detected as
moves instead of unrelated creations and deletions.`,
	SilenceUsage: true,
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare generated files with the repository and print a report",
	Long: `Diff loads the manifest, compares every declared file with the repository
and prints the summary report. It never modifies the repository.

The change matrix (category -> id -> changed) can be written to a file for CI
status reporting.`,
	RunE: runDiff,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Write generated files to the repository",
	Long: `Apply compares the manifest with the repository and persists the result:
new and modified files are written, disabled files are removed and files found
at legacy locations are moved to their canonical path.`,
	RunE: runApply,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "dynfiles %s\n", version)
		_, _ = fmt.Fprintf(out, "  commit: %s\n", commit)
		_, _ = fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "manifest file (default is ./dynfiles.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Diff command flags
	diffCmd.Flags().StringVar(&summaryFile, "summary-file", "", "write the report to this file instead of stdout")
	diffCmd.Flags().StringVar(&matrixFile, "matrix-file", "", "write the change matrix to this file")
	diffCmd.Flags().StringVar(&matrixFormat, "matrix-format", "json", "change matrix format (json, yaml)")
	diffCmd.Flags().BoolVar(&showTable, "table", false, "print the change matrix as a table on stderr")
	diffCmd.Flags().BoolVar(&exitCode, "exit-code", false, "exit with an error when any file is out of sync")

	// Apply command flags
	applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without making changes")

	// Add commands
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(versionCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	logger := setupLogger(cmd.ErrOrStderr())

	// A result with entry failures is still reported before failing.
	res, cmpErr := runCompare(logger)
	if res == nil {
		return cmpErr
	}

	if err := writeSummary(cmd.OutOrStdout(), res.Summary); err != nil {
		return err
	}
	if matrixFile != "" {
		if err := writeMatrix(matrixFile, matrixFormat, res.Matrix); err != nil {
			return err
		}
		logger.Info("change matrix written", "path", matrixFile, "format", matrixFormat)
	}
	if showTable {
		renderTable(cmd.ErrOrStderr(), res)
	}

	if cmpErr != nil {
		return cmpErr
	}
	if exitCode && res.Matrix.AnyChanged() {
		return errChanges
	}
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	logger := setupLogger(cmd.ErrOrStderr())

	// Never write a partial result.
	res, err := runCompare(logger)
	if err != nil {
		return err
	}

	writer := apply.NewWriter(logger, dryRun)
	if _, err := writer.Apply(res.Items); err != nil {
		logger.Error("apply failed", "error", err)
		return err
	}
	return nil
}

// runCompare loads the manifest and runs the comparison. When single entries
// fail, the result is returned together with the error.
func runCompare(logger *slog.Logger) (*compare.Result, error) {
	cfg, err := loadConfig(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	entries, err := cfg.Entries()
	if err != nil {
		return nil, fmt.Errorf("failed to build entries: %w", err)
	}

	comparer := compare.NewComparer(cfg.Root, logger, cfg.ComparerOptions()...)
	logger.Info("comparing dynamic files", "root", cfg.Root, "entries", len(entries))

	res, err := comparer.Compare(entries)
	logger.Info("comparison complete",
		"items", len(res.Items),
		"failed", len(res.Failures),
		"changed", res.Matrix.AnyChanged())
	if err != nil {
		return res, fmt.Errorf("comparison failed for %d entries: %w", len(res.Failures), err)
	}
	return res, nil
}

func writeSummary(stdout io.Writer, summary string) error {
	if summaryFile == "" {
		_, err := io.WriteString(stdout, summary)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(summaryFile), 0755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}
	if err := os.WriteFile(summaryFile, []byte(summary), 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

func writeMatrix(path, format string, matrix *dynfile.ChangeMatrix) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		data, err = json.MarshalIndent(matrix, "", "  ")
		data = append(data, '\n')
	case "yaml":
		data, err = yaml.Marshal(matrix)
	default:
		return fmt.Errorf("unknown matrix format: %s (must be json or yaml)", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode change matrix: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create matrix directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// renderTable prints one row per item with its status and change flag
func renderTable(w io.Writer, res *compare.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Category", "ID", "Status", "Changed"})
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
	})
	for _, it := range res.Items {
		changed := "no"
		if it.Diff.Status.Changed() {
			changed = "yes"
		}
		table.Append([]string{
			string(it.File.Category),
			it.File.ID,
			it.Diff.Status.Icon() + " " + it.Diff.Status.Label(),
			changed,
		})
	}
	table.Render()
}

func setupLogger(w io.Writer) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		configPath = "dynfiles.yaml"
	}

	logger.Info("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"root", cfg.Root,
		"files", len(cfg.Files),
		"generated_dir", cfg.GeneratedDir.Path,
		"conflict_policy", cfg.ConflictPolicy)

	return cfg, nil
}
