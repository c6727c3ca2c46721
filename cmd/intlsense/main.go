package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jward/intlsense"
	"github.com/jward/intlsense/internal/config"
)

var (
	flagFormat  string
	flagProject string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// logger is configured from the project config before any command runs.
var logger = zerolog.Nop()

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "intlsense",
	Short:         "Translation-key intelligence for Ember projects",
	Long:          "intlsense indexes an Ember project's translation catalogs and t() call sites, and answers completion, definition and hover queries. All line and column numbers are 0-based.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run, prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "", "project root (default: nearest package.json above the working directory)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(hoverCmd)
	rootCmd.AddCommand(watchCmd)
}

// session is an Engine opened for one project.
type session struct {
	engine *intlsense.Engine
	root   string
	cfg    *config.Config
}

// openSession resolves the project root, loads its configuration and opens
// an Engine for it.
func openSession() (*session, error) {
	root, err := resolveProjectRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(cfg.Level()).With().Timestamp().Logger()

	opts := []intlsense.Option{
		intlsense.WithConfig(cfg),
		intlsense.WithLogger(logger),
	}
	engine, err := intlsense.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return &session{engine: engine, root: root, cfg: cfg}, nil
}

// resolveProjectRoot returns the absolute project root from --project, or
// the nearest directory above the working directory holding package.json.
func resolveProjectRoot() (string, error) {
	if flagProject != "" {
		return resolveTargetDir([]string{flagProject})
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return findProjectRoot(cwd), nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findProjectRoot walks up from startDir looking for package.json.
// Returns the directory containing it, or startDir if not found.
func findProjectRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, "package.json")); err == nil && !info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding package.json.
			return startDir
		}
		dir = parent
	}
}
