package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/symwalk"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	c := newCLI(os.Stdout, os.Stderr)
	if err := c.command().Execute(); err != nil {
		if !c.errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// cli holds the persistent flags and output streams shared by all
// subcommands.
type cli struct {
	db       string
	format   string
	logLevel string

	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	// errorHandled is set by outputError so main doesn't double-print.
	errorHandled bool
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{
		stdout: stdout,
		stderr: stderr,
		logger: slog.New(slog.DiscardHandler),
	}
}

func (c *cli) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "symwalk",
		Short:         "Report classes, members and call sites of a source solution",
		Long:          "Symwalk binds Go and Java projects semantically and reports their classes, fields, assignments, methods and resolved call sites.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(c.format); err != nil {
				return err
			}
			level, err := parseLogLevel(c.logLevel)
			if err != nil {
				return err
			}
			c.logger = slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))
			return nil
		},
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	root.PersistentFlags().StringVar(&c.db, "db", "", "database path (default: .symwalk/runs.db relative to repo root)")
	root.PersistentFlags().StringVar(&c.format, "format", "text", "output format: json|text")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level: debug|info|warn|error")

	root.AddCommand(c.analyzeCmd())
	root.AddCommand(c.runsCmd())
	root.AddCommand(c.showCmd())
	root.AddCommand(c.callersCmd())
	root.AddCommand(c.diagnosticsCmd())
	root.AddCommand(c.deleteCmd())
	root.AddCommand(c.exportCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the symwalk version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.stdout, "symwalk %s\n", version)
		},
	})
	return root
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: must be debug, info, warn or error", s)
	}
	return level, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the default.
func (c *cli) resolveDBPath(repoRoot string) string {
	if c.db != "" {
		if filepath.IsAbs(c.db) {
			return c.db
		}
		return filepath.Join(repoRoot, c.db)
	}
	return filepath.Join(repoRoot, ".symwalk", "runs.db")
}

// openEngine opens an Engine over an existing database for the query
// commands.
func (c *cli) openEngine() (*symwalk.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := c.resolveDBPath(findRepoRoot(cwd))
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'symwalk analyze --save' first)", dbPath)
	}
	return symwalk.New(symwalk.WithDatabase(dbPath), symwalk.WithLogger(c.logger))
}
