package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/symwalk"
	"github.com/jward/symwalk/internal/metrics"
	"github.com/jward/symwalk/internal/runtime"
	"github.com/jward/symwalk/internal/workspace"
	"github.com/jward/symwalk/scripts"
)

type analyzeFlags struct {
	lang          string
	manifest      string
	serial        bool
	workers       int
	directMembers bool
	script        string
	save          bool
	metricsFile   string
}

func (c *cli) analyzeCmd() *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyze a project or solution",
		Long: "Loads the projects under path (from symwalk.yaml when present), reports their classes, " +
			"members and call sites, and optionally saves the run or passes it to a Risor script.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.runAnalyze(cmd, args, f); err != nil {
				return c.outputError("analyze", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.lang, "lang", "", "project language: go|java (default: detected)")
	cmd.Flags().StringVar(&f.manifest, "manifest", "", "solution manifest path (default: symwalk.yaml in path)")
	cmd.Flags().BoolVar(&f.serial, "serial", false, "analyze documents one at a time")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "worker pool size (default: GOMAXPROCS)")
	cmd.Flags().BoolVar(&f.directMembers, "direct-members", false, "skip members of nested classes")
	cmd.Flags().StringVar(&f.script, "script", "", "Risor script file or bundled script name that receives the run instead of the default output")
	cmd.Flags().BoolVar(&f.save, "save", false, "save the run to the database")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics of the run to this file")
	return cmd
}

func (c *cli) runAnalyze(cmd *cobra.Command, args []string, f analyzeFlags) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	m, root, err := loadManifest(targetDir, f.manifest, f.lang)
	if err != nil {
		return err
	}

	opts := []symwalk.Option{
		symwalk.WithLogger(c.logger),
		symwalk.WithParallel(!f.serial),
		symwalk.WithWorkers(f.workers),
	}
	if f.directMembers {
		opts = append(opts, symwalk.WithDirectMembersOnly())
	}
	var mx *metrics.Metrics
	if f.metricsFile != "" {
		mx = metrics.New()
		opts = append(opts, symwalk.WithMetrics(mx))
	}

	var dbPath string
	if f.save || c.db != "" {
		dbPath = c.resolveDBPath(findRepoRoot(root))
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
		}
		opts = append(opts, symwalk.WithDatabase(dbPath))
	}

	engine, err := symwalk.New(opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	ctx := cmd.Context()
	run, err := engine.AnalyzeManifest(ctx, m, root)
	if err != nil {
		return fmt.Errorf("analyzing: %w", err)
	}

	st := run.Stats()
	fmt.Fprintf(c.stderr, "Analyzed %s in %s (%d documents, %d classes, %d invocations, %d unresolved, %d errors)\n",
		root, time.Since(start).Round(time.Millisecond),
		st.Documents, st.Classes, st.Invocations, st.Unresolved, st.Errors)
	if dbPath != "" {
		fmt.Fprintf(c.stderr, "Saved run %s to %s\n", run.ID(), dbPath)
	}
	if mx != nil {
		if err := mx.WriteTextfile(f.metricsFile); err != nil {
			return err
		}
	}

	if f.script != "" {
		ropts := []runtime.RuntimeOption{
			runtime.WithOutput(c.stdout),
			runtime.WithLogger(c.logger),
			runtime.WithStore(engine.Store()),
		}
		path := f.script
		if _, err := os.Stat(path); err != nil {
			name, ok := scripts.Lookup(path)
			if !ok {
				return fmt.Errorf("script not found: %s (bundled: %s)", path, strings.Join(scripts.Names(), ", "))
			}
			path = name
			ropts = append(ropts, runtime.WithRuntimeFS(scripts.FS))
		}
		return runtime.NewRuntime(ropts...).RunScript(ctx, path, run)
	}
	return c.outputResult(CLIResult{Command: "analyze", Results: run})
}

// loadManifest returns the manifest and solution root for targetDir. An
// explicit manifest path takes precedence; its directory is the root.
func loadManifest(targetDir, manifestPath, lang string) (*workspace.Manifest, string, error) {
	if manifestPath == "" {
		m, err := workspace.FindManifest(targetDir, lang)
		if err != nil {
			return nil, "", err
		}
		return m, targetDir, nil
	}
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, "", fmt.Errorf("resolving manifest path %q: %w", manifestPath, err)
	}
	m, err := workspace.LoadManifest(abs)
	if err != nil {
		return nil, "", err
	}
	return m, filepath.Dir(abs), nil
}

// resolveTargetDir returns the absolute path of the directory to analyze.
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
