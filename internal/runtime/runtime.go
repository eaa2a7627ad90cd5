// Package runtime runs user Risor scripts over a finished analysis run, so
// reports can be filtered or reformatted without recompiling.
package runtime

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/store"
)

// Runtime embeds a Risor VM and exposes a run, its facts and a few host
// functions to report scripts.
type Runtime struct {
	store      *store.Store
	scriptsDir string
	fsys       fs.FS
	out        io.Writer
	logger     *slog.Logger
	globals    map[string]any
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Import statements resolve within the same FS.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithScriptsDir sets the base directory for relative script paths and
// imports.
func WithScriptsDir(dir string) RuntimeOption {
	return func(r *Runtime) {
		r.scriptsDir = dir
	}
}

// WithStore exposes read-only SQL over saved runs as db_query and runs.
func WithStore(s *store.Store) RuntimeOption {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithOutput sets the writer emit prints to. Defaults to os.Stdout.
func WithOutput(w io.Writer) RuntimeOption {
	return func(r *Runtime) {
		r.out = w
	}
}

// WithLogger sets the logger behind the script log object.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithGlobal adds an extra global. Extra globals override the standard
// ones.
func WithGlobal(name string, value any) RuntimeOption {
	return func(r *Runtime) {
		r.globals[name] = value
	}
}

// NewRuntime creates a Runtime.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		out:     os.Stdout,
		logger:  slog.New(slog.DiscardHandler),
		globals: make(map[string]any),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script with run exposed as
// globals.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, run *report.Run) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, run)
}

// RunSource executes Risor source code directly with run exposed as
// globals.
func (r *Runtime) RunSource(ctx context.Context, source string, run *report.Run) error {
	return r.eval(ctx, source, "<inline>", run)
}

func (r *Runtime) eval(ctx context.Context, source, label string, run *report.Run) error {
	globals := r.buildGlobals(label, run)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	r.logger.Debug("running script", slog.String("script", label))
	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on it. Otherwise relative
// paths are taken from scriptsDir, or the working directory when unset.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(label string, run *report.Run) map[string]any {
	globals := map[string]any{
		"run_id":            object.NewString(""),
		"classes":           object.NewList([]object.Object{}),
		"diagnostics":       object.NewList([]object.Object{}),
		"invocations":       object.NewList([]object.Object{}),
		"stats":             object.NewMap(map[string]object.Object{}),
		"emit":              makeEmitFn(r.out),
		"severity_at_least": makeSeverityAtLeastFn(),
		"log":               mustProxy(&logObject{logger: r.logger.With(slog.String("script", label))}),
	}
	if run != nil {
		globals["run_id"] = object.NewString(run.ID())
		globals["classes"] = classesToList(run)
		globals["diagnostics"] = diagnosticsToList(run)
		globals["invocations"] = invocationsToList(run)
		globals["stats"] = statsToMap(run.Stats())
	}

	if r.store != nil {
		globals["db_query"] = makeDBQueryFn(r.store)
		globals["runs"] = makeRunsFn(r.store)
	}

	for k, v := range r.globals {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
