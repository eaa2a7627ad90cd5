// Package java is the Java front end. Sources are parsed with tree-sitter,
// declarations are collected project-wide together with a small set of
// bundled library stubs, and method bodies are bound in one pass. The
// resulting oracle holds plain Go tables only; every tree is closed before
// Load returns.
package java

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	sitter "github.com/smacker/go-tree-sitter"
	grammar "github.com/smacker/go-tree-sitter/java"
	"golang.org/x/sync/errgroup"

	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/syntax"
	"github.com/jward/symwalk/internal/workspace"
)

// Language is the manifest language name of this front end.
const Language = "java"

//go:embed stubs/*.java
var stubFS embed.FS

func init() {
	workspace.Register(Language, NewLoader())
}

// Loader loads Java projects.
type Loader struct {
	workers int
	stubs   bool
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithWorkers bounds the number of files parsed concurrently.
func WithWorkers(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithoutStubs disables the bundled java.lang, java.io and java.util
// declarations, leaving library calls unresolved.
func WithoutStubs() Option {
	return func(l *Loader) { l.stubs = false }
}

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Loader) { l.logger = lg }
}

// NewLoader returns a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		workers: runtime.GOMAXPROCS(0),
		stubs:   true,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load parses and binds every .java file selected by spec. Syntax errors
// become Error diagnostics of the project; the affected files are still
// analysed.
func (l *Loader) Load(ctx context.Context, spec workspace.ProjectSpec) (*workspace.Project, error) {
	paths, err := sourceFiles(spec.Dir, spec.Patterns)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .java files in %s", spec.Dir)
	}

	var stubs []*file
	if l.stubs {
		if stubs, err = l.parseStubs(ctx); err != nil {
			return nil, err
		}
		defer closeAll(stubs)
	}
	files, err := l.parseAll(ctx, spec.Dir, paths)
	if err != nil {
		return nil, err
	}
	defer closeAll(files)

	p := newProject()
	for _, f := range slices.Concat(stubs, files) {
		p.collect(f)
	}
	p.resolve()

	proj := &workspace.Project{Name: spec.Name, Language: Language, Dir: spec.Dir}
	for _, f := range files {
		f.conv = newConverter(f.path, f.src)
		unit, err := syntax.NewSourceUnit(f.path, f.conv.convertProgram(f.tree.RootNode()))
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", f.path, err)
		}
		f.unit = unit
		proj.Diagnostics = append(proj.Diagnostics, syntaxErrors(spec.Name, f)...)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		(&binder{p: p, f: f}).bindFile()
		f.conv = nil
	}
	p.release()

	o := p.oracle()
	for _, f := range files {
		proj.Documents = append(proj.Documents, &workspace.Document{Path: f.path, Unit: f.unit, Oracle: o})
	}
	l.logger.Debug("loaded java project",
		slog.String("project", spec.Name),
		slog.Int("files", len(files)),
		slog.Int("classes", len(p.classes)))
	return proj, nil
}

// parseAll parses paths concurrently, one parser per goroutine. Results
// keep the order of paths.
func (l *Loader) parseAll(ctx context.Context, dir string, paths []string) ([]*file, error) {
	files := make([]*file, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, rel := range paths {
		g.Go(func() error {
			src, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("read %s: %w", rel, err)
			}
			f, err := parse(gctx, rel, src)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeAll(files)
		return nil, err
	}
	return files, nil
}

func (l *Loader) parseStubs(ctx context.Context) ([]*file, error) {
	names, err := fs.Glob(stubFS, "stubs/*.java")
	if err != nil {
		return nil, err
	}
	var out []*file
	for _, name := range names {
		src, err := stubFS.ReadFile(name)
		if err != nil {
			closeAll(out)
			return nil, err
		}
		f, err := parse(ctx, name, src)
		if err != nil {
			closeAll(out)
			return nil, err
		}
		f.stub = true
		out = append(out, f)
	}
	return out, nil
}

func parse(ctx context.Context, path string, src []byte) (*file, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &file{path: path, src: src, tree: tree}, nil
}

func closeAll(files []*file) {
	for _, f := range files {
		if f != nil && f.tree != nil {
			f.tree.Close()
			f.tree = nil
		}
	}
}

// release drops every reference into tree-sitter trees so the oracle keeps
// plain Go data only.
func (p *project) release() {
	for _, c := range p.order {
		c.node = nil
		c.file = nil
		for _, v := range c.fields {
			v.typeNode = nil
		}
		for _, group := range [][]*methodSym{c.methods, c.ctors} {
			for _, m := range group {
				m.node, m.retNode = nil, nil
				for i := range m.params {
					m.params[i].node, m.params[i].typeNode = nil, nil
				}
			}
		}
	}
}

// syntaxErrors reports ERROR and missing nodes of f.
func syntaxErrors(project string, f *file) []report.Diagnostic {
	root := f.tree.RootNode()
	if !root.HasError() {
		return nil
	}
	var out []report.Diagnostic
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch {
		case n.IsMissing():
			out = append(out, syntaxDiagnostic(project, f, n, fmt.Sprintf("syntax error: missing %q", n.Type())))
			return
		case n.Type() == "ERROR":
			text := strings.Join(strings.Fields(f.text(n)), " ")
			if len(text) > 40 {
				text = text[:40] + "..."
			}
			out = append(out, syntaxDiagnostic(project, f, n, fmt.Sprintf("syntax error near %q", text)))
			return
		case !n.HasError():
			return
		}
		for i := range int(n.ChildCount()) {
			visit(n.Child(i))
		}
	}
	visit(root)
	return out
}

func syntaxDiagnostic(project string, f *file, n *sitter.Node, msg string) report.Diagnostic {
	span := f.conv.span(n)
	return report.Diagnostic{
		Severity: report.Error,
		Message:  msg,
		Location: report.Location{Project: project, Document: f.path, Span: span},
	}
}

var skipDirs = map[string]bool{
	".git": true, ".idea": true, ".gradle": true, "build": true, "target": true,
	"out": true, "bin": true, "node_modules": true,
}

// sourceFiles lists the .java files of dir, slash-separated and relative
// to dir, sorted. Patterns are globs relative to dir; a matched directory
// contributes every file below it. No patterns selects the whole tree.
// Paths matched by dir/.gitignore are skipped.
func sourceFiles(dir string, patterns []string) ([]string, error) {
	gi, _ := ignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore"))
	roots := []string{dir}
	if len(patterns) > 0 {
		roots = roots[:0]
		for _, pat := range patterns {
			pat = strings.TrimSuffix(filepath.FromSlash(pat), string(filepath.Separator)+"...")
			matches, err := filepath.Glob(filepath.Join(dir, pat))
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", pat, err)
			}
			roots = append(roots, matches...)
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if d.IsDir() {
				if path == root {
					return nil
				}
				if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") || (gi != nil && gi.MatchesPath(rel+"/")) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(d.Name(), ".java") || (gi != nil && gi.MatchesPath(rel)) {
				return nil
			}
			if !seen[rel] {
				seen[rel] = true
				out = append(out, rel)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	slices.Sort(out)
	return out, nil
}
