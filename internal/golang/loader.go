// Package golang is the Go front end. It loads packages with
// golang.org/x/tools/go/packages and answers oracle queries from the
// go/types results, so every symbol and type comes from the type checker.
package golang

import (
	"cmp"
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/syntax"
	"github.com/jward/symwalk/internal/workspace"
	"golang.org/x/tools/go/packages"
)

// Language is the manifest language name of this front end.
const Language = "go"

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedImports | packages.NeedTypes | packages.NeedSyntax |
	packages.NeedTypesInfo | packages.NeedTypesSizes

func init() {
	workspace.Register(Language, NewLoader())
}

// Loader loads Go projects.
type Loader struct {
	tests  bool
	env    []string
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithTests includes test files and external test packages.
func WithTests() Option {
	return func(l *Loader) { l.tests = true }
}

// WithEnv sets the environment of the underlying go command.
func WithEnv(env []string) Option {
	return func(l *Loader) { l.env = env }
}

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Loader) { l.logger = lg }
}

// NewLoader returns a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load type-checks the packages matched by spec.Patterns (default "./...")
// in spec.Dir. Each source file becomes one document. Package errors are
// reported as project diagnostics; files of packages that failed to
// type-check are still converted with whatever the checker recorded.
func (l *Loader) Load(ctx context.Context, spec workspace.ProjectSpec) (*workspace.Project, error) {
	patterns := spec.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	cfg := &packages.Config{
		Context: ctx,
		Dir:     spec.Dir,
		Mode:    loadMode,
		Tests:   l.tests,
		Env:     l.env,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages matched %s", strings.Join(patterns, " "))
	}
	slices.SortFunc(pkgs, func(a, b *packages.Package) int { return cmp.Compare(a.ID, b.ID) })

	proj := &workspace.Project{Name: spec.Name, Language: Language, Dir: spec.Dir}
	syms := newSymbolTable()
	seen := make(map[string]bool)
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			proj.Diagnostics = append(proj.Diagnostics, packageDiagnostic(spec, e))
		}
		if pkg.Types == nil || pkg.TypesInfo == nil {
			continue
		}
		for i, file := range pkg.Syntax {
			if i >= len(pkg.CompiledGoFiles) {
				break
			}
			filename := pkg.CompiledGoFiles[i]
			if seen[filename] {
				continue
			}
			seen[filename] = true

			doc, err := convertFile(pkg.Fset, file, filename, relPath(spec.Dir, filename), pkg.Types, pkg.TypesInfo, syms)
			if err != nil {
				return nil, err
			}
			proj.Documents = append(proj.Documents, doc)
		}
		l.logger.Debug("loaded package", slog.String("package", pkg.PkgPath), slog.Int("files", len(pkg.Syntax)))
	}
	return proj, nil
}

func convertFile(fset *token.FileSet, file *ast.File, filename, path string, pkg *types.Package, info *types.Info, syms *symbolTable) (*workspace.Document, error) {
	src, _ := os.ReadFile(filename)
	c := newConverter(fset, file, src, path, pkg, info, syms)
	unit, err := syntax.NewSourceUnit(path, c.convert(file))
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", path, err)
	}
	return &workspace.Document{Path: path, Unit: unit, Oracle: c.oracle()}, nil
}

func relPath(dir, filename string) string {
	if rel, err := filepath.Rel(dir, filename); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filename
}

func packageDiagnostic(spec workspace.ProjectSpec, e packages.Error) report.Diagnostic {
	span := parsePos(e.Pos)
	if span.File != "" {
		span.File = relPath(spec.Dir, span.File)
	}
	return report.Diagnostic{
		Severity: report.Error,
		Message:  e.Msg,
		Location: report.Location{Project: spec.Name, Document: span.File, Span: span},
	}
}

// parsePos parses the "file:line:col" form used by packages.Error. Missing
// components stay zero.
func parsePos(pos string) syntax.Span {
	if pos == "" || pos == "-" {
		return syntax.Span{}
	}
	var nums []int
	rest := pos
	for range 2 {
		i := strings.LastIndexByte(rest, ':')
		if i < 0 {
			break
		}
		n, err := strconv.Atoi(rest[i+1:])
		if err != nil {
			break
		}
		nums = append([]int{n}, nums...)
		rest = rest[:i]
	}
	span := syntax.Span{File: rest}
	if len(nums) > 0 {
		span.StartLine, span.EndLine = nums[0], nums[0]
	}
	if len(nums) > 1 {
		span.StartCol, span.EndCol = nums[1], nums[1]
	}
	return span
}
