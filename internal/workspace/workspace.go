// Package workspace models a solution of projects and their bound
// documents, and loads them through per-language front ends.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/syntax"
)

// Document is one parsed source file and the oracle bound to it.
type Document struct {
	Path   string
	Unit   *syntax.SourceUnit
	Oracle oracle.Oracle
}

// Project is a set of documents compiled together. Diagnostics holds the
// compile diagnostics of the project.
type Project struct {
	Name        string
	Language    string
	Dir         string
	Documents   []*Document
	Diagnostics []report.Diagnostic
}

// Solution is an ordered collection of projects.
type Solution struct {
	Name     string
	Root     string
	Projects []*Project
}

// DocumentCount returns the number of documents across all projects.
func (s *Solution) DocumentCount() int {
	n := 0
	for _, p := range s.Projects {
		n += len(p.Documents)
	}
	return n
}

// Loader builds a bound project from its spec. Dir in spec is absolute when
// Load is called.
type Loader interface {
	Load(ctx context.Context, spec ProjectSpec) (*Project, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, spec ProjectSpec) (*Project, error)

func (f LoaderFunc) Load(ctx context.Context, spec ProjectSpec) (*Project, error) {
	return f(ctx, spec)
}

var (
	loadersMu sync.RWMutex
	loaders   = make(map[string]Loader)
)

// Register makes a loader available for language. It panics if called
// twice for the same language or with a nil loader.
func Register(language string, l Loader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	if l == nil {
		panic("workspace: Register loader is nil")
	}
	if _, dup := loaders[language]; dup {
		panic("workspace: Register called twice for language " + language)
	}
	loaders[language] = l
}

// LoaderFor returns the loader registered for language.
func LoaderFor(language string) (Loader, error) {
	loadersMu.RLock()
	defer loadersMu.RUnlock()
	l, ok := loaders[language]
	if !ok {
		return nil, fmt.Errorf("no loader for language %q (have %v)", language, languagesLocked())
	}
	return l, nil
}

// Languages returns the registered languages, sorted.
func Languages() []string {
	loadersMu.RLock()
	defer loadersMu.RUnlock()
	return languagesLocked()
}

func languagesLocked() []string {
	out := make([]string, 0, len(loaders))
	for lang := range loaders {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	logger  *slog.Logger
	loaders map[string]Loader
}

// WithLogger sets the logger used while loading projects.
func WithLogger(l *slog.Logger) OpenOption {
	return func(c *openConfig) { c.logger = l }
}

// WithLoader overrides the registered loader for one language.
func WithLoader(language string, l Loader) OpenOption {
	return func(c *openConfig) { c.loaders[language] = l }
}

// Open loads every project of m relative to root. A project that fails to
// load is kept as an empty project carrying an Error diagnostic; only
// cancellation aborts the whole solution.
func Open(ctx context.Context, m *Manifest, root string, opts ...OpenOption) (*Solution, error) {
	cfg := openConfig{
		logger:  slog.New(slog.DiscardHandler),
		loaders: make(map[string]Loader),
	}
	for _, o := range opts {
		o(&cfg)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	sol := &Solution{Name: m.Name, Root: absRoot}

	for _, spec := range m.Projects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !filepath.IsAbs(spec.Dir) {
			spec.Dir = filepath.Join(absRoot, spec.Dir)
		}
		spec.Patterns = slices.Clone(spec.Patterns)

		p, err := cfg.load(ctx, spec)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			cfg.logger.Warn("project failed to load", slog.String("project", spec.Name), slog.Any("error", err))
			p = &Project{
				Name:     spec.Name,
				Language: spec.Language,
				Dir:      spec.Dir,
				Diagnostics: []report.Diagnostic{{
					Severity: report.Error,
					Message:  fmt.Sprintf("load project: %v", err),
					Location: report.Location{Project: spec.Name},
				}},
			}
		}
		if p.Name == "" {
			p.Name = spec.Name
		}
		sol.Projects = append(sol.Projects, p)
	}
	return sol, nil
}

func (c *openConfig) load(ctx context.Context, spec ProjectSpec) (*Project, error) {
	l, ok := c.loaders[spec.Language]
	if !ok {
		var err error
		if l, err = LoaderFor(spec.Language); err != nil {
			return nil, err
		}
	}
	c.logger.Info("loading project", slog.String("project", spec.Name), slog.String("language", spec.Language))
	p, err := l.Load(ctx, spec)
	if err == nil && p == nil {
		err = fmt.Errorf("%s loader returned no project", spec.Language)
	}
	return p, err
}
