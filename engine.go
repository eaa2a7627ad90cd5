package symwalk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	goruntime "runtime"

	"github.com/jward/symwalk/internal/analyze"
	"github.com/jward/symwalk/internal/metrics"
	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/resolve"
	"github.com/jward/symwalk/internal/store"
	"github.com/jward/symwalk/internal/syntax"
	"github.com/jward/symwalk/internal/workspace"

	// Front ends register their loaders.
	_ "github.com/jward/symwalk/internal/golang"
	_ "github.com/jward/symwalk/internal/java"
)

// ErrNoDatabase is returned by queries on an Engine created without
// WithDatabase.
var ErrNoDatabase = errors.New("symwalk: no database configured")

// Engine orchestrates loading, analysis, persistence and query access.
type Engine struct {
	store      *store.Store
	dbPath     string
	logger     *slog.Logger
	strategies []resolve.Strategy
	directOnly bool
	metrics    *metrics.Metrics

	// useParallel enables the document worker pool.
	useParallel bool
	workers     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithDatabase persists every run to the SQLite database at path.
func WithDatabase(path string) Option {
	return func(e *Engine) {
		e.dbPath = path
	}
}

// WithParallel controls parallel analysis. When true (default), documents
// are analysed by a worker pool. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers bounds the worker pool. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger used by the engine and the analysis core.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithDirectMembersOnly reports only members declared directly in each
// class, skipping those of nested classes.
func WithDirectMembersOnly() Option {
	return func(e *Engine) {
		e.directOnly = true
	}
}

// WithStrategies replaces the call-site resolution chain. Strategies are
// tried in order; the first to produce a symbol wins.
func WithStrategies(s ...resolve.Strategy) Option {
	return func(e *Engine) {
		e.strategies = s
	}
}

// WithMetrics records every finished run in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine. With WithDatabase the store is opened and
// migrated.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:      slog.New(slog.DiscardHandler),
		useParallel: true,
		workers:     goruntime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.dbPath != "" {
		s, err := store.NewStore(e.dbPath)
		if err != nil {
			return nil, fmt.Errorf("symwalk: open store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("symwalk: migrate: %w", err)
		}
		e.store = s
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Store returns the underlying Store, or nil without a database.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder over the Store.
func (e *Engine) Query() *QueryBuilder {
	q := &QueryBuilder{}
	if e.store != nil {
		q.store = e.store
	}
	return q
}

// analysis is the per-run configuration derived from the engine and an
// optional manifest.
type analysis struct {
	analyzer *analyze.Analyzer
	parallel bool
	workers  int
}

func (e *Engine) analysis(cfg workspace.AnalysisConfig) analysis {
	var aopts []analyze.Option
	aopts = append(aopts, analyze.WithLogger(e.logger))
	if e.directOnly || cfg.DirectMembersOnly {
		aopts = append(aopts, analyze.WithDirectMembersOnly())
	}
	ropts := []resolve.Option{resolve.WithLogger(e.logger)}
	if len(e.strategies) > 0 {
		ropts = append(ropts, resolve.WithStrategies(e.strategies...))
	}
	a := analysis{
		analyzer: analyze.New(resolve.New(ropts...), aopts...),
		parallel: e.useParallel,
		workers:  e.workers,
	}
	if cfg.Workers > 0 {
		a.workers = cfg.Workers
	}
	return a
}

// Analyze reports every document of sol. Project compile diagnostics are
// recorded first; documents are then analysed serially or by the worker
// pool and merged in document order. A corrupt tree or cancellation aborts
// the run; any other document failure becomes an Error diagnostic of that
// document. When a database is configured the run is saved.
func (e *Engine) Analyze(ctx context.Context, sol *workspace.Solution) (*report.Run, error) {
	return e.analyze(ctx, sol, e.analysis(workspace.AnalysisConfig{}))
}

// AnalyzeDirectory opens the solution in dir, from symwalk.yaml when
// present, otherwise as a single project of language (detected when
// empty), and analyses it. Manifest analysis settings apply on top of the
// engine options.
func (e *Engine) AnalyzeDirectory(ctx context.Context, dir, language string) (*report.Run, error) {
	m, err := workspace.FindManifest(dir, language)
	if err != nil {
		return nil, fmt.Errorf("symwalk: %w", err)
	}
	return e.AnalyzeManifest(ctx, m, dir)
}

// AnalyzeManifest opens the solution m describes, with project directories
// relative to root, and analyses it.
func (e *Engine) AnalyzeManifest(ctx context.Context, m *workspace.Manifest, root string) (*report.Run, error) {
	sol, err := e.Open(ctx, m, root)
	if err != nil {
		return nil, err
	}
	return e.analyze(ctx, sol, e.analysis(m.Analysis))
}

// Open loads the projects of m relative to root.
func (e *Engine) Open(ctx context.Context, m *workspace.Manifest, root string) (*workspace.Solution, error) {
	sol, err := workspace.Open(ctx, m, root, workspace.WithLogger(e.logger))
	if err != nil {
		return nil, fmt.Errorf("symwalk: open solution: %w", err)
	}
	return sol, nil
}

func (e *Engine) analyze(ctx context.Context, sol *workspace.Solution, a analysis) (*report.Run, error) {
	agg := report.NewAggregator()
	for _, p := range sol.Projects {
		agg.AddProject(p.Name, p.Diagnostics...)
	}

	e.logger.Info("analyzing solution",
		slog.String("run", agg.ID()),
		slog.String("solution", sol.Name),
		slog.Int("projects", len(sol.Projects)),
		slog.Int("documents", sol.DocumentCount()),
		slog.Bool("parallel", a.parallel))

	var err error
	if a.parallel && a.workers > 1 {
		err = e.analyzeParallel(ctx, sol, a, agg)
	} else {
		err = e.analyzeSerial(ctx, sol, a, agg)
	}
	if err != nil {
		return nil, err
	}

	run := agg.Finish()
	st := run.Stats()
	e.logger.Info("analysis finished",
		slog.String("run", run.ID()),
		slog.Int("classes", st.Classes),
		slog.Int("invocations", st.Invocations),
		slog.Int("unresolved", st.Unresolved),
		slog.Int("errors", st.Errors))

	if e.metrics != nil {
		e.metrics.Observe(run)
	}
	if e.store != nil {
		if err := e.store.SaveRun(run); err != nil {
			return nil, fmt.Errorf("symwalk: save run: %w", err)
		}
	}
	return run, nil
}

func (e *Engine) analyzeSerial(ctx context.Context, sol *workspace.Solution, a analysis, agg *report.Aggregator) error {
	for _, p := range sol.Projects {
		for _, doc := range p.Documents {
			buf := agg.Reserve(p.Name, doc.Path)
			err := e.analyzeDocument(ctx, a, doc, buf)
			agg.AddDocument(buf)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// analyzeDocument fills buf from one document. It returns only fatal
// errors.
func (e *Engine) analyzeDocument(ctx context.Context, a analysis, doc *workspace.Document, buf *report.Document) error {
	if doc.Unit == nil {
		return fmt.Errorf("symwalk: %s: %w: no syntax tree", doc.Path, syntax.ErrCorruptTree)
	}
	err := a.analyzer.AnalyzeDocument(ctx, doc.Oracle, doc.Unit, buf)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, syntax.ErrCorruptTree):
		return fmt.Errorf("symwalk: %s: %w", doc.Path, err)
	}
	e.logger.Warn("document analysis failed", slog.String("document", doc.Path), slog.Any("error", err))
	buf.Reportf(report.Error, syntax.Span{File: doc.Path}, "analysis failed: %v", err)
	return nil
}
