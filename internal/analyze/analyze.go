// Package analyze walks the class declarations of a document and builds
// their reports: fields, assignments, methods, public constructors and the
// call sites inside each method body.
package analyze

import (
	"context"
	"iter"
	"log/slog"

	"github.com/jward/symwalk/internal/extract"
	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/resolve"
	"github.com/jward/symwalk/internal/syntax"
)

// Analyzer builds class reports from one document's syntax tree and oracle.
// It is safe for concurrent use on different documents.
type Analyzer struct {
	resolver   *resolve.Resolver
	logger     *slog.Logger
	directOnly bool
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithDirectMembersOnly restricts fields, assignments, methods and
// constructors to those not nested in another class declaration. By default
// every descendant of the class is collected.
func WithDirectMembersOnly() Option {
	return func(a *Analyzer) { a.directOnly = true }
}

// New returns an Analyzer resolving call sites with r. A nil r uses the
// default strategy chain.
func New(r *resolve.Resolver, opts ...Option) *Analyzer {
	if r == nil {
		r = resolve.New()
	}
	a := &Analyzer{
		resolver: r,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// AnalyzeDocument reports every class of unit into doc, in declaration
// order. Binding failures become diagnostics and the affected class or
// method is skipped. When ctx is done, AnalyzeDocument stops at the next
// class, method or call site and returns ctx.Err(); doc keeps what was
// completed.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, o oracle.Oracle, unit *syntax.SourceUnit, doc *report.Document) error {
	classes, interfaces := extract.Declarations(unit.Root())
	a.logger.Debug("analyzing document",
		slog.String("document", unit.Path()),
		slog.Int("classes", len(classes)),
		slog.Int("interfaces", len(interfaces)))

	for _, class := range classes {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep, ok, err := a.analyzeClass(ctx, o, class, doc)
		if ok {
			doc.AddClass(rep)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) analyzeClass(ctx context.Context, o oracle.Oracle, class *syntax.Node, doc *report.Document) (report.ClassReport, bool, error) {
	sym, err := o.ResolveDeclared(ctx, class)
	if err := ctx.Err(); err != nil {
		return report.ClassReport{}, false, err
	}
	if err != nil || sym == nil {
		doc.Reportf(report.Error, class.Span, "binding failure: no symbol for class %s%s", class.Name, cause(err))
		return report.ClassReport{}, false, nil
	}

	rep := report.ClassReport{
		Signature:   sym.String(),
		Symbol:      sym,
		Span:        class.Span,
		Fields:      []report.FieldFact{},
		Assignments: []report.AssignmentFact{},
		Methods:     []report.MethodReport{},
	}

	var methods, ctors []*syntax.Node
	for n := range a.members(class) {
		switch n.Kind {
		case syntax.KindVariableDecl:
			rep.Fields = append(rep.Fields, a.fields(ctx, o, n, doc)...)
		case syntax.KindAssignment:
			rep.Assignments = append(rep.Assignments, report.AssignmentFact{
				Left:  text(n.Child(0)),
				Right: text(n.Child(1)),
				Span:  n.Span,
			})
		case syntax.KindMethodDecl:
			methods = append(methods, n)
		case syntax.KindConstructorDecl:
			if n.HasModifier("public") {
				ctors = append(ctors, n)
			}
		}
	}

	for _, m := range methods {
		mrep, ok, err := a.analyzeMethod(ctx, o, m, doc)
		if ok {
			rep.Methods = append(rep.Methods, mrep)
		}
		if err != nil {
			return rep, true, err
		}
	}
	for _, c := range ctors {
		mrep, ok, err := a.analyzeMethod(ctx, o, c, doc)
		if ok {
			rep.Constructors = append(rep.Constructors, mrep)
		}
		if err != nil {
			return rep, true, err
		}
	}
	return rep, true, nil
}

// members yields the descendants of class relevant to its report. With
// directOnly set, subtrees of nested class declarations are skipped.
func (a *Analyzer) members(class *syntax.Node) iter.Seq[*syntax.Node] {
	if !a.directOnly {
		return class.Descendants()
	}
	return func(yield func(*syntax.Node) bool) {
		var walk func(nodes []*syntax.Node) bool
		walk = func(nodes []*syntax.Node) bool {
			for _, c := range nodes {
				if c.Kind == syntax.KindClassDecl || c.Kind == syntax.KindInterfaceDecl {
					continue
				}
				if !yield(c) || !walk(c.Children) {
					return false
				}
			}
			return true
		}
		walk(class.Children)
	}
}

// fields flattens a variable declaration into one fact per declared name.
// All names share the declaration's type.
func (a *Analyzer) fields(ctx context.Context, o oracle.Oracle, decl *syntax.Node, doc *report.Document) []report.FieldFact {
	declarators := decl.ChildrenOfKind(syntax.KindDeclarator)
	if len(declarators) == 0 {
		return nil
	}

	var declared string
	typeNode := decl.FirstChildOfKind(syntax.KindType)
	if typeNode != nil {
		declared = typeNode.Text
	} else {
		typeNode = declarators[0]
	}
	typ, err := o.TypeOf(ctx, typeNode)
	if err != nil && ctx.Err() == nil {
		doc.Reportf(report.Warning, decl.Span, "type query failed for declaration of %s: %v", declarators[0].Name, err)
		typ = oracle.Unresolved
	}

	facts := make([]report.FieldFact, 0, len(declarators))
	for _, d := range declarators {
		facts = append(facts, report.FieldFact{
			Name:         d.Name,
			DeclaredType: declared,
			Type:         typ,
			Span:         d.Span,
		})
	}
	return facts
}

func (a *Analyzer) analyzeMethod(ctx context.Context, o oracle.Oracle, m *syntax.Node, doc *report.Document) (report.MethodReport, bool, error) {
	if err := ctx.Err(); err != nil {
		return report.MethodReport{}, false, err
	}
	sym, err := o.ResolveDeclared(ctx, m)
	if err := ctx.Err(); err != nil {
		return report.MethodReport{}, false, err
	}
	if err != nil || sym == nil {
		doc.Reportf(report.Error, m.Span, "binding failure: no symbol for %s %s%s", m.Kind, m.Name, cause(err))
		return report.MethodReport{}, false, nil
	}

	rep := report.MethodReport{
		Signature:   sym.String(),
		Symbol:      sym,
		Span:        m.Span,
		Parameters:  []report.ParameterFact{},
		Invocations: []report.InvocationReport{},
	}
	for _, p := range m.ChildrenOfKind(syntax.KindParameter) {
		typeNode := p.Child(0)
		typ := oracle.Unresolved
		if typeNode != nil {
			t, err := o.TypeOf(ctx, typeNode)
			switch {
			case err != nil && ctx.Err() == nil:
				doc.Reportf(report.Warning, p.Span, "type query failed for parameter %s: %v", p.Name, err)
			case err == nil:
				typ = t
			}
		}
		rep.Parameters = append(rep.Parameters, report.ParameterFact{Name: p.Name, Type: typ})
	}

	for inv := range m.DescendantsOfKind(syntax.KindInvocation) {
		if err := ctx.Err(); err != nil {
			return rep, true, err
		}
		irep, err := a.resolver.Resolve(ctx, o, inv, doc)
		if err != nil {
			return rep, true, err
		}
		rep.Invocations = append(rep.Invocations, irep)
	}
	return rep, true, nil
}

func text(n *syntax.Node) string {
	if n == nil {
		return ""
	}
	return n.Text
}

func cause(err error) string {
	if err == nil {
		return ""
	}
	return ": " + err.Error()
}
