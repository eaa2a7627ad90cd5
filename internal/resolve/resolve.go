// Package resolve identifies the callee of an invocation through a chain of
// fallback strategies and pairs its arguments with the declared parameters.
package resolve

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/syntax"
)

// Resolver resolves call sites. It holds no per-call state and is safe for
// concurrent use.
type Resolver struct {
	strategies []Strategy
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrategies replaces the resolution tiers.
func WithStrategies(s ...Strategy) Option {
	return func(r *Resolver) { r.strategies = s }
}

// WithLogger sets the logger for per-site debug output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New returns a Resolver using DefaultStrategies unless overridden.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		strategies: DefaultStrategies(),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Strategies returns the names of the configured tiers in order.
func (r *Resolver) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// CalleeName returns the syntactic name of the invoked expression: the
// identifier, or the terminal name of a member access. Other callee shapes
// have no name.
func CalleeName(inv *syntax.Node) string {
	callee := inv.Child(0)
	if callee == nil {
		return ""
	}
	switch callee.Kind {
	case syntax.KindIdentifier, syntax.KindMemberAccess:
		return callee.Name
	}
	return ""
}

// Resolve produces the report for one invocation. Oracle failures become
// diagnostics on sink; the returned error is non-nil only when ctx is done.
func (r *Resolver) Resolve(ctx context.Context, o oracle.Oracle, inv *syntax.Node, sink report.Sink) (report.InvocationReport, error) {
	rep := report.InvocationReport{
		CalleeName: CalleeName(inv),
		Span:       inv.Span,
	}

	cached := &siteCache{Oracle: o, node: inv}
	var lastErr error
	warn := func(what string, err error) {
		if lastErr != nil && errors.Is(err, lastErr) {
			return
		}
		lastErr = err
		sink.Reportf(report.Warning, inv.Span, "%s failed for %s: %v", what, describe(inv, rep.CalleeName), err)
	}

	for _, s := range r.strategies {
		sym, err := s.Resolve(ctx, cached, inv)
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		if err != nil {
			warn(s.Name()+" resolution", err)
			continue
		}
		if sym != nil {
			rep.Symbol = sym
			rep.Resolved = displayName(sym, inv, rep.CalleeName)
			rep.ResolvedBy = s.Name()
			break
		}
	}

	args := inv.ChildrenOfKind(syntax.KindArgument)
	rep.Arguments = make([]report.ArgumentFact, len(args))
	for i, arg := range args {
		expr := arg.Child(0)
		if expr == nil {
			expr = arg
		}
		typ, err := o.TypeOf(ctx, expr)
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		if err != nil {
			warn("type query", err)
			typ = oracle.Unresolved
		}
		rep.Arguments[i] = report.ArgumentFact{Index: i, Type: typ, Text: argText(arg, expr)}
	}

	if rep.Symbol == nil {
		sink.Reportf(report.Info, inv.Span, "unresolved callee %s", describe(inv, rep.CalleeName))
		r.logger.Debug("callee unresolved", slog.String("callee", rep.CalleeName), slog.String("at", inv.Span.String()))
		return rep, nil
	}

	sig, err := o.DeclaredParameters(ctx, rep.Symbol)
	if ctx.Err() != nil {
		return rep, ctx.Err()
	}
	switch {
	case errors.Is(err, oracle.ErrNoSignature):
		return rep, nil
	case err != nil:
		warn("parameter query", err)
		return rep, nil
	}

	pair(rep.Arguments, sig)
	if mismatched(len(args), sig) {
		sink.Reportf(report.Warning, inv.Span, "call to %s has %d argument(s), %s declares %d parameter(s)",
			describe(inv, rep.CalleeName), len(args), rep.Resolved, len(sig.Params))
	}
	r.logger.Debug("callee resolved",
		slog.String("callee", rep.CalleeName),
		slog.String("symbol", rep.Resolved),
		slog.String("tier", rep.ResolvedBy))
	return rep, nil
}

// displayName is the non-empty display form of sym. A symbol printing as
// the empty string falls back to its name, then to the call site.
func displayName(sym oracle.Symbol, inv *syntax.Node, callee string) string {
	if s := sym.String(); s != "" {
		return s
	}
	if n := sym.Name(); n != "" {
		return n
	}
	return describe(inv, callee)
}

// pair assigns parameter names by position. Arguments past the end of the
// parameter list keep a nil name.
func pair(args []report.ArgumentFact, sig oracle.Signature) {
	for i := range args {
		if i >= len(sig.Params) {
			return
		}
		args[i].Parameter = report.StringPtr(sig.Params[i].Name)
	}
}

func mismatched(nargs int, sig oracle.Signature) bool {
	if sig.Variadic && len(sig.Params) > 0 {
		return nargs < len(sig.Params)-1
	}
	return nargs != len(sig.Params)
}

func argText(arg, expr *syntax.Node) string {
	if expr.Text != "" {
		return expr.Text
	}
	return arg.Text
}

func describe(inv *syntax.Node, callee string) string {
	if callee != "" {
		return callee
	}
	if inv.Text != "" {
		return inv.Text
	}
	return "invocation at " + inv.Span.String()
}
