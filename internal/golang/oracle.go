package golang

import (
	"context"
	"fmt"
	"go/ast"
	"go/types"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/syntax"
	"golang.org/x/tools/go/types/typeutil"
)

// Oracle answers queries for one converted file from the type checker's
// results. All state is built by the converter and never mutated, except
// for the shared symbol table, which locks.
type Oracle struct {
	info  *types.Info
	syms  *symbolTable
	nodes map[*syntax.Node]ast.Node
	decls map[*syntax.Node]*symbol
	known map[*syntax.Node]types.Type
}

var _ oracle.Oracle = (*Oracle)(nil)

func (c *converter) oracle() *Oracle {
	return &Oracle{info: c.info, syms: c.syms, nodes: c.nodes, decls: c.decls, known: c.known}
}

func (o *Oracle) ResolveDeclared(_ context.Context, n *syntax.Node) (oracle.Symbol, error) {
	if s, ok := o.decls[n]; ok {
		return s, nil
	}
	return nil, nil
}

// ResolveSite binds a call: the static callee of function and method calls,
// the called variable for func-typed values, or the target type of a
// conversion. Go has no overloads, so there are never candidates.
func (o *Oracle) ResolveSite(_ context.Context, n *syntax.Node) (oracle.Site, error) {
	call, ok := o.nodes[n].(*ast.CallExpr)
	if !ok {
		return oracle.Site{}, nil
	}
	fun := ast.Unparen(call.Fun)
	if tv, ok := o.info.Types[fun]; ok && tv.IsType() {
		if tn := typeNameOf(o.info, fun); tn != nil {
			return oracle.Site{Primary: o.syms.object(tn)}, nil
		}
		return oracle.Site{}, nil
	}
	if obj := typeutil.Callee(o.info, call); obj != nil {
		return oracle.Site{Primary: o.syms.object(obj)}, nil
	}
	return oracle.Site{}, nil
}

func typeNameOf(info *types.Info, e ast.Expr) types.Object {
	switch e := e.(type) {
	case *ast.Ident:
		return info.Uses[e]
	case *ast.SelectorExpr:
		return info.Uses[e.Sel]
	case *ast.IndexExpr:
		return typeNameOf(info, e.X)
	case *ast.IndexListExpr:
		return typeNameOf(info, e.X)
	}
	return nil
}

func (o *Oracle) TypeOf(_ context.Context, n *syntax.Node) (oracle.TypeRef, error) {
	if t, ok := o.known[n]; ok {
		return typeRef(t), nil
	}
	e, ok := o.nodes[n].(ast.Expr)
	if !ok {
		return oracle.Unresolved, nil
	}
	return typeRef(o.info.TypeOf(e)), nil
}

func typeRef(t types.Type) oracle.TypeRef {
	if t == nil {
		return oracle.Unresolved
	}
	if b, ok := t.(*types.Basic); ok && b.Kind() == types.Invalid {
		return oracle.Unresolved
	}
	return oracle.TypeNamed(typeString(t))
}

// DeclaredParameters returns the parameters of functions, methods and
// func-typed variables. Conversions and builtins have no signature.
func (o *Oracle) DeclaredParameters(_ context.Context, s oracle.Symbol) (oracle.Signature, error) {
	sym, ok := s.(*symbol)
	if !ok {
		return oracle.Signature{}, fmt.Errorf("golang: foreign symbol %T", s)
	}
	if sym.obj == nil {
		return oracle.Signature{}, oracle.ErrNoSignature
	}
	switch sym.obj.(type) {
	case *types.TypeName, *types.Builtin:
		return oracle.Signature{}, oracle.ErrNoSignature
	}
	sig, ok := sym.obj.Type().Underlying().(*types.Signature)
	if !ok {
		return oracle.Signature{}, oracle.ErrNoSignature
	}

	params := sig.Params()
	out := oracle.Signature{Params: make([]oracle.Parameter, params.Len()), Variadic: sig.Variadic()}
	for i := range params.Len() {
		name := params.At(i).Name()
		if name == "" {
			name = "_"
		}
		out.Params[i] = oracle.Parameter{Name: name, Type: typeRef(params.At(i).Type())}
	}
	return out, nil
}
