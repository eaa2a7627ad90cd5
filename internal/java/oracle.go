package java

import (
	"context"
	"fmt"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/syntax"
)

// Oracle answers queries for every document of one Java project. The
// tables are filled while loading and read-only afterwards, and no
// tree-sitter state is retained.
type Oracle struct {
	decls   map[*syntax.Node]*symbol
	sites   map[*syntax.Node]oracle.Site
	types   map[*syntax.Node]jtype
	methods map[*symbol]*methodSym
}

var _ oracle.Oracle = (*Oracle)(nil)

func (p *project) oracle() *Oracle {
	return &Oracle{decls: p.decls, sites: p.sites, types: p.types, methods: p.methods}
}

func (o *Oracle) ResolveDeclared(_ context.Context, n *syntax.Node) (oracle.Symbol, error) {
	if s, ok := o.decls[n]; ok {
		return s, nil
	}
	return nil, nil
}

// ResolveSite returns the overload chosen for a method invocation, or the
// remaining candidates in declaration order when it is ambiguous.
func (o *Oracle) ResolveSite(_ context.Context, n *syntax.Node) (oracle.Site, error) {
	return o.sites[n], nil
}

func (o *Oracle) TypeOf(_ context.Context, n *syntax.Node) (oracle.TypeRef, error) {
	t, ok := o.types[n]
	if !ok {
		return oracle.Unresolved, nil
	}
	return t.ref(), nil
}

// DeclaredParameters returns the parameter list of methods and
// constructors. A trailing varargs parameter has its array type.
func (o *Oracle) DeclaredParameters(_ context.Context, s oracle.Symbol) (oracle.Signature, error) {
	sym, ok := s.(*symbol)
	if !ok {
		return oracle.Signature{}, fmt.Errorf("java: foreign symbol %T", s)
	}
	m, ok := o.methods[sym]
	if !ok {
		return oracle.Signature{}, oracle.ErrNoSignature
	}
	sig := oracle.Signature{Params: make([]oracle.Parameter, len(m.params)), Variadic: m.variadic}
	for i, p := range m.params {
		sig.Params[i] = oracle.Parameter{Name: p.name, Type: p.typ.ref()}
	}
	return sig, nil
}
