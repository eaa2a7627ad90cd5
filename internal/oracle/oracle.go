// Package oracle defines the query surface of a bound semantic model. The
// analysis core never binds names itself; every symbol and type it reports
// comes from an Oracle supplied by a front end.
package oracle

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jward/symwalk/internal/syntax"
)

// ErrNoSignature is returned by DeclaredParameters for symbols that can be
// invoked syntactically but have no parameter list, such as type
// conversions.
var ErrNoSignature = errors.New("symbol has no signature")

// SymbolKind classifies a Symbol.
type SymbolKind string

const (
	KindType        SymbolKind = "type"
	KindMethod      SymbolKind = "method"
	KindConstructor SymbolKind = "constructor"
	KindField       SymbolKind = "field"
	KindParameter   SymbolKind = "parameter"
	KindLocal       SymbolKind = "local"
	KindBuiltin     SymbolKind = "builtin"
	KindOther       SymbolKind = "other"
)

// Symbol is an opaque handle to a named program entity. Symbols are owned by
// the oracle that returned them and compare with ==.
type Symbol interface {
	Name() string
	Kind() SymbolKind
	// String is the display form, e.g. "app.B.ADD(int)".
	String() string
}

// TypeRef is the resolved type of an expression or declaration. The zero
// value is an unresolved type, which is a valid result and not an error.
type TypeRef struct {
	Name string
}

// Unresolved is the zero TypeRef.
var Unresolved TypeRef

// TypeNamed returns a resolved TypeRef.
func TypeNamed(name string) TypeRef { return TypeRef{Name: name} }

// Resolved reports whether the oracle determined a type.
func (t TypeRef) Resolved() bool { return t.Name != "" }

func (t TypeRef) String() string {
	if t.Name == "" {
		return "<unresolved>"
	}
	return t.Name
}

// Site is what an oracle knows about a call site: either a unique bound
// symbol, or an ordered set of candidates when binding was ambiguous.
type Site struct {
	Primary    Symbol
	Candidates []Symbol
}

// Parameter is one declared parameter of a callable symbol.
type Parameter struct {
	Name string
	Type TypeRef
}

// Signature is the declared parameter list of a callable symbol.
type Signature struct {
	Params []Parameter
	// Variadic is set when the last parameter accepts any number of
	// arguments.
	Variadic bool
}

// Oracle answers read-only queries against an already bound program. All
// methods must be safe for concurrent use; the core issues queries from
// several goroutines against the same oracle.
type Oracle interface {
	// ResolveDeclared returns the symbol declared by n, or nil.
	ResolveDeclared(ctx context.Context, n *syntax.Node) (Symbol, error)
	// ResolveSite returns the symbol(s) bound at an invocation site.
	ResolveSite(ctx context.Context, n *syntax.Node) (Site, error)
	// TypeOf returns the type of an expression or type syntax node.
	TypeOf(ctx context.Context, n *syntax.Node) (TypeRef, error)
	// DeclaredParameters returns the parameter list of a callable symbol.
	DeclaredParameters(ctx context.Context, s Symbol) (Signature, error)
}

// MarshalJSON encodes an unresolved type as null.
func (t TypeRef) MarshalJSON() ([]byte, error) {
	if t.Name == "" {
		return []byte("null"), nil
	}
	return json.Marshal(t.Name)
}

// UnmarshalJSON accepts a string or null.
func (t *TypeRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Name = ""
		return nil
	}
	return json.Unmarshal(data, &t.Name)
}
