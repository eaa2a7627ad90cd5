// Package oracletest provides a deterministic, call-counting Oracle for
// tests of the analysis core.
package oracletest

import (
	"context"
	"sync"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/syntax"
)

// Symbol is a plain symbol handle. Use pointers so identity comparison
// matches the oracle contract.
type Symbol struct {
	N       string
	K       oracle.SymbolKind
	Display string
}

// NewSymbol returns a symbol whose display form is display.
func NewSymbol(name string, kind oracle.SymbolKind, display string) *Symbol {
	return &Symbol{N: name, K: kind, Display: display}
}

func (s *Symbol) Name() string { return s.N }

func (s *Symbol) Kind() oracle.SymbolKind { return s.K }

func (s *Symbol) String() string {
	if s.Display != "" {
		return s.Display
	}
	return s.N
}

// Stub answers queries from fixed tables. Nodes or symbols missing from a
// table resolve to nothing. The Err fields, when set, are returned by the
// corresponding query for every node.
type Stub struct {
	Declared   map[*syntax.Node]oracle.Symbol
	Sites      map[*syntax.Node]oracle.Site
	Types      map[*syntax.Node]oracle.TypeRef
	Signatures map[oracle.Symbol]oracle.Signature

	DeclaredErr  error
	SiteErr      error
	TypeErr      error
	SignatureErr error

	mu    sync.Mutex
	calls map[string]int
}

var _ oracle.Oracle = (*Stub)(nil)

// New returns an empty Stub.
func New() *Stub {
	return &Stub{
		Declared:   make(map[*syntax.Node]oracle.Symbol),
		Sites:      make(map[*syntax.Node]oracle.Site),
		Types:      make(map[*syntax.Node]oracle.TypeRef),
		Signatures: make(map[oracle.Symbol]oracle.Signature),
	}
}

func (s *Stub) record(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[method]++
}

// Calls returns how many times method ("ResolveDeclared", "ResolveSite",
// "TypeOf", "DeclaredParameters") was called.
func (s *Stub) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Declare binds n to sym and returns sym.
func (s *Stub) Declare(n *syntax.Node, sym oracle.Symbol) oracle.Symbol {
	s.Declared[n] = sym
	return sym
}

// SetType records the type of n.
func (s *Stub) SetType(n *syntax.Node, name string) {
	s.Types[n] = oracle.TypeNamed(name)
}

// SetSignature records the parameters of sym.
func (s *Stub) SetSignature(sym oracle.Symbol, params ...oracle.Parameter) {
	s.Signatures[sym] = oracle.Signature{Params: params}
}

func (s *Stub) ResolveDeclared(_ context.Context, n *syntax.Node) (oracle.Symbol, error) {
	s.record("ResolveDeclared")
	if s.DeclaredErr != nil {
		return nil, s.DeclaredErr
	}
	return s.Declared[n], nil
}

func (s *Stub) ResolveSite(_ context.Context, n *syntax.Node) (oracle.Site, error) {
	s.record("ResolveSite")
	if s.SiteErr != nil {
		return oracle.Site{}, s.SiteErr
	}
	return s.Sites[n], nil
}

func (s *Stub) TypeOf(_ context.Context, n *syntax.Node) (oracle.TypeRef, error) {
	s.record("TypeOf")
	if s.TypeErr != nil {
		return oracle.Unresolved, s.TypeErr
	}
	return s.Types[n], nil
}

func (s *Stub) DeclaredParameters(_ context.Context, sym oracle.Symbol) (oracle.Signature, error) {
	s.record("DeclaredParameters")
	if s.SignatureErr != nil {
		return oracle.Signature{}, s.SignatureErr
	}
	sig, ok := s.Signatures[sym]
	if !ok {
		return oracle.Signature{}, oracle.ErrNoSignature
	}
	return sig, nil
}
