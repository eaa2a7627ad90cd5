package java

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/symwalk/internal/oracle"
)

// symbol is the oracle's handle for a declared entity.
type symbol struct {
	name    string
	kind    oracle.SymbolKind
	display string
}

func (s *symbol) Name() string { return s.name }

func (s *symbol) Kind() oracle.SymbolKind { return s.kind }

func (s *symbol) String() string { return s.display }

// classSym is a class, interface, enum or record.
type classSym struct {
	sym   *symbol
	name  string
	fqn   string
	pkg   string
	outer *classSym
	file  *file
	node  *sitter.Node
	iface bool
	stub  bool

	supers  []*classSym
	fields  map[string]*variable
	methods []*methodSym
	ctors   []*methodSym
	nested  map[string]*classSym
	anon    int
}

// variable is a field, parameter or local.
type variable struct {
	sym      *symbol
	typ      jtype
	typeNode *sitter.Node
	dims     int
	static   bool
}

type param struct {
	name     string
	typ      jtype
	typeNode *sitter.Node
	node     *sitter.Node
}

type methodSym struct {
	sym      *symbol
	name     string
	owner    *classSym
	node     *sitter.Node
	params   []param
	variadic bool
	ret      jtype
	retNode  *sitter.Node
	static   bool
	ctor     bool
}

// typeName is the display name of the class as a type.
func (c *classSym) typeName() string {
	if c.pkg == "java.lang" && c.outer == nil {
		return c.name
	}
	return c.fqn
}

// nestedName is the name of the class within its package, e.g.
// "Outer.Inner".
func (c *classSym) nestedName() string {
	if c.pkg != "" && strings.HasPrefix(c.fqn, c.pkg+".") {
		return c.fqn[len(c.pkg)+1:]
	}
	return c.fqn
}

// hierarchy yields c and its supertypes breadth first, each once.
func (c *classSym) hierarchy() []*classSym {
	seen := map[*classSym]bool{c: true}
	out := []*classSym{c}
	for i := 0; i < len(out); i++ {
		for _, s := range out[i].supers {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func (c *classSym) subtypeOf(p *classSym) bool {
	for _, s := range c.hierarchy() {
		if s == p {
			return true
		}
	}
	return false
}

// field looks a field up in c and its supertypes.
func (c *classSym) field(name string) *variable {
	for _, s := range c.hierarchy() {
		if v, ok := s.fields[name]; ok {
			return v
		}
	}
	return nil
}

// memberType looks a nested type up in c and its supertypes.
func (c *classSym) memberType(name string) *classSym {
	for _, s := range c.hierarchy() {
		if n, ok := s.nested[name]; ok {
			return n
		}
	}
	return nil
}

// methodsNamed returns the methods called name visible on c, most derived
// first and in declaration order within a class. Overridden methods are
// hidden by their overrides.
func (c *classSym) methodsNamed(name string) []*methodSym {
	var out []*methodSym
	seen := make(map[string]bool)
	for _, s := range c.hierarchy() {
		for _, m := range s.methods {
			if m.name != name {
				continue
			}
			if k := m.paramKey(); !seen[k] {
				seen[k] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func (m *methodSym) paramKey() string {
	var b strings.Builder
	for i, p := range m.params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.typ.qualified())
		for range p.typ.dims {
			b.WriteString("[]")
		}
	}
	return b.String()
}

// display renders "pkg.Owner.name(int, String...)".
func (m *methodSym) display() string {
	var b strings.Builder
	b.WriteString(m.owner.fqn)
	b.WriteByte('.')
	b.WriteString(m.name)
	b.WriteByte('(')
	for i, p := range m.params {
		if i > 0 {
			b.WriteString(", ")
		}
		if m.variadic && i == len(m.params)-1 {
			b.WriteString(p.typ.elem().short())
			b.WriteString("...")
			continue
		}
		b.WriteString(p.typ.short())
	}
	b.WriteByte(')')
	return b.String()
}

// applicable reports whether m accepts args. Phases follow method
// invocation conversion: 1 is subtyping and widening only, 2 adds boxing,
// 3 adds variable arity.
func (m *methodSym) applicable(args []jtype, phase int) bool {
	n := len(m.params)
	if phase < 3 {
		if len(args) != n {
			return false
		}
		for i, a := range args {
			if !convertible(a, m.params[i].typ, phase >= 2) {
				return false
			}
		}
		return true
	}
	if !m.variadic || len(args) < n-1 {
		return false
	}
	for i, a := range args {
		pt := m.params[min(i, n-1)].typ
		if i >= n-1 {
			pt = pt.elem()
		}
		if !convertible(a, pt, true) {
			return false
		}
	}
	return true
}

func (m *methodSym) exactly(args []jtype) bool {
	if len(args) != len(m.params) {
		return false
	}
	for i, a := range args {
		if !exact(a, m.params[i].typ) {
			return false
		}
	}
	return true
}

// moreSpecific reports whether every parameter of m converts to the
// matching parameter of o.
func (m *methodSym) moreSpecific(o *methodSym) bool {
	if len(m.params) != len(o.params) {
		return false
	}
	for i := range m.params {
		if !convertible(m.params[i].typ, o.params[i].typ, false) {
			return false
		}
	}
	return true
}

// selectOverload picks the method an invocation with the given argument
// types binds to. It returns a unique method, or the ordered candidates
// when the choice is ambiguous or nothing applies.
func selectOverload(cands []*methodSym, args []jtype) (*methodSym, []*methodSym) {
	if len(cands) == 0 {
		return nil, nil
	}
	known := true
	for _, a := range args {
		if !a.resolved() {
			known = false
		}
	}
	for phase := 1; phase <= 3; phase++ {
		var viable []*methodSym
		for _, m := range cands {
			if m.applicable(args, phase) {
				viable = append(viable, m)
			}
		}
		switch len(viable) {
		case 0:
			continue
		case 1:
			return viable[0], nil
		}
		var exacts []*methodSym
		for _, m := range viable {
			if m.exactly(args) {
				exacts = append(exacts, m)
			}
		}
		if len(exacts) == 1 {
			return exacts[0], nil
		}
		if known {
			if m := mostSpecific(viable); m != nil {
				return m, nil
			}
		}
		return nil, viable
	}
	return nil, cands
}

func mostSpecific(ms []*methodSym) *methodSym {
	for _, m := range ms {
		best := true
		for _, o := range ms {
			if o != m && (!m.moreSpecific(o) || o.moreSpecific(m)) {
				best = false
				break
			}
		}
		if best {
			return m
		}
	}
	return nil
}
