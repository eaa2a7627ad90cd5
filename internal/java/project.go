package java

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/syntax"
)

// file is one parsed compilation unit.
type file struct {
	path      string
	src       []byte
	tree      *sitter.Tree
	stub      bool
	pkg       string
	imports   map[string]string
	wildcards []string
	conv      *converter
	unit      *syntax.SourceUnit

	classes map[nodeKey]*classSym
	methods map[nodeKey]*methodSym
}

func (f *file) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(f.src)
}

// project is the declaration table shared by every file of one project,
// including the bundled library stubs.
type project struct {
	classes map[string]*classSym
	order   []*classSym

	decls   map[*syntax.Node]*symbol
	sites   map[*syntax.Node]oracle.Site
	types   map[*syntax.Node]jtype
	methods map[*symbol]*methodSym
}

func newProject() *project {
	return &project{
		classes: make(map[string]*classSym),
		decls:   make(map[*syntax.Node]*symbol),
		sites:   make(map[*syntax.Node]oracle.Site),
		types:   make(map[*syntax.Node]jtype),
		methods: make(map[*symbol]*methodSym),
	}
}

// named returns the type of a library or project class by qualified name.
func (p *project) named(fqn string) jtype {
	if c, ok := p.classes[fqn]; ok {
		return jtype{class: c}
	}
	return jtype{name: fqn}
}

// collect records the package, imports and every class-like declaration of
// f that is not local to a method body.
func (p *project) collect(f *file) {
	f.imports = make(map[string]string)
	f.classes = make(map[nodeKey]*classSym)
	f.methods = make(map[nodeKey]*methodSym)

	root := f.tree.RootNode()
	for i := range int(root.NamedChildCount()) {
		n := root.NamedChild(i)
		switch n.Type() {
		case "package_declaration":
			for j := range int(n.NamedChildCount()) {
				if c := n.NamedChild(j); c.Type() == "scoped_identifier" || c.Type() == "identifier" {
					f.pkg = f.text(c)
				}
			}
		case "import_declaration":
			p.collectImport(f, n)
		default:
			if _, ok := classTypes[n.Type()]; ok {
				p.declare(f, n, nil)
			}
		}
	}
}

func (p *project) collectImport(f *file, n *sitter.Node) {
	var name string
	wildcard := false
	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		switch c.Type() {
		case "static":
			return
		case "asterisk":
			wildcard = true
		case "scoped_identifier", "identifier":
			name = f.text(c)
		}
	}
	switch {
	case name == "":
	case wildcard:
		f.wildcards = append(f.wildcards, name)
	default:
		f.imports[name[strings.LastIndexByte(name, '.')+1:]] = name
	}
}

// declare registers the class declared by n and its members. Nested
// member classes are declared recursively.
func (p *project) declare(f *file, n *sitter.Node, outer *classSym) *classSym {
	name := f.text(n.ChildByFieldName("name"))
	c := &classSym{
		name:   name,
		pkg:    f.pkg,
		outer:  outer,
		file:   f,
		node:   n,
		iface:  classTypes[n.Type()] == syntax.KindInterfaceDecl,
		stub:   f.stub,
		fields: make(map[string]*variable),
		nested: make(map[string]*classSym),
	}
	switch {
	case outer != nil:
		c.fqn = outer.fqn + "." + name
		if _, dup := outer.nested[name]; !dup {
			outer.nested[name] = c
		}
	case f.pkg != "":
		c.fqn = f.pkg + "." + name
	default:
		c.fqn = name
	}
	p.register(f, c)

	if n.Type() == "record_declaration" {
		if params := n.ChildByFieldName("parameters"); params != nil {
			for i := range int(params.NamedChildCount()) {
				if fp := params.NamedChild(i); fp.Type() == "formal_parameter" {
					p.addField(f, c, fp.ChildByFieldName("name"), fp.ChildByFieldName("type"), false)
				}
			}
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		p.members(f, c, body)
	}
	return c
}

// anonymous registers the class body of an instance creation expression as
// a subclass of base.
func (p *project) anonymous(f *file, outer *classSym, base jtype, body *sitter.Node) *classSym {
	outer.anon++
	c := &classSym{
		name:   outer.name + "$" + strconv.Itoa(outer.anon),
		fqn:    outer.fqn + "$" + strconv.Itoa(outer.anon),
		pkg:    outer.pkg,
		outer:  outer,
		file:   f,
		node:   body,
		fields: make(map[string]*variable),
		nested: make(map[string]*classSym),
	}
	if base.class != nil {
		c.supers = []*classSym{base.class}
	}
	p.register(f, c)
	p.members(f, c, body)
	return c
}

func (p *project) register(f *file, c *classSym) {
	c.sym = &symbol{name: c.name, kind: oracle.KindType, display: c.fqn}
	if _, dup := p.classes[c.fqn]; !dup {
		p.classes[c.fqn] = c
	}
	p.order = append(p.order, c)
	f.classes[keyOf(c.node)] = c
}

func (p *project) members(f *file, c *classSym, body *sitter.Node) {
	for i := range int(body.NamedChildCount()) {
		m := body.NamedChild(i)
		switch m.Type() {
		case "field_declaration", "constant_declaration":
			static := c.iface || hasModifier(m, "static")
			for j := range int(m.NamedChildCount()) {
				if d := m.NamedChild(j); d.Type() == "variable_declarator" {
					v := p.addField(f, c, d.ChildByFieldName("name"), m.ChildByFieldName("type"), static)
					v.dims = dimensions(f, d.ChildByFieldName("dimensions"))
				}
			}
		case "method_declaration":
			c.methods = append(c.methods, p.method(f, c, m, false))
		case "constructor_declaration", "compact_constructor_declaration":
			c.ctors = append(c.ctors, p.method(f, c, m, true))
		case "enum_constant":
			p.addField(f, c, m.ChildByFieldName("name"), nil, true).typ = jtype{class: c}
		case "enum_body_declarations":
			p.members(f, c, m)
		default:
			if _, ok := classTypes[m.Type()]; ok {
				p.declare(f, m, c)
			}
		}
	}
}

func (p *project) addField(f *file, c *classSym, name, typeNode *sitter.Node, static bool) *variable {
	n := f.text(name)
	v := &variable{
		sym:      &symbol{name: n, kind: oracle.KindField, display: c.fqn + "." + n},
		typeNode: typeNode,
		static:   static,
	}
	if _, dup := c.fields[n]; !dup {
		c.fields[n] = v
	}
	return v
}

func (p *project) method(f *file, c *classSym, n *sitter.Node, ctor bool) *methodSym {
	m := &methodSym{
		name:    f.text(n.ChildByFieldName("name")),
		owner:   c,
		node:    n,
		retNode: n.ChildByFieldName("type"),
		static:  hasModifier(n, "static"),
		ctor:    ctor,
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := range int(params.NamedChildCount()) {
			pn := params.NamedChild(i)
			if pn.Type() != "formal_parameter" && pn.Type() != "spread_parameter" {
				continue
			}
			typeNode, nameNode := parameterParts(pn)
			m.params = append(m.params, param{name: f.text(nameNode), typeNode: typeNode, node: pn})
			if pn.Type() == "spread_parameter" {
				m.variadic = true
			}
		}
	}
	f.methods[keyOf(n)] = m
	return m
}

// resolve binds the supertypes and member types of every class declared
// so far. It runs once all files are collected.
func (p *project) resolve() {
	for _, c := range p.order {
		p.resolveClass(c, nil)
	}
}

// resolveClass binds the supertypes and member signatures of c. sc is the
// lexical scope of a local class.
func (p *project) resolveClass(c *classSym, sc *scope) {
	f := c.file
	object := p.classes["java.lang.Object"]
	if c.node.Type() != "class_body" {
		for _, st := range superTypeNodes(c.node) {
			if t := p.resolveType(st, c.outer, f, sc); t.class != nil && t.class != c {
				c.supers = append(c.supers, t.class)
			}
		}
	}
	if object != nil && c != object && (len(c.supers) == 0 || c.iface) {
		c.supers = append(c.supers, object)
	}

	for _, v := range c.fields {
		if v.typeNode != nil {
			v.typ = p.resolveType(v.typeNode, c, f, sc)
			v.typ.dims += v.dims
		}
	}
	for _, group := range [][]*methodSym{c.methods, c.ctors} {
		for _, m := range group {
			p.resolveMethod(m, sc)
		}
	}
}

func (p *project) resolveMethod(m *methodSym, sc *scope) {
	c, f := m.owner, m.owner.file
	for i := range m.params {
		pr := &m.params[i]
		pr.typ = p.resolveType(pr.typeNode, c, f, sc)
		if m.variadic && i == len(m.params)-1 {
			pr.typ.dims++
		}
	}
	kind := oracle.KindMethod
	if m.ctor {
		kind = oracle.KindConstructor
		m.name = c.name
		m.ret = jtype{class: c}
	} else if m.retNode != nil {
		m.ret = p.resolveType(m.retNode, c, f, sc)
	}
	m.sym = &symbol{name: m.name, kind: kind, display: m.display()}
	p.methods[m.sym] = m
}

func superTypeNodes(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		switch c.Type() {
		case "superclass":
			if c.NamedChildCount() > 0 {
				out = append(out, c.NamedChild(0))
			}
		case "super_interfaces", "extends_interfaces":
			for j := range int(c.NamedChildCount()) {
				if list := c.NamedChild(j); list.Type() == "type_list" {
					for k := range int(list.NamedChildCount()) {
						out = append(out, list.NamedChild(k))
					}
				}
			}
		}
	}
	return out
}

// resolveType resolves a type syntax node seen from class ctx.
func (p *project) resolveType(n *sitter.Node, ctx *classSym, f *file, sc *scope) jtype {
	if n == nil {
		return jtype{}
	}
	switch n.Type() {
	case "integral_type", "floating_point_type", "boolean_type", "void_type":
		return jtype{name: f.text(n)}
	case "type_identifier":
		return p.typeNamed(f.text(n), ctx, f, sc)
	case "scoped_type_identifier":
		return p.qualifiedType(strings.Join(strings.Fields(f.text(n)), ""), ctx, f, sc)
	case "generic_type":
		if n.NamedChildCount() == 0 {
			return jtype{}
		}
		t := p.resolveType(n.NamedChild(0), ctx, f, sc)
		for i := range int(n.NamedChildCount()) {
			if a := n.NamedChild(i); a.Type() == "type_arguments" {
				t.args = strings.Join(strings.Fields(f.text(a)), " ")
			}
		}
		return t
	case "array_type":
		t := p.resolveType(n.ChildByFieldName("element"), ctx, f, sc)
		if t.resolved() {
			t.dims += dimensions(f, n.ChildByFieldName("dimensions"))
		}
		return t
	case "annotated_type":
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			if c := n.NamedChild(i); typeNodes[c.Type()] {
				return p.resolveType(c, ctx, f, sc)
			}
		}
	}
	return jtype{}
}

func (p *project) typeNamed(name string, ctx *classSym, f *file, sc *scope) jtype {
	if c := p.lookupClass(name, ctx, f, sc); c != nil {
		return jtype{class: c}
	}
	if fqn, ok := f.imports[name]; ok {
		return jtype{name: fqn}
	}
	return jtype{name: name}
}

func (p *project) qualifiedType(name string, ctx *classSym, f *file, sc *scope) jtype {
	segs := strings.Split(name, ".")
	if c := p.lookupClass(segs[0], ctx, f, sc); c != nil {
		if c = descend(c, segs[1:]); c != nil {
			return jtype{class: c}
		}
	}
	for i := len(segs); i > 0; i-- {
		if c, ok := p.classes[strings.Join(segs[:i], ".")]; ok {
			if c = descend(c, segs[i:]); c != nil {
				return jtype{class: c}
			}
		}
	}
	return jtype{name: name}
}

func descend(c *classSym, names []string) *classSym {
	for _, n := range names {
		if c = c.memberType(n); c == nil {
			return nil
		}
	}
	return c
}

// lookupClass finds a simple type name: local classes, then enclosing and
// inherited member types, single-type imports, the current package,
// on-demand imports and finally java.lang.
func (p *project) lookupClass(name string, ctx *classSym, f *file, sc *scope) *classSym {
	if c := sc.class(name); c != nil {
		return c
	}
	for c := ctx; c != nil; c = c.outer {
		if c.name == name {
			return c
		}
		if n := c.memberType(name); n != nil {
			return n
		}
	}
	if fqn, ok := f.imports[name]; ok {
		return p.classes[fqn]
	}
	prefix := ""
	if f.pkg != "" {
		prefix = f.pkg + "."
	}
	if c, ok := p.classes[prefix+name]; ok {
		return c
	}
	for _, w := range f.wildcards {
		if c, ok := p.classes[w+"."+name]; ok {
			return c
		}
	}
	return p.classes["java.lang."+name]
}

func hasModifier(n *sitter.Node, mod string) bool {
	for i := range int(n.NamedChildCount()) {
		m := n.NamedChild(i)
		if m.Type() != "modifiers" {
			continue
		}
		for j := range int(m.ChildCount()) {
			if m.Child(j).Type() == mod {
				return true
			}
		}
	}
	return false
}

func dimensions(f *file, n *sitter.Node) int {
	if n == nil {
		return 0
	}
	return strings.Count(f.text(n), "[")
}
