package java

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/syntax"
)

// scope is one level of local declarations.
type scope struct {
	parent  *scope
	vars    map[string]*variable
	classes map[string]*classSym
}

func (s *scope) push() *scope {
	return &scope{parent: s, vars: make(map[string]*variable)}
}

func (s *scope) lookup(name string) *variable {
	for ; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v
		}
	}
	return nil
}

func (s *scope) class(name string) *classSym {
	for ; s != nil; s = s.parent {
		if c, ok := s.classes[name]; ok {
			return c
		}
	}
	return nil
}

func (s *scope) declareClass(c *classSym) {
	if s.classes == nil {
		s.classes = make(map[string]*classSym)
	}
	s.classes[c.name] = c
}

// env is the binding context of a statement or expression.
type env struct {
	class *classSym
	scope *scope
}

func (e env) push() env {
	e.scope = e.scope.push()
	return e
}

// binder walks the bodies of one file and records declared symbols, call
// site bindings and expression types against the converted syntax nodes.
type binder struct {
	p *project
	f *file
}

func (b *binder) syntax(n *sitter.Node) *syntax.Node {
	if n == nil {
		return nil
	}
	return b.f.conv.nodes[keyOf(n)]
}

func (b *binder) text(n *sitter.Node) string { return b.f.text(n) }

func (b *binder) declare(n *sitter.Node, s *symbol) {
	if sn := b.syntax(n); sn != nil {
		b.p.decls[sn] = s
	}
}

func (b *binder) setType(n *sitter.Node, t jtype) {
	if !t.resolved() {
		return
	}
	if sn := b.syntax(n); sn != nil {
		b.p.types[sn] = t
	}
}

// bindFile binds every top-level class of the file.
func (b *binder) bindFile() {
	root := b.f.tree.RootNode()
	for i := range int(root.NamedChildCount()) {
		n := root.NamedChild(i)
		if c := b.f.classes[keyOf(n)]; c != nil {
			b.bindClass(c, nil)
		}
	}
}

func (b *binder) bindClass(c *classSym, sc *scope) {
	b.declare(c.node, c.sym)
	e := env{class: c, scope: sc}
	if c.node.Type() == "record_declaration" {
		if params := c.node.ChildByFieldName("parameters"); params != nil {
			for i := range int(params.NamedChildCount()) {
				fp := params.NamedChild(i)
				if fp.Type() != "formal_parameter" {
					continue
				}
				name := fp.ChildByFieldName("name")
				if v := c.fields[b.text(name)]; v != nil {
					b.declare(fp, v.sym)
					b.declare(name, v.sym)
					b.setType(fp.ChildByFieldName("type"), v.typ)
				}
			}
		}
	}
	body := c.node
	if c.node.Type() != "class_body" {
		body = c.node.ChildByFieldName("body")
	}
	if body != nil {
		b.bindBody(body, e)
	}
}

func (b *binder) bindBody(body *sitter.Node, e env) {
	for i := range int(body.NamedChildCount()) {
		m := body.NamedChild(i)
		switch m.Type() {
		case "field_declaration", "constant_declaration":
			b.bindFields(m, e)
		case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
			b.bindMethod(m, e)
		case "enum_constant":
			if v := e.class.fields[b.text(m.ChildByFieldName("name"))]; v != nil {
				b.declare(m, v.sym)
			}
			b.walkChildren(m, e)
		case "enum_body_declarations":
			b.bindBody(m, e)
		case "block", "static_initializer":
			b.walk(m, e)
		default:
			if c := b.f.classes[keyOf(m)]; c != nil {
				b.bindClass(c, e.scope)
			}
		}
	}
}

func (b *binder) bindFields(n *sitter.Node, e env) {
	typeNode := n.ChildByFieldName("type")
	first := true
	for i := range int(n.NamedChildCount()) {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		v := e.class.fields[b.text(d.ChildByFieldName("name"))]
		if v == nil {
			continue
		}
		b.declare(d, v.sym)
		b.setType(d, v.typ)
		if first {
			t := v.typ
			t.dims -= v.dims
			b.setType(typeNode, t)
			first = false
		}
		b.expr(d.ChildByFieldName("value"), e)
	}
}

func (b *binder) bindMethod(n *sitter.Node, e env) {
	m := b.f.methods[keyOf(n)]
	if m == nil {
		return
	}
	b.declare(n, m.sym)
	e = e.push()
	for _, p := range m.params {
		v := &variable{
			sym: &symbol{name: p.name, kind: oracle.KindParameter, display: p.name},
			typ: p.typ,
		}
		e.scope.vars[p.name] = v
		b.declare(p.node, v.sym)
		b.setType(p.typeNode, p.typ)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		b.walk(body, e)
	}
}

// local declares a local variable declaration into the current scope.
func (b *binder) local(n *sitter.Node, e env) {
	typeNode := n.ChildByFieldName("type")
	inferred := b.text(typeNode) == "var"
	var declared jtype
	if !inferred {
		declared = b.p.resolveType(typeNode, e.class, b.f, e.scope)
		b.setType(typeNode, declared)
	}
	for i := range int(n.NamedChildCount()) {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		vt := b.expr(d.ChildByFieldName("value"), e)
		t := declared
		if inferred {
			t = vt
			t.static = false
			if t.isNull() {
				t = jtype{}
			}
		} else if t.resolved() {
			t.dims += dimensions(b.f, d.ChildByFieldName("dimensions"))
		}
		b.bindLocal(d.ChildByFieldName("name"), d, t, e)
	}
}

// bindLocal adds a local variable named by nameNode; decl is the node that
// reports it.
func (b *binder) bindLocal(nameNode, decl *sitter.Node, t jtype, e env) {
	if nameNode == nil {
		return
	}
	name := b.text(nameNode)
	v := &variable{sym: &symbol{name: name, kind: oracle.KindLocal, display: name}, typ: t}
	if e.scope != nil {
		e.scope.vars[name] = v
	}
	b.declare(decl, v.sym)
	b.setType(decl, t)
}

// walk binds a statement.
func (b *binder) walk(n *sitter.Node, e env) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "block", "constructor_body", "switch_block_statement_group", "switch_rule":
		b.walkChildren(n, e.push())
	case "local_variable_declaration":
		b.local(n, e)
	case "for_statement":
		b.walkChildren(n, e.push())
	case "enhanced_for_statement":
		b.enhancedFor(n, e.push())
	case "catch_clause":
		b.catch(n, e.push())
	case "try_with_resources_statement":
		b.tryResources(n, e.push())
	case "explicit_constructor_invocation":
		if args := n.ChildByFieldName("arguments"); args != nil {
			b.walkChildren(args, e)
		}
	case "line_comment", "block_comment":
	default:
		if _, ok := classTypes[n.Type()]; ok {
			b.localClass(n, e)
			return
		}
		if expressions[n.Type()] || literals[n.Type()] {
			b.expr(n, e)
			return
		}
		b.walkChildren(n, e)
	}
}

func (b *binder) walkChildren(n *sitter.Node, e env) {
	for i := range int(n.NamedChildCount()) {
		b.walk(n.NamedChild(i), e)
	}
}

func (b *binder) enhancedFor(n *sitter.Node, e env) {
	typeNode := n.ChildByFieldName("type")
	vt := b.expr(n.ChildByFieldName("value"), e)
	var t jtype
	if b.text(typeNode) == "var" {
		t = vt.elem()
	} else {
		t = b.p.resolveType(typeNode, e.class, b.f, e.scope)
	}
	b.setType(typeNode, t)
	name := n.ChildByFieldName("name")
	b.bindLocal(name, name, t, e)
	b.walk(n.ChildByFieldName("body"), e)
}

func (b *binder) catch(n *sitter.Node, e env) {
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		switch c.Type() {
		case "catch_formal_parameter":
			var t jtype
			for j := range int(c.NamedChildCount()) {
				if ct := c.NamedChild(j); ct.Type() == "catch_type" && ct.NamedChildCount() > 0 {
					t = b.p.resolveType(ct.NamedChild(0), e.class, b.f, e.scope)
				}
			}
			name := c.ChildByFieldName("name")
			b.bindLocal(name, name, t, e)
		default:
			b.walk(c, e)
		}
	}
}

func (b *binder) tryResources(n *sitter.Node, e env) {
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		if c.Type() != "resource_specification" {
			b.walk(c, e)
			continue
		}
		for j := range int(c.NamedChildCount()) {
			r := c.NamedChild(j)
			if r.Type() != "resource" || r.ChildByFieldName("name") == nil {
				b.walk(r, e)
				continue
			}
			typeNode := r.ChildByFieldName("type")
			vt := b.expr(r.ChildByFieldName("value"), e)
			t := vt
			if b.text(typeNode) != "var" {
				t = b.p.resolveType(typeNode, e.class, b.f, e.scope)
			}
			b.setType(typeNode, t)
			name := r.ChildByFieldName("name")
			b.bindLocal(name, name, t, e)
		}
	}
}

func (b *binder) localClass(n *sitter.Node, e env) {
	c := b.f.classes[keyOf(n)]
	if c == nil {
		from := len(b.p.order)
		c = b.p.declare(b.f, n, e.class)
		if e.scope != nil {
			e.scope.declareClass(c)
		}
		b.resolveFrom(from, e.scope)
	}
	b.bindClass(c, e.scope)
}

// resolveFrom resolves the classes registered since p.order had length
// from.
func (b *binder) resolveFrom(from int, sc *scope) {
	for _, c := range b.p.order[from:] {
		b.p.resolveClass(c, sc)
	}
}

var expressions = map[string]bool{
	"identifier": true, "this": true, "super": true, "field_access": true,
	"method_invocation": true, "object_creation_expression": true,
	"array_creation_expression": true, "array_access": true, "cast_expression": true,
	"binary_expression": true, "unary_expression": true, "update_expression": true,
	"ternary_expression": true, "assignment_expression": true,
	"instanceof_expression": true, "lambda_expression": true,
	"method_reference": true, "parenthesized_expression": true,
	"class_literal": true, "array_initializer": true, "switch_expression": true,
}

// expr types an expression and every expression below it.
func (b *binder) expr(n *sitter.Node, e env) jtype {
	if n == nil {
		return jtype{}
	}
	t := b.eval(n, e)
	b.setType(n, t)
	return t
}

func (b *binder) eval(n *sitter.Node, e env) jtype {
	typ := n.Type()
	if literals[typ] {
		return b.literal(n)
	}
	switch typ {
	case "this":
		return jtype{class: e.class}
	case "super":
		if len(e.class.supers) > 0 {
			return jtype{class: e.class.supers[0]}
		}
		return jtype{}
	case "identifier":
		return b.identifier(b.text(n), e)
	case "parenthesized_expression":
		if n.NamedChildCount() == 0 {
			return jtype{}
		}
		return b.expr(n.NamedChild(0), e)
	case "field_access":
		return b.fieldAccess(n, e)
	case "method_invocation":
		return b.invocation(n, e)
	case "object_creation_expression":
		return b.creation(n, e)
	case "array_creation_expression":
		t := b.p.resolveType(n.ChildByFieldName("type"), e.class, b.f, e.scope)
		for i := range int(n.NamedChildCount()) {
			c := n.NamedChild(i)
			switch c.Type() {
			case "dimensions_expr":
				t.dims++
				b.walkChildren(c, e)
			case "dimensions":
				t.dims += dimensions(b.f, c)
			case "array_initializer":
				b.expr(c, e)
			}
		}
		return t
	case "array_access":
		b.expr(n.ChildByFieldName("index"), e)
		return b.expr(n.ChildByFieldName("array"), e).elem()
	case "cast_expression":
		b.expr(n.ChildByFieldName("value"), e)
		t := b.p.resolveType(n.ChildByFieldName("type"), e.class, b.f, e.scope)
		b.setType(n.ChildByFieldName("type"), t)
		return t
	case "binary_expression":
		return b.binary(n, e)
	case "unary_expression":
		t := b.expr(n.ChildByFieldName("operand"), e)
		if op := n.ChildByFieldName("operator"); op != nil && op.Type() == "!" {
			return boolType
		}
		return promote(t, intType)
	case "update_expression":
		if n.NamedChildCount() == 0 {
			return jtype{}
		}
		return b.expr(n.NamedChild(0), e)
	case "ternary_expression":
		b.expr(n.ChildByFieldName("condition"), e)
		l := b.expr(n.ChildByFieldName("consequence"), e)
		r := b.expr(n.ChildByFieldName("alternative"), e)
		if l.resolved() && !l.isNull() {
			return l
		}
		return r
	case "assignment_expression":
		l := b.expr(n.ChildByFieldName("left"), e)
		b.expr(n.ChildByFieldName("right"), e)
		return l
	case "instanceof_expression":
		b.expr(n.ChildByFieldName("left"), e)
		if name := n.ChildByFieldName("name"); name != nil {
			t := b.p.resolveType(n.ChildByFieldName("right"), e.class, b.f, e.scope)
			b.bindLocal(name, name, t, e)
		}
		return boolType
	case "lambda_expression":
		b.lambda(n, e.push())
		return jtype{}
	case "class_literal":
		return b.p.named("java.lang.Class")
	}
	b.walkChildren(n, e)
	return jtype{}
}

func (b *binder) literal(n *sitter.Node) jtype {
	text := strings.ToLower(b.text(n))
	switch n.Type() {
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		if strings.HasSuffix(text, "l") {
			return longType
		}
		return intType
	case "decimal_floating_point_literal", "hex_floating_point_literal":
		if strings.HasSuffix(text, "f") {
			return floatType
		}
		return doubleType
	case "string_literal", "text_block":
		return b.p.named("java.lang.String")
	case "character_literal":
		return charType
	case "true", "false":
		return boolType
	}
	return nullType
}

// identifier types a simple name: a local or parameter, a field of an
// enclosing class, or a type name used as a qualifier.
func (b *binder) identifier(name string, e env) jtype {
	if v := e.scope.lookup(name); v != nil {
		return v.typ
	}
	for c := e.class; c != nil; c = c.outer {
		if v := c.field(name); v != nil {
			return v.typ
		}
	}
	if c := b.p.lookupClass(name, e.class, b.f, e.scope); c != nil {
		return jtype{class: c, static: true}
	}
	return jtype{}
}

func (b *binder) fieldAccess(n *sitter.Node, e env) jtype {
	ot := b.expr(n.ChildByFieldName("object"), e)
	name := b.text(n.ChildByFieldName("field"))
	switch {
	case ot.dims > 0 && name == "length":
		return intType
	case ot.class == nil:
		return jtype{}
	}
	if v := ot.class.field(name); v != nil {
		return v.typ
	}
	if ot.static {
		if c := ot.class.memberType(name); c != nil {
			return jtype{class: c, static: true}
		}
	}
	return jtype{}
}

// invocation binds a method call and types it by the return type of the
// chosen method.
func (b *binder) invocation(n *sitter.Node, e env) jtype {
	name := b.text(n.ChildByFieldName("name"))
	obj := n.ChildByFieldName("object")

	var recv *classSym
	if obj != nil {
		ot := b.expr(obj, e)
		switch {
		case ot.dims > 0:
			recv = b.p.classes["java.lang.Object"]
		case ot.class != nil:
			recv = ot.class
		}
	}

	var args []jtype
	if list := n.ChildByFieldName("arguments"); list != nil {
		for i := range int(list.NamedChildCount()) {
			a := list.NamedChild(i)
			if a.Type() == "line_comment" || a.Type() == "block_comment" {
				continue
			}
			args = append(args, b.expr(a, e))
		}
	}

	var cands []*methodSym
	switch {
	case obj == nil:
		for c := e.class; c != nil && len(cands) == 0; c = c.outer {
			cands = c.methodsNamed(name)
		}
	case recv != nil:
		cands = recv.methodsNamed(name)
	}

	primary, ambiguous := selectOverload(cands, args)
	site := oracle.Site{}
	if primary != nil {
		site.Primary = primary.sym
	}
	for _, m := range ambiguous {
		site.Candidates = append(site.Candidates, m.sym)
	}
	if sn := b.syntax(n); sn != nil {
		b.p.sites[sn] = site
	}

	switch {
	case primary != nil:
		return primary.ret
	case len(ambiguous) > 0:
		ret := ambiguous[0].ret
		for _, m := range ambiguous[1:] {
			if m.ret.String() != ret.String() {
				return jtype{}
			}
		}
		return ret
	}
	return jtype{}
}

func (b *binder) creation(n *sitter.Node, e env) jtype {
	typeNode := n.ChildByFieldName("type")
	t := b.p.resolveType(typeNode, e.class, b.f, e.scope)
	b.setType(typeNode, t)
	if args := n.ChildByFieldName("arguments"); args != nil {
		b.walkChildren(args, e)
	}
	for i := range int(n.NamedChildCount()) {
		body := n.NamedChild(i)
		if body.Type() != "class_body" {
			continue
		}
		from := len(b.p.order)
		c := b.p.anonymous(b.f, e.class, t, body)
		b.resolveFrom(from, e.scope)
		b.bindClass(c, e.scope)
	}
	return t
}

func (b *binder) binary(n *sitter.Node, e env) jtype {
	l := b.expr(n.ChildByFieldName("left"), e)
	r := b.expr(n.ChildByFieldName("right"), e)
	op := ""
	if o := n.ChildByFieldName("operator"); o != nil {
		op = o.Type()
	}
	switch op {
	case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
		return boolType
	case "+":
		if l.isString() || r.isString() {
			return b.p.named("java.lang.String")
		}
	case "<<", ">>", ">>>":
		return promote(l, intType)
	case "&", "|", "^":
		if l.unboxed().name == "boolean" && r.unboxed().name == "boolean" {
			return boolType
		}
	}
	return promote(l, r)
}

func (b *binder) lambda(n *sitter.Node, e env) {
	if params := n.ChildByFieldName("parameters"); params != nil {
		switch params.Type() {
		case "identifier":
			b.bindLocal(params, params, jtype{}, e)
		case "formal_parameters":
			for i := range int(params.NamedChildCount()) {
				p := params.NamedChild(i)
				typeNode, nameNode := parameterParts(p)
				t := b.p.resolveType(typeNode, e.class, b.f, e.scope)
				b.setType(typeNode, t)
				b.bindLocal(nameNode, p, t, e)
			}
		default:
			for i := range int(params.NamedChildCount()) {
				if p := params.NamedChild(i); p.Type() == "identifier" {
					b.bindLocal(p, p, jtype{}, e)
				}
			}
		}
	}
	body := n.ChildByFieldName("body")
	if body != nil && body.Type() == "block" {
		b.walk(body, e)
		return
	}
	b.expr(body, e)
}
