package golang

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"github.com/jward/symwalk/internal/syntax"
)

// converter turns one type-checked *ast.File into a syntax tree and records
// the side tables the oracle answers from. After convert returns, the
// tables are read-only.
type converter struct {
	fset *token.FileSet
	tf   *token.File
	src  []byte
	path string
	pkg  *types.Package
	info *types.Info
	syms *symbolTable

	nodes map[*syntax.Node]ast.Node
	decls map[*syntax.Node]*symbol
	known map[*syntax.Node]types.Type

	unit     *syntax.Node
	classes  map[*types.TypeName]*syntax.Node
	pkgClass *syntax.Node
}

func newConverter(fset *token.FileSet, file *ast.File, src []byte, path string, pkg *types.Package, info *types.Info, syms *symbolTable) *converter {
	return &converter{
		fset:    fset,
		tf:      fset.File(file.Pos()),
		src:     src,
		path:    path,
		pkg:     pkg,
		info:    info,
		syms:    syms,
		nodes:   make(map[*syntax.Node]ast.Node),
		decls:   make(map[*syntax.Node]*symbol),
		known:   make(map[*syntax.Node]types.Type),
		classes: make(map[*types.TypeName]*syntax.Node),
	}
}

func (c *converter) span(n ast.Node) syntax.Span {
	start, end := c.fset.Position(n.Pos()), c.fset.Position(n.End())
	return syntax.Span{
		File:      c.path,
		StartLine: start.Line,
		StartCol:  start.Column,
		EndLine:   end.Line,
		EndCol:    end.Column,
	}
}

func (c *converter) text(n ast.Node) string {
	if c.src == nil || c.tf == nil || !n.Pos().IsValid() || !n.End().IsValid() {
		return ""
	}
	lo, hi := c.tf.Offset(n.Pos()), c.tf.Offset(n.End())
	if lo < 0 || hi > len(c.src) || lo > hi {
		return ""
	}
	return string(c.src[lo:hi])
}

// node creates a syntax node mapped to n. Only expressions carry source
// text; statements and declarations would duplicate their whole subtree.
func (c *converter) node(kind syntax.Kind, name string, n ast.Node, children ...*syntax.Node) *syntax.Node {
	sn := &syntax.Node{
		Kind:     kind,
		Type:     nodeType(n),
		Name:     name,
		Span:     c.span(n),
		Children: children,
	}
	if _, ok := n.(ast.Expr); ok {
		sn.Text = c.text(n)
	}
	c.nodes[sn] = n
	return sn
}

func nodeType(n ast.Node) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", n), "*ast.")
}

func (c *converter) declare(sn *syntax.Node, obj types.Object) {
	if obj != nil {
		c.decls[sn] = c.syms.object(obj)
	}
}

func exported(sn *syntax.Node, name string) {
	if token.IsExported(name) {
		sn.Modifiers = append(sn.Modifiers, "public")
	}
}

// convert builds the unit for file. Struct and named types become classes,
// methods attach to the class of their receiver, and package-level
// functions and variables gather under one synthetic class per file.
func (c *converter) convert(file *ast.File) *syntax.Node {
	c.unit = &syntax.Node{Kind: syntax.KindUnit, Type: "File", Name: file.Name.Name, Span: c.span(file)}

	// Class nodes exist before any method is attached, whatever the
	// declaration order in the file.
	typeSpecs := make(map[*ast.TypeSpec]*syntax.Node)
	for _, d := range file.Decls {
		gd, ok := d.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, s := range gd.Specs {
			ts := s.(*ast.TypeSpec)
			if n := c.typeSpec(ts); n != nil {
				typeSpecs[ts] = n
			}
		}
	}

	for _, d := range file.Decls {
		switch d := d.(type) {
		case *ast.GenDecl:
			switch d.Tok {
			case token.TYPE:
				for _, s := range d.Specs {
					if n := typeSpecs[s.(*ast.TypeSpec)]; n != nil {
						c.unit.Children = append(c.unit.Children, n)
					}
				}
			case token.VAR, token.CONST:
				pc := c.packageClass(d)
				for _, s := range d.Specs {
					pc.Children = append(pc.Children, c.valueSpec(s.(*ast.ValueSpec)))
				}
			}
		case *ast.FuncDecl:
			c.funcDecl(d)
		}
	}
	return c.unit
}

func (c *converter) packageClass(at ast.Node) *syntax.Node {
	if c.pkgClass == nil {
		c.pkgClass = &syntax.Node{Kind: syntax.KindClassDecl, Type: "package", Name: c.pkg.Name(), Span: c.span(at)}
		c.decls[c.pkgClass] = c.syms.pkg(c.pkg)
		c.unit.Children = append(c.unit.Children, c.pkgClass)
	}
	return c.pkgClass
}

// classFor returns the class node of tn in this file, synthesising a
// partial class when tn is declared in another file.
func (c *converter) classFor(tn *types.TypeName, at ast.Node) *syntax.Node {
	if n, ok := c.classes[tn]; ok {
		return n
	}
	n := &syntax.Node{Kind: syntax.KindClassDecl, Type: "partial_class", Name: tn.Name(), Span: c.span(at)}
	exported(n, tn.Name())
	c.declare(n, tn)
	c.classes[tn] = n
	c.unit.Children = append(c.unit.Children, n)
	return n
}

func (c *converter) typeSpec(ts *ast.TypeSpec) *syntax.Node {
	if ts.Assign.IsValid() {
		return nil
	}
	obj, _ := c.info.Defs[ts.Name].(*types.TypeName)

	switch t := ts.Type.(type) {
	case *ast.InterfaceType:
		n := c.node(syntax.KindInterfaceDecl, ts.Name.Name, ts)
		exported(n, ts.Name.Name)
		c.declare(n, obj)
		for _, m := range t.Methods.List {
			for _, name := range m.Names {
				mn := c.node(syntax.KindMethodDecl, name.Name, m)
				c.declare(mn, c.info.Defs[name])
				n.Children = append(n.Children, mn)
			}
		}
		return n
	case *ast.StructType:
		n := c.node(syntax.KindClassDecl, ts.Name.Name, ts)
		n.Type = "struct_type"
		exported(n, ts.Name.Name)
		c.declare(n, obj)
		for _, f := range t.Fields.List {
			n.Children = append(n.Children, c.field(f))
		}
		if obj != nil {
			c.classes[obj] = n
		}
		return n
	default:
		n := c.node(syntax.KindClassDecl, ts.Name.Name, ts)
		n.Type = "named_type"
		exported(n, ts.Name.Name)
		c.declare(n, obj)
		if obj != nil {
			c.classes[obj] = n
		}
		return n
	}
}

// field converts a struct field list entry into a variable declaration.
// Embedded fields declare the embedded type's name.
func (c *converter) field(f *ast.Field) *syntax.Node {
	decl := c.node(syntax.KindVariableDecl, "", f)
	decl.Text = c.text(f)
	decl.Children = append(decl.Children, c.typeNode(f.Type))
	if len(f.Names) == 0 {
		d := c.node(syntax.KindDeclarator, embeddedName(f.Type), f.Type)
		if id := embeddedIdent(f.Type); id != nil {
			c.declare(d, c.info.Defs[id])
		}
		decl.Children = append(decl.Children, d)
		return decl
	}
	for _, name := range f.Names {
		d := c.node(syntax.KindDeclarator, name.Name, name)
		c.declare(d, c.info.Defs[name])
		decl.Children = append(decl.Children, d)
	}
	return decl
}

func embeddedIdent(e ast.Expr) *ast.Ident {
	switch t := e.(type) {
	case *ast.Ident:
		return t
	case *ast.StarExpr:
		return embeddedIdent(t.X)
	case *ast.SelectorExpr:
		return t.Sel
	case *ast.IndexExpr:
		return embeddedIdent(t.X)
	case *ast.IndexListExpr:
		return embeddedIdent(t.X)
	}
	return nil
}

func embeddedName(e ast.Expr) string {
	if id := embeddedIdent(e); id != nil {
		return id.Name
	}
	return "_"
}

func (c *converter) typeNode(e ast.Expr) *syntax.Node {
	n := c.node(syntax.KindType, "", e)
	if ell, ok := e.(*ast.Ellipsis); ok {
		if elt := c.info.TypeOf(ell.Elt); elt != nil {
			c.known[n] = types.NewSlice(elt)
		}
	}
	return n
}

// valueSpec converts one var or const spec. Names with a matching value
// hold it as their child; otherwise the values follow the declarators.
func (c *converter) valueSpec(vs *ast.ValueSpec) *syntax.Node {
	decl := c.node(syntax.KindVariableDecl, "", vs)
	decl.Text = c.text(vs)
	if vs.Type != nil {
		decl.Children = append(decl.Children, c.typeNode(vs.Type))
	}
	paired := len(vs.Values) == len(vs.Names)
	for i, name := range vs.Names {
		d := c.node(syntax.KindDeclarator, name.Name, name)
		c.declare(d, c.info.Defs[name])
		if paired {
			d.Children = append(d.Children, c.expr(vs.Values[i]))
		}
		decl.Children = append(decl.Children, d)
	}
	if !paired {
		for _, v := range vs.Values {
			decl.Children = append(decl.Children, c.expr(v))
		}
	}
	return decl
}

func (c *converter) funcDecl(fd *ast.FuncDecl) {
	obj, _ := c.info.Defs[fd.Name].(*types.Func)

	if fd.Recv != nil && obj != nil {
		if tn := receiverTypeName(obj); tn != nil {
			class := c.classFor(tn, fd)
			class.Children = append(class.Children, c.function(syntax.KindMethodDecl, fd, obj))
			return
		}
	}
	if fd.Recv == nil && obj != nil {
		if tn := constructedType(obj, c.pkg); tn != nil {
			class := c.classFor(tn, fd)
			class.Children = append(class.Children, c.function(syntax.KindConstructorDecl, fd, obj))
			return
		}
	}
	pc := c.packageClass(fd)
	pc.Children = append(pc.Children, c.function(syntax.KindMethodDecl, fd, obj))
}

func receiverTypeName(fn *types.Func) *types.TypeName {
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return nil
	}
	t := sig.Recv().Type()
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	if n, ok := t.(*types.Named); ok {
		return n.Obj()
	}
	return nil
}

// constructedType reports the type T of pkg that fn constructs: fn is named
// New or NewT and its first result is T or *T.
func constructedType(fn *types.Func, pkg *types.Package) *types.TypeName {
	if !strings.HasPrefix(fn.Name(), "New") {
		return nil
	}
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Results().Len() == 0 {
		return nil
	}
	t := sig.Results().At(0).Type()
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	n, ok := t.(*types.Named)
	if !ok || n.Obj().Pkg() != pkg {
		return nil
	}
	if _, isIface := n.Underlying().(*types.Interface); isIface {
		return nil
	}
	if fn.Name() != "New" && fn.Name() != "New"+n.Obj().Name() {
		return nil
	}
	return n.Obj()
}

func (c *converter) function(kind syntax.Kind, fd *ast.FuncDecl, obj *types.Func) *syntax.Node {
	n := c.node(kind, fd.Name.Name, fd)
	exported(n, fd.Name.Name)
	c.declare(n, obj)
	for _, f := range fd.Type.Params.List {
		n.Children = append(n.Children, c.params(f)...)
	}
	if fd.Body != nil {
		n.Children = append(n.Children, c.stmt(fd.Body))
	}
	return n
}

// params converts one parameter field. Each name gets its own type node so
// no syntax node has two parents.
func (c *converter) params(f *ast.Field) []*syntax.Node {
	if len(f.Names) == 0 {
		return []*syntax.Node{c.node(syntax.KindParameter, "_", f, c.typeNode(f.Type))}
	}
	out := make([]*syntax.Node, 0, len(f.Names))
	for _, name := range f.Names {
		tn := c.typeNode(f.Type)
		if v, ok := c.info.Defs[name].(*types.Var); ok {
			c.known[tn] = v.Type()
		}
		p := c.node(syntax.KindParameter, name.Name, f, tn)
		c.declare(p, c.info.Defs[name])
		out = append(out, p)
	}
	return out
}

func (c *converter) stmt(s ast.Stmt) *syntax.Node {
	switch s := s.(type) {
	case *ast.AssignStmt:
		if s.Tok == token.DEFINE {
			return c.define(s)
		}
		return c.assign(s)
	case *ast.DeclStmt:
		return c.declStmt(s)
	}
	return c.generic(s)
}

// define converts "a, b := x, y" into a variable declaration without type
// syntax; each declarator's type is the type of its identifier.
func (c *converter) define(s *ast.AssignStmt) *syntax.Node {
	decl := c.node(syntax.KindVariableDecl, "", s)
	decl.Type = "short_var_decl"
	decl.Text = c.text(s)
	paired := len(s.Lhs) == len(s.Rhs)
	for i, lhs := range s.Lhs {
		id, ok := lhs.(*ast.Ident)
		if !ok {
			decl.Children = append(decl.Children, c.expr(lhs))
			continue
		}
		d := c.node(syntax.KindDeclarator, id.Name, id)
		c.declare(d, c.info.ObjectOf(id))
		if paired {
			d.Children = append(d.Children, c.expr(s.Rhs[i]))
		}
		decl.Children = append(decl.Children, d)
	}
	if !paired {
		for _, r := range s.Rhs {
			decl.Children = append(decl.Children, c.expr(r))
		}
	}
	return decl
}

// assign converts "=" and op-assign statements. Parallel assignments of
// matching arity become one assignment per pair.
func (c *converter) assign(s *ast.AssignStmt) *syntax.Node {
	if len(s.Lhs) == 1 && len(s.Rhs) == 1 {
		n := c.node(syntax.KindAssignment, "", s, c.expr(s.Lhs[0]), c.expr(s.Rhs[0]))
		n.Text = c.text(s)
		return n
	}
	if len(s.Lhs) == len(s.Rhs) {
		group := c.node(syntax.KindOther, "", s)
		for i := range s.Lhs {
			lhs, rhs := c.expr(s.Lhs[i]), c.expr(s.Rhs[i])
			a := &syntax.Node{
				Kind:     syntax.KindAssignment,
				Type:     "AssignStmt",
				Text:     lhs.Text + " " + s.Tok.String() + " " + rhs.Text,
				Span:     lhs.Span,
				Children: []*syntax.Node{lhs, rhs},
			}
			a.Span.EndLine, a.Span.EndCol = rhs.Span.EndLine, rhs.Span.EndCol
			c.nodes[a] = s
			group.Children = append(group.Children, a)
		}
		return group
	}

	// a, b = f()
	left := &syntax.Node{Kind: syntax.KindOther, Type: "ExprList", Span: c.span(s.Lhs[0])}
	var names []string
	for _, l := range s.Lhs {
		ln := c.expr(l)
		names = append(names, ln.Text)
		left.Children = append(left.Children, ln)
	}
	left.Text = strings.Join(names, ", ")
	left.Span.EndLine, left.Span.EndCol = left.Children[len(left.Children)-1].Span.EndLine, left.Children[len(left.Children)-1].Span.EndCol
	n := c.node(syntax.KindAssignment, "", s, left, c.expr(s.Rhs[0]))
	n.Text = c.text(s)
	return n
}

func (c *converter) declStmt(s *ast.DeclStmt) *syntax.Node {
	gd, ok := s.Decl.(*ast.GenDecl)
	if !ok {
		return c.generic(s)
	}
	group := c.node(syntax.KindOther, "", s)
	for _, spec := range gd.Specs {
		switch spec := spec.(type) {
		case *ast.ValueSpec:
			group.Children = append(group.Children, c.valueSpec(spec))
		case *ast.TypeSpec:
			if n := c.typeSpec(spec); n != nil {
				group.Children = append(group.Children, n)
			}
		}
	}
	if len(group.Children) == 1 {
		delete(c.nodes, group)
		return group.Children[0]
	}
	return group
}

func (c *converter) expr(e ast.Expr) *syntax.Node {
	switch e := e.(type) {
	case *ast.Ident:
		return c.node(syntax.KindIdentifier, e.Name, e)
	case *ast.BasicLit:
		return c.node(syntax.KindLiteral, "", e)
	case *ast.SelectorExpr:
		return c.node(syntax.KindMemberAccess, e.Sel.Name, e, c.expr(e.X))
	case *ast.CallExpr:
		inv := c.node(syntax.KindInvocation, "", e, c.expr(ast.Unparen(e.Fun)))
		for _, a := range e.Args {
			arg := c.expr(a)
			wrap := &syntax.Node{
				Kind:     syntax.KindArgument,
				Type:     "Argument",
				Text:     arg.Text,
				Span:     arg.Span,
				Children: []*syntax.Node{arg},
			}
			inv.Children = append(inv.Children, wrap)
		}
		return inv
	case *ast.FuncLit:
		// Parameters of a literal are not parameters of the enclosing
		// method; only the body is kept.
		n := c.node(syntax.KindOther, "", e)
		if e.Body != nil {
			n.Children = append(n.Children, c.stmt(e.Body))
		}
		return n
	}
	return c.generic(e)
}

// generic converts any other node, keeping its direct children so that
// nested declarations and calls remain reachable.
func (c *converter) generic(n ast.Node) *syntax.Node {
	sn := c.node(syntax.KindOther, "", n)
	ast.Inspect(n, func(child ast.Node) bool {
		if child == n {
			return true
		}
		if child == nil {
			return false
		}
		sn.Children = append(sn.Children, c.any(child))
		return false
	})
	return sn
}

func (c *converter) any(n ast.Node) *syntax.Node {
	switch n := n.(type) {
	case ast.Stmt:
		return c.stmt(n)
	case ast.Expr:
		return c.expr(n)
	}
	return c.generic(n)
}
