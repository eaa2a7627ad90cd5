package java

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/symwalk/internal/syntax"
)

// nodeKey identifies a tree-sitter node within one file.
type nodeKey struct {
	start, end uint32
	typ        string
}

func keyOf(n *sitter.Node) nodeKey {
	return nodeKey{start: n.StartByte(), end: n.EndByte(), typ: n.Type()}
}

var classTypes = map[string]syntax.Kind{
	"class_declaration":           syntax.KindClassDecl,
	"enum_declaration":            syntax.KindClassDecl,
	"record_declaration":          syntax.KindClassDecl,
	"interface_declaration":       syntax.KindInterfaceDecl,
	"annotation_type_declaration": syntax.KindInterfaceDecl,
}

var typeNodes = map[string]bool{
	"integral_type": true, "floating_point_type": true, "boolean_type": true,
	"void_type": true, "type_identifier": true, "scoped_type_identifier": true,
	"generic_type": true, "array_type": true, "annotated_type": true,
}

var literals = map[string]bool{
	"decimal_integer_literal": true, "hex_integer_literal": true,
	"octal_integer_literal": true, "binary_integer_literal": true,
	"decimal_floating_point_literal": true, "hex_floating_point_literal": true,
	"string_literal": true, "text_block": true, "character_literal": true,
	"true": true, "false": true, "null_literal": true,
}

// Nodes whose source text is not kept; their children carry it.
var containers = map[string]bool{
	"program": true, "class_body": true, "interface_body": true, "enum_body": true,
	"enum_body_declarations": true, "annotation_type_body": true, "block": true,
	"constructor_body": true, "switch_block": true, "if_statement": true,
	"for_statement": true, "enhanced_for_statement": true, "while_statement": true,
	"do_statement": true, "try_statement": true, "try_with_resources_statement": true,
	"catch_clause": true, "finally_clause": true, "synchronized_statement": true,
	"labeled_statement": true, "switch_expression": true, "static_initializer": true,
}

// converter maps a tree-sitter CST onto syntax nodes and remembers which
// syntax node each CST node became.
type converter struct {
	src   []byte
	path  string
	nodes map[nodeKey]*syntax.Node
}

func newConverter(path string, src []byte) *converter {
	return &converter{src: src, path: path, nodes: make(map[nodeKey]*syntax.Node)}
}

func (c *converter) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(c.src)
}

func (c *converter) span(n *sitter.Node) syntax.Span {
	start, end := n.StartPoint(), n.EndPoint()
	return syntax.Span{
		File:      c.path,
		StartLine: int(start.Row) + 1,
		StartCol:  int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column) + 1,
	}
}

// node creates the syntax node for n and registers it.
func (c *converter) node(n *sitter.Node, kind syntax.Kind, name string) *syntax.Node {
	sn := &syntax.Node{Kind: kind, Type: n.Type(), Name: name, Span: c.span(n)}
	if !containers[n.Type()] && kind != syntax.KindClassDecl && kind != syntax.KindInterfaceDecl &&
		kind != syntax.KindMethodDecl && kind != syntax.KindConstructorDecl {
		sn.Text = c.text(n)
	}
	c.nodes[keyOf(n)] = sn
	return sn
}

func (c *converter) convertProgram(root *sitter.Node) *syntax.Node {
	unit := c.node(root, syntax.KindUnit, c.path)
	unit.Children = c.convertChildren(root)
	return unit
}

func (c *converter) convertChildren(n *sitter.Node) []*syntax.Node {
	var out []*syntax.Node
	for i := range int(n.NamedChildCount()) {
		if sn := c.convert(n.NamedChild(i)); sn != nil {
			out = append(out, sn)
		}
	}
	return out
}

func (c *converter) convert(n *sitter.Node) *syntax.Node {
	if n == nil {
		return nil
	}
	t := n.Type()
	if kind, ok := classTypes[t]; ok {
		return c.convertClass(n, kind)
	}
	if typeNodes[t] {
		return c.node(n, syntax.KindType, "")
	}
	if literals[t] {
		return c.node(n, syntax.KindLiteral, "")
	}

	switch t {
	case "line_comment", "block_comment", "modifiers":
		return nil
	case "field_declaration", "local_variable_declaration", "constant_declaration":
		return c.convertVariables(n)
	case "method_declaration":
		return c.convertMethod(n, syntax.KindMethodDecl)
	case "constructor_declaration", "compact_constructor_declaration":
		return c.convertMethod(n, syntax.KindConstructorDecl)
	case "formal_parameter", "spread_parameter":
		return c.convertParameter(n)
	case "method_invocation":
		return c.convertInvocation(n)
	case "assignment_expression":
		sn := c.node(n, syntax.KindAssignment, "")
		for _, f := range []string{"left", "right"} {
			if child := c.convert(n.ChildByFieldName(f)); child != nil {
				sn.Children = append(sn.Children, child)
			}
		}
		return sn
	case "identifier", "this", "super":
		return c.node(n, syntax.KindIdentifier, c.text(n))
	case "field_access":
		sn := c.node(n, syntax.KindMemberAccess, c.text(n.ChildByFieldName("field")))
		if obj := c.convert(n.ChildByFieldName("object")); obj != nil {
			sn.Children = []*syntax.Node{obj}
		}
		return sn
	}

	sn := c.node(n, syntax.KindOther, "")
	sn.Children = c.convertChildren(n)
	return sn
}

func (c *converter) modifiers(n *sitter.Node) []string {
	var mods []string
	for i := range int(n.NamedChildCount()) {
		m := n.NamedChild(i)
		if m.Type() != "modifiers" {
			continue
		}
		for j := range int(m.ChildCount()) {
			tok := m.Child(j)
			if strings.HasSuffix(tok.Type(), "annotation") {
				continue
			}
			mods = append(mods, c.text(tok))
		}
	}
	return mods
}

// convertClass flattens the body so members are direct children of the
// declaration. Record components become fields.
func (c *converter) convertClass(n *sitter.Node, kind syntax.Kind) *syntax.Node {
	sn := c.node(n, kind, c.text(n.ChildByFieldName("name")))
	sn.Modifiers = c.modifiers(n)
	if n.Type() == "record_declaration" {
		if params := n.ChildByFieldName("parameters"); params != nil {
			for i := range int(params.NamedChildCount()) {
				if p := params.NamedChild(i); p.Type() == "formal_parameter" {
					sn.Children = append(sn.Children, c.convertComponent(p))
				}
			}
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		sn.Children = append(sn.Children, c.convertBody(body)...)
	}
	return sn
}

func (c *converter) convertBody(body *sitter.Node) []*syntax.Node {
	var out []*syntax.Node
	for i := range int(body.NamedChildCount()) {
		m := body.NamedChild(i)
		if m.Type() == "enum_body_declarations" {
			out = append(out, c.convertBody(m)...)
			continue
		}
		if sn := c.convert(m); sn != nil {
			out = append(out, sn)
		}
	}
	return out
}

func (c *converter) convertComponent(p *sitter.Node) *syntax.Node {
	sn := c.node(p, syntax.KindVariableDecl, "")
	if t := c.convert(p.ChildByFieldName("type")); t != nil {
		sn.Children = append(sn.Children, t)
	}
	if name := p.ChildByFieldName("name"); name != nil {
		sn.Children = append(sn.Children, c.node(name, syntax.KindDeclarator, c.text(name)))
	}
	return sn
}

func (c *converter) convertVariables(n *sitter.Node) *syntax.Node {
	sn := c.node(n, syntax.KindVariableDecl, "")
	sn.Modifiers = c.modifiers(n)
	// An inferred declaration has no type child; its declarators carry the
	// inferred type.
	if tn := n.ChildByFieldName("type"); c.text(tn) != "var" {
		if t := c.convert(tn); t != nil {
			sn.Children = append(sn.Children, t)
		}
	}
	for i := range int(n.NamedChildCount()) {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		dn := c.node(d, syntax.KindDeclarator, c.text(d.ChildByFieldName("name")))
		if v := c.convert(d.ChildByFieldName("value")); v != nil {
			dn.Children = []*syntax.Node{v}
		}
		sn.Children = append(sn.Children, dn)
	}
	return sn
}

func (c *converter) convertMethod(n *sitter.Node, kind syntax.Kind) *syntax.Node {
	sn := c.node(n, kind, c.text(n.ChildByFieldName("name")))
	sn.Modifiers = c.modifiers(n)
	if params := n.ChildByFieldName("parameters"); params != nil {
		sn.Children = append(sn.Children, c.convertChildren(params)...)
	}
	if body := c.convert(n.ChildByFieldName("body")); body != nil {
		sn.Children = append(sn.Children, body)
	}
	return sn
}

func (c *converter) convertParameter(n *sitter.Node) *syntax.Node {
	typeNode, nameNode := parameterParts(n)
	sn := c.node(n, syntax.KindParameter, c.text(nameNode))
	sn.Modifiers = c.modifiers(n)
	if t := c.convert(typeNode); t != nil {
		sn.Children = []*syntax.Node{t}
	}
	return sn
}

// parameterParts returns the type and name nodes of a formal or spread
// parameter.
func parameterParts(n *sitter.Node) (typeNode, nameNode *sitter.Node) {
	if n.Type() == "formal_parameter" {
		return n.ChildByFieldName("type"), n.ChildByFieldName("name")
	}
	for i := range int(n.NamedChildCount()) {
		ch := n.NamedChild(i)
		switch {
		case ch.Type() == "variable_declarator":
			nameNode = ch.ChildByFieldName("name")
		case typeNode == nil && typeNodes[ch.Type()]:
			typeNode = ch
		}
	}
	return typeNode, nameNode
}

// convertInvocation builds [callee, Argument...]. The callee is the bare
// name, or a member access over the receiver.
func (c *converter) convertInvocation(n *sitter.Node) *syntax.Node {
	sn := c.node(n, syntax.KindInvocation, "")
	nameNode := n.ChildByFieldName("name")
	name := c.text(nameNode)

	var callee *syntax.Node
	if obj := n.ChildByFieldName("object"); obj != nil {
		callee = &syntax.Node{
			Kind: syntax.KindMemberAccess,
			Type: "invocation_target",
			Name: name,
			Text: string(c.src[obj.StartByte():nameNode.EndByte()]),
			Span: syntax.Span{
				File:      c.path,
				StartLine: int(obj.StartPoint().Row) + 1,
				StartCol:  int(obj.StartPoint().Column) + 1,
				EndLine:   int(nameNode.EndPoint().Row) + 1,
				EndCol:    int(nameNode.EndPoint().Column) + 1,
			},
		}
		if recv := c.convert(obj); recv != nil {
			callee.Children = []*syntax.Node{recv}
		}
	} else {
		callee = c.node(nameNode, syntax.KindIdentifier, name)
	}
	sn.Children = append(sn.Children, callee)

	if args := n.ChildByFieldName("arguments"); args != nil {
		for i := range int(args.NamedChildCount()) {
			a := args.NamedChild(i)
			expr := c.convert(a)
			if expr == nil {
				continue
			}
			sn.Children = append(sn.Children, &syntax.Node{
				Kind:     syntax.KindArgument,
				Type:     "argument",
				Text:     c.text(a),
				Span:     c.span(a),
				Children: []*syntax.Node{expr},
			})
		}
	}
	return sn
}
