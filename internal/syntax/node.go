// Package syntax defines the language-neutral syntax tree consumed by the
// analysis core. Front ends convert their native parse trees into this model;
// the core never sees tree-sitter or go/ast nodes directly.
package syntax

import (
	"fmt"
	"iter"
	"slices"
)

// Kind tags a Node with the syntactic category the core cares about.
type Kind uint8

const (
	KindOther Kind = iota
	KindUnit
	KindClassDecl
	KindInterfaceDecl
	KindMethodDecl
	KindConstructorDecl
	KindVariableDecl
	KindDeclarator
	KindAssignment
	KindInvocation
	KindIdentifier
	KindMemberAccess
	KindParameter
	KindArgument
	KindType
	KindLiteral
)

var kindNames = [...]string{
	KindOther:           "other",
	KindUnit:            "unit",
	KindClassDecl:       "class",
	KindInterfaceDecl:   "interface",
	KindMethodDecl:      "method",
	KindConstructorDecl: "constructor",
	KindVariableDecl:    "variable_decl",
	KindDeclarator:      "declarator",
	KindAssignment:      "assignment",
	KindInvocation:      "invocation",
	KindIdentifier:      "identifier",
	KindMemberAccess:    "member_access",
	KindParameter:       "parameter",
	KindArgument:        "argument",
	KindType:            "type",
	KindLiteral:         "literal",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Span locates a node in its source file. Lines and columns are 1-based.
type Span struct {
	File      string `json:"file,omitempty"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

func (s Span) String() string {
	if s.File == "" {
		return fmt.Sprintf("%d:%d", s.StartLine, s.StartCol)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.StartLine, s.StartCol)
}

// Node is one element of a syntax tree. Children are owned by their parent;
// a node never appears under two parents.
//
// Child roles by kind:
//
//	Assignment    [left, right]
//	Invocation    [callee, Argument...]
//	MemberAccess  [receiver]
//	Parameter     [type]
//	Argument      [expression]
//	VariableDecl  [Type?, Declarator...]
type Node struct {
	Kind Kind
	// Type is the front end's native node type, e.g. "binary_expression".
	Type string
	// Name is the identifier token of declarations, identifiers, member
	// accesses, parameters and declarators.
	Name      string
	Text      string
	Modifiers []string
	Span      Span
	Children  []*Node
}

// New builds a node. Used by front ends and tests.
func New(kind Kind, name, text string, children ...*Node) *Node {
	return &Node{Kind: kind, Name: name, Text: text, Children: children}
}

// Child returns the i-th child or nil when out of range.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// FirstChildOfKind returns the first direct child of the given kind.
func (n *Node) FirstChildOfKind(kind Kind) *Node {
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// ChildrenOfKind returns the direct children of the given kind in order.
func (n *Node) ChildrenOfKind(kind Kind) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// HasModifier reports whether m is among the node's modifiers.
func (n *Node) HasModifier(m string) bool {
	return slices.Contains(n.Modifiers, m)
}

// Descendants yields every node below n in preorder. n itself is not
// yielded. The sequence is lazy; stopping early stops the walk.
func (n *Node) Descendants() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		if n == nil {
			return
		}
		walk(n.Children, yield)
	}
}

func walk(nodes []*Node, yield func(*Node) bool) bool {
	for _, c := range nodes {
		if c == nil {
			continue
		}
		if !yield(c) {
			return false
		}
		if !walk(c.Children, yield) {
			return false
		}
	}
	return true
}

// DescendantsOfKind yields the descendants of n matching any of kinds, in
// preorder.
func (n *Node) DescendantsOfKind(kinds ...Kind) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for d := range n.Descendants() {
			if slices.Contains(kinds, d.Kind) && !yield(d) {
				return
			}
		}
	}
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.Name != "" {
		return fmt.Sprintf("%s %q @%s", n.Kind, n.Name, n.Span)
	}
	return fmt.Sprintf("%s @%s", n.Kind, n.Span)
}
