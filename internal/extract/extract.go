// Package extract finds the type declarations of a syntax tree.
package extract

import (
	"iter"

	"github.com/jward/symwalk/internal/syntax"
)

// Classes yields every class declaration below root in preorder, including
// classes nested in other classes or in method bodies.
func Classes(root *syntax.Node) iter.Seq[*syntax.Node] {
	return root.DescendantsOfKind(syntax.KindClassDecl)
}

// Interfaces yields every interface declaration below root in preorder.
// Interfaces are collected so callers can count them; they are never
// expanded into reports.
func Interfaces(root *syntax.Node) iter.Seq[*syntax.Node] {
	return root.DescendantsOfKind(syntax.KindInterfaceDecl)
}

// Declarations collects classes and interfaces in a single walk.
func Declarations(root *syntax.Node) (classes, interfaces []*syntax.Node) {
	for n := range root.DescendantsOfKind(syntax.KindClassDecl, syntax.KindInterfaceDecl) {
		if n.Kind == syntax.KindClassDecl {
			classes = append(classes, n)
		} else {
			interfaces = append(interfaces, n)
		}
	}
	return classes, interfaces
}
