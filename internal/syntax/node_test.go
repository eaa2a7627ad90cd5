package syntax

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(seq func(func(*Node) bool)) []string {
	var out []string
	for n := range seq {
		out = append(out, n.Name)
	}
	return out
}

func sampleTree() *Node {
	inner := New(KindClassDecl, "Inner", "class Inner {}")
	method := New(KindMethodDecl, "Run", "void Run() {}",
		New(KindClassDecl, "Local", "class Local {}"),
	)
	outer := New(KindClassDecl, "Outer", "class Outer {...}", inner, method)
	iface := New(KindInterfaceDecl, "Shape", "interface Shape {}")
	return New(KindUnit, "", "", outer, iface)
}

func TestDescendants_Preorder(t *testing.T) {
	t.Parallel()
	root := sampleTree()

	got := names(root.Descendants())
	assert.Equal(t, []string{"Outer", "Inner", "Run", "Local", "Shape"}, got)
}

func TestDescendants_StableAcrossRuns(t *testing.T) {
	t.Parallel()
	root := sampleTree()

	first := names(root.Descendants())
	for range 10 {
		assert.Equal(t, first, names(root.Descendants()))
	}
}

func TestDescendants_StopsEarly(t *testing.T) {
	t.Parallel()
	root := sampleTree()

	var visited []string
	for n := range root.Descendants() {
		visited = append(visited, n.Name)
		if n.Name == "Inner" {
			break
		}
	}
	assert.Equal(t, []string{"Outer", "Inner"}, visited)
}

func TestDescendantsOfKind(t *testing.T) {
	t.Parallel()
	root := sampleTree()

	classes := names(root.DescendantsOfKind(KindClassDecl))
	assert.Equal(t, []string{"Outer", "Inner", "Local"}, classes)

	mixed := names(root.DescendantsOfKind(KindInterfaceDecl, KindMethodDecl))
	assert.Equal(t, []string{"Run", "Shape"}, mixed)
}

func TestDescendants_NilNode(t *testing.T) {
	t.Parallel()
	var n *Node
	assert.Empty(t, slices.Collect(n.Descendants()))
}

func TestChildHelpers(t *testing.T) {
	t.Parallel()
	typ := New(KindType, "", "int")
	a := New(KindDeclarator, "a", "a")
	b := New(KindDeclarator, "b", "b")
	decl := New(KindVariableDecl, "", "int a, b;", typ, a, b)

	assert.Same(t, typ, decl.Child(0))
	assert.Nil(t, decl.Child(3))
	assert.Nil(t, decl.Child(-1))
	assert.Same(t, typ, decl.FirstChildOfKind(KindType))
	assert.Nil(t, decl.FirstChildOfKind(KindLiteral))
	assert.Equal(t, []*Node{a, b}, decl.ChildrenOfKind(KindDeclarator))
}

func TestHasModifier(t *testing.T) {
	t.Parallel()
	n := &Node{Kind: KindConstructorDecl, Modifiers: []string{"public", "static"}}
	assert.True(t, n.HasModifier("public"))
	assert.False(t, n.HasModifier("private"))
}

func TestKindString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "invocation", KindInvocation.String())
	assert.Equal(t, "kind(200)", Kind(200).String())
}

func TestNewSourceUnit_CountsNodes(t *testing.T) {
	t.Parallel()
	u, err := NewSourceUnit("a.java", sampleTree())
	require.NoError(t, err)
	assert.Equal(t, "a.java", u.Path())
	assert.Equal(t, 6, u.NodeCount())
	assert.NotNil(t, u.Root())
}

func TestNewSourceUnit_RejectsCycle(t *testing.T) {
	t.Parallel()
	child := New(KindOther, "child", "")
	root := New(KindUnit, "", "", child)
	child.Children = append(child.Children, root)

	_, err := NewSourceUnit("cycle.java", root)
	require.ErrorIs(t, err, ErrCorruptTree)
	assert.Contains(t, err.Error(), "cycle")
}

func TestNewSourceUnit_RejectsSharedChild(t *testing.T) {
	t.Parallel()
	shared := New(KindIdentifier, "x", "x")
	root := New(KindUnit, "", "",
		New(KindOther, "left", "", shared),
		New(KindOther, "right", "", shared),
	)

	_, err := NewSourceUnit("shared.java", root)
	require.ErrorIs(t, err, ErrCorruptTree)
	assert.Contains(t, err.Error(), "more than one parent")
}

func TestNewSourceUnit_RejectsNilRoot(t *testing.T) {
	t.Parallel()
	_, err := NewSourceUnit("empty.java", nil)
	require.ErrorIs(t, err, ErrCorruptTree)
}
