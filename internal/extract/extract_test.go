package extract

import (
	"slices"
	"testing"

	"github.com/jward/symwalk/internal/syntax"
	"github.com/stretchr/testify/assert"
)

func names(nodes []*syntax.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

// A[ Inner, m{ Local } ], I, B
func tree() *syntax.Node {
	local := syntax.New(syntax.KindClassDecl, "Local", "")
	body := syntax.New(syntax.KindOther, "", "", local)
	method := syntax.New(syntax.KindMethodDecl, "m", "", body)
	inner := syntax.New(syntax.KindClassDecl, "Inner", "")
	a := syntax.New(syntax.KindClassDecl, "A", "", inner, method)
	i := syntax.New(syntax.KindInterfaceDecl, "I", "")
	b := syntax.New(syntax.KindClassDecl, "B", "")
	return syntax.New(syntax.KindUnit, "", "", a, i, b)
}

func TestClasses_PreorderIncludesNested(t *testing.T) {
	got := slices.Collect(Classes(tree()))
	assert.Equal(t, []string{"A", "Inner", "Local", "B"}, names(got))
}

func TestInterfaces(t *testing.T) {
	got := slices.Collect(Interfaces(tree()))
	assert.Equal(t, []string{"I"}, names(got))
}

func TestDeclarations(t *testing.T) {
	classes, ifaces := Declarations(tree())
	assert.Equal(t, []string{"A", "Inner", "Local", "B"}, names(classes))
	assert.Equal(t, []string{"I"}, names(ifaces))
}

func TestDeclarations_Empty(t *testing.T) {
	classes, ifaces := Declarations(syntax.New(syntax.KindUnit, "", ""))
	assert.Empty(t, classes)
	assert.Empty(t, ifaces)
}
