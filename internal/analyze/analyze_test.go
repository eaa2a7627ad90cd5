package analyze

import (
	"context"
	"testing"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/oracle/oracletest"
	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is a small bound program:
//
//	class B {
//	    int a, b, c;
//	    public B() { init(); }
//	    B(String s) {}
//	    void ADD(int x) { total = x; }
//	    void Run() { ADD(5); }
//	    class Inner { String name; void Go() {} }
//	}
//	interface Shape { void Area(); }
type fixture struct {
	stub  *oracletest.Stub
	unit  *syntax.SourceUnit
	class *syntax.Node
	inner *syntax.Node
	add   *syntax.Node
	run   *syntax.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stub := oracletest.New()
	f := &fixture{stub: stub}

	intType := syntax.New(syntax.KindType, "", "int")
	fields := syntax.New(syntax.KindVariableDecl, "", "int a, b, c;",
		intType,
		syntax.New(syntax.KindDeclarator, "a", "a"),
		syntax.New(syntax.KindDeclarator, "b", "b"),
		syntax.New(syntax.KindDeclarator, "c", "c"),
	)
	stub.SetType(intType, "int")

	initCall := syntax.New(syntax.KindInvocation, "", "init()", syntax.New(syntax.KindIdentifier, "init", "init"))
	publicCtor := syntax.New(syntax.KindConstructorDecl, "B", "", syntax.New(syntax.KindOther, "", "", initCall))
	publicCtor.Modifiers = []string{"public"}
	strType := syntax.New(syntax.KindType, "", "String")
	privateCtor := syntax.New(syntax.KindConstructorDecl, "B", "",
		syntax.New(syntax.KindParameter, "s", "String s", strType))

	xType := syntax.New(syntax.KindType, "", "int")
	stub.SetType(xType, "int")
	assign := syntax.New(syntax.KindAssignment, "", "total = x",
		syntax.New(syntax.KindIdentifier, "total", "total"),
		syntax.New(syntax.KindIdentifier, "x", "x"))
	f.add = syntax.New(syntax.KindMethodDecl, "ADD", "",
		syntax.New(syntax.KindParameter, "x", "int x", xType),
		syntax.New(syntax.KindOther, "", "", assign))

	five := syntax.New(syntax.KindLiteral, "", "5")
	stub.SetType(five, "int")
	addCall := syntax.New(syntax.KindInvocation, "", "ADD(5)",
		syntax.New(syntax.KindIdentifier, "ADD", "ADD"),
		syntax.New(syntax.KindArgument, "", "5", five))
	f.run = syntax.New(syntax.KindMethodDecl, "Run", "", syntax.New(syntax.KindOther, "", "", addCall))

	nameType := syntax.New(syntax.KindType, "", "String")
	stub.SetType(nameType, "java.lang.String")
	innerField := syntax.New(syntax.KindVariableDecl, "", "String name;", nameType, syntax.New(syntax.KindDeclarator, "name", "name"))
	innerGo := syntax.New(syntax.KindMethodDecl, "Go", "")
	f.inner = syntax.New(syntax.KindClassDecl, "Inner", "", innerField, innerGo)

	f.class = syntax.New(syntax.KindClassDecl, "B", "", fields, publicCtor, privateCtor, f.add, f.run, f.inner)
	shape := syntax.New(syntax.KindInterfaceDecl, "Shape", "", syntax.New(syntax.KindMethodDecl, "Area", ""))
	root := syntax.New(syntax.KindUnit, "", "", f.class, shape)

	unit, err := syntax.NewSourceUnit("B.java", root)
	require.NoError(t, err)
	f.unit = unit

	stub.Declare(f.class, oracletest.NewSymbol("B", oracle.KindType, "app.B"))
	stub.Declare(f.inner, oracletest.NewSymbol("Inner", oracle.KindType, "app.B.Inner"))
	stub.Declare(publicCtor, oracletest.NewSymbol("B", oracle.KindConstructor, "app.B.B()"))
	stub.Declare(privateCtor, oracletest.NewSymbol("B", oracle.KindConstructor, "app.B.B(String)"))
	addSym := stub.Declare(f.add, oracletest.NewSymbol("ADD", oracle.KindMethod, "app.B.ADD(int)"))
	stub.Declare(f.run, oracletest.NewSymbol("Run", oracle.KindMethod, "app.B.Run()"))
	stub.Declare(innerGo, oracletest.NewSymbol("Go", oracle.KindMethod, "app.B.Inner.Go()"))
	stub.Sites[addCall] = oracle.Site{Primary: addSym}
	stub.SetSignature(addSym, oracle.Parameter{Name: "x", Type: oracle.TypeNamed("int")})
	return f
}

func analyzeFixture(t *testing.T, f *fixture, opts ...Option) *report.Document {
	t.Helper()
	doc := report.NewDocument("app", f.unit.Path())
	require.NoError(t, New(nil, opts...).AnalyzeDocument(context.Background(), f.stub, f.unit, doc))
	return doc
}

func signatures(ms []report.MethodReport) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Signature)
	}
	return out
}

func TestAnalyzeDocument_ClassReports(t *testing.T) {
	f := newFixture(t)
	doc := analyzeFixture(t, f)

	// Interfaces produce no reports.
	require.Len(t, doc.Classes, 2)
	b := doc.Classes[0]
	assert.Equal(t, "app.B", b.Signature)
	assert.Equal(t, "app.B.Inner", doc.Classes[1].Signature)

	// One fact per declarator, sharing the declaration's type; the nested
	// class's field is collected too.
	require.Len(t, b.Fields, 4)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, b.Fields[i].Name)
		assert.Equal(t, "int", b.Fields[i].DeclaredType)
		assert.Equal(t, "int", b.Fields[i].Type.String())
	}
	assert.Equal(t, "name", b.Fields[3].Name)

	require.Len(t, b.Assignments, 1)
	assert.Equal(t, report.AssignmentFact{Left: "total", Right: "x"}, b.Assignments[0])

	assert.Equal(t, []string{"app.B.ADD(int)", "app.B.Run()", "app.B.Inner.Go()"}, signatures(b.Methods))
	assert.Equal(t, []string{"app.B.B()"}, signatures(b.Constructors))

	add := b.Methods[0]
	require.Len(t, add.Parameters, 1)
	assert.Equal(t, "x", add.Parameters[0].Name)
	assert.Equal(t, "int", add.Parameters[0].Type.String())

	run := b.Methods[1]
	require.Len(t, run.Invocations, 1)
	inv := run.Invocations[0]
	assert.Equal(t, "ADD", inv.CalleeName)
	assert.Equal(t, "app.B.ADD(int)", inv.Resolved)
	require.Len(t, inv.Arguments, 1)
	assert.Equal(t, "x", *inv.Arguments[0].Parameter)
	assert.Equal(t, "int", inv.Arguments[0].Type.String())
	assert.Equal(t, "5", inv.Arguments[0].Text)

	// init() in the public constructor is unresolved.
	require.Len(t, b.Constructors[0].Invocations, 1)
	assert.False(t, b.Constructors[0].Invocations[0].IsResolved())
	require.Len(t, doc.Diagnostics, 1)
	assert.Equal(t, report.Info, doc.Diagnostics[0].Severity)
}

func TestAnalyzeDocument_DirectMembersOnly(t *testing.T) {
	f := newFixture(t)
	doc := analyzeFixture(t, f, WithDirectMembersOnly())

	b := doc.Classes[0]
	assert.Len(t, b.Fields, 3)
	assert.Equal(t, []string{"app.B.ADD(int)", "app.B.Run()"}, signatures(b.Methods))

	inner := doc.Classes[1]
	assert.Len(t, inner.Fields, 1)
	assert.Equal(t, []string{"app.B.Inner.Go()"}, signatures(inner.Methods))
}

func TestAnalyzeDocument_InterfaceOnly(t *testing.T) {
	stub := oracletest.New()
	root := syntax.New(syntax.KindUnit, "", "",
		syntax.New(syntax.KindInterfaceDecl, "Shape", "", syntax.New(syntax.KindMethodDecl, "Area", "")))
	unit, err := syntax.NewSourceUnit("Shape.java", root)
	require.NoError(t, err)

	doc := report.NewDocument("app", unit.Path())
	require.NoError(t, New(nil).AnalyzeDocument(context.Background(), stub, unit, doc))
	assert.Empty(t, doc.Classes)
	assert.Empty(t, doc.Diagnostics)
	assert.Equal(t, 0, stub.Calls("ResolveDeclared"))
}

func TestAnalyzeDocument_BindingFailures(t *testing.T) {
	t.Run("class", func(t *testing.T) {
		f := newFixture(t)
		delete(f.stub.Declared, f.class)
		doc := analyzeFixture(t, f)

		// The sibling nested class is still analysed.
		require.Len(t, doc.Classes, 1)
		assert.Equal(t, "app.B.Inner", doc.Classes[0].Signature)
		require.NotEmpty(t, doc.Diagnostics)
		assert.Equal(t, report.Error, doc.Diagnostics[0].Severity)
		assert.Contains(t, doc.Diagnostics[0].Message, "binding failure")
	})

	t.Run("method", func(t *testing.T) {
		f := newFixture(t)
		delete(f.stub.Declared, f.add)
		doc := analyzeFixture(t, f)

		b := doc.Classes[0]
		assert.Equal(t, []string{"app.B.Run()", "app.B.Inner.Go()"}, signatures(b.Methods))
		var errs int
		for _, d := range doc.Diagnostics {
			if d.Severity == report.Error {
				errs++
			}
		}
		assert.Equal(t, 1, errs)
	})
}

func TestAnalyzeDocument_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := report.NewDocument("app", f.unit.Path())
	err := New(nil).AnalyzeDocument(ctx, f.stub, f.unit, doc)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, doc.Classes)
}

// cancelOnSite cancels the context the first time a call site is resolved.
type cancelOnSite struct {
	*oracletest.Stub
	cancel context.CancelFunc
}

func (c cancelOnSite) ResolveSite(ctx context.Context, n *syntax.Node) (oracle.Site, error) {
	c.cancel()
	return c.Stub.ResolveSite(ctx, n)
}

func TestAnalyzeDocument_CancelledMidway(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doc := report.NewDocument("app", f.unit.Path())
	err := New(nil).AnalyzeDocument(ctx, cancelOnSite{f.stub, cancel}, f.unit, doc)
	assert.ErrorIs(t, err, context.Canceled)

	// Work completed before cancellation is kept.
	require.Len(t, doc.Classes, 1)
	assert.Equal(t, []string{"app.B.ADD(int)", "app.B.Run()"}, signatures(doc.Classes[0].Methods))
}

func TestAnalyzeDocument_InferredDeclaration(t *testing.T) {
	stub := oracletest.New()
	x := syntax.New(syntax.KindDeclarator, "x", "x")
	stub.SetType(x, "int")
	decl := syntax.New(syntax.KindVariableDecl, "", "x := 1", x)
	class := syntax.New(syntax.KindClassDecl, "T", "", decl)
	unit, err := syntax.NewSourceUnit("t.go", syntax.New(syntax.KindUnit, "", "", class))
	require.NoError(t, err)
	stub.Declare(class, oracletest.NewSymbol("T", oracle.KindType, "pkg.T"))

	doc := report.NewDocument("pkg", "t.go")
	require.NoError(t, New(nil).AnalyzeDocument(context.Background(), stub, unit, doc))
	require.Len(t, doc.Classes[0].Fields, 1)
	fact := doc.Classes[0].Fields[0]
	assert.Empty(t, fact.DeclaredType)
	assert.Equal(t, "int", fact.Type.String())
}
