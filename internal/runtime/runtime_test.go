package runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/store"
	"github.com/jward/symwalk/internal/syntax"
)

func testRun() *report.Run {
	doc := report.NewDocument("app", "b.java")
	doc.AddClass(report.ClassReport{
		Signature: "app.B",
		Span:      syntax.Span{StartLine: 3, StartCol: 1},
		Fields: []report.FieldFact{
			{Name: "a", DeclaredType: "int", Type: oracle.TypeNamed("int")},
			{Name: "x", DeclaredType: "Mystery"},
		},
		Assignments: []report.AssignmentFact{{Left: "a", Right: "1"}},
		Methods: []report.MethodReport{{
			Signature:  "app.B.Run(int)",
			Parameters: []report.ParameterFact{{Name: "seed", Type: oracle.TypeNamed("int")}},
			Invocations: []report.InvocationReport{
				{
					CalleeName: "ADD",
					Resolved:   "app.B.ADD(int)",
					ResolvedBy: "primary",
					Span:       syntax.Span{StartLine: 7, StartCol: 5},
					Arguments: []report.ArgumentFact{
						{Index: 0, Parameter: report.StringPtr("x"), Type: oracle.TypeNamed("int"), Text: "5"},
					},
				},
				{CalleeName: "mystery", Span: syntax.Span{StartLine: 8, StartCol: 5}},
			},
		}},
	})
	doc.Reportf(report.Info, syntax.Span{StartLine: 8}, "unresolved callee mystery")
	return report.NewRun("run-1", time.Now(), time.Now(), []report.ProjectReport{
		{Name: "app", Documents: []*report.Document{doc}},
		{Name: "lib", Diagnostics: []report.Diagnostic{{Severity: report.Error, Message: "cannot load"}}},
	})
}

func runSource(t *testing.T, script string, run *report.Run, opts ...RuntimeOption) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rt := NewRuntime(append([]RuntimeOption{WithOutput(&out)}, opts...)...)
	err := rt.RunSource(context.Background(), script, run)
	return out.String(), err
}

// --- Globals ---

func TestRunSource_Classes(t *testing.T) {
	t.Parallel()
	script := `
assert(run_id == "run-1", 'unexpected run id {run_id}')
for i := 0; i < len(classes); i++ {
    c := classes[i]
    emit(c["signature"], c["document"])
    fields := c["fields"]
    for j := 0; j < len(fields); j++ {
        emit(fields[j]["name"], fields[j]["type"])
    }
    m := c["methods"][0]
    emit(m["signature"], m["parameters"][0]["type"])
}
`
	out, err := runSource(t, script, testRun())
	require.NoError(t, err)
	assert.Equal(t, "app.B b.java\na int\nx <unresolved>\napp.B.Run(int) int\n", out)
}

func TestRunSource_Invocations(t *testing.T) {
	t.Parallel()
	script := `
unresolved := []
for i := 0; i < len(invocations); i++ {
    inv := invocations[i]
    if inv["resolved"] == nil {
        unresolved.append(inv["callee"])
    }
}
assert(len(invocations) == 2, 'expected 2 invocations, got {len(invocations)}')
assert(len(unresolved) == 1, 'expected 1 unresolved, got {len(unresolved)}')
first := invocations[0]
emit(first["class"], first["method"], first["resolved"], first["arguments"][0]["parameter"])
emit(unresolved[0])
`
	out, err := runSource(t, script, testRun())
	require.NoError(t, err)
	assert.Equal(t, "app.B app.B.Run(int) app.B.ADD(int) x\nmystery\n", out)
}

func TestRunSource_SeverityAtLeast(t *testing.T) {
	t.Parallel()
	script := `
severe := []
for i := 0; i < len(diagnostics); i++ {
    d := diagnostics[i]
    if severity_at_least(d, "warning") {
        severe.append(d["message"])
    }
}
assert(len(diagnostics) == 2, 'expected 2 diagnostics, got {len(diagnostics)}')
assert(severity_at_least("error", "info"), "error should be at least info")
assert(!severity_at_least("info", "error"), "info should not be at least error")
emit(severe[0])
`
	out, err := runSource(t, script, testRun())
	require.NoError(t, err)
	assert.Equal(t, "cannot load\n", out)
}

func TestRunSource_SeverityAtLeastRejectsUnknown(t *testing.T) {
	t.Parallel()
	_, err := runSource(t, `severity_at_least("info", "fatal")`, testRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown severity")
}

func TestRunSource_Stats(t *testing.T) {
	t.Parallel()
	out, err := runSource(t, `emit(stats["classes"], stats["unresolved"], stats["errors"])`, testRun())
	require.NoError(t, err)
	assert.Equal(t, "1 1 1\n", out)
}

func TestRunSource_NilRun(t *testing.T) {
	t.Parallel()
	script := `
assert(run_id == "", "expected empty run id")
assert(len(classes) == 0, "expected no classes")
assert(len(invocations) == 0, "expected no invocations")
`
	_, err := runSource(t, script, nil)
	require.NoError(t, err)
}

func TestRunSource_ExtraGlobalOverrides(t *testing.T) {
	t.Parallel()
	out, err := runSource(t, `emit(run_id, prefix)`, testRun(),
		WithGlobal("run_id", "custom"), WithGlobal("prefix", "p"))
	require.NoError(t, err)
	assert.Equal(t, "custom p\n", out)
}

func TestRunSource_ScriptError(t *testing.T) {
	t.Parallel()
	_, err := runSource(t, `assert(false, "boom")`, testRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime: script <inline>")
}

// --- Script loading ---

func TestRunScript_FromFS(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"reports/classes.risor": &fstest.MapFile{Data: []byte(`emit(classes[0]["signature"])`)},
	}
	var out bytes.Buffer
	rt := NewRuntime(WithRuntimeFS(fsys), WithOutput(&out))
	require.NoError(t, rt.RunScript(context.Background(), "/reports/classes.risor", testRun()))
	assert.Equal(t, "app.B\n", out.String())
}

func TestRunScript_FromScriptsDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "count.risor"), []byte(`emit(len(classes))`), 0o644))

	var out bytes.Buffer
	rt := NewRuntime(WithScriptsDir(dir), WithOutput(&out))
	require.NoError(t, rt.RunScript(context.Background(), "count.risor", testRun()))
	assert.Equal(t, "1\n", out.String())
}

func TestLoadScript_Missing(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(WithScriptsDir(t.TempDir()))
	_, err := rt.LoadScript("nope.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime: loading script")

	rt = NewRuntime(WithRuntimeFS(fstest.MapFS{}))
	_, err = rt.LoadScript("nope.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

// --- Store access ---

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunSource_DBQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.SaveRun(testRun()))

	script := `
rows := db_query("SELECT callee FROM invocations WHERE resolved IS NULL")
assert(len(rows) == 1, 'expected 1 row, got {len(rows)}')
emit(rows[0]["callee"])
saved := runs()
emit(saved[0]["id"], saved[0]["invocations"])
`
	out, err := runSource(t, script, testRun(), WithStore(s))
	require.NoError(t, err)
	assert.Equal(t, "mystery\nrun-1 2\n", out)
}

func TestRunSource_DBQueryRejectsWrites(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, err := runSource(t, `db_query("DELETE FROM runs")`, nil, WithStore(s))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only SELECT")
}

func TestRunSource_DBQueryRejectsStackedWrites(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.SaveRun(testRun()))

	_, err := runSource(t, `db_query("SELECT 1; DELETE FROM runs")`, nil, WithStore(s))
	require.Error(t, err)

	runs, err := s.Runs()
	require.NoError(t, err)
	assert.Len(t, runs, 1, "stacked statements must not write")

	// The connection returns to the pool writable.
	require.NoError(t, s.DeleteRun("run-1"))
}

func TestRunSource_NoStoreNoDBQuery(t *testing.T) {
	t.Parallel()
	_, err := runSource(t, `db_query("SELECT 1")`, nil)
	require.Error(t, err)
}
