package symwalk

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/symwalk/internal/metrics"
	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/syntax"
	"github.com/jward/symwalk/internal/workspace"
)

var javaSources = map[string]string{
	"app/A.java": `package app;

public class A {
    private int count;

    public void bump(int n) {
        count = count + n;
        log("bumped");
    }

    void log(String msg) {
    }
}
`,
	"app/C.java": `package app;

public class C {
    public void run(A a) {
        a.bump(2);
        missing();
    }
}
`,
}

func writeSources(t *testing.T, dir string, sources map[string]string) {
	t.Helper()
	for name, src := range sources {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
}

func javaProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeSources(t, dir, javaSources)
	return dir
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithDatabase(filepath.Join(t.TempDir(), "test.db"))}, opts...)
	e, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// render flattens a run into comparable lines. Symbol handles differ
// between loads, so only display strings are used.
func render(run *Run) []string {
	var out []string
	for c := range run.Classes() {
		out = append(out, "class "+c.Signature)
		for _, f := range c.Fields {
			out = append(out, fmt.Sprintf("  field %s %s", f.Name, f.Type))
		}
		for _, m := range slices.Concat(c.Methods, c.Constructors) {
			out = append(out, "  method "+m.Signature)
			for _, inv := range m.Invocations {
				out = append(out, fmt.Sprintf("    call %s => %s [%d args]", inv.CalleeName, inv.Resolved, len(inv.Arguments)))
			}
		}
	}
	for d := range run.Diagnostics() {
		out = append(out, "diag "+d.String())
	}
	return out
}

func TestAnalyzeDirectory_Java(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	defer e.Close()

	run, err := e.AnalyzeDirectory(context.Background(), javaProject(t), "")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID())

	var classes []string
	for c := range run.Classes() {
		classes = append(classes, c.Signature)
	}
	assert.ElementsMatch(t, []string{"app.A", "app.C"}, classes)

	byCallee := map[string]report.CallSite{}
	for site := range run.Invocations() {
		byCallee[site.Invocation.CalleeName] = site
	}
	bump := byCallee["bump"]
	assert.Equal(t, "app.A.bump(int)", bump.Invocation.Resolved)
	assert.Equal(t, "app.C.run(A)", bump.Method)
	require.Len(t, bump.Invocation.Arguments, 1)
	assert.Equal(t, "n", *bump.Invocation.Arguments[0].Parameter)
	assert.Equal(t, "2", bump.Invocation.Arguments[0].Text)

	assert.False(t, byCallee["missing"].Invocation.IsResolved())
	assert.Equal(t, "app.A.log(String)", byCallee["log"].Invocation.Resolved)

	st := run.Stats()
	assert.Equal(t, 1, st.Projects)
	assert.Equal(t, 2, st.Documents)
	assert.Equal(t, 2, st.Classes)
	assert.Equal(t, 1, st.Unresolved)
	assert.Zero(t, st.Errors)

	assert.Nil(t, e.Store())
}

func TestAnalyze_ParallelMatchesSerial(t *testing.T) {
	dir := javaProject(t)
	ctx := context.Background()

	serial, err := New(WithParallel(false))
	require.NoError(t, err)
	parallel, err := New(WithParallel(true), WithWorkers(4))
	require.NoError(t, err)

	want, err := serial.AnalyzeDirectory(ctx, dir, "java")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		got, err := parallel.AnalyzeDirectory(ctx, dir, "java")
		require.NoError(t, err)
		assert.Equal(t, render(want), render(got))
		assert.NotEqual(t, want.ID(), got.ID())
	}
}

func TestAnalyzeDirectory_Manifest(t *testing.T) {
	root := t.TempDir()
	writeSources(t, filepath.Join(root, "core"), javaSources)
	writeSources(t, filepath.Join(root, "extra"), map[string]string{
		"x/Outer.java": "package x;\n\npublic class Outer {\n    int a;\n\n    static class Nested {\n        int b;\n    }\n}\n",
	})
	manifest := `name: shop
projects:
  - name: core
    dir: core
    language: java
  - name: extra
    dir: extra
    language: java
  - name: broken
    dir: nowhere
    language: java
analysis:
  direct_members_only: true
  workers: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(root, workspace.ManifestFile), []byte(manifest), 0o644))

	e, err := New()
	require.NoError(t, err)
	run, err := e.AnalyzeDirectory(context.Background(), root, "")
	require.NoError(t, err)

	projects := run.Projects()
	require.Len(t, projects, 3)
	assert.Equal(t, "core", projects[0].Name)
	assert.Equal(t, "extra", projects[1].Name)
	assert.Equal(t, "broken", projects[2].Name)

	var outer report.ClassReport
	for c := range run.Classes() {
		if c.Signature == "x.Outer" {
			outer = c
		}
	}
	require.Equal(t, "x.Outer", outer.Signature)
	require.Len(t, outer.Fields, 1, "nested members are skipped")
	assert.Equal(t, "a", outer.Fields[0].Name)

	errs := 0
	for d := range run.DiagnosticsAtLeast(Error) {
		assert.Equal(t, "broken", d.Location.Project)
		errs++
	}
	assert.Equal(t, 1, errs)
}

func TestAnalyze_ProjectDiagnosticsWithoutDocuments(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	sol := &workspace.Solution{Name: "s", Projects: []*workspace.Project{{
		Name: "p",
		Diagnostics: []report.Diagnostic{
			{Severity: report.Error, Message: "does not compile", Location: report.Location{Project: "p"}},
		},
	}}}
	run, err := e.Analyze(context.Background(), sol)
	require.NoError(t, err)
	st := run.Stats()
	assert.Equal(t, 1, st.Projects)
	assert.Zero(t, st.Documents)
	assert.Equal(t, 1, st.Errors)
}

func TestAnalyze_CorruptTree(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			e, err := New(WithParallel(parallel), WithWorkers(2))
			require.NoError(t, err)
			sol := &workspace.Solution{Projects: []*workspace.Project{{
				Name:      "p",
				Documents: []*workspace.Document{{Path: "a.java"}, {Path: "b.java"}},
			}}}
			_, err = e.Analyze(context.Background(), sol)
			assert.ErrorIs(t, err, syntax.ErrCorruptTree)
		})
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			e := newTestEngine(t, WithParallel(parallel), WithWorkers(2))
			dir := javaProject(t)
			m, err := workspace.FindManifest(dir, "")
			require.NoError(t, err)
			sol, err := e.Open(context.Background(), m, dir)
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err = e.Analyze(ctx, sol)
			assert.ErrorIs(t, err, context.Canceled)

			runs, err := e.Query().Runs()
			require.NoError(t, err)
			assert.Empty(t, runs, "cancelled runs are not saved")
		})
	}
}

func TestAnalyze_SavesRun(t *testing.T) {
	e := newTestEngine(t)
	run, err := e.AnalyzeDirectory(context.Background(), javaProject(t), "java")
	require.NoError(t, err)
	require.NotNil(t, e.Store())

	q := e.Query()
	latest, err := q.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.ID(), latest.ID)
	assert.Equal(t, 2, latest.Classes)
	assert.Equal(t, 1, latest.Unresolved)
	assert.NotEmpty(t, latest.Fingerprint)

	loaded, err := q.Run(run.ID())
	require.NoError(t, err)
	assert.Equal(t, render(run), render(loaded))
	assert.Equal(t, run.Stats(), loaded.Stats())
}

func TestNew_BadDatabasePath(t *testing.T) {
	_, err := New(WithDatabase(filepath.Join(t.TempDir(), "missing", "dir", "x.db")))
	assert.Error(t, err)
}

func TestAnalyzeDirectory_MixedSolution(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	e := newTestEngine(t)
	run, err := e.AnalyzeDirectory(context.Background(), filepath.Join("testdata", "solution"), "")
	require.NoError(t, err)

	projects := run.Projects()
	require.Len(t, projects, 2)
	assert.Equal(t, "billing", projects[0].Name)
	assert.Equal(t, "legacy", projects[1].Name)
	assert.Zero(t, run.Stats().Errors)

	classes := map[string]report.ClassReport{}
	for c := range run.Classes() {
		classes[c.Signature] = c
	}
	require.Contains(t, classes, "billing.Invoice")
	require.Contains(t, classes, "shop.Order")
	assert.Len(t, classes["shop.Order"].Constructors, 1)

	callers, err := e.Query().Callers(run.ID(), "shop.Order.multiply(int, int)")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, "legacy", callers[0].Project)
	assert.Equal(t, "shop.Order.total(int)", callers[0].Method)
}

func TestAnalyze_RecordsMetrics(t *testing.T) {
	mx := metrics.New()
	e, err := New(WithMetrics(mx))
	require.NoError(t, err)
	_, err = e.AnalyzeDirectory(context.Background(), javaProject(t), "java")
	require.NoError(t, err)

	families, err := mx.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["symwalk_runs_total"])
	assert.True(t, names["symwalk_invocations_total"])
}
