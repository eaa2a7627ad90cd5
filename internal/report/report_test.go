package report

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_ParseAndString(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Severity
	}{
		{"info", Info},
		{"WARNING", Warning},
		{"warn", Warning},
		{" error ", Error},
	} {
		got, err := ParseSeverity(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
	_, err := ParseSeverity("fatal")
	assert.Error(t, err)

	assert.Equal(t, "warning", Warning.String())
	assert.Equal(t, "severity(7)", Severity(7).String())
	assert.True(t, Error > Warning && Warning > Info)
}

func TestSeverity_JSON(t *testing.T) {
	b, err := json.Marshal(Diagnostic{Severity: Error, Message: "boom"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"severity":"error"`)

	var d Diagnostic
	require.NoError(t, json.Unmarshal(b, &d))
	assert.Equal(t, Error, d.Severity)
}

func TestDocument_Reportf(t *testing.T) {
	d := NewDocument("app", "a.go")
	d.Reportf(Warning, syntax.Span{StartLine: 3, StartCol: 2}, "expected %d, got %d", 2, 3)

	require.Len(t, d.Diagnostics, 1)
	diag := d.Diagnostics[0]
	assert.Equal(t, Warning, diag.Severity)
	assert.Equal(t, "expected 2, got 3", diag.Message)
	assert.Equal(t, "app", diag.Location.Project)
	assert.Equal(t, "a.go", diag.Location.Document)
	assert.Equal(t, "a.go:3:2: warning: expected 2, got 3", diag.String())
}

func TestArgumentFact_JSON(t *testing.T) {
	b, err := json.Marshal(ArgumentFact{Index: 0, Type: oracle.Unresolved, Text: "5"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":0,"parameter":null,"type":null,"text":"5"}`, string(b))

	b, err = json.Marshal(ArgumentFact{Index: 1, Parameter: StringPtr("x"), Type: oracle.TypeNamed("int"), Text: "n"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":1,"parameter":"x","type":"int","text":"n"}`, string(b))
}

func TestAggregator_MergesInReservedOrder(t *testing.T) {
	agg := NewAggregator()
	agg.AddProject("app")

	var docs []*Document
	for i := range 20 {
		docs = append(docs, agg.Reserve("app", fmt.Sprintf("f%02d.go", i)))
	}

	// Finish documents from many goroutines in reverse order.
	var wg sync.WaitGroup
	for i := len(docs) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(d *Document) {
			defer wg.Done()
			d.AddClass(ClassReport{Signature: "C" + d.Path})
			agg.AddDocument(d)
		}(docs[i])
	}
	wg.Wait()

	run := agg.Finish()
	require.Len(t, run.Projects(), 1)
	var paths []string
	for _, d := range run.Projects()[0].Documents {
		paths = append(paths, d.Path)
	}
	require.Len(t, paths, 20)
	assert.True(t, slices.IsSorted(paths))
	assert.Equal(t, agg.ID(), run.ID())
	assert.NotEmpty(t, run.ID())
}

func TestAggregator_UnreservedDocumentsByArrival(t *testing.T) {
	agg := NewAggregator()
	agg.AddDocument(NewDocument("p", "b.go"))
	agg.AddDocument(NewDocument("p", "a.go"))

	run := agg.Finish()
	require.Len(t, run.Projects(), 1)
	docs := run.Projects()[0].Documents
	assert.Equal(t, "b.go", docs[0].Path)
	assert.Equal(t, "a.go", docs[1].Path)
}

func TestAggregator_ProjectOrderAndDiagnostics(t *testing.T) {
	agg := NewAggregator()
	agg.AddProject("b", Diagnostic{Severity: Error, Message: "compile"})
	agg.AddProject("a")
	d := agg.Reserve("a", "x.go")
	d.Reportf(Info, syntax.Span{}, "unresolved")
	agg.AddDocument(d)
	agg.AddProject("b", Diagnostic{Severity: Warning, Message: "later"})

	run := agg.Finish()
	var names []string
	for _, p := range run.Projects() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"b", "a"}, names)

	var msgs []string
	for diag := range run.Diagnostics() {
		msgs = append(msgs, diag.Message)
	}
	assert.Equal(t, []string{"compile", "later", "unresolved"}, msgs)

	var severe []string
	for diag := range run.DiagnosticsAtLeast(Warning) {
		severe = append(severe, diag.Message)
	}
	assert.Equal(t, []string{"compile", "later"}, severe)
}

func sampleRun() *Run {
	doc := &Document{
		Project: "app",
		Path:    "b.go",
		Classes: []ClassReport{{
			Signature: "app.B",
			Methods: []MethodReport{{
				Signature: "app.B.Run()",
				Invocations: []InvocationReport{
					{CalleeName: "ADD", Resolved: "app.B.ADD(int)", ResolvedBy: "primary"},
					{CalleeName: "Missing"},
				},
			}},
			Constructors: []MethodReport{{
				Signature:   "app.NewB()",
				Invocations: []InvocationReport{{CalleeName: "init", Resolved: "app.init()"}},
			}},
		}},
		Diagnostics: []Diagnostic{{Severity: Info, Message: "unresolved callee Missing"}},
	}
	return NewRun("run-1", time.Time{}, time.Time{}, []ProjectReport{{
		Name:        "app",
		Diagnostics: []Diagnostic{{Severity: Error, Message: "x"}, {Severity: Warning, Message: "y"}},
		Documents:   []*Document{doc},
	}})
}

func TestRun_InvocationsAndStats(t *testing.T) {
	run := sampleRun()

	var callees []string
	for site := range run.Invocations() {
		callees = append(callees, site.Method+"->"+site.Invocation.CalleeName)
		assert.Equal(t, "app.B", site.Class)
		assert.Equal(t, "b.go", site.Document)
	}
	assert.Equal(t, []string{"app.B.Run()->ADD", "app.B.Run()->Missing", "app.NewB()->init"}, callees)

	assert.Equal(t, Stats{
		Projects:    1,
		Documents:   1,
		Classes:     1,
		Methods:     2,
		Invocations: 3,
		Unresolved:  1,
		Errors:      1,
		Warnings:    1,
	}, run.Stats())
}

func TestRun_ProjectsAreCopies(t *testing.T) {
	run := sampleRun()
	before := run.Stats()

	ps := run.Projects()
	doc := ps[0].Documents[0]
	doc.Classes[0].Methods[0].Invocations[0].Resolved = ""
	doc.Classes[0].Methods = nil
	doc.Classes = nil
	doc.Diagnostics[0].Severity = Error
	ps[0].Diagnostics = nil
	ps[0].Documents = nil

	assert.Equal(t, before, run.Stats())
	again := run.Projects()
	require.Len(t, again[0].Documents, 1)
	require.Len(t, again[0].Documents[0].Classes, 1)
	assert.Equal(t, "app.B.ADD(int)", again[0].Documents[0].Classes[0].Methods[0].Invocations[0].Resolved)
}

func TestAggregator_FinishedRunIgnoresLaterWrites(t *testing.T) {
	agg := NewAggregator()
	doc := agg.Reserve("app", "a.go")
	doc.AddClass(ClassReport{Signature: "app.A"})
	agg.AddDocument(doc)
	run := agg.Finish()

	doc.AddClass(ClassReport{Signature: "app.Late"})
	doc.Reportf(Error, syntax.Span{}, "late")

	assert.Equal(t, 1, run.Stats().Classes)
	assert.Equal(t, 0, run.Stats().Errors)
}

func TestRun_IteratorsStopEarly(t *testing.T) {
	run := sampleRun()
	n := 0
	for range run.Invocations() {
		n++
		break
	}
	assert.Equal(t, 1, n)

	n = 0
	for range run.Diagnostics() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestRun_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(sampleRun())
	require.NoError(t, err)

	var got struct {
		ID       string `json:"id"`
		Stats    Stats  `json:"stats"`
		Projects []struct {
			Name string `json:"name"`
		} `json:"projects"`
	}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, 3, got.Stats.Invocations)
	require.Len(t, got.Projects, 1)
	assert.Equal(t, "app", got.Projects[0].Name)
}
