package runtime

import (
	"slices"

	"github.com/risor-io/risor/object"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/syntax"
)

// Scripts see reports as plain maps and lists. Unresolved types and
// missing parameter names are nil.

func str(s string) object.Object { return object.NewString(s) }

func num(n int) object.Object { return object.NewInt(int64(n)) }

func typeObject(t oracle.TypeRef) object.Object {
	if !t.Resolved() {
		return object.Nil
	}
	return str(t.Name)
}

func list[T any](items []T, conv func(T) object.Object) object.Object {
	out := make([]object.Object, len(items))
	for i, it := range items {
		out[i] = conv(it)
	}
	return object.NewList(out)
}

func withSpan(m map[string]object.Object, s syntax.Span) *object.Map {
	m["line"] = num(s.StartLine)
	m["col"] = num(s.StartCol)
	return object.NewMap(m)
}

func classesToList(run *report.Run) object.Object {
	out := []object.Object{}
	for _, p := range run.Projects() {
		for _, d := range p.Documents {
			for _, c := range d.Classes {
				out = append(out, classObject(p.Name, d.Path, c))
			}
		}
	}
	return object.NewList(out)
}

func classObject(project, document string, c report.ClassReport) object.Object {
	return withSpan(map[string]object.Object{
		"signature": str(c.Signature),
		"project":   str(project),
		"document":  str(document),
		"fields": list(c.Fields, func(f report.FieldFact) object.Object {
			return withSpan(map[string]object.Object{
				"name":          str(f.Name),
				"declared_type": str(f.DeclaredType),
				"type":          typeObject(f.Type),
			}, f.Span)
		}),
		"assignments": list(c.Assignments, func(a report.AssignmentFact) object.Object {
			return withSpan(map[string]object.Object{"left": str(a.Left), "right": str(a.Right)}, a.Span)
		}),
		"methods":      list(c.Methods, methodObject),
		"constructors": list(c.Constructors, methodObject),
	}, c.Span)
}

func methodObject(m report.MethodReport) object.Object {
	return withSpan(map[string]object.Object{
		"signature": str(m.Signature),
		"parameters": list(m.Parameters, func(p report.ParameterFact) object.Object {
			return object.NewMap(map[string]object.Object{"name": str(p.Name), "type": typeObject(p.Type)})
		}),
		"invocations": list(m.Invocations, invocationObject),
	}, m.Span)
}

func invocationObject(inv report.InvocationReport) object.Object {
	return object.NewMap(invocationFields(inv))
}

func invocationFields(inv report.InvocationReport) map[string]object.Object {
	m := map[string]object.Object{
		"callee":      str(inv.CalleeName),
		"resolved":    str(inv.Resolved),
		"resolved_by": str(inv.ResolvedBy),
		"line":        num(inv.Span.StartLine),
		"col":         num(inv.Span.StartCol),
		"arguments":   list(inv.Arguments, argumentObject),
	}
	if !inv.IsResolved() {
		m["resolved"] = object.Nil
	}
	return m
}

func argumentObject(a report.ArgumentFact) object.Object {
	param := object.Object(object.Nil)
	if a.Parameter != nil {
		param = str(*a.Parameter)
	}
	return object.NewMap(map[string]object.Object{
		"index":     num(a.Index),
		"parameter": param,
		"type":      typeObject(a.Type),
		"text":      str(a.Text),
	})
}

func diagnosticsToList(run *report.Run) object.Object {
	return list(slices.Collect(run.Diagnostics()), func(d report.Diagnostic) object.Object {
		return withSpan(map[string]object.Object{
			"severity": str(d.Severity.String()),
			"message":  str(d.Message),
			"project":  str(d.Location.Project),
			"document": str(d.Location.Document),
		}, d.Location.Span)
	})
}

// invocationsToList flattens every call site with its enclosing
// declarations.
func invocationsToList(run *report.Run) object.Object {
	out := []object.Object{}
	for site := range run.Invocations() {
		m := invocationFields(site.Invocation)
		m["project"] = str(site.Project)
		m["document"] = str(site.Document)
		m["class"] = str(site.Class)
		m["method"] = str(site.Method)
		out = append(out, object.NewMap(m))
	}
	return object.NewList(out)
}

func statsToMap(s report.Stats) object.Object {
	return object.NewMap(map[string]object.Object{
		"projects":    num(s.Projects),
		"documents":   num(s.Documents),
		"classes":     num(s.Classes),
		"methods":     num(s.Methods),
		"invocations": num(s.Invocations),
		"unresolved":  num(s.Unresolved),
		"errors":      num(s.Errors),
		"warnings":    num(s.Warnings),
	})
}
