package graphdb

import (
	"cmp"
	"slices"

	"github.com/jward/symwalk/internal/report"
)

// The builders below turn a run into UNWIND batches. They are pure so the
// graph shape can be checked without a server.

func projectRows(run *report.Run) []map[string]any {
	rows := []map[string]any{}
	for _, p := range run.Projects() {
		rows = append(rows, map[string]any{
			"name":      p.Name,
			"run":       run.ID(),
			"documents": len(p.Documents),
		})
	}
	return rows
}

// classRows returns one row per class signature. A class reported by
// several documents, such as a Go type split over files, keeps its first
// location.
func classRows(run *report.Run) []map[string]any {
	seen := make(map[string]bool)
	rows := []map[string]any{}
	for _, p := range run.Projects() {
		for _, d := range p.Documents {
			for _, c := range d.Classes {
				if seen[c.Signature] {
					continue
				}
				seen[c.Signature] = true
				rows = append(rows, map[string]any{
					"signature": c.Signature,
					"project":   p.Name,
					"file":      d.Path,
					"line":      c.Span.StartLine,
					"fields":    len(c.Fields),
					"run":       run.ID(),
				})
			}
		}
	}
	return rows
}

// methodRows returns one row per method or constructor signature, each
// with the class that declares it.
func methodRows(run *report.Run) []map[string]any {
	seen := make(map[string]bool)
	rows := []map[string]any{}
	for _, p := range run.Projects() {
		for _, d := range p.Documents {
			for _, c := range d.Classes {
				add := func(m report.MethodReport, ctor bool) {
					if seen[m.Signature] {
						return
					}
					seen[m.Signature] = true
					rows = append(rows, map[string]any{
						"signature":   m.Signature,
						"class":       c.Signature,
						"file":        d.Path,
						"line":        m.Span.StartLine,
						"params":      len(m.Parameters),
						"constructor": ctor,
						"run":         run.ID(),
					})
				}
				for _, m := range c.Methods {
					add(m, false)
				}
				for _, m := range c.Constructors {
					add(m, true)
				}
			}
		}
	}
	return rows
}

type callKey struct{ caller, callee string }

// callRows aggregates resolved invocations into caller/callee edges with a
// site count. Unresolved call sites have no callee and are skipped. Rows
// are sorted by caller then callee.
func callRows(run *report.Run) []map[string]any {
	type edge struct {
		count int
		tier  string
		first string
	}
	edges := make(map[callKey]*edge)
	for site := range run.Invocations() {
		inv := site.Invocation
		if !inv.IsResolved() {
			continue
		}
		k := callKey{site.Method, inv.Resolved}
		e, ok := edges[k]
		if !ok {
			e = &edge{tier: inv.ResolvedBy, first: site.Document + ":" + inv.Span.String()}
			if inv.Span.File != "" {
				e.first = inv.Span.String()
			}
			edges[k] = e
		}
		e.count++
	}

	keys := make([]callKey, 0, len(edges))
	for k := range edges {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b callKey) int {
		return cmp.Or(cmp.Compare(a.caller, b.caller), cmp.Compare(a.callee, b.callee))
	})

	rows := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		e := edges[k]
		rows = append(rows, map[string]any{
			"caller":      k.caller,
			"callee":      k.callee,
			"count":       e.count,
			"resolved_by": e.tier,
			"site":        e.first,
			"run":         run.ID(),
		})
	}
	return rows
}
