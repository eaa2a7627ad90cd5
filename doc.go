// Package symwalk reports the classes, members and call sites of a source
// solution using the semantic model of a language front end. Go projects
// are bound with go/packages and go/types; Java projects are parsed with
// tree-sitter and bound by a project-wide symbol table.
//
// # Pipeline
//
//  1. Open: every project of the solution is loaded by the front end for
//     its language. A project that fails to load becomes an Error
//     diagnostic; the rest of the solution is still analysed.
//
//  2. Analyze: each document's syntax tree is walked. Classes yield field,
//     assignment, method and constructor facts; every invocation inside a
//     method body is resolved through a chain of strategies (primary,
//     first_candidate, declared) and its arguments are paired with the
//     callee's declared parameters.
//
//  3. Persist: when a database is configured the run is saved to SQLite
//     and can be listed, reloaded or queried later.
//
// # Usage
//
//	e, err := symwalk.New(symwalk.WithDatabase("symwalk.db"))
//	if err != nil { ... }
//	defer e.Close()
//
//	run, err := e.AnalyzeDirectory(ctx, "path/to/project", "")
//	for c := range run.Classes() {
//		fmt.Println(c.Signature)
//	}
//
//	callers, err := e.Query().Callers(run.ID(), "app.B.ADD(int)")
//
// # Solutions
//
// A directory with a symwalk.yaml manifest is opened as a solution of the
// projects it lists:
//
//	name: shop
//	projects:
//	  - name: api
//	    dir: api
//	    language: go
//	  - name: legacy
//	    dir: legacy/src
//	    language: java
//	analysis:
//	  direct_members_only: true
//	  workers: 4
//
// Without a manifest the directory is a single project whose language is
// detected from go.mod or .java sources.
//
// # Concurrency
//
// Documents are independent. In parallel mode (the default) a worker pool
// analyses them, each worker filling its own buffer, and the buffers are
// merged in document order, so output is identical to serial mode.
package symwalk
