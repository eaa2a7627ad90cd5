package main

import (
	"time"

	"github.com/jward/symwalk"
	"github.com/jward/symwalk/internal/report"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIRun is a JSON-friendly run summary.
type CLIRun struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Fingerprint string    `json:"fingerprint"`
	Documents   int       `json:"documents"`
	Classes     int       `json:"classes"`
	Invocations int       `json:"invocations"`
	Unresolved  int       `json:"unresolved"`
	Errors      int       `json:"errors"`
}

// CLICallSite is a JSON-friendly saved call site.
type CLICallSite struct {
	Project    string `json:"project"`
	Document   string `json:"document"`
	Class      string `json:"class"`
	Method     string `json:"method"`
	Callee     string `json:"callee"`
	Resolved   string `json:"resolved,omitempty"`
	ResolvedBy string `json:"resolved_by,omitempty"`
	Line       int    `json:"line"`
	Col        int    `json:"col"`
}

// CLIDiagnostic is a JSON-friendly saved diagnostic.
type CLIDiagnostic struct {
	Severity report.Severity `json:"severity"`
	Message  string          `json:"message"`
	Project  string          `json:"project"`
	Document string          `json:"document,omitempty"`
	Line     int             `json:"line,omitempty"`
	Col      int             `json:"col,omitempty"`
}

// CLIExport reports what an export wrote to the graph.
type CLIExport struct {
	RunID   string `json:"run_id"`
	URI     string `json:"uri"`
	Classes int    `json:"classes"`
	Methods int    `json:"methods"`
	Calls   int    `json:"calls"`
}

func runToCLI(r *symwalk.RunSummary) CLIRun {
	return CLIRun{
		ID:          r.ID,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Fingerprint: r.Fingerprint,
		Documents:   r.Documents,
		Classes:     r.Classes,
		Invocations: r.Invocations,
		Unresolved:  r.Unresolved,
		Errors:      r.Errors,
	}
}

func callSiteToCLI(s *symwalk.CallSite) CLICallSite {
	return CLICallSite{
		Project:    s.Project,
		Document:   s.Document,
		Class:      s.Class,
		Method:     s.Method,
		Callee:     s.Callee,
		Resolved:   s.Resolved,
		ResolvedBy: s.ResolvedBy,
		Line:       s.Span.StartLine,
		Col:        s.Span.StartCol,
	}
}

func diagnosticToCLI(d *symwalk.StoredDiagnostic) CLIDiagnostic {
	return CLIDiagnostic{
		Severity: d.Diagnostic.Severity,
		Message:  d.Diagnostic.Message,
		Project:  d.Project,
		Document: d.Diagnostic.Location.Document,
		Line:     d.Diagnostic.Location.Span.StartLine,
		Col:      d.Diagnostic.Location.Span.StartCol,
	}
}
