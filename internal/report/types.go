// Package report holds the facts produced by an analysis run and the
// aggregator that collects them from concurrent document workers.
package report

import (
	"fmt"
	"strings"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/syntax"
)

// Severity of a Diagnostic. Higher values are more severe.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity parses "info", "warning" or "error" (case-insensitive).
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return Info, nil
	case "warning", "warn":
		return Warning, nil
	case "error":
		return Error, nil
	}
	return Info, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Location ties a diagnostic to its project and document. Span is zero for
// project-level diagnostics without position.
type Location struct {
	Project  string      `json:"project,omitempty"`
	Document string      `json:"document,omitempty"`
	Span     syntax.Span `json:"span"`
}

// Diagnostic is an error, warning or informational finding.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Location Location `json:"location"`
}

func (d Diagnostic) String() string {
	loc := d.Location.Span.String()
	if d.Location.Span.File == "" && d.Location.Document != "" {
		loc = d.Location.Document + ":" + loc
	}
	return fmt.Sprintf("%s: %s: %s", loc, d.Severity, d.Message)
}

// FieldFact is one declared variable. Declarations introducing several names
// produce one fact per name, all sharing DeclaredType and Type.
type FieldFact struct {
	Name string `json:"name"`
	// DeclaredType is the type as written; empty for inferred declarations.
	DeclaredType string         `json:"declared_type,omitempty"`
	Type         oracle.TypeRef `json:"type"`
	Span         syntax.Span    `json:"span"`
}

// AssignmentFact is the source text of both operands of an assignment.
type AssignmentFact struct {
	Left  string      `json:"left"`
	Right string      `json:"right"`
	Span  syntax.Span `json:"span"`
}

// ParameterFact is a declared parameter and its resolved type.
type ParameterFact struct {
	Name string         `json:"name"`
	Type oracle.TypeRef `json:"type"`
}

// ArgumentFact is one syntactic argument of an invocation. Parameter is nil
// when the callee is unresolved or has fewer parameters than arguments.
type ArgumentFact struct {
	Index     int            `json:"index"`
	Parameter *string        `json:"parameter"`
	Type      oracle.TypeRef `json:"type"`
	Text      string         `json:"text"`
}

// InvocationReport is one resolved (or unresolved) call site.
type InvocationReport struct {
	CalleeName string `json:"callee"`
	// Resolved is the display form of the callee symbol, empty when no tier
	// produced one.
	Resolved string `json:"resolved,omitempty"`
	// ResolvedBy names the resolution tier that produced the symbol.
	ResolvedBy string         `json:"resolved_by,omitempty"`
	Symbol     oracle.Symbol  `json:"-"`
	Span       syntax.Span    `json:"span"`
	Arguments  []ArgumentFact `json:"arguments"`
}

// IsResolved reports whether a callee symbol was found.
func (r InvocationReport) IsResolved() bool { return r.Resolved != "" }

// MethodReport describes a method or constructor.
type MethodReport struct {
	Signature   string             `json:"signature"`
	Symbol      oracle.Symbol      `json:"-"`
	Span        syntax.Span        `json:"span"`
	Parameters  []ParameterFact    `json:"parameters"`
	Invocations []InvocationReport `json:"invocations"`
}

// ClassReport describes one class declaration. Methods keep source order.
type ClassReport struct {
	Signature    string           `json:"signature"`
	Symbol       oracle.Symbol    `json:"-"`
	Span         syntax.Span      `json:"span"`
	Fields       []FieldFact      `json:"fields"`
	Assignments  []AssignmentFact `json:"assignments"`
	Methods      []MethodReport   `json:"methods"`
	Constructors []MethodReport   `json:"constructors,omitempty"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
