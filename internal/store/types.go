package store

import (
	"time"

	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/syntax"
)

// Run is the summary row of a saved run.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Fingerprint string
	Documents   int
	Classes     int
	Invocations int
	Unresolved  int
	Errors      int
}

// Class is a saved class declaration.
type Class struct {
	ID        int64
	RunID     string
	Project   string
	Document  string
	Signature string
	Span      syntax.Span
}

// Method is a saved method or constructor.
type Method struct {
	ID          int64
	ClassID     int64
	Signature   string
	Constructor bool
	Span        syntax.Span
}

// Invocation is a saved call site with its enclosing declarations.
type Invocation struct {
	ID         int64
	MethodID   int64
	Project    string
	Document   string
	Class      string
	Method     string
	Callee     string
	Resolved   string
	ResolvedBy string
	Span       syntax.Span
}

// Diagnostic is a saved diagnostic.
type Diagnostic struct {
	ID         int64
	RunID      string
	Project    string
	Diagnostic report.Diagnostic
}
