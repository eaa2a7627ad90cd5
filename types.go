package symwalk

import (
	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/resolve"
	"github.com/jward/symwalk/internal/store"
	"github.com/jward/symwalk/internal/workspace"
)

// Public type aliases for internal types used in the Engine and
// QueryBuilder API. External consumers use these names; no conversion is
// needed.

type Store = store.Store
type RunSummary = store.Run
type Class = store.Class
type Method = store.Method
type CallSite = store.Invocation
type StoredDiagnostic = store.Diagnostic

type Run = report.Run
type Severity = report.Severity
type Diagnostic = report.Diagnostic
type ClassReport = report.ClassReport

type Solution = workspace.Solution
type Manifest = workspace.Manifest

type Strategy = resolve.Strategy

// Severities.
const (
	Info    = report.Info
	Warning = report.Warning
	Error   = report.Error
)
