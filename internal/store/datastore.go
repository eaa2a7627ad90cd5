package store

import "github.com/jward/symwalk/internal/report"

// DataStore is the run persistence surface used by the engine and the
// query builder.
type DataStore interface {
	SaveRun(run *report.Run) error
	DeleteRun(id string) error

	Runs() ([]*Run, error)
	RunByID(id string) (*Run, error)
	LoadRun(id string) (*report.Run, error)
	ClassesByRun(runID string) ([]*Class, error)
	MethodsByClass(classID int64) ([]*Method, error)
	InvocationsByRun(runID, callee string) ([]*Invocation, error)
	DiagnosticsByRun(runID string, min report.Severity) ([]*Diagnostic, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
