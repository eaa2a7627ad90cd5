package symwalk

import (
	"fmt"

	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/store"
)

// QueryBuilder provides a query API over saved runs.
type QueryBuilder struct {
	store store.DataStore
}

func (q *QueryBuilder) ready() error {
	if q.store == nil {
		return ErrNoDatabase
	}
	return nil
}

// Runs lists saved runs, most recent first.
func (q *QueryBuilder) Runs() ([]*RunSummary, error) {
	if err := q.ready(); err != nil {
		return nil, err
	}
	return q.store.Runs()
}

// Latest returns the most recent run, or nil when none is saved.
func (q *QueryBuilder) Latest() (*RunSummary, error) {
	runs, err := q.Runs()
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// Run rebuilds a saved run. Symbol handles are not persisted; reports
// carry their display strings.
func (q *QueryBuilder) Run(id string) (*report.Run, error) {
	if err := q.ready(); err != nil {
		return nil, err
	}
	return q.store.LoadRun(id)
}

// Classes returns the classes of a run in source order.
func (q *QueryBuilder) Classes(runID string) ([]*Class, error) {
	if err := q.ready(); err != nil {
		return nil, err
	}
	return q.store.ClassesByRun(runID)
}

// Methods returns the methods followed by the constructors of a class.
func (q *QueryBuilder) Methods(classID int64) ([]*Method, error) {
	if err := q.ready(); err != nil {
		return nil, err
	}
	return q.store.MethodsByClass(classID)
}

// Callers returns the call sites whose callee name or resolved symbol is
// callee.
func (q *QueryBuilder) Callers(runID, callee string) ([]*CallSite, error) {
	if err := q.ready(); err != nil {
		return nil, err
	}
	if callee == "" {
		return nil, fmt.Errorf("callers: empty callee")
	}
	return q.store.InvocationsByRun(runID, callee)
}

// Callees returns the call sites inside the method with the given
// signature.
func (q *QueryBuilder) Callees(runID, method string) ([]*CallSite, error) {
	if err := q.ready(); err != nil {
		return nil, err
	}
	all, err := q.store.InvocationsByRun(runID, "")
	if err != nil {
		return nil, fmt.Errorf("callees: %w", err)
	}
	var out []*CallSite
	for _, inv := range all {
		if inv.Method == method {
			out = append(out, inv)
		}
	}
	return out, nil
}

// Unresolved returns the call sites of a run that no strategy resolved.
func (q *QueryBuilder) Unresolved(runID string) ([]*CallSite, error) {
	if err := q.ready(); err != nil {
		return nil, err
	}
	all, err := q.store.InvocationsByRun(runID, "")
	if err != nil {
		return nil, fmt.Errorf("unresolved: %w", err)
	}
	var out []*CallSite
	for _, inv := range all {
		if inv.Resolved == "" {
			out = append(out, inv)
		}
	}
	return out, nil
}

// Diagnostics returns the diagnostics of a run with severity >= min.
func (q *QueryBuilder) Diagnostics(runID string, min Severity) ([]*StoredDiagnostic, error) {
	if err := q.ready(); err != nil {
		return nil, err
	}
	return q.store.DiagnosticsByRun(runID, min)
}

// Delete removes a saved run.
func (q *QueryBuilder) Delete(runID string) error {
	if err := q.ready(); err != nil {
		return err
	}
	return q.store.DeleteRun(runID)
}
