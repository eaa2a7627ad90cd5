package store

import (
	"database/sql"
	"fmt"

	"github.com/jward/symwalk/internal/report"
)

// --- Run operations ---

const runCols = `id, started_at, finished_at, fingerprint, documents, classes, invocations, unresolved, errors`

func scanRun(scanner interface{ Scan(...any) error }) (*Run, error) {
	r := &Run{}
	err := scanner.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Fingerprint,
		&r.Documents, &r.Classes, &r.Invocations, &r.Unresolved, &r.Errors)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Runs lists saved runs, most recent first.
func (s *Store) Runs() ([]*Run, error) {
	rows, err := s.db.Query("SELECT " + runCols + " FROM runs ORDER BY started_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunByID returns the run summary, or nil if no run has that ID.
func (s *Store) RunByID(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runCols+" FROM runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run by id: %w", err)
	}
	return r, nil
}

// DeleteRun removes a run and everything recorded for it.
func (s *Store) DeleteRun(id string) error {
	res, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete run %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Class and method operations ---

// ClassesByRun returns the classes of a run in source order.
func (s *Store) ClassesByRun(runID string) ([]*Class, error) {
	rows, err := s.db.Query(
		`SELECT c.id, p.run_id, p.name, d.path, c.signature, `+spanColsOf("c")+`
		 FROM classes c
		 JOIN documents d ON d.id = c.document_id
		 JOIN projects p ON p.id = d.project_id
		 WHERE p.run_id = ? ORDER BY c.id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("classes by run: %w", err)
	}
	defer rows.Close()
	var classes []*Class
	for rows.Next() {
		c := &Class{}
		if err := rows.Scan(dest([]any{&c.ID, &c.RunID, &c.Project, &c.Document, &c.Signature}, &c.Span)...); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// MethodsByClass returns the methods followed by the constructors of a
// class.
func (s *Store) MethodsByClass(classID int64) ([]*Method, error) {
	rows, err := s.db.Query(
		`SELECT id, class_id, signature, is_constructor, `+spanCols+`
		 FROM methods WHERE class_id = ? ORDER BY is_constructor, id`, classID,
	)
	if err != nil {
		return nil, fmt.Errorf("methods by class: %w", err)
	}
	defer rows.Close()
	var methods []*Method
	for rows.Next() {
		m := &Method{}
		if err := rows.Scan(dest([]any{&m.ID, &m.ClassID, &m.Signature, &m.Constructor}, &m.Span)...); err != nil {
			return nil, fmt.Errorf("scan method: %w", err)
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

// --- Invocation operations ---

// InvocationsByRun returns the call sites of a run. A non-empty callee
// keeps sites whose callee name or resolved symbol equals it.
func (s *Store) InvocationsByRun(runID, callee string) ([]*Invocation, error) {
	rows, err := s.db.Query(
		`SELECT i.id, i.method_id, p.name, d.path, c.signature, m.signature,
			i.callee, COALESCE(i.resolved, ''), COALESCE(i.resolved_by, ''), `+spanColsOf("i")+`
		 FROM invocations i
		 JOIN methods m ON m.id = i.method_id
		 JOIN classes c ON c.id = m.class_id
		 JOIN documents d ON d.id = c.document_id
		 JOIN projects p ON p.id = d.project_id
		 WHERE p.run_id = ? AND (? = '' OR i.callee = ? OR i.resolved = ?)
		 ORDER BY i.id`, runID, callee, callee, callee,
	)
	if err != nil {
		return nil, fmt.Errorf("invocations by run: %w", err)
	}
	defer rows.Close()
	var out []*Invocation
	for rows.Next() {
		inv := &Invocation{}
		ptrs := []any{&inv.ID, &inv.MethodID, &inv.Project, &inv.Document, &inv.Class, &inv.Method,
			&inv.Callee, &inv.Resolved, &inv.ResolvedBy}
		if err := rows.Scan(dest(ptrs, &inv.Span)...); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// --- Diagnostic operations ---

// DiagnosticsByRun returns the diagnostics of a run with severity >= min,
// in the order the run yields them.
func (s *Store) DiagnosticsByRun(runID string, min report.Severity) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		`SELECT g.id, p.run_id, p.name, g.severity, g.message, g.location_doc, `+spanColsOf("g")+`
		 FROM diagnostics g
		 JOIN projects p ON p.id = g.project_id
		 WHERE p.run_id = ? AND g.severity >= ?
		 ORDER BY g.id`, runID, int(min),
	)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by run: %w", err)
	}
	defer rows.Close()
	var out []*Diagnostic
	for rows.Next() {
		d, err := scanDiagnostic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDiagnostic(scanner interface{ Scan(...any) error }) (*Diagnostic, error) {
	d := &Diagnostic{}
	var (
		sev int
		doc sql.NullString
	)
	loc := &d.Diagnostic.Location
	err := scanner.Scan(dest([]any{&d.ID, &d.RunID, &d.Project, &sev, &d.Diagnostic.Message, &doc}, &loc.Span)...)
	if err != nil {
		return nil, err
	}
	d.Diagnostic.Severity = report.Severity(sev)
	loc.Project = d.Project
	loc.Document = doc.String
	return d, nil
}
