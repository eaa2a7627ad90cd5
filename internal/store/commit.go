package store

import (
	"database/sql"
	"fmt"

	"github.com/jward/symwalk/internal/report"
)

// SaveRun inserts a run and all of its facts within a single transaction.
// Insert order follows FK dependencies and source order:
//  1. Run summary
//  2. Projects and their compile diagnostics
//  3. Documents and their traversal diagnostics
//  4. Classes with fields and assignments
//  5. Methods, then constructors, with parameters
//  6. Invocations with arguments
func (s *Store) SaveRun(run *report.Run) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save run: begin: %w", err)
	}
	defer tx.Rollback()

	st := run.Stats()
	_, err = tx.Exec(
		`INSERT INTO runs (id, started_at, finished_at, fingerprint, documents, classes, invocations, unresolved, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID(), run.StartedAt().UTC(), run.FinishedAt().UTC(), Fingerprint(run),
		st.Documents, st.Classes, st.Invocations, st.Unresolved, st.Errors,
	)
	if err != nil {
		return fmt.Errorf("save run: insert run %s: %w", run.ID(), err)
	}

	for _, p := range run.Projects() {
		projectID, err := insertID(tx, "INSERT INTO projects (run_id, name) VALUES (?, ?)", run.ID(), p.Name)
		if err != nil {
			return fmt.Errorf("save run: project %q: %w", p.Name, err)
		}
		for _, d := range p.Diagnostics {
			if err := insertDiagnosticTx(tx, projectID, nil, d); err != nil {
				return fmt.Errorf("save run: project %q diagnostic: %w", p.Name, err)
			}
		}
		for _, doc := range p.Documents {
			if err := insertDocumentTx(tx, projectID, doc); err != nil {
				return fmt.Errorf("save run: document %s: %w", doc.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run: commit: %w", err)
	}
	return nil
}

func insertID(tx *sql.Tx, query string, args ...any) (int64, error) {
	res, err := tx.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func insertDocumentTx(tx *sql.Tx, projectID int64, doc *report.Document) error {
	docID, err := insertID(tx, "INSERT INTO documents (project_id, path) VALUES (?, ?)", projectID, doc.Path)
	if err != nil {
		return err
	}
	for _, d := range doc.Diagnostics {
		if err := insertDiagnosticTx(tx, projectID, &docID, d); err != nil {
			return fmt.Errorf("diagnostic: %w", err)
		}
	}
	for _, c := range doc.Classes {
		if err := insertClassTx(tx, docID, c); err != nil {
			return fmt.Errorf("class %s: %w", c.Signature, err)
		}
	}
	return nil
}

func insertDiagnosticTx(tx *sql.Tx, projectID int64, docID *int64, d report.Diagnostic) error {
	_, err := tx.Exec(
		`INSERT INTO diagnostics (project_id, document_id, severity, message, location_doc, `+spanCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args([]any{projectID, docID, int(d.Severity), d.Message, nullable(d.Location.Document)}, d.Location.Span)...,
	)
	return err
}

func insertClassTx(tx *sql.Tx, docID int64, c report.ClassReport) error {
	classID, err := insertID(tx,
		`INSERT INTO classes (document_id, signature, `+spanCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		args([]any{docID, c.Signature}, c.Span)...,
	)
	if err != nil {
		return err
	}
	for _, f := range c.Fields {
		_, err := tx.Exec(
			`INSERT INTO fields (class_id, name, declared_type, type, `+spanCols+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			args([]any{classID, f.Name, nullable(f.DeclaredType), typeArg(f.Type)}, f.Span)...,
		)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	for _, a := range c.Assignments {
		_, err := tx.Exec(
			`INSERT INTO assignments (class_id, left_text, right_text, `+spanCols+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			args([]any{classID, a.Left, a.Right}, a.Span)...,
		)
		if err != nil {
			return fmt.Errorf("assignment %s: %w", a.Left, err)
		}
	}
	for _, m := range c.Methods {
		if err := insertMethodTx(tx, classID, m, false); err != nil {
			return err
		}
	}
	for _, m := range c.Constructors {
		if err := insertMethodTx(tx, classID, m, true); err != nil {
			return err
		}
	}
	return nil
}

func insertMethodTx(tx *sql.Tx, classID int64, m report.MethodReport, ctor bool) error {
	methodID, err := insertID(tx,
		`INSERT INTO methods (class_id, signature, is_constructor, `+spanCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		args([]any{classID, m.Signature, ctor}, m.Span)...,
	)
	if err != nil {
		return fmt.Errorf("method %s: %w", m.Signature, err)
	}
	for _, p := range m.Parameters {
		_, err := tx.Exec("INSERT INTO parameters (method_id, name, type) VALUES (?, ?, ?)",
			methodID, p.Name, typeArg(p.Type))
		if err != nil {
			return fmt.Errorf("method %s: parameter %s: %w", m.Signature, p.Name, err)
		}
	}
	for _, inv := range m.Invocations {
		invID, err := insertID(tx,
			`INSERT INTO invocations (method_id, callee, resolved, resolved_by, `+spanCols+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			args([]any{methodID, inv.CalleeName, nullable(inv.Resolved), nullable(inv.ResolvedBy)}, inv.Span)...,
		)
		if err != nil {
			return fmt.Errorf("method %s: invocation %s: %w", m.Signature, inv.CalleeName, err)
		}
		for _, a := range inv.Arguments {
			_, err := tx.Exec(
				"INSERT INTO arguments (invocation_id, position, parameter, type, text) VALUES (?, ?, ?, ?, ?)",
				invID, a.Index, strPtrArg(a.Parameter), typeArg(a.Type), a.Text,
			)
			if err != nil {
				return fmt.Errorf("method %s: argument %d: %w", m.Signature, a.Index, err)
			}
		}
	}
	return nil
}
