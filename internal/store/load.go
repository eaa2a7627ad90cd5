package store

import (
	"database/sql"
	"fmt"

	"github.com/jward/symwalk/internal/report"
)

// LoadRun rebuilds a saved run. Symbols are not persisted, so the loaded
// reports carry display strings only.
func (s *Store) LoadRun(id string) (*report.Run, error) {
	summary, err := s.RunByID(id)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, fmt.Errorf("load run %s: %w", id, ErrNotFound)
	}
	l := &runLoader{
		db:      s.db,
		runID:   id,
		docs:    make(map[int64]*report.Document),
		classes: make(map[int64]*loadedClass),
		methods: make(map[int64]*loadedMethod),
		invs:    make(map[int64]*loadedInvocation),
	}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"projects", l.projects},
		{"documents", l.documents},
		{"diagnostics", l.diagnostics},
		{"classes", l.loadClasses},
		{"fields", l.fields},
		{"assignments", l.assignments},
		{"methods", l.loadMethods},
		{"parameters", l.parameters},
		{"invocations", l.invocations},
		{"arguments", l.arguments},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return nil, fmt.Errorf("load run %s: %s: %w", id, step.name, err)
		}
	}
	return report.NewRun(id, summary.StartedAt, summary.FinishedAt, l.assemble()), nil
}

type loadedClass struct {
	doc int64
	rep report.ClassReport
}

type loadedMethod struct {
	class int64
	ctor  bool
	rep   report.MethodReport
}

type loadedInvocation struct {
	method int64
	rep    report.InvocationReport
}

// runLoader accumulates the rows of one run keyed by row ID. The order
// slices keep ORDER BY id, which is source order.
type runLoader struct {
	db    *sql.DB
	runID string

	projectIDs  []int64
	projectRows map[int64]*report.ProjectReport
	docs        map[int64]*report.Document
	docOrder    []int64
	docProject  map[int64]int64
	classes     map[int64]*loadedClass
	classOrder  []int64
	methods     map[int64]*loadedMethod
	methodOrder []int64
	invs        map[int64]*loadedInvocation
	invOrder    []int64
}

// each runs query with the run ID and calls scan for every row.
func (l *runLoader) each(query string, scan func(*sql.Rows) error) error {
	rows, err := l.db.Query(query, l.runID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

const (
	fromDocuments = ` FROM documents d JOIN projects p ON p.id = d.project_id`
	fromClasses   = ` FROM classes c JOIN documents d ON d.id = c.document_id JOIN projects p ON p.id = d.project_id`
	fromMethods   = ` FROM methods m JOIN classes c ON c.id = m.class_id JOIN documents d ON d.id = c.document_id JOIN projects p ON p.id = d.project_id`
	fromInvs      = ` FROM invocations i JOIN methods m ON m.id = i.method_id JOIN classes c ON c.id = m.class_id JOIN documents d ON d.id = c.document_id JOIN projects p ON p.id = d.project_id`
)

func (l *runLoader) projects() error {
	l.projectRows = make(map[int64]*report.ProjectReport)
	return l.each("SELECT id, name FROM projects WHERE run_id = ? ORDER BY id", func(rows *sql.Rows) error {
		var id int64
		p := &report.ProjectReport{}
		if err := rows.Scan(&id, &p.Name); err != nil {
			return err
		}
		l.projectIDs = append(l.projectIDs, id)
		l.projectRows[id] = p
		return nil
	})
}

func (l *runLoader) documents() error {
	l.docProject = make(map[int64]int64)
	return l.each("SELECT d.id, d.project_id, d.path"+fromDocuments+" WHERE p.run_id = ? ORDER BY d.id", func(rows *sql.Rows) error {
		var id, projectID int64
		var path string
		if err := rows.Scan(&id, &projectID, &path); err != nil {
			return err
		}
		p, ok := l.projectRows[projectID]
		if !ok {
			return fmt.Errorf("document %d: unknown project %d", id, projectID)
		}
		l.docs[id] = report.NewDocument(p.Name, path)
		l.docProject[id] = projectID
		l.docOrder = append(l.docOrder, id)
		return nil
	})
}

func (l *runLoader) diagnostics() error {
	query := `SELECT g.project_id, g.document_id, g.severity, g.message, g.location_doc, ` + spanColsOf("g") + `
		FROM diagnostics g JOIN projects p ON p.id = g.project_id WHERE p.run_id = ? ORDER BY g.id`
	return l.each(query, func(rows *sql.Rows) error {
		var (
			projectID int64
			docID     sql.NullInt64
			sev       int
			doc       sql.NullString
			d         report.Diagnostic
		)
		if err := rows.Scan(dest([]any{&projectID, &docID, &sev, &d.Message, &doc}, &d.Location.Span)...); err != nil {
			return err
		}
		p, ok := l.projectRows[projectID]
		if !ok {
			return fmt.Errorf("diagnostic: unknown project %d", projectID)
		}
		d.Severity = report.Severity(sev)
		d.Location.Project = p.Name
		d.Location.Document = doc.String
		if !docID.Valid {
			p.Diagnostics = append(p.Diagnostics, d)
			return nil
		}
		owner, ok := l.docs[docID.Int64]
		if !ok {
			return fmt.Errorf("diagnostic: unknown document %d", docID.Int64)
		}
		owner.Diagnostics = append(owner.Diagnostics, d)
		return nil
	})
}

func (l *runLoader) loadClasses() error {
	query := "SELECT c.id, c.document_id, c.signature, " + spanColsOf("c") + fromClasses + " WHERE p.run_id = ? ORDER BY c.id"
	return l.each(query, func(rows *sql.Rows) error {
		var id int64
		c := &loadedClass{}
		if err := rows.Scan(dest([]any{&id, &c.doc, &c.rep.Signature}, &c.rep.Span)...); err != nil {
			return err
		}
		l.classes[id] = c
		l.classOrder = append(l.classOrder, id)
		return nil
	})
}

func (l *runLoader) class(id int64) (*loadedClass, error) {
	c, ok := l.classes[id]
	if !ok {
		return nil, fmt.Errorf("unknown class %d", id)
	}
	return c, nil
}

func (l *runLoader) fields() error {
	query := "SELECT f.class_id, f.name, f.declared_type, f.type, " + spanColsOf("f") +
		" FROM fields f JOIN classes c ON c.id = f.class_id JOIN documents d ON d.id = c.document_id" +
		" JOIN projects p ON p.id = d.project_id WHERE p.run_id = ? ORDER BY f.id"
	return l.each(query, func(rows *sql.Rows) error {
		var (
			classID  int64
			declared sql.NullString
			typ      sql.NullString
			f        report.FieldFact
		)
		if err := rows.Scan(dest([]any{&classID, &f.Name, &declared, &typ}, &f.Span)...); err != nil {
			return err
		}
		c, err := l.class(classID)
		if err != nil {
			return err
		}
		f.DeclaredType = declared.String
		f.Type = typeRef(typ)
		c.rep.Fields = append(c.rep.Fields, f)
		return nil
	})
}

func (l *runLoader) assignments() error {
	query := "SELECT a.class_id, a.left_text, a.right_text, " + spanColsOf("a") +
		" FROM assignments a JOIN classes c ON c.id = a.class_id JOIN documents d ON d.id = c.document_id" +
		" JOIN projects p ON p.id = d.project_id WHERE p.run_id = ? ORDER BY a.id"
	return l.each(query, func(rows *sql.Rows) error {
		var classID int64
		var a report.AssignmentFact
		if err := rows.Scan(dest([]any{&classID, &a.Left, &a.Right}, &a.Span)...); err != nil {
			return err
		}
		c, err := l.class(classID)
		if err != nil {
			return err
		}
		c.rep.Assignments = append(c.rep.Assignments, a)
		return nil
	})
}

func (l *runLoader) loadMethods() error {
	query := "SELECT m.id, m.class_id, m.signature, m.is_constructor, " + spanColsOf("m") + fromMethods +
		" WHERE p.run_id = ? ORDER BY m.id"
	return l.each(query, func(rows *sql.Rows) error {
		var id int64
		m := &loadedMethod{}
		if err := rows.Scan(dest([]any{&id, &m.class, &m.rep.Signature, &m.ctor}, &m.rep.Span)...); err != nil {
			return err
		}
		l.methods[id] = m
		l.methodOrder = append(l.methodOrder, id)
		return nil
	})
}

func (l *runLoader) parameters() error {
	query := "SELECT pa.method_id, pa.name, pa.type FROM parameters pa JOIN methods m ON m.id = pa.method_id" +
		" JOIN classes c ON c.id = m.class_id JOIN documents d ON d.id = c.document_id" +
		" JOIN projects p ON p.id = d.project_id WHERE p.run_id = ? ORDER BY pa.id"
	return l.each(query, func(rows *sql.Rows) error {
		var methodID int64
		var typ sql.NullString
		var param report.ParameterFact
		if err := rows.Scan(&methodID, &param.Name, &typ); err != nil {
			return err
		}
		m, ok := l.methods[methodID]
		if !ok {
			return fmt.Errorf("parameter: unknown method %d", methodID)
		}
		param.Type = typeRef(typ)
		m.rep.Parameters = append(m.rep.Parameters, param)
		return nil
	})
}

func (l *runLoader) invocations() error {
	query := "SELECT i.id, i.method_id, i.callee, COALESCE(i.resolved, ''), COALESCE(i.resolved_by, ''), " +
		spanColsOf("i") + fromInvs + " WHERE p.run_id = ? ORDER BY i.id"
	return l.each(query, func(rows *sql.Rows) error {
		var id int64
		inv := &loadedInvocation{}
		ptrs := []any{&id, &inv.method, &inv.rep.CalleeName, &inv.rep.Resolved, &inv.rep.ResolvedBy}
		if err := rows.Scan(dest(ptrs, &inv.rep.Span)...); err != nil {
			return err
		}
		l.invs[id] = inv
		l.invOrder = append(l.invOrder, id)
		return nil
	})
}

func (l *runLoader) arguments() error {
	query := "SELECT ar.invocation_id, ar.position, ar.parameter, ar.type, ar.text" +
		" FROM arguments ar JOIN invocations i ON i.id = ar.invocation_id JOIN methods m ON m.id = i.method_id" +
		" JOIN classes c ON c.id = m.class_id JOIN documents d ON d.id = c.document_id" +
		" JOIN projects p ON p.id = d.project_id WHERE p.run_id = ? ORDER BY ar.id"
	return l.each(query, func(rows *sql.Rows) error {
		var (
			invID int64
			param sql.NullString
			typ   sql.NullString
			a     report.ArgumentFact
		)
		if err := rows.Scan(&invID, &a.Index, &param, &typ, &a.Text); err != nil {
			return err
		}
		inv, ok := l.invs[invID]
		if !ok {
			return fmt.Errorf("argument: unknown invocation %d", invID)
		}
		if param.Valid {
			a.Parameter = report.StringPtr(param.String)
		}
		a.Type = typeRef(typ)
		inv.rep.Arguments = append(inv.rep.Arguments, a)
		return nil
	})
}

// assemble nests the loaded rows bottom-up.
func (l *runLoader) assemble() []report.ProjectReport {
	for _, id := range l.invOrder {
		inv := l.invs[id]
		if m, ok := l.methods[inv.method]; ok {
			m.rep.Invocations = append(m.rep.Invocations, inv.rep)
		}
	}
	for _, id := range l.methodOrder {
		m := l.methods[id]
		c, ok := l.classes[m.class]
		if !ok {
			continue
		}
		if m.ctor {
			c.rep.Constructors = append(c.rep.Constructors, m.rep)
		} else {
			c.rep.Methods = append(c.rep.Methods, m.rep)
		}
	}
	for _, id := range l.classOrder {
		c := l.classes[id]
		if doc, ok := l.docs[c.doc]; ok {
			doc.AddClass(c.rep)
		}
	}
	for _, id := range l.docOrder {
		p := l.projectRows[l.docProject[id]]
		p.Documents = append(p.Documents, l.docs[id])
	}
	out := make([]report.ProjectReport, 0, len(l.projectIDs))
	for _, id := range l.projectIDs {
		out = append(out, *l.projectRows[id])
	}
	return out
}
