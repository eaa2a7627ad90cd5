package report

import (
	"cmp"
	"encoding/json"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Aggregator collects project diagnostics and document buffers from
// concurrent workers. It is append-only; Finish produces the read-only Run.
type Aggregator struct {
	mu       sync.Mutex
	id       string
	started  time.Time
	order    []string
	projects map[string]*ProjectReport
	nextSeq  int
}

// NewAggregator starts a new run with a fresh ID.
func NewAggregator() *Aggregator {
	return &Aggregator{
		id:       uuid.NewString(),
		started:  time.Now(),
		projects: make(map[string]*ProjectReport),
	}
}

// ID returns the run ID.
func (a *Aggregator) ID() string { return a.id }

func (a *Aggregator) project(name string) *ProjectReport {
	p, ok := a.projects[name]
	if !ok {
		p = &ProjectReport{Name: name}
		a.projects[name] = p
		a.order = append(a.order, name)
	}
	return p
}

// AddProject registers a project and its compile diagnostics. Projects keep
// the order of their first registration.
func (a *Aggregator) AddProject(name string, diags ...Diagnostic) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := a.project(name)
	p.Diagnostics = append(p.Diagnostics, diags...)
}

// Reserve allocates a sequence number fixing the position of a document
// in the merged result, independent of the order workers finish in.
func (a *Aggregator) Reserve(project, path string) *Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.project(project)
	d := NewDocument(project, path)
	d.seq = a.nextSeq
	d.reserved = true
	a.nextSeq++
	return d
}

// AddDocument hands a completed document buffer to the aggregator. Buffers
// not obtained from Reserve are ordered by arrival.
func (a *Aggregator) AddDocument(d *Document) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !d.reserved {
		d.seq = a.nextSeq
		d.reserved = true
		a.nextSeq++
	}
	p := a.project(d.Project)
	p.Documents = append(p.Documents, d)
}

// Finish merges all buffers and returns the completed run.
func (a *Aggregator) Finish() *Run {
	a.mu.Lock()
	defer a.mu.Unlock()

	projects := make([]ProjectReport, 0, len(a.order))
	for _, name := range a.order {
		p := a.projects[name]
		docs := slices.Clone(p.Documents)
		slices.SortStableFunc(docs, func(x, y *Document) int { return cmp.Compare(x.seq, y.seq) })
		projects = append(projects, ProjectReport{
			Name:        p.Name,
			Diagnostics: slices.Clone(p.Diagnostics),
			Documents:   docs,
		})
	}
	return NewRun(a.id, a.started, time.Now(), projects)
}

// ProjectReport groups the documents and compile diagnostics of a project.
type ProjectReport struct {
	Name        string       `json:"name"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Documents   []*Document  `json:"documents"`
}

// Run is the read-only result of an analysis.
type Run struct {
	id         string
	startedAt  time.Time
	finishedAt time.Time
	projects   []ProjectReport
}

// NewRun assembles a run, e.g. from persisted rows. The run keeps its own
// copy of projects.
func NewRun(id string, started, finished time.Time, projects []ProjectReport) *Run {
	return &Run{id: id, startedAt: started, finishedAt: finished, projects: cloneProjects(projects)}
}

func (r *Run) ID() string { return r.id }

func (r *Run) StartedAt() time.Time { return r.startedAt }

func (r *Run) FinishedAt() time.Time { return r.finishedAt }

// MarshalJSON encodes the run with its stats.
func (r *Run) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string          `json:"id"`
		StartedAt  time.Time       `json:"started_at"`
		FinishedAt time.Time       `json:"finished_at"`
		Stats      Stats           `json:"stats"`
		Projects   []ProjectReport `json:"projects"`
	}{r.id, r.startedAt, r.finishedAt, r.Stats(), r.projects})
}

// Projects returns a copy of the projects in discovery order. Changes to
// the copy do not reach the run.
func (r *Run) Projects() []ProjectReport { return cloneProjects(r.projects) }

func cloneProjects(ps []ProjectReport) []ProjectReport {
	if ps == nil {
		return nil
	}
	out := make([]ProjectReport, len(ps))
	for i, p := range ps {
		docs := make([]*Document, len(p.Documents))
		for j, d := range p.Documents {
			docs[j] = d.clone()
		}
		out[i] = ProjectReport{Name: p.Name, Diagnostics: slices.Clone(p.Diagnostics), Documents: docs}
	}
	return out
}

// Classes yields every class report across all documents of all projects
// in discovery order.
func (r *Run) Classes() iter.Seq[ClassReport] {
	return func(yield func(ClassReport) bool) {
		for _, p := range r.projects {
			for _, d := range p.Documents {
				for _, c := range d.Classes {
					if !yield(c) {
						return
					}
				}
			}
		}
	}
}

// Diagnostics yields, per project, its compile diagnostics followed by the
// diagnostics of each document.
func (r *Run) Diagnostics() iter.Seq[Diagnostic] {
	return func(yield func(Diagnostic) bool) {
		for _, p := range r.projects {
			for _, d := range p.Diagnostics {
				if !yield(d) {
					return
				}
			}
			for _, doc := range p.Documents {
				for _, d := range doc.Diagnostics {
					if !yield(d) {
						return
					}
				}
			}
		}
	}
}

// DiagnosticsAtLeast yields diagnostics with severity >= min.
func (r *Run) DiagnosticsAtLeast(min Severity) iter.Seq[Diagnostic] {
	return func(yield func(Diagnostic) bool) {
		for d := range r.Diagnostics() {
			if d.Severity >= min && !yield(d) {
				return
			}
		}
	}
}

// CallSite is an invocation together with its enclosing declarations.
type CallSite struct {
	Project    string
	Document   string
	Class      string
	Method     string
	Invocation InvocationReport
}

// Invocations yields every invocation of every method and constructor.
func (r *Run) Invocations() iter.Seq[CallSite] {
	return func(yield func(CallSite) bool) {
		for _, p := range r.projects {
			for _, d := range p.Documents {
				for _, c := range d.Classes {
					for _, m := range slices.Concat(c.Methods, c.Constructors) {
						for _, inv := range m.Invocations {
							site := CallSite{
								Project:    p.Name,
								Document:   d.Path,
								Class:      c.Signature,
								Method:     m.Signature,
								Invocation: inv,
							}
							if !yield(site) {
								return
							}
						}
					}
				}
			}
		}
	}
}

// Stats summarises a run.
type Stats struct {
	Projects    int `json:"projects"`
	Documents   int `json:"documents"`
	Classes     int `json:"classes"`
	Methods     int `json:"methods"`
	Invocations int `json:"invocations"`
	Unresolved  int `json:"unresolved"`
	Errors      int `json:"errors"`
	Warnings    int `json:"warnings"`
}

// Stats counts the facts of the run.
func (r *Run) Stats() Stats {
	s := Stats{Projects: len(r.projects)}
	for _, p := range r.projects {
		s.Documents += len(p.Documents)
	}
	for c := range r.Classes() {
		s.Classes++
		s.Methods += len(c.Methods) + len(c.Constructors)
	}
	for site := range r.Invocations() {
		s.Invocations++
		if !site.Invocation.IsResolved() {
			s.Unresolved++
		}
	}
	for d := range r.Diagnostics() {
		switch d.Severity {
		case Error:
			s.Errors++
		case Warning:
			s.Warnings++
		}
	}
	return s
}
