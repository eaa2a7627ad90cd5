package report

import (
	"fmt"
	"slices"

	"github.com/jward/symwalk/internal/syntax"
)

// Document buffers the facts of one document. It is filled by a single
// goroutine and handed to the Aggregator when complete.
type Document struct {
	Project     string        `json:"project"`
	Path        string        `json:"path"`
	Classes     []ClassReport `json:"classes"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty"`

	// seq orders documents when buffers from several workers are merged.
	seq      int
	reserved bool
}

// NewDocument returns an empty buffer for the document at path.
func NewDocument(project, path string) *Document {
	return &Document{Project: project, Path: path}
}

// AddClass appends a finished class report.
func (d *Document) AddClass(c ClassReport) {
	d.Classes = append(d.Classes, c)
}

func (d *Document) clone() *Document {
	c := *d
	c.Diagnostics = slices.Clone(d.Diagnostics)
	if d.Classes != nil {
		c.Classes = make([]ClassReport, len(d.Classes))
		for i, cls := range d.Classes {
			cls.Fields = slices.Clone(cls.Fields)
			cls.Assignments = slices.Clone(cls.Assignments)
			cls.Methods = cloneMethods(cls.Methods)
			cls.Constructors = cloneMethods(cls.Constructors)
			c.Classes[i] = cls
		}
	}
	return &c
}

func cloneMethods(ms []MethodReport) []MethodReport {
	if ms == nil {
		return nil
	}
	out := make([]MethodReport, len(ms))
	for i, m := range ms {
		m.Parameters = slices.Clone(m.Parameters)
		if m.Invocations != nil {
			invs := make([]InvocationReport, len(m.Invocations))
			for j, inv := range m.Invocations {
				if inv.Arguments != nil {
					args := make([]ArgumentFact, len(inv.Arguments))
					for k, a := range inv.Arguments {
						if a.Parameter != nil {
							a.Parameter = StringPtr(*a.Parameter)
						}
						args[k] = a
					}
					inv.Arguments = args
				}
				invs[j] = inv
			}
			m.Invocations = invs
		}
		out[i] = m
	}
	return out
}

// Reportf appends a diagnostic located at span.
func (d *Document) Reportf(sev Severity, span syntax.Span, format string, args ...any) {
	d.Diagnostics = append(d.Diagnostics, Diagnostic{
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Location: Location{Project: d.Project, Document: d.Path, Span: span},
	})
}

// Sink receives diagnostics. *Document implements it.
type Sink interface {
	Reportf(sev Severity, span syntax.Span, format string, args ...any)
}

var _ Sink = (*Document)(nil)
