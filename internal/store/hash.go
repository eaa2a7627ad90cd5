package store

import (
	"crypto/sha256"
	"fmt"
	"slices"

	"github.com/jward/symwalk/internal/report"
)

// Fingerprint computes a deterministic hash of what a run found: class,
// field, method and invocation facts plus diagnostic messages. Locations
// and run identity do not affect it, so two runs over unchanged sources
// share a fingerprint.
func Fingerprint(run *report.Run) string {
	h := sha256.New()
	for _, p := range run.Projects() {
		fmt.Fprintf(h, "project %q\n", p.Name)
		for _, d := range p.Documents {
			fmt.Fprintf(h, "document %q\n", d.Path)
			for _, c := range d.Classes {
				fmt.Fprintf(h, "class %q\n", c.Signature)
				for _, f := range c.Fields {
					fmt.Fprintf(h, "field %q %q %q\n", f.Name, f.DeclaredType, f.Type.Name)
				}
				for _, a := range c.Assignments {
					fmt.Fprintf(h, "assign %q %q\n", a.Left, a.Right)
				}
				for _, m := range slices.Concat(c.Methods, c.Constructors) {
					fmt.Fprintf(h, "method %q\n", m.Signature)
					for _, param := range m.Parameters {
						fmt.Fprintf(h, "param %q %q\n", param.Name, param.Type.Name)
					}
					for _, inv := range m.Invocations {
						fmt.Fprintf(h, "call %q %q %q\n", inv.CalleeName, inv.Resolved, inv.ResolvedBy)
						for _, arg := range inv.Arguments {
							var name string
							if arg.Parameter != nil {
								name = *arg.Parameter
							}
							fmt.Fprintf(h, "arg %d %q %q %q\n", arg.Index, name, arg.Type.Name, arg.Text)
						}
					}
				}
			}
		}
	}

	// Diagnostics sorted for determinism.
	var diags []string
	for d := range run.Diagnostics() {
		diags = append(diags, fmt.Sprintf("%s %q %q", d.Severity, d.Location.Document, d.Message))
	}
	slices.Sort(diags)
	for _, d := range diags {
		fmt.Fprintf(h, "diag %s\n", d)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
