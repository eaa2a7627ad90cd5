package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jward/symwalk/internal/report"
)

const unresolved = "<unresolved>"

// formatRunText writes the facts of run as an indented outline.
func formatRunText(w io.Writer, run *report.Run) {
	fmt.Fprintf(w, "Run %s\n", run.ID())
	for _, p := range run.Projects() {
		fmt.Fprintf(w, "Project %s\n", p.Name)
		for _, d := range p.Diagnostics {
			fmt.Fprintf(w, "  %s\n", d)
		}
		for _, doc := range p.Documents {
			fmt.Fprintf(w, "  Document %s\n", doc.Path)
			for _, c := range doc.Classes {
				formatClassText(w, c)
			}
			for _, d := range doc.Diagnostics {
				fmt.Fprintf(w, "    %s\n", d)
			}
		}
	}
	st := run.Stats()
	fmt.Fprintf(w, "\n%d classes, %d methods, %d invocations (%d unresolved), %d errors, %d warnings\n",
		st.Classes, st.Methods, st.Invocations, st.Unresolved, st.Errors, st.Warnings)
}

func formatClassText(w io.Writer, c report.ClassReport) {
	fmt.Fprintf(w, "    %s\n", c.Signature)
	for _, f := range c.Fields {
		fmt.Fprintf(w, "      field %s : %s\n", f.Name, f.Type)
	}
	for _, a := range c.Assignments {
		fmt.Fprintf(w, "      Left: %s, Right: %s\n", a.Left, a.Right)
	}
	for _, m := range c.Methods {
		formatMethodText(w, "", m)
	}
	for _, m := range c.Constructors {
		formatMethodText(w, "constructor ", m)
	}
}

func formatMethodText(w io.Writer, prefix string, m report.MethodReport) {
	fmt.Fprintf(w, "      %s%s\n", prefix, m.Signature)
	for _, p := range m.Parameters {
		fmt.Fprintf(w, "        param Name : %s, type : %s\n", p.Name, p.Type)
	}
	for _, inv := range m.Invocations {
		if inv.IsResolved() {
			fmt.Fprintf(w, "        %s => %s [%s]\n", inv.CalleeName, inv.Resolved, inv.ResolvedBy)
		} else {
			fmt.Fprintf(w, "        %s => %s\n", inv.CalleeName, unresolved)
		}
		for _, arg := range inv.Arguments {
			name := unresolved
			if arg.Parameter != nil {
				name = *arg.Parameter
			}
			fmt.Fprintf(w, "          argName: %s, argType: %s, Value:%s\n", name, arg.Type, arg.Text)
		}
	}
}

// formatRunsText formats CLIRun results as aligned columns.
func formatRunsText(w io.Writer, runs []CLIRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDOCUMENTS\tCLASSES\tINVOCATIONS\tUNRESOLVED\tERRORS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Documents, r.Classes, r.Invocations, r.Unresolved, r.Errors)
	}
	tw.Flush()
}

// formatCallSitesText formats CLICallSite results as aligned columns.
func formatCallSitesText(w io.Writer, sites []CLICallSite) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CALLER\tCALLEE\tRESOLVED\tFILE\tLINE\tCOL")
	for _, s := range sites {
		resolved := s.Resolved
		if resolved == "" {
			resolved = unresolved
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", s.Method, s.Callee, resolved, s.Document, s.Line, s.Col)
	}
	tw.Flush()
}

// formatDiagnosticsText formats CLIDiagnostic results as aligned columns.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tPROJECT\tDOCUMENT\tLINE\tMESSAGE")
	for _, d := range diags {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", d.Severity, d.Project, d.Document, d.Line, d.Message)
	}
	tw.Flush()
}

func formatExportText(w io.Writer, e CLIExport) {
	fmt.Fprintf(w, "Exported run %s to %s: %d classes, %d methods, %d resolved calls\n",
		e.RunID, e.URI, e.Classes, e.Methods, e.Calls)
}

// outputResult writes result in the selected format.
func (c *cli) outputResult(result CLIResult) error {
	if c.format == "text" {
		return c.outputResultText(result)
	}
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputResultText dispatches to the text formatter for the result type.
func (c *cli) outputResultText(result CLIResult) error {
	w := c.stdout
	switch v := result.Results.(type) {
	case *report.Run:
		formatRunText(w, v)
	case []CLIRun:
		formatRunsText(w, v)
	case []CLICallSite:
		formatCallSitesText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case CLIExport:
		formatExportText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as
// a CLIResult envelope. In text mode it goes to stderr.
func (c *cli) outputError(command string, err error) error {
	c.errorHandled = true
	if c.format == "text" {
		fmt.Fprintf(c.stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}
