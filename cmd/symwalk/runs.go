package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/symwalk"
	"github.com/jward/symwalk/internal/graphdb"
	"github.com/jward/symwalk/internal/report"
)

// latestRun is accepted wherever a run ID is expected.
const latestRun = "latest"

// resolveRunID maps "latest" to the most recent saved run.
func resolveRunID(q *symwalk.QueryBuilder, id string) (string, error) {
	if id != latestRun {
		return id, nil
	}
	r, err := q.Latest()
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", fmt.Errorf("no saved runs")
	}
	return r.ID, nil
}

// withEngine opens the database, runs fn and reports its error under
// command.
func (c *cli) withEngine(command string, fn func(*symwalk.Engine) (any, error)) error {
	e, err := c.openEngine()
	if err != nil {
		return c.outputError(command, err)
	}
	defer e.Close()

	results, err := fn(e)
	if err != nil {
		return c.outputError(command, err)
	}
	return c.outputResult(CLIResult{Command: command, Results: results})
}

func (c *cli) runsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List saved runs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine("runs", func(e *symwalk.Engine) (any, error) {
				runs, err := e.Query().Runs()
				if err != nil {
					return nil, err
				}
				out := make([]CLIRun, 0, len(runs))
				for _, r := range runs {
					out = append(out, runToCLI(r))
				}
				return out, nil
			})
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id|latest>",
		Short: "Print the full report of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine("show", func(e *symwalk.Engine) (any, error) {
				q := e.Query()
				id, err := resolveRunID(q, args[0])
				if err != nil {
					return nil, err
				}
				return q.Run(id)
			})
		},
	}
}

func (c *cli) callersCmd() *cobra.Command {
	var unresolvedOnly bool
	cmd := &cobra.Command{
		Use:   "callers <run-id|latest> [callee]",
		Short: "List call sites by callee name or resolved signature",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine("callers", func(e *symwalk.Engine) (any, error) {
				q := e.Query()
				id, err := resolveRunID(q, args[0])
				if err != nil {
					return nil, err
				}
				var sites []*symwalk.CallSite
				switch {
				case unresolvedOnly:
					sites, err = q.Unresolved(id)
				case len(args) == 2:
					sites, err = q.Callers(id, args[1])
				default:
					return nil, fmt.Errorf("callers: a callee or --unresolved is required")
				}
				if err != nil {
					return nil, err
				}
				out := make([]CLICallSite, 0, len(sites))
				for _, s := range sites {
					out = append(out, callSiteToCLI(s))
				}
				return out, nil
			})
		},
	}
	cmd.Flags().BoolVar(&unresolvedOnly, "unresolved", false, "list call sites no strategy resolved")
	return cmd
}

func (c *cli) diagnosticsCmd() *cobra.Command {
	var min string
	cmd := &cobra.Command{
		Use:   "diagnostics <run-id|latest>",
		Short: "List the diagnostics of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine("diagnostics", func(e *symwalk.Engine) (any, error) {
				sev, err := report.ParseSeverity(min)
				if err != nil {
					return nil, err
				}
				q := e.Query()
				id, err := resolveRunID(q, args[0])
				if err != nil {
					return nil, err
				}
				diags, err := q.Diagnostics(id, sev)
				if err != nil {
					return nil, err
				}
				out := make([]CLIDiagnostic, 0, len(diags))
				for _, d := range diags {
					out = append(out, diagnosticToCLI(d))
				}
				return out, nil
			})
		},
	}
	cmd.Flags().StringVar(&min, "min", "info", "minimum severity: info|warning|error")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine("delete", func(e *symwalk.Engine) (any, error) {
				if err := e.Query().Delete(args[0]); err != nil {
					return nil, err
				}
				fmt.Fprintf(c.stderr, "Deleted run %s\n", args[0])
				return nil, nil
			})
		},
	}
}

type exportFlags struct {
	uri      string
	user     string
	password string
	clean    bool
}

func (c *cli) exportCmd() *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export <run-id|latest>",
		Short: "Export the call graph of a saved run to Neo4j",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine("export", func(e *symwalk.Engine) (any, error) {
				q := e.Query()
				id, err := resolveRunID(q, args[0])
				if err != nil {
					return nil, err
				}
				run, err := q.Run(id)
				if err != nil {
					return nil, err
				}

				ctx := cmd.Context()
				loader, err := graphdb.NewLoader(ctx, f.uri, f.user, f.password, graphdb.WithLogger(c.logger))
				if err != nil {
					return nil, err
				}
				defer loader.Close(ctx)

				if f.clean {
					if err := loader.Clean(ctx); err != nil {
						return nil, err
					}
				}
				if err := loader.CreateIndexes(ctx); err != nil {
					return nil, err
				}
				if err := loader.LoadRun(ctx, run); err != nil {
					return nil, err
				}
				return exportSummary(run, f.uri), nil
			})
		},
	}
	cmd.Flags().StringVar(&f.uri, "neo4j-uri", "bolt://localhost:7687", "Neo4j connection URI")
	cmd.Flags().StringVar(&f.user, "neo4j-user", "neo4j", "Neo4j user")
	cmd.Flags().StringVar(&f.password, "neo4j-pass", os.Getenv("NEO4J_PASSWORD"), "Neo4j password (default: $NEO4J_PASSWORD)")
	cmd.Flags().BoolVar(&f.clean, "clean", false, "remove previously exported symwalk nodes first")
	return cmd
}

func exportSummary(run *report.Run, uri string) CLIExport {
	st := run.Stats()
	return CLIExport{
		RunID:   run.ID(),
		URI:     uri,
		Classes: st.Classes,
		Methods: st.Methods,
		Calls:   st.Invocations - st.Unresolved,
	}
}
