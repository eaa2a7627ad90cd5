// Package graphdb exports the call graph of a run into Neo4j.
//
// Graph shape:
//
//	(:SymwalkClass)-[:IN_PROJECT]->(:SymwalkProject)
//	(:SymwalkClass)-[:DECLARES]->(:SymwalkMethod)
//	(:SymwalkMethod)-[:CALLS {count, resolved_by, site}]->(:SymwalkMethod)
//
// Callees outside the analysed sources become SymwalkMethod nodes with
// external = true.
package graphdb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/jward/symwalk/internal/report"
)

// Loader loads runs into a Neo4j database using batch UNWIND queries.
type Loader struct {
	driver neo4j.DriverWithContext
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// NewLoader connects to Neo4j and returns a ready-to-use loader.
func NewLoader(ctx context.Context, uri, user, password string, opts ...Option) (*Loader, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("graphdb: create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graphdb: connect %s: %w", uri, err)
	}
	l := &Loader{driver: driver, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Close releases the underlying driver resources.
func (l *Loader) Close(ctx context.Context) error {
	return l.driver.Close(ctx)
}

func (l *Loader) runCypher(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, l.driver, cypher, params, neo4j.EagerResultTransformer)
	return err
}

func (l *Loader) runAll(ctx context.Context, queries []string) error {
	for _, q := range queries {
		if err := l.runCypher(ctx, q, nil); err != nil {
			return fmt.Errorf("graphdb: %s: %w", q, err)
		}
	}
	return nil
}

// Clean removes every node and relationship previously loaded.
func (l *Loader) Clean(ctx context.Context) error {
	l.logger.Info("cleaning graph")
	return l.runAll(ctx, cleanQueries)
}

var cleanQueries = []string{
	"MATCH ()-[r:CALLS]->() DELETE r",
	"MATCH ()-[r:DECLARES]->() DELETE r",
	"MATCH ()-[r:IN_PROJECT]->() DELETE r",
	"MATCH (n:SymwalkMethod) DETACH DELETE n",
	"MATCH (n:SymwalkClass) DETACH DELETE n",
	"MATCH (n:SymwalkProject) DETACH DELETE n",
}

// CreateIndexes ensures the lookup indexes exist.
func (l *Loader) CreateIndexes(ctx context.Context) error {
	l.logger.Info("creating indexes")
	return l.runAll(ctx, indexQueries)
}

var indexQueries = []string{
	"CREATE INDEX symwalk_project_name IF NOT EXISTS FOR (n:SymwalkProject) ON (n.name)",
	"CREATE INDEX symwalk_class_signature IF NOT EXISTS FOR (n:SymwalkClass) ON (n.signature)",
	"CREATE INDEX symwalk_method_signature IF NOT EXISTS FOR (n:SymwalkMethod) ON (n.signature)",
}

// batch is one UNWIND statement and the rows it consumes.
type batch struct {
	name   string
	cypher string
	rows   []map[string]any
}

// batches returns the statements loading run in dependency order.
func batches(run *report.Run) []batch {
	return []batch{
		{"projects", loadProjects, projectRows(run)},
		{"classes", loadClasses, classRows(run)},
		{"methods", loadMethods, methodRows(run)},
		{"calls", loadCalls, callRows(run)},
	}
}

const (
	loadProjects = `UNWIND $batch AS row
		MERGE (p:SymwalkProject {name: row.name})
		SET p.run_id = row.run, p.documents = row.documents`

	loadClasses = `UNWIND $batch AS row
		MERGE (c:SymwalkClass {signature: row.signature})
		SET c.project = row.project, c.file = row.file, c.line = row.line,
		    c.field_count = row.fields, c.run_id = row.run
		WITH c, row
		MATCH (p:SymwalkProject {name: row.project})
		MERGE (c)-[:IN_PROJECT]->(p)`

	loadMethods = `UNWIND $batch AS row
		MERGE (m:SymwalkMethod {signature: row.signature})
		SET m.class = row.class, m.file = row.file, m.line = row.line,
		    m.param_count = row.params, m.constructor = row.constructor,
		    m.external = false, m.run_id = row.run
		WITH m, row
		MATCH (c:SymwalkClass {signature: row.class})
		MERGE (c)-[:DECLARES]->(m)`

	loadCalls = `UNWIND $batch AS row
		MERGE (caller:SymwalkMethod {signature: row.caller})
		MERGE (callee:SymwalkMethod {signature: row.callee})
		ON CREATE SET callee.external = true
		MERGE (caller)-[r:CALLS]->(callee)
		SET r.count = row.count, r.resolved_by = row.resolved_by,
		    r.site = row.site, r.run_id = row.run`
)

// LoadRun upserts the projects, classes, methods and call edges of run.
func (l *Loader) LoadRun(ctx context.Context, run *report.Run) error {
	for _, b := range batches(run) {
		if len(b.rows) == 0 {
			continue
		}
		l.logger.Info("loading batch", slog.String("kind", b.name), slog.Int("rows", len(b.rows)))
		if err := l.runCypher(ctx, b.cypher, map[string]any{"batch": b.rows}); err != nil {
			return fmt.Errorf("graphdb: load %s: %w", b.name, err)
		}
	}
	return nil
}
