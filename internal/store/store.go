// Package store persists analysis runs in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a run ID matches no stored run.
var ErrNotFound = errors.New("run not found")

// Store is the SQLite data access layer for saved runs.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Rows of every table below runs are deleted with their run. Insertion
// order within a run is source order, so ORDER BY id restores it.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
  id              TEXT PRIMARY KEY,
  started_at      TIMESTAMP NOT NULL,
  finished_at     TIMESTAMP NOT NULL,
  fingerprint     TEXT NOT NULL,
  documents       INTEGER NOT NULL DEFAULT 0,
  classes         INTEGER NOT NULL DEFAULT 0,
  invocations     INTEGER NOT NULL DEFAULT 0,
  unresolved      INTEGER NOT NULL DEFAULT 0,
  errors          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS projects (
  id              INTEGER PRIMARY KEY,
  run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  name            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
  id              INTEGER PRIMARY KEY,
  project_id      INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  path            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS classes (
  id              INTEGER PRIMARY KEY,
  document_id     INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
  signature       TEXT NOT NULL,
  file            TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE TABLE IF NOT EXISTS fields (
  id              INTEGER PRIMARY KEY,
  class_id        INTEGER NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
  name            TEXT NOT NULL,
  declared_type   TEXT,
  type            TEXT,
  file            TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE TABLE IF NOT EXISTS assignments (
  id              INTEGER PRIMARY KEY,
  class_id        INTEGER NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
  left_text       TEXT NOT NULL,
  right_text      TEXT NOT NULL,
  file            TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE TABLE IF NOT EXISTS methods (
  id              INTEGER PRIMARY KEY,
  class_id        INTEGER NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
  signature       TEXT NOT NULL,
  is_constructor  INTEGER NOT NULL DEFAULT 0,
  file            TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE TABLE IF NOT EXISTS parameters (
  id              INTEGER PRIMARY KEY,
  method_id       INTEGER NOT NULL REFERENCES methods(id) ON DELETE CASCADE,
  name            TEXT NOT NULL,
  type            TEXT
);

CREATE TABLE IF NOT EXISTS invocations (
  id              INTEGER PRIMARY KEY,
  method_id       INTEGER NOT NULL REFERENCES methods(id) ON DELETE CASCADE,
  callee          TEXT NOT NULL,
  resolved        TEXT,
  resolved_by     TEXT,
  file            TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE TABLE IF NOT EXISTS arguments (
  id              INTEGER PRIMARY KEY,
  invocation_id   INTEGER NOT NULL REFERENCES invocations(id) ON DELETE CASCADE,
  position        INTEGER NOT NULL,
  parameter       TEXT,
  type            TEXT,
  text            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS diagnostics (
  id              INTEGER PRIMARY KEY,
  project_id      INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  document_id     INTEGER REFERENCES documents(id) ON DELETE CASCADE,
  severity        INTEGER NOT NULL,
  message         TEXT NOT NULL,
  location_doc    TEXT,
  file            TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_projects_run ON projects(run_id);
CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id);
CREATE INDEX IF NOT EXISTS idx_classes_document ON classes(document_id);
CREATE INDEX IF NOT EXISTS idx_fields_class ON fields(class_id);
CREATE INDEX IF NOT EXISTS idx_assignments_class ON assignments(class_id);
CREATE INDEX IF NOT EXISTS idx_methods_class ON methods(class_id);
CREATE INDEX IF NOT EXISTS idx_parameters_method ON parameters(method_id);
CREATE INDEX IF NOT EXISTS idx_invocations_method ON invocations(method_id);
CREATE INDEX IF NOT EXISTS idx_invocations_callee ON invocations(callee);
CREATE INDEX IF NOT EXISTS idx_invocations_resolved ON invocations(resolved);
CREATE INDEX IF NOT EXISTS idx_arguments_invocation ON arguments(invocation_id);
CREATE INDEX IF NOT EXISTS idx_diagnostics_project ON diagnostics(project_id);
CREATE INDEX IF NOT EXISTS idx_diagnostics_severity ON diagnostics(severity);
`
