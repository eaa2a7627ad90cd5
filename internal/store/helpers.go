package store

import (
	"database/sql"

	"github.com/jward/symwalk/internal/oracle"
	"github.com/jward/symwalk/internal/syntax"
)

// spanCols is the column list of a stored span.
const spanCols = `file, start_line, start_col, end_line, end_col`

// spanArgs returns the values for spanCols.
func spanArgs(s syntax.Span) []any {
	return []any{s.File, s.StartLine, s.StartCol, s.EndLine, s.EndCol}
}

// spanDest returns scan destinations for spanCols.
func spanDest(s *syntax.Span) []any {
	return []any{&s.File, &s.StartLine, &s.StartCol, &s.EndLine, &s.EndCol}
}

// typeArg stores an unresolved type as NULL.
func typeArg(t oracle.TypeRef) any {
	if !t.Resolved() {
		return nil
	}
	return t.Name
}

func typeRef(s sql.NullString) oracle.TypeRef {
	if !s.Valid {
		return oracle.Unresolved
	}
	return oracle.TypeNamed(s.String)
}

// nullable stores an empty string as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strPtrArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// args concatenates leading values with span values.
func args(vals []any, span syntax.Span) []any {
	return append(vals, spanArgs(span)...)
}

// dest concatenates leading scan destinations with span destinations.
func dest(ptrs []any, span *syntax.Span) []any {
	return append(ptrs, spanDest(span)...)
}

// spanColsOf qualifies spanCols with a table alias.
func spanColsOf(alias string) string {
	return alias + ".file, " + alias + ".start_line, " + alias + ".start_col, " +
		alias + ".end_line, " + alias + ".end_col"
}
