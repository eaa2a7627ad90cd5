package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/risor-io/risor/object"

	"github.com/jward/symwalk/internal/store"
)

// makeRunsFn creates the "runs" host function.
//
// runs() → [{id, started_at, fingerprint, classes, invocations, unresolved, errors}]
func makeRunsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("runs", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("runs", 0, len(args))
		}
		runs, err := s.Runs()
		if err != nil {
			return object.Errorf("runs: %v", err)
		}
		results := make([]object.Object, 0, len(runs))
		for _, r := range runs {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":          object.NewString(r.ID),
				"started_at":  object.NewString(r.StartedAt.Format(time.RFC3339)),
				"fingerprint": object.NewString(r.Fingerprint),
				"classes":     object.NewInt(int64(r.Classes)),
				"invocations": object.NewInt(int64(r.Invocations)),
				"unresolved":  object.NewInt(int64(r.Unresolved)),
				"errors":      object.NewInt(int64(r.Errors)),
			}))
		}
		return object.NewList(results)
	})
}

// makeDBQueryFn creates the "db_query" host function.
//
// db_query(sql, args...) → [map[column]value]
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		// Only allow SELECT statements.
		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		var queryArgs []any
		for _, arg := range args[1:] {
			switch v := arg.(type) {
			case *object.Int:
				queryArgs = append(queryArgs, v.Value())
			case *object.Float:
				queryArgs = append(queryArgs, v.Value())
			case *object.String:
				queryArgs = append(queryArgs, v.Value())
			case *object.Bool:
				queryArgs = append(queryArgs, v.Value())
			case *object.NilType:
				queryArgs = append(queryArgs, nil)
			default:
				queryArgs = append(queryArgs, fmt.Sprintf("%v", arg))
			}
		}

		// A dedicated connection with query_only set rejects writes in every
		// statement of sqlStr, not only the first.
		conn, err := s.DB().Conn(ctx)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		defer func() {
			_, _ = conn.ExecContext(context.Background(), "PRAGMA query_only = OFF")
			conn.Close()
		}()
		if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			return object.Errorf("db_query: %v", err)
		}

		rows, queryErr := conn.QueryContext(ctx, sqlStr, queryArgs...)
		if queryErr != nil {
			return object.Errorf("db_query: %v", queryErr)
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return object.Errorf("db_query: columns: %v", colErr)
		}

		results := []object.Object{}
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		return object.NewList(results)
	})
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	case time.Time:
		return object.NewString(val.Format(time.RFC3339))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
