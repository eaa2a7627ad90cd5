package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/symwalk/internal/report"
)

// makeEmitFn creates the "emit" host function.
//
// emit(values...) writes the values separated by spaces and a newline.
func makeEmitFn(w io.Writer) *object.Builtin {
	return object.NewBuiltin("emit", func(ctx context.Context, args ...object.Object) object.Object {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = display(arg)
		}
		if _, err := fmt.Fprintln(w, strings.Join(parts, " ")); err != nil {
			return object.Errorf("emit: %v", err)
		}
		return object.Nil
	})
}

func display(obj object.Object) string {
	switch v := obj.(type) {
	case *object.String:
		return v.Value()
	case *object.NilType:
		return "<unresolved>"
	}
	return obj.Inspect()
}

// makeSeverityAtLeastFn creates the "severity_at_least" host function.
//
// severity_at_least(diagnostic, severity) → bool
//
// The first argument is a diagnostic map or a severity string.
func makeSeverityAtLeastFn() *object.Builtin {
	return object.NewBuiltin("severity_at_least", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("severity_at_least", 2, len(args))
		}

		var have string
		switch v := args[0].(type) {
		case *object.Map:
			have = getString(v.Value(), "severity")
		case *object.String:
			have = v.Value()
		default:
			return object.Errorf("severity_at_least: expected diagnostic or string, got %s", args[0].Type())
		}
		want, err := toString(args[1])
		if err != nil {
			return object.Errorf("severity_at_least: %v", err)
		}

		hs, err := report.ParseSeverity(have)
		if err != nil {
			return object.Errorf("severity_at_least: %v", err)
		}
		ws, err := report.ParseSeverity(want)
		if err != nil {
			return object.Errorf("severity_at_least: %v", err)
		}
		return object.NewBool(hs >= ws)
	})
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
