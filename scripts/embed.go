// Package scripts bundles the Risor report scripts shipped with symwalk.
// Each script reads the globals of a finished run and emits plain text.
package scripts

import (
	"embed"
	"io/fs"
	"strings"
)

// FS holds the bundled scripts at its root.
//
//go:embed *.risor
var FS embed.FS

// Lookup returns the file name of the bundled script called name, with or
// without the .risor extension.
func Lookup(name string) (string, bool) {
	if !strings.HasSuffix(name, ".risor") {
		name += ".risor"
	}
	if _, err := fs.Stat(FS, name); err != nil {
		return "", false
	}
	return name, true
}

// Names lists the bundled scripts without extension.
func Names() []string {
	entries, _ := fs.ReadDir(FS, ".")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".risor"))
	}
	return names
}
