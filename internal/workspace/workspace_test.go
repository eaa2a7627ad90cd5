package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jward/symwalk/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`
name: shop
projects:
  - name: api
    dir: services/api
    language: go
    patterns: ["./..."]
  - dir: legacy
    language: java
analysis:
  direct_members_only: true
  workers: 4
`))
	require.NoError(t, err)
	assert.Equal(t, "shop", m.Name)
	require.Len(t, m.Projects, 2)
	assert.Equal(t, ProjectSpec{Name: "api", Dir: "services/api", Language: "go", Patterns: []string{"./..."}}, m.Projects[0])
	assert.Equal(t, "legacy", m.Projects[1].Name)
	assert.True(t, m.Analysis.DirectMembersOnly)
	assert.Equal(t, 4, m.Analysis.Workers)
}

func TestParseManifest_Errors(t *testing.T) {
	for name, src := range map[string]string{
		"empty":        ``,
		"no projects":  "name: x\n",
		"no language":  "projects:\n  - name: a\n",
		"duplicate":    "projects:\n  - {name: a, language: go}\n  - {name: a, language: java}\n",
		"unknown key":  "projects:\n  - {name: a, language: go, colour: red}\n",
		"bad workers":  "projects:\n  - {name: a, language: go}\nanalysis: {workers: -1}\n",
		"invalid yaml": "projects: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseManifest([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadManifest_DefaultsNameToDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "solution")
	path := filepath.Join(dir, ManifestFile)
	writeFile(t, path, "projects:\n  - language: go\n")

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "solution", m.Name)
	assert.Equal(t, ".", m.Projects[0].Dir)
}

func TestDetectLanguage(t *testing.T) {
	goDir := t.TempDir()
	writeFile(t, filepath.Join(goDir, "go.mod"), "module x\n")
	lang, err := DetectLanguage(goDir)
	require.NoError(t, err)
	assert.Equal(t, "go", lang)

	javaDir := t.TempDir()
	writeFile(t, filepath.Join(javaDir, "src", "app", "Main.java"), "class Main {}")
	lang, err = DetectLanguage(javaDir)
	require.NoError(t, err)
	assert.Equal(t, "java", lang)

	_, err = DetectLanguage(t.TempDir())
	assert.Error(t, err)
}

func TestFindManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "go.mod"), "module x\n")

	m, err := FindManifest(dir, "")
	require.NoError(t, err)
	require.Len(t, m.Projects, 1)
	assert.Equal(t, "go", m.Projects[0].Language)

	writeFile(t, filepath.Join(dir, ManifestFile), "name: custom\nprojects:\n  - {name: p, language: java}\n")
	m, err = FindManifest(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "custom", m.Name)
}

func TestOpen_LoadFailureBecomesDiagnostic(t *testing.T) {
	root := t.TempDir()
	m := &Manifest{Name: "sol", Projects: []ProjectSpec{
		{Name: "good", Dir: "a", Language: "fake"},
		{Name: "bad", Dir: "b", Language: "fake"},
		{Name: "unknown", Dir: ".", Language: "cobol"},
	}}
	require.NoError(t, m.Validate())

	var dirs []string
	fake := LoaderFunc(func(_ context.Context, spec ProjectSpec) (*Project, error) {
		dirs = append(dirs, spec.Dir)
		if spec.Name == "bad" {
			return nil, errors.New("does not compile")
		}
		return &Project{Name: spec.Name, Language: spec.Language, Documents: []*Document{{Path: "x"}}}, nil
	})

	sol, err := Open(context.Background(), m, root, WithLoader("fake", fake))
	require.NoError(t, err)
	require.Len(t, sol.Projects, 3)
	assert.Equal(t, []string{filepath.Join(root, "a"), filepath.Join(root, "b")}, dirs)
	assert.Equal(t, 1, sol.DocumentCount())

	assert.Empty(t, sol.Projects[0].Diagnostics)
	for _, p := range sol.Projects[1:] {
		require.Len(t, p.Diagnostics, 1, p.Name)
		assert.Equal(t, report.Error, p.Diagnostics[0].Severity)
		assert.Equal(t, p.Name, p.Diagnostics[0].Location.Project)
	}
	assert.Contains(t, sol.Projects[1].Diagnostics[0].Message, "does not compile")
	assert.Contains(t, sol.Projects[2].Diagnostics[0].Message, "cobol")
}

func TestOpen_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &Manifest{Projects: []ProjectSpec{{Name: "p", Dir: ".", Language: "go"}}}
	_, err := Open(ctx, m, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegister(t *testing.T) {
	l := LoaderFunc(func(context.Context, ProjectSpec) (*Project, error) { return &Project{}, nil })
	Register("test-lang", l)
	got, err := LoaderFor("test-lang")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Contains(t, Languages(), "test-lang")
	assert.Panics(t, func() { Register("test-lang", l) })

	_, err = LoaderFor("nope")
	assert.Error(t, err)
}
