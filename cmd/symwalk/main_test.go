package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aSrc = `package app;

public class A {
    private int count;

    public void bump(int n) {
        count = count + n;
    }
}
`

const cSrc = `package app;

public class C {
    public void run(A a) {
        a.bump(2);
        missing();
    }
}
`

func javaFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app", "A.java"), []byte(aSrc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app", "C.java"), []byte(cSrc), 0o644))
	return dir
}

// execute runs the CLI in-process and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	c := newCLI(&stdout, &stderr)
	cmd := c.command()
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func executeJSON(t *testing.T, args ...string) map[string]any {
	t.Helper()
	stdout, stderr, err := execute(t, append(args, "--format", "json")...)
	require.NoError(t, err, stderr)
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &result), "invalid JSON output: %s", stdout)
	return result
}

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestResolveDBPath(t *testing.T) {
	c := newCLI(nil, nil)
	assert.Equal(t, filepath.Join("/repo", ".symwalk", "runs.db"), c.resolveDBPath("/repo"))
	c.db = "x.db"
	assert.Equal(t, filepath.Join("/repo", "x.db"), c.resolveDBPath("/repo"))
	c.db = "/abs/x.db"
	assert.Equal(t, "/abs/x.db", c.resolveDBPath("/repo"))
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.ErrorContains(t, validateFormat("xml"), "json or text")
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error", "INFO"} {
		_, err := parseLogLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := parseLogLevel("loud")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "symwalk dev\n", stdout)
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "runs", "--format", "xml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestAnalyze_TextOutput(t *testing.T) {
	dir := javaFixture(t)
	stdout, stderr, err := execute(t, "analyze", dir, "--lang", "java", "--serial")
	require.NoError(t, err, stderr)

	assert.Contains(t, stdout, "    app.A\n")
	assert.Contains(t, stdout, "field count : int")
	assert.Contains(t, stdout, "Left: count, Right: count + n")
	assert.Contains(t, stdout, "app.A.bump(int)")
	assert.Contains(t, stdout, "param Name : n, type : int")
	assert.Contains(t, stdout, "bump => app.A.bump(int) [primary]")
	assert.Contains(t, stdout, "argName: n, argType: int, Value:2")
	assert.Contains(t, stdout, "missing => <unresolved>")
	assert.Contains(t, stdout, "2 classes")
	assert.Contains(t, stderr, "Analyzed "+dir)
	assert.NoFileExists(t, filepath.Join(dir, ".symwalk", "runs.db"), "runs are saved only on request")
}

func TestAnalyze_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, stderr, err := execute(t, "analyze", file)
	assert.ErrorContains(t, err, "not a directory")
	assert.Contains(t, stderr, "Error: not a directory")
}

func TestAnalyze_Script(t *testing.T) {
	dir := javaFixture(t)
	script := filepath.Join(t.TempDir(), "report.risor")
	src := `
for i := 0; i < len(invocations); i++ {
    inv := invocations[i]
    if inv["resolved"] == nil {
        emit("unresolved", inv["callee"], inv["method"])
    }
}
`
	require.NoError(t, os.WriteFile(script, []byte(src), 0o644))

	stdout, stderr, err := execute(t, "analyze", dir, "--lang", "java", "--script", script)
	require.NoError(t, err, stderr)
	assert.Equal(t, "unresolved missing app.C.run(A)\n", stdout)
}

func TestAnalyze_BundledScript(t *testing.T) {
	dir := javaFixture(t)
	stdout, stderr, err := execute(t, "analyze", dir, "--lang", "java", "--script", "unresolved")
	require.NoError(t, err, stderr)
	assert.Equal(t, "app/C.java 6 missing in app.C.run(A)\n", stdout)

	_, _, err = execute(t, "analyze", dir, "--lang", "java", "--script", "nope")
	assert.ErrorContains(t, err, "bundled: diagnostics, summary, unresolved")
}

func TestAnalyze_MetricsFile(t *testing.T) {
	dir := javaFixture(t)
	path := filepath.Join(t.TempDir(), "symwalk.prom")
	_, stderr, err := execute(t, "analyze", dir, "--lang", "java", "--metrics-file", path)
	require.NoError(t, err, stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "symwalk_runs_total 1")
	assert.Contains(t, string(data), `resolved_by="unresolved"} 1`)
}

func TestAnalyze_SaveAndQuery(t *testing.T) {
	dir := javaFixture(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	analyzed := executeJSON(t, "analyze", dir, "--lang", "java", "--db", db, "--save")
	assert.Equal(t, "analyze", analyzed["command"])
	run := analyzed["results"].(map[string]any)
	id := run["id"].(string)
	require.NotEmpty(t, id)
	assert.EqualValues(t, 2, run["stats"].(map[string]any)["classes"])

	runs := executeJSON(t, "runs", "--db", db)["results"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].(map[string]any)["id"])

	shown := executeJSON(t, "show", "latest", "--db", db)["results"].(map[string]any)
	assert.Equal(t, id, shown["id"])

	callers := executeJSON(t, "callers", id, "app.A.bump(int)", "--db", db)["results"].([]any)
	require.Len(t, callers, 1)
	site := callers[0].(map[string]any)
	assert.Equal(t, "app.C.run(A)", site["method"])
	assert.Equal(t, "primary", site["resolved_by"])

	missing := executeJSON(t, "callers", "latest", "--unresolved", "--db", db)["results"].([]any)
	require.Len(t, missing, 1)
	assert.Equal(t, "missing", missing[0].(map[string]any)["callee"])

	diags := executeJSON(t, "diagnostics", id, "--min", "info", "--db", db)["results"].([]any)
	assert.NotEmpty(t, diags)
	errs := executeJSON(t, "diagnostics", id, "--min", "error", "--db", db)["results"].([]any)
	assert.Empty(t, errs)

	text, _, err := execute(t, "callers", id, "bump", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, text, "CALLER")
	assert.Contains(t, text, "app.C.run(A)")

	_, _, err = execute(t, "delete", id, "--db", db)
	require.NoError(t, err)
	runs = executeJSON(t, "runs", "--db", db)["results"].([]any)
	assert.Empty(t, runs)
}

func TestQuery_DatabaseNotFound(t *testing.T) {
	db := filepath.Join(t.TempDir(), "none.db")
	stdout, _, err := execute(t, "runs", "--db", db, "--format", "json")
	require.Error(t, err)

	var result CLIResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, "runs", result.Command)
	assert.Contains(t, result.Error, "database not found")
}

func TestCallers_RequiresCallee(t *testing.T) {
	dir := javaFixture(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	_, _, err := execute(t, "analyze", dir, "--lang", "java", "--db", db)
	require.NoError(t, err)

	_, _, err = execute(t, "callers", "latest", "--db", db)
	assert.ErrorContains(t, err, "callee or --unresolved")
}

func TestAnalyze_ManifestLoadFailure(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	manifest := "name: empty\nprojects:\n  - name: none\n    dir: missing\n    language: java\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "symwalk.yaml"), []byte(manifest), 0o644))
	_, _, err := execute(t, "analyze", dir, "--db", db)
	require.NoError(t, err)

	_, _, err = execute(t, "delete", "latest", "--db", db)
	assert.Error(t, err, "delete takes a concrete run id")

	runs := executeJSON(t, "runs", "--db", db)["results"].([]any)
	require.Len(t, runs, 1)
	assert.EqualValues(t, 1, runs[0].(map[string]any)["errors"])
}
