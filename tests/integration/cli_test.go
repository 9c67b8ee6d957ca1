package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain builds the tabula binary once before running tests.
func TestMain(m *testing.M) {
	projectRoot, err := FindProjectRoot()
	if err != nil {
		buildErr = err
		os.Exit(1)
	}

	tmpDir, err := os.MkdirTemp("", "tabula-test-*")
	if err != nil {
		buildErr = err
		os.Exit(1)
	}
	tabulaBin = filepath.Join(tmpDir, "tabula")

	cmd := exec.Command("go", "build", "-o", tabulaBin, "./cmd/tabula")
	cmd.Dir = projectRoot
	if output, err := cmd.CombinedOutput(); err != nil {
		fmt.Fprintln(os.Stderr, &BuildError{Err: err, Output: string(output)})
		os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}

// ticketLines returns n tickets; even ones open, odd ones closed.
func ticketLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		state := "open"
		if i%2 == 1 {
			state = "closed"
		}
		lines[i] = fmt.Sprintf(`{"id":"t%02d","title":"ticket %d","state":"%s","priority":"low"}`, i, i, state)
	}
	return lines
}

func seeded(t *testing.T, n int) *TestEnv {
	t.Helper()
	env := NewTestEnv(t)
	env.MustRunTabula("init")
	env.MustRunTabula("import", "tickets", env.WriteJSONL("tickets.jsonl", ticketLines(n)...))
	return env
}

func TestInitWritesConfigAndDataDir(t *testing.T) {
	env := NewTestEnv(t)

	result := env.MustRunTabula("init")
	assert.Contains(t, result.Stdout, "Wrote ")
	assert.FileExists(t, filepath.Join(env.Config, "config.yaml"))
	assert.DirExists(t, env.DataDir)

	again := env.MustRunTabula("init")
	assert.Contains(t, again.Stdout, "Kept existing")
}

func TestImportWritesCollectionFile(t *testing.T) {
	env := seeded(t, 3)

	data, err := os.ReadFile(filepath.Join(env.DataDir, "tickets.jsonl"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)
}

func TestListPipeline(t *testing.T) {
	env := seeded(t, 12)

	first := ParseJSON[ListResult](t, env.MustRunTabula("--json", "list", "tickets").Stdout)
	assert.Equal(t, "tickets", first.View)
	assert.Equal(t, 12, first.Total)
	assert.Equal(t, 2, first.PageCount)
	assert.Equal(t, "1–10 of 12", first.Label)
	assert.Len(t, first.Rows, 10)

	open := ParseJSON[ListResult](t, env.MustRunTabula("--json", "list", "tickets",
		"--tab", "open", "--sort", "id", "--desc", "--size", "5", "--page", "2").Stdout)
	assert.Equal(t, "open", open.Tab)
	assert.Equal(t, 6, open.Total)
	assert.Equal(t, 1, open.Page.Index)
	assert.Equal(t, []string{"t00"}, open.RowIDs())
	require.Len(t, open.Tabs, 3)
	assert.Equal(t, 12, open.Tabs[0].Count)

	search := ParseJSON[ListResult](t, env.MustRunTabula("--json", "list", "tickets", "-q", "TICKET 1").Stdout)
	assert.Equal(t, []string{"t01", "t10", "t11"}, search.RowIDs())
}

func TestListText(t *testing.T) {
	env := seeded(t, 3)

	out := env.MustRunTabula("list", "tickets").Stdout
	assert.Contains(t, out, "ticket 2")
	assert.Contains(t, out, "Showing 1–3 of 3")
}

func TestUserErrorsExitOne(t *testing.T) {
	env := seeded(t, 3)

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown view", args: []string{"list", "nope"}},
		{name: "bad page size", args: []string{"list", "tickets", "--size", "7"}},
		{name: "page out of range", args: []string{"list", "tickets", "--page", "4"}},
		{name: "malformed filter", args: []string{"list", "tickets", "--filter", "state"}},
		{name: "missing import file", args: []string{"import", "tickets", filepath.Join(env.TempDir, "missing.jsonl")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := env.RunTabula(tt.args...)
			assert.Equal(t, 1, result.ExitCode, "stderr: %s", result.Stderr)
			assert.NotEmpty(t, result.Stderr)
		})
	}
}

func TestJSONLBackendReadsImportedFile(t *testing.T) {
	env := seeded(t, 4)

	t.Setenv("TABULA_BACKEND", "jsonl")
	result := ParseJSON[ListResult](t, env.MustRunTabula("--json", "list", "tickets", "--tab", "closed").Stdout)
	assert.Equal(t, []string{"t01", "t03"}, result.RowIDs())
}

func TestVersion(t *testing.T) {
	env := NewTestEnv(t)
	out := env.MustRunTabula("version").Stdout
	assert.Contains(t, out, "dev")
}
