// Package integration runs the tabula binary end to end against isolated
// config and data directories.
package integration

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var (
	// tabulaBin is the path to the built tabula binary.
	tabulaBin string
	// buildErr captures any build error.
	buildErr error
)

// BuildError wraps a build error with output.
type BuildError struct {
	Err    error
	Output string
}

func (e *BuildError) Error() string {
	return e.Err.Error() + ": " + e.Output
}

// FindProjectRoot walks up from the working directory to the one holding
// go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// TestEnv is an isolated config and data directory pair.
type TestEnv struct {
	t       *testing.T
	TempDir string
	Config  string
	DataDir string
}

// NewTestEnv creates a test environment. The config directory is empty
// until init runs.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	if buildErr != nil {
		t.Fatalf("failed to build tabula: %v", buildErr)
	}
	if tabulaBin == "" {
		t.Fatal("tabula binary not built")
	}

	tempDir := t.TempDir()
	return &TestEnv{
		t:       t,
		TempDir: tempDir,
		Config:  filepath.Join(tempDir, "config"),
		DataDir: filepath.Join(tempDir, "data"),
	}
}

// CmdResult holds the result of one tabula invocation.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// RunTabula executes the binary with the environment's directories.
func (e *TestEnv) RunTabula(args ...string) CmdResult {
	e.t.Helper()

	allArgs := append([]string{"--config-dir", e.Config, "--data-dir", e.DataDir}, args...)
	cmd := exec.Command(tabulaBin, allArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			e.t.Fatalf("failed to run tabula: %v", err)
		}
		exitCode = exitErr.ExitCode()
	}

	return CmdResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

// MustRunTabula runs the binary and fails the test on a non-zero exit.
func (e *TestEnv) MustRunTabula(args ...string) CmdResult {
	e.t.Helper()
	result := e.RunTabula(args...)
	if result.ExitCode != 0 {
		e.t.Fatalf("tabula %v failed with exit code %d:\nstdout: %s\nstderr: %s",
			args, result.ExitCode, result.Stdout, result.Stderr)
	}
	return result
}

// WriteJSONL writes one JSON object per line into a file under TempDir and
// returns its path.
func (e *TestEnv) WriteJSONL(name string, lines ...string) string {
	e.t.Helper()
	path := filepath.Join(e.TempDir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		e.t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ParseJSON parses JSON output into the target type.
func ParseJSON[T any](t *testing.T, jsonStr string) T {
	t.Helper()
	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("failed to parse JSON %q: %v", jsonStr, err)
	}
	return result
}

// ListResult is the JSON output of list.
type ListResult struct {
	View string           `json:"view"`
	Rows []map[string]any `json:"rows"`
	Tab  string           `json:"tab"`
	Tabs []struct {
		ID    string `json:"id"`
		Count int    `json:"count"`
	} `json:"tabs"`
	Page struct {
		Index int `json:"index"`
		Size  int `json:"size"`
	} `json:"page"`
	Total     int    `json:"total"`
	PageCount int    `json:"page_count"`
	Label     string `json:"label"`
}

// RowIDs returns the id field of each listed row.
func (r ListResult) RowIDs() []string {
	out := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		id, _ := row["id"].(string)
		out = append(out, id)
	}
	return out
}
