package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tabula/internal/pipeline"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, types.BackendSQLite, s.Backend)
	assert.Equal(t, DefaultRefresh, s.Refresh)
	assert.Empty(t, s.Views)
}

func TestLoadViews(t *testing.T) {
	dir := writeConfig(t, `
backend: jsonl
data_dir: /srv/data
refresh: 5s
views:
  Issues:
    id_field: key
    tabs:
      - id: open
        field: status
        values: [open, reopened]
      - id: done
        label: Done
        field: status
        values: [closed]
    search_fields: [summary]
    filter_options:
      - field: priority
        allowed_values: [p1, p2]
    sort:
      field: created
      direction: desc
    page_sizes: [20, 50]
    max_pages: 4
`)
	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, types.BackendJSONL, s.Backend)
	assert.Equal(t, "/srv/data", s.DataDir)
	assert.Equal(t, 5*time.Second, s.Refresh)
	assert.Equal(t, []string{"issues"}, s.ViewNames())

	v, err := s.View("ISSUES")
	require.NoError(t, err)
	assert.Equal(t, "issues", v.Name)
	assert.Equal(t, "issues", v.Collection, "collection defaults to the view name")
	assert.Equal(t, "key", v.IDField)
	assert.Equal(t, "open", v.Tabs[0].Label, "label defaults to id")
	assert.Equal(t, []string{"open", "reopened"}, v.Tabs[0].Values)
	assert.Equal(t, []pipeline.FilterOption{{Field: "priority", AllowedValues: []string{"p1", "p2"}}}, v.FilterOptions)
	assert.Equal(t, pipeline.Sort{Field: "created", Direction: pipeline.Desc}, v.InitialSort())
	assert.Equal(t, 20, v.PageSize)
	assert.Equal(t, 4, v.MaxPages)

	_, err = s.View("missing")
	assert.ErrorIs(t, err, types.ErrViewNotFound)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := writeConfig(t, "backend: sqlite\n")
	t.Setenv("TABULA_BACKEND", "jsonl")

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, types.BackendJSONL, s.Backend)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "unknown backend", content: "backend: postgres\n", wantErr: types.ErrBackendUnknown},
		{name: "invalid view", content: "views:\n  bad:\n    page_size: 7\n    page_sizes: [5]\n", wantErr: types.ErrInvalidView},
		{name: "malformed yaml", content: "views: [\n"},
		{name: "zero refresh", content: "refresh: 0s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")

	created, err := WriteDefault(dir, "/data")
	require.NoError(t, err)
	assert.True(t, created)

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/data", s.DataDir)
	v, err := s.View("tickets")
	require.NoError(t, err)
	assert.Len(t, v.Tabs, 3)

	require.NoError(t, os.WriteFile(Path(dir), []byte("backend: jsonl\n"), 0o644))
	created, err = WriteDefault(dir, "/other")
	require.NoError(t, err)
	assert.False(t, created, "existing config is kept")
	raw, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Equal(t, "backend: jsonl\n", string(raw))
}
