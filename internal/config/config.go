// Package config loads tabula settings from config.yaml in the config
// directory. Missing files are tolerated and TABULA_* environment variables
// override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	envPrefix = "TABULA"
)

// Config keys.
const (
	KeyBackend = "backend"
	KeyDataDir = "data_dir"
	KeyRefresh = "refresh"
	KeyViews   = "views"
)

// Defaults applied when a key is absent.
const (
	DefaultBackend = types.BackendSQLite
	DefaultRefresh = 30 * time.Second
)

// Settings is the loaded configuration.
type Settings struct {
	Backend string
	DataDir string

	// Refresh is how often long-running commands refetch records.
	Refresh time.Duration

	// Views are normalized and validated, keyed by lower-cased name.
	Views map[string]types.ViewConfig
}

// Path returns the location of config.yaml inside configDir.
func Path(configDir string) string {
	return filepath.Join(configDir, configFileExt)
}

// Load reads config.yaml from configDir. A missing file yields defaults.
func Load(configDir string) (*Settings, error) {
	v := viper.New()
	v.SetDefault(KeyBackend, DefaultBackend)
	v.SetDefault(KeyRefresh, DefaultRefresh)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	s := &Settings{
		Backend: v.GetString(KeyBackend),
		DataDir: v.GetString(KeyDataDir),
		Refresh: v.GetDuration(KeyRefresh),
		Views:   map[string]types.ViewConfig{},
	}
	if err := (types.Config{Backend: s.Backend}).Validate(); err != nil {
		return nil, fmt.Errorf("backend %q: %w", s.Backend, err)
	}
	if s.Refresh <= 0 {
		return nil, fmt.Errorf("refresh must be positive, got %s", s.Refresh)
	}

	var raw map[string]types.ViewConfig
	if err := v.UnmarshalKey(KeyViews, &raw); err != nil {
		return nil, fmt.Errorf("decode views: %w", err)
	}
	for name, view := range raw {
		view.Name = name
		view = view.Normalize()
		if err := view.Validate(); err != nil {
			return nil, fmt.Errorf("view %q: %w", name, err)
		}
		s.Views[name] = view
	}
	return s, nil
}

// View returns the named view. Names are matched case-insensitively.
func (s *Settings) View(name string) (types.ViewConfig, error) {
	view, ok := s.Views[strings.ToLower(name)]
	if !ok {
		return types.ViewConfig{}, fmt.Errorf("%w: %q", types.ErrViewNotFound, name)
	}
	return view, nil
}

// ViewNames returns the configured view names in sorted order.
func (s *Settings) ViewNames() []string {
	names := make([]string, 0, len(s.Views))
	for n := range s.Views {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Store returns the storage configuration for dataDir.
func (s *Settings) Store(dataDir string) types.Config {
	return types.Config{Backend: s.Backend, DataDir: dataDir}
}

// fileConfig is the shape of config.yaml written by WriteDefault.
type fileConfig struct {
	Backend string                      `yaml:"backend"`
	DataDir string                      `yaml:"data_dir,omitempty"`
	Refresh string                      `yaml:"refresh"`
	Views   map[string]types.ViewConfig `yaml:"views"`
}

const defaultHeader = `# tabula configuration
#
# backend: sqlite loads <collection>.jsonl files from data_dir into SQLite;
#          jsonl reads them directly.
# refresh: how often serve and browse refetch records.
# views:   one entry per table view, keyed by name.

`

// SampleView is the view written to a new config.yaml.
func SampleView() types.ViewConfig {
	return types.ViewConfig{
		Collection: "tickets",
		Columns:    []string{"id", "title", "state", "priority"},
		Tabs: []types.TabConfig{
			{ID: "all", Label: "All"},
			{ID: "open", Label: "Open", Field: "state", Values: []string{"open"}},
			{ID: "closed", Label: "Closed", Field: "state", Values: []string{"closed"}},
		},
		SearchFields: []string{"title"},
		Sort:         types.SortConfig{Field: "id", Direction: "asc"},
		PageSize:     types.DefaultPageSize,
		PageSizes:    types.DefaultPageSizes,
	}
}

// WriteDefault creates configDir and writes a default config.yaml unless
// one exists. It reports whether a file was written.
func WriteDefault(configDir, dataDir string) (bool, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	path := Path(configDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	cfg := fileConfig{
		Backend: DefaultBackend,
		DataDir: dataDir,
		Refresh: DefaultRefresh.String(),
		Views:   map[string]types.ViewConfig{"tickets": SampleView()},
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
