package cli

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tabula/internal/config"
	"github.com/mesh-intelligence/tabula/internal/paths"
	"github.com/mesh-intelligence/tabula/internal/source"
	"github.com/mesh-intelligence/tabula/internal/sqlite"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// env is the resolved configuration for one command run.
type env struct {
	configDir string
	dataDir   string
	settings  *config.Settings
}

func (a *app) loadEnv() (*env, error) {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	settings, err := config.Load(configDir)
	if err != nil {
		return nil, userError(err)
	}
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, settings.DataDir)
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	a.log.Debug("environment resolved",
		zap.String("config_dir", configDir),
		zap.String("data_dir", dataDir),
		zap.String("backend", settings.Backend))
	return &env{configDir: configDir, dataDir: dataDir, settings: settings}, nil
}

func (e *env) view(name string) (types.ViewConfig, error) {
	v, err := e.settings.View(name)
	if err != nil {
		return types.ViewConfig{}, userError(err)
	}
	return v, nil
}

// openStore attaches a SQLite store over the data directory.
func (a *app) openStore(e *env) (*sqlite.Store, error) {
	store := sqlite.NewStore(a.log)
	if err := store.Attach(e.settings.Store(e.dataDir)); err != nil {
		return nil, sysError(fmt.Errorf("attach store: %w", err))
	}
	return store, nil
}

// openSources returns a record fetcher per view for the configured
// backend. The returned close function releases the store, if any.
func (a *app) openSources(e *env, views []types.ViewConfig) (map[string]source.Fetcher[types.Record], func() error, error) {
	fetchers := make(map[string]source.Fetcher[types.Record], len(views))

	if e.settings.Backend == types.BackendJSONL {
		for _, v := range views {
			fetchers[v.Name] = source.JSONLFile(filepath.Join(e.dataDir, v.Collection+".jsonl"))
		}
		return fetchers, func() error { return nil }, nil
	}

	store, err := a.openStore(e)
	if err != nil {
		return nil, nil, err
	}
	for _, v := range views {
		c, err := store.Collection(v.Collection, v.IDField)
		if err != nil {
			store.Detach()
			return nil, nil, userError(fmt.Errorf("view %q: %w", v.Name, err))
		}
		fetchers[v.Name] = c
	}
	return fetchers, store.Detach, nil
}
