// Package paths resolves the tabula configuration and data directories.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "tabula"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "TABULA_CONFIG_DIR"
	EnvDataDir   = "TABULA_DATA_DIR"
)

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	goos          string
	getenv        func(string) string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	getenv:        os.Getenv,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform configuration directory.
//
//	Linux:   $XDG_CONFIG_HOME/tabula, else ~/.config/tabula
//	others:  os.UserConfigDir()/tabula
func DefaultConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory.
//
//	Linux:   $XDG_DATA_HOME/tabula, else ~/.local/share/tabula
//	others:  os.UserConfigDir()/tabula
func DefaultDataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, homeRel string) (string, error) {
	if platformDir.goos != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := platformDir.getenv(env); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, appName), nil
}

// ResolveConfigDir applies flag > TABULA_CONFIG_DIR > DefaultConfigDir.
func ResolveConfigDir(flag string) (string, error) {
	return resolve(flag, platformDir.getenv(EnvConfigDir), "", DefaultConfigDir)
}

// ResolveDataDir applies flag > TABULA_DATA_DIR > the data_dir value from
// config.yaml > DefaultDataDir.
func ResolveDataDir(flag, configValue string) (string, error) {
	return resolve(flag, platformDir.getenv(EnvDataDir), configValue, DefaultDataDir)
}

func resolve(flag, env, configValue string, fallback func() (string, error)) (string, error) {
	for _, v := range []string{flag, env, configValue} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	return fallback()
}
