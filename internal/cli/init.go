package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tabula/internal/config"
	"github.com/mesh-intelligence/tabula/internal/jsonl"
	"github.com/mesh-intelligence/tabula/internal/paths"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and data directories",
		Long: `Create the configuration directory with a default config.yaml (kept if
one exists) and the data directory with an empty store and an empty
collection file for every configured view.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(a.flags.configDir)
			if err != nil {
				return sysError(fmt.Errorf("resolve config dir: %w", err))
			}
			created, err := config.WriteDefault(configDir, a.flags.dataDir)
			if err != nil {
				return sysError(fmt.Errorf("write config: %w", err))
			}

			e, err := a.loadEnv()
			if err != nil {
				return err
			}
			store, err := a.openStore(e)
			if err != nil {
				return err
			}
			if err := store.Detach(); err != nil {
				return sysError(fmt.Errorf("finalize store: %w", err))
			}
			for _, v := range e.settings.Views {
				if err := jsonl.Ensure(filepath.Join(e.dataDir, v.Collection+".jsonl")); err != nil {
					return sysError(err)
				}
			}

			out := cmd.OutOrStdout()
			if created {
				fmt.Fprintf(out, "Wrote %s\n", config.Path(configDir))
			} else {
				fmt.Fprintf(out, "Kept existing %s\n", config.Path(configDir))
			}
			fmt.Fprintf(out, "Data directory: %s\n", e.dataDir)
			return nil
		},
	}
}
