package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tabula/internal/jsonl"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <view> <file.jsonl>",
		Short: "Import records into a view's collection",
		Long: `Import reads one JSON object per line from a file and upserts the
records into the collection behind a view. Records without an id get a
generated UUID. Malformed lines are skipped.

Example:
  tabula import tickets ./tickets.jsonl`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.loadEnv()
			if err != nil {
				return err
			}
			view, err := e.view(args[0])
			if err != nil {
				return err
			}
			records, err := jsonl.Read(args[1])
			if err != nil {
				return userError(err)
			}

			store, err := a.openStore(e)
			if err != nil {
				return err
			}
			defer store.Detach()

			c, err := store.Collection(view.Collection, view.IDField)
			if err != nil {
				return userError(err)
			}
			n, err := c.Import(cmd.Context(), records)
			if err != nil {
				return sysError(fmt.Errorf("import: %w", err))
			}

			if a.flags.jsonMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"collection": c.Name(),
					"imported":   n,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d record(s) into %s\n", n, c.Name())
			return nil
		},
	}
}
