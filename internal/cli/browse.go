package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tabula/internal/source"
	"github.com/mesh-intelligence/tabula/internal/tui"
	"github.com/mesh-intelligence/tabula/internal/viewstate"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse <view>",
		Short: "Browse a view in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.loadEnv()
			if err != nil {
				return err
			}
			view, err := e.view(args[0])
			if err != nil {
				return err
			}

			// Log output would draw over the UI, so the view runs silently.
			a.log = zap.NewNop()

			fetchers, closeSources, err := a.openSources(e, []types.ViewConfig{view})
			if err != nil {
				return err
			}
			defer closeSources()

			tbl, err := viewstate.ForView(view, nil)
			if err != nil {
				return userError(err)
			}
			loader := source.NewLoader(fetchers[view.Name], nil)
			loader.Bind(tbl)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := tui.New(view, tbl,
				tui.WithContext(ctx),
				tui.WithRefresh(loader.Refresh, e.settings.Refresh))
			if err := tui.Run(ctx, m); err != nil {
				return sysError(fmt.Errorf("run terminal UI: %w", err))
			}
			return nil
		},
	}
}
