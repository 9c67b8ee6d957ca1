package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/tabula/internal/source"
	"github.com/mesh-intelligence/tabula/internal/viewstate"
	"github.com/mesh-intelligence/tabula/internal/web"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

const defaultAddr = ":8080"

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [addr]",
		Short: "Serve every configured view over HTTP",
		Long: `Serve exposes each view as JSON under /api/views/{name} and refetches
records every refresh interval until interrupted.

Example:
  tabula serve
  tabula serve 127.0.0.1:9000`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := defaultAddr
			if len(args) == 1 {
				addr = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, addr)
		},
	}
}

func (a *app) serve(ctx context.Context, addr string) error {
	e, err := a.loadEnv()
	if err != nil {
		return err
	}
	names := e.settings.ViewNames()
	if len(names) == 0 {
		return userError(fmt.Errorf("no views configured in %s", e.configDir))
	}
	views := make([]types.ViewConfig, len(names))
	for i, n := range names {
		views[i] = e.settings.Views[n]
	}

	fetchers, closeSources, err := a.openSources(e, views)
	if err != nil {
		return err
	}
	defer closeSources()

	g, gctx := errgroup.WithContext(ctx)
	tables := make(map[string]*viewstate.Table[types.Record], len(views))
	for _, v := range views {
		tbl, err := viewstate.ForView(v, a.log)
		if err != nil {
			return userError(err)
		}
		tables[v.Name] = tbl

		loader := source.NewLoader(fetchers[v.Name], a.log.With(zap.String("view", v.Name)))
		loader.Bind(tbl)
		g.Go(func() error {
			return ignoreCanceled(loader.Watch(gctx, e.settings.Refresh))
		})
	}

	srv := web.NewServer(tables, a.log)
	g.Go(func() error {
		return srv.Serve(gctx, addr)
	})

	if err := g.Wait(); err != nil {
		return sysError(err)
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
