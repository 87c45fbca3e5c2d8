// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"net"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/invowk/fuzzyhelp/internal/issue"
	"github.com/invowk/fuzzyhelp/internal/server"
)

func newServeCommand(app *App) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the help browser over HTTP",
		Long: `Serve the help browser over HTTP until interrupted.

Besides the search page, the server exposes /api/search, /healthz and
Prometheus metrics on /metrics. When watch.enabled is set, packages added
to or removed from the library directory refresh the catalog.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := app.Start(ctx, app.stderr)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = rt.Config.Server.Addr
			}

			srv := server.New(rt.Session,
				server.WithMetrics(rt.Metrics),
				server.WithLogger(rt.Logger.WithPrefix("server")),
			)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				err := srv.ListenAndServe(ctx, addr, func(a net.Addr) {
					rt.Logger.Info("serving", "url", "http://"+a.String()+"/")
				})
				if err != nil {
					return serveError(addr, err)
				}
				return nil
			})
			if rt.Config.Watch.Enabled {
				g.Go(func() error {
					if err := rt.Session.Watch(ctx, rt.Config.Engine.LibraryDir, rt.Config.Watch.Debounce); err != nil {
						// The server is still useful without live refresh.
						rt.Logger.Warn("library watch stopped", "err", err)
					}
					return nil
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

func serveError(addr string, err error) error {
	return issue.NewErrorContext().
		WithOperation("start HTTP server").
		WithResource(addr).
		WithSuggestion("Choose a free address with --addr or server.addr").
		WithIssue(issue.ServerStartFailedId).
		Wrap(err).
		BuildError()
}
