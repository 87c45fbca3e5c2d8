// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/fuzzyhelp/internal/rank"
	"github.com/invowk/fuzzyhelp/internal/server"
)

type searchOptions struct {
	// limit caps printed results; negative means search.limit from config.
	limit   int
	jsonOut bool
}

func newSearchCommand(app *App) *cobra.Command {
	opts := searchOptions{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Print the help topics ranked for a query",
		Long: `Print the help topics ranked for a query, best match first.

A query starting with "pkg::" installs pkg first when it is missing.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				opts.limit = -1
			}
			return runSearch(cmd.Context(), app, strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "maximum results to print (0 for all, default search.limit)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print results as JSON")
	return cmd
}

func runSearch(ctx context.Context, app *App, query string, opts searchOptions) error {
	rt, err := app.Start(ctx, app.stderr)
	if err != nil {
		return err
	}

	res := rt.Session.Query(ctx, query)
	limit := opts.limit
	if limit < 0 {
		limit = rt.Config.Search.Limit
	}

	if opts.jsonOut {
		enc := json.NewEncoder(app.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(server.NewSearchResponse(res, limit))
	}

	if res.Err != nil {
		fmt.Fprintln(app.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(res.Err, app.Verbose(rt.Config)))
	}
	for _, r := range rank.Top(res.Results, limit) {
		fmt.Fprintln(app.stdout, r.Entry.Name)
	}
	return nil
}
