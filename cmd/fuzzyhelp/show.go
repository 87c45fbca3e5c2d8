// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/invowk/fuzzyhelp/internal/catalog"
	"github.com/invowk/fuzzyhelp/internal/helptext"
	"github.com/invowk/fuzzyhelp/internal/tui"
)

func newShowCommand(app *App) *cobra.Command {
	var rawHTML, pager bool
	cmd := &cobra.Command{
		Use:   "show <package> <topic>",
		Short: "Print the help page of a topic",
		Long: `Print the help page of a topic, installing the package first when it
is missing. The page is rendered as terminal text unless --html is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pkg, topic := args[0], args[1]

			rt, err := app.Start(ctx, app.stderr)
			if err != nil {
				return err
			}

			page := rt.Session.Select(ctx, pkg, topic)
			name := catalog.DisplayName(pkg, topic)
			if !page.Found {
				return &ExitError{Code: 1, Err: fmt.Errorf("no help available for %s", name)}
			}

			if rawHTML {
				_, err := io.WriteString(app.stdout, page.HTML)
				return err
			}

			term := app.terminal()
			width := term.Width
			if width <= 0 {
				width = helptext.DefaultWidth
			}
			text := rt.Renderer(term.Interactive).Render(page.HTML, width)

			if pager && term.Interactive {
				return tui.Pager(tui.PagerOptions{Content: text, Title: name})
			}
			_, err = io.WriteString(app.stdout, text)
			return err
		},
	}
	cmd.Flags().BoolVar(&rawHTML, "html", false, "print the page as HTML")
	cmd.Flags().BoolVar(&pager, "pager", false, "show the page in a scrollable pager")
	return cmd
}
