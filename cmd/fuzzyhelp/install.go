// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/fuzzyhelp/internal/issue"
)

func newInstallCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "install <package>...",
		Short: "Install R packages into the fuzzyhelp library",
		Long: `Install R packages into the fuzzyhelp library and add their help
topics to the catalog. Packages that are already installed are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := app.Start(ctx, app.stderr)
			if err != nil {
				return err
			}

			var failed []string
			var errs []error
			for _, name := range args {
				if rt.Gate.Attempted(name) {
					fmt.Fprintf(app.stdout, "%s %s\n", KeyStyle.Render(name), SubtitleStyle.Render("already installed"))
					continue
				}
				if err := rt.Gate.InstallIfNeeded(ctx, name); err != nil {
					fmt.Fprintf(app.stdout, "%s %s\n", KeyStyle.Render(name), ErrorStyle.Render("failed"))
					failed = append(failed, name)
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(app.stdout, "%s %s\n", KeyStyle.Render(name), SuccessStyle.Render("installed"))
			}

			c, err := rt.Session.Refresh(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s\n", SubtitleStyle.Render(fmt.Sprintf("%d topics in %d packages", c.Len(), len(c.Packages()))))

			if len(failed) > 0 {
				return &ExitError{Code: 1, Err: issue.NewErrorContext().
					WithOperation("install packages").
					WithResource(strings.Join(failed, ", ")).
					WithSuggestion("Check the package names and the engine.repos mirrors").
					WithSuggestion("Run with --verbose to see the R output").
					WithIssue(issue.PackageInstallFailedId).
					Wrap(errors.Join(errs...)).
					BuildError()}
			}
			return nil
		},
	}
}
