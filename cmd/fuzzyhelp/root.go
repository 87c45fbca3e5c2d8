// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/invowk/fuzzyhelp/internal/issue"
	"github.com/invowk/fuzzyhelp/internal/tui"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fuzzyhelp [query]",
		Short: "Fuzzy search over R help topics",
		Long: TitleStyle.Render("fuzzyhelp") + SubtitleStyle.Render(" - fuzzy search over R help topics") + `

fuzzyhelp ranks every help topic of the installed R packages as you type
and shows the selected page. A query that starts with "pkg::" installs pkg
on first use, so its topics become searchable.

` + SubtitleStyle.Render("Examples:") + `
  fuzzyhelp                 Open the interactive browser
  fuzzyhelp lm              Open the browser searching for "lm"
  fuzzyhelp search glm      Print ranked topics for "glm"
  fuzzyhelp show stats lm   Print the help page of stats::lm
  fuzzyhelp serve           Start the web browser shell`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd.Context(), app, strings.Join(args, " "))
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/fuzzyhelp/config.cue)")

	rootCmd.AddCommand(
		newSearchCommand(app),
		newShowCommand(app),
		newInstallCommand(app),
		newServeCommand(app),
		newConfigCommand(app),
		newVersionCommand(app),
	)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)
	return rootCmd
}

// runBrowse opens the browser on a terminal and prints a search otherwise.
func runBrowse(ctx context.Context, app *App, query string) error {
	term := app.terminal()
	if !term.Interactive {
		return runSearch(ctx, app, query, searchOptions{limit: -1})
	}

	// Log lines would tear the alternate screen.
	rt, err := app.Start(ctx, io.Discard)
	if err != nil {
		return err
	}
	return tui.Run(ctx, rt.Session, rt.Renderer(true), tui.WithInitialQuery(query))
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)

	err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, app.verbose))
		}),
	)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
