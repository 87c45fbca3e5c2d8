// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/invowk/fuzzyhelp/internal/config"
)

// newConfigCommand creates the `fuzzyhelp config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage fuzzyhelp configuration",
		Long: `Manage fuzzyhelp configuration.

Configuration is stored in:
  - Linux: ~/.config/fuzzyhelp/config.cue
  - macOS: ~/Library/Application Support/fuzzyhelp/config.cue
  - Windows: %APPDATA%\fuzzyhelp\config.cue

A config.cue in the working directory is used when the user file is absent.
FUZZYHELP_* environment variables override single keys, for example
FUZZYHELP_ENGINE_RSCRIPT or FUZZYHELP_SEARCH_LIMIT.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the user configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	loaded, err := config.LoadWithSource(ctx, config.LoadOptions{ConfigFilePath: app.configPath})
	if err != nil {
		return err
	}

	source := SubtitleStyle.Render("(using defaults)")
	if loaded.Path != "" {
		source = loaded.Path
	}
	fmt.Fprintf(app.stdout, "// %s: %s\n", KeyStyle.Render("Config file"), source)
	fmt.Fprint(app.stdout, config.GenerateCUE(loaded.Config))
	return nil
}
