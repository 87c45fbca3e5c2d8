// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands of fuzzyhelp.
//
// The root command opens the interactive browser; search, show and install
// expose the same session non-interactively and serve starts the HTTP shell.
// Every command builds its collaborators through App, the composition root.
package cmd
