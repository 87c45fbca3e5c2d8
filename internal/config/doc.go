// SPDX-License-Identifier: MPL-2.0

// Package config loads fuzzyhelp configuration using Viper with CUE as the file format.
//
// Configuration is read from config.cue in the platform config directory
// ($XDG_CONFIG_HOME/fuzzyhelp on Linux, ~/Library/Application Support/fuzzyhelp
// on macOS, %APPDATA%\fuzzyhelp on Windows), from the working directory, or from
// an explicit path. Files are validated against the embedded config_schema.cue
// before being merged over the defaults, and FUZZYHELP_* environment variables
// override both (FUZZYHELP_ENGINE_RSCRIPT sets engine.rscript).
package config
