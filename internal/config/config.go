// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/invowk/fuzzyhelp/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "fuzzyhelp"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides (FUZZYHELP_ENGINE_RSCRIPT).
	EnvPrefix = "FUZZYHELP"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the fuzzyhelp configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// DefaultLibraryDir returns <user cache dir>/fuzzyhelp/library, falling back
// to the temp dir when no cache dir can be determined.
func DefaultLibraryDir() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, AppName, "library")
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. It returns the config and the file it came from ("" when
// only defaults and environment applied).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// An explicit --config path is used exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'fuzzyhelp config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", loadError(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		for _, candidate := range []string{
			filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
			ConfigFileName + "." + ConfigFileExt,
		} {
			if !fileExists(candidate) {
				continue
			}
			if err := loadCUEIntoViper(v, candidate); err != nil {
				return nil, "", loadError(candidate, err)
			}
			resolvedPath = candidate
			break
		}
		// No config file anywhere: defaults and environment only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Engine.Repos) == 0 {
		cfg.Engine.Repos = []string{DefaultRepo}
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Run 'fuzzyhelp config show' to see the effective values").
			WithSuggestion("Check FUZZYHELP_* environment variables for typos").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("engine.rscript", defaults.Engine.Rscript)
	v.SetDefault("engine.library_dir", defaults.Engine.LibraryDir)
	v.SetDefault("engine.repos", defaults.Engine.Repos)
	v.SetDefault("engine.max_concurrent", defaults.Engine.MaxConcurrent)
	v.SetDefault("engine.timeout", defaults.Engine.Timeout)
	v.SetDefault("install.retry_failed", defaults.Install.RetryFailed)
	v.SetDefault("search.limit", defaults.Search.Limit)
	v.SetDefault("cache.size", defaults.Cache.Size)
	v.SetDefault("watch.enabled", defaults.Watch.Enabled)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("ui.color_scheme", defaults.UI.ColorScheme)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
}

func loadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		BuildError()
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// The file decodes to map[string]any rather than a struct so Viper keeps its
// defaults and env overrides underneath. Concrete(false) because every field
// is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := checkFileSize(data, maxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a config.cue document that loads back to the
// same values.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// fuzzyhelp configuration\n\n")

	sb.WriteString("engine: {\n")
	fmt.Fprintf(&sb, "\trscript: %q\n", cfg.Engine.Rscript)
	fmt.Fprintf(&sb, "\tlibrary_dir: %q\n", cfg.Engine.LibraryDir)
	sb.WriteString("\trepos: [")
	for i, repo := range cfg.Engine.Repos {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", repo)
	}
	sb.WriteString("]\n")
	fmt.Fprintf(&sb, "\tmax_concurrent: %d\n", cfg.Engine.MaxConcurrent)
	fmt.Fprintf(&sb, "\ttimeout: %q\n", cfg.Engine.Timeout.String())
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\ninstall: retry_failed: %v\n", cfg.Install.RetryFailed)
	fmt.Fprintf(&sb, "search: limit: %d\n", cfg.Search.Limit)
	fmt.Fprintf(&sb, "cache: size: %d\n", cfg.Cache.Size)

	sb.WriteString("\nwatch: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Watch.Enabled)
	fmt.Fprintf(&sb, "\tdebounce: %q\n", cfg.Watch.Debounce.String())
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nserver: addr: %q\n", cfg.Server.Addr)

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}
