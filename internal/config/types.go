// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultRepo is the CRAN mirror used when engine.repos is empty.
	DefaultRepo = "https://cloud.r-project.org"
	// DefaultServerAddr is the HTTP shell listen address.
	DefaultServerAddr = "127.0.0.1:8080"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidSetting is the sentinel error wrapped by InvalidSettingError.
	ErrInvalidSetting = errors.New("invalid setting")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidSettingError reports a single key whose value is out of range.
	InvalidSettingError struct {
		Key    string
		Value  any
		Reason string
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Engine  EngineConfig  `json:"engine" mapstructure:"engine"`
		Install InstallConfig `json:"install" mapstructure:"install"`
		Search  SearchConfig  `json:"search" mapstructure:"search"`
		Cache   CacheConfig   `json:"cache" mapstructure:"cache"`
		Watch   WatchConfig   `json:"watch" mapstructure:"watch"`
		Server  ServerConfig  `json:"server" mapstructure:"server"`
		UI      UIConfig      `json:"ui" mapstructure:"ui"`
	}

	// EngineConfig configures the Rscript subprocess engine.
	EngineConfig struct {
		// Rscript is the interpreter binary; empty means look it up on PATH.
		Rscript string `json:"rscript" mapstructure:"rscript"`
		// LibraryDir is the private package library.
		LibraryDir string `json:"library_dir" mapstructure:"library_dir"`
		// Repos are the CRAN-style repositories installs fetch from.
		Repos []string `json:"repos" mapstructure:"repos"`
		// MaxConcurrent bounds the number of R processes running at once.
		MaxConcurrent int `json:"max_concurrent" mapstructure:"max_concurrent"`
		// Timeout bounds a single R invocation.
		Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	}

	// InstallConfig configures the package installer gate.
	InstallConfig struct {
		// RetryFailed lets a failed install be attempted again.
		RetryFailed bool `json:"retry_failed" mapstructure:"retry_failed"`
	}

	// SearchConfig configures ranking output.
	SearchConfig struct {
		// Limit caps the number of results shells display; 0 means no cap.
		Limit int `json:"limit" mapstructure:"limit"`
	}

	// CacheConfig configures the rendered help cache.
	CacheConfig struct {
		// Size is the number of pages kept; 0 disables caching.
		Size int `json:"size" mapstructure:"size"`
	}

	// WatchConfig configures the library directory watcher.
	WatchConfig struct {
		Enabled  bool          `json:"enabled" mapstructure:"enabled"`
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
	}

	// ServerConfig configures the HTTP shell.
	ServerConfig struct {
		Addr string `json:"addr" mapstructure:"addr"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables debug logging and error chains
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

func (e *InvalidSettingError) Error() string {
	return fmt.Sprintf("%s: %v %s", e.Key, e.Value, e.Reason)
}

// Unwrap returns ErrInvalidSetting for errors.Is() compatibility.
func (e *InvalidSettingError) Unwrap() error { return ErrInvalidSetting }

// IsValid returns whether the EngineConfig has usable values.
func (c EngineConfig) IsValid() (bool, []error) {
	var errs []error
	if c.Rscript != "" && strings.TrimSpace(c.Rscript) == "" {
		errs = append(errs, &InvalidSettingError{Key: "engine.rscript", Value: c.Rscript, Reason: "must not be whitespace-only"})
	}
	if strings.TrimSpace(c.LibraryDir) == "" {
		errs = append(errs, &InvalidSettingError{Key: "engine.library_dir", Value: c.LibraryDir, Reason: "must be set"})
	}
	for i, repo := range c.Repos {
		if strings.TrimSpace(repo) == "" {
			errs = append(errs, &InvalidSettingError{Key: fmt.Sprintf("engine.repos[%d]", i), Value: repo, Reason: "must be non-empty"})
		}
	}
	if c.MaxConcurrent < 1 {
		errs = append(errs, &InvalidSettingError{Key: "engine.max_concurrent", Value: c.MaxConcurrent, Reason: "must be at least 1"})
	}
	if c.Timeout <= 0 {
		errs = append(errs, &InvalidSettingError{Key: "engine.timeout", Value: c.Timeout, Reason: "must be positive"})
	}
	return len(errs) == 0, errs
}

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Engine.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Search.Limit < 0 {
		errs = append(errs, &InvalidSettingError{Key: "search.limit", Value: c.Search.Limit, Reason: "must not be negative"})
	}
	if c.Cache.Size < 0 {
		errs = append(errs, &InvalidSettingError{Key: "cache.size", Value: c.Cache.Size, Reason: "must not be negative"})
	}
	if c.Watch.Debounce <= 0 {
		errs = append(errs, &InvalidSettingError{Key: "watch.debounce", Value: c.Watch.Debounce, Reason: "must be positive"})
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, &InvalidSettingError{Key: "server.addr", Value: c.Server.Addr, Reason: "must be set"})
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Rscript:       "", // looked up on PATH
			LibraryDir:    DefaultLibraryDir(),
			Repos:         []string{DefaultRepo},
			MaxConcurrent: 1,
			Timeout:       5 * time.Minute,
		},
		Install: InstallConfig{RetryFailed: false},
		Search:  SearchConfig{Limit: 200},
		Cache:   CacheConfig{Size: 256},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 500 * time.Millisecond,
		},
		Server: ServerConfig{Addr: DefaultServerAddr},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
	}
}
