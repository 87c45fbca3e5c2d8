// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorScheme_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scheme ColorScheme
		want   bool
	}{
		{ColorSchemeAuto, true},
		{ColorSchemeDark, true},
		{ColorSchemeLight, true},
		{"", false},
		{"AUTO", false},
		{"solarized", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.scheme), func(t *testing.T) {
			t.Parallel()
			ok, errs := tt.scheme.IsValid()
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.ErrorIs(t, errs[0], ErrInvalidColorScheme)
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	ok, errs := cfg.IsValid()
	require.True(t, ok, "%v", errs)

	assert.Empty(t, cfg.Engine.Rscript)
	assert.Equal(t, []string{DefaultRepo}, cfg.Engine.Repos)
	assert.Equal(t, 1, cfg.Engine.MaxConcurrent)
	assert.Equal(t, 5*time.Minute, cfg.Engine.Timeout)
	assert.False(t, cfg.Install.RetryFailed)
	assert.Equal(t, 200, cfg.Search.Limit)
	assert.Equal(t, 256, cfg.Cache.Size)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, ColorSchemeAuto, cfg.UI.ColorScheme)
	assert.Contains(t, cfg.Engine.LibraryDir, AppName)
}

func TestConfig_IsValidCollectsFieldErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"zero concurrency", func(c *Config) { c.Engine.MaxConcurrent = 0 }, "engine.max_concurrent"},
		{"zero timeout", func(c *Config) { c.Engine.Timeout = 0 }, "engine.timeout"},
		{"blank library", func(c *Config) { c.Engine.LibraryDir = "  " }, "engine.library_dir"},
		{"whitespace rscript", func(c *Config) { c.Engine.Rscript = " \t" }, "engine.rscript"},
		{"blank repo", func(c *Config) { c.Engine.Repos = []string{DefaultRepo, ""} }, "engine.repos[1]"},
		{"negative limit", func(c *Config) { c.Search.Limit = -1 }, "search.limit"},
		{"negative cache", func(c *Config) { c.Cache.Size = -5 }, "cache.size"},
		{"zero debounce", func(c *Config) { c.Watch.Debounce = 0 }, "watch.debounce"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)

			ok, errs := cfg.IsValid()
			require.False(t, ok)
			require.Len(t, errs, 1)
			require.ErrorIs(t, errs[0], ErrInvalidConfig)

			var cfgErr *InvalidConfigError
			require.ErrorAs(t, errs[0], &cfgErr)
			require.Len(t, cfgErr.FieldErrors, 1)

			var setting *InvalidSettingError
			require.True(t, errors.As(cfgErr.FieldErrors[0], &setting))
			assert.Equal(t, tt.key, setting.Key)
			assert.ErrorIs(t, setting, ErrInvalidSetting)
			assert.Contains(t, errs[0].Error(), tt.key)
		})
	}
}

func TestConfig_IsValidBadColorScheme(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.UI.ColorScheme = "neon"
	ok, errs := cfg.IsValid()
	require.False(t, ok)
	assert.ErrorIs(t, errs[0], ErrInvalidColorScheme)
}
