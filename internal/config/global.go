// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride allows tests to override the config directory.
// os.UserHomeDir() doesn't reliably respect HOME on every platform
// (macOS in CI), so tests set the directory directly.
var configDirOverride string

// Reset clears test overrides. Call from test cleanup to restore defaults.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride sets a custom config directory path. Intended for tests.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
