// Package rconfig resolves the manager's process-wide configuration: the
// RUSTUP_HOME metadata root, the distribution server base URL, and the
// persisted settings.toml (default toolchain, default host override).
// Per DESIGN NOTES §9 ("scope these behind an explicit Context value"),
// callers build one rconfig.Context in main and thread it down rather than
// reading the environment from deep inside the core packages.
package rconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	EnvHome            = "RUSTUP_HOME"
	EnvDistServer      = "RUSTUP_DIST_SERVER"
	EnvToolchain       = "RUSTUP_TOOLCHAIN"
	EnvIOThreads       = "RUSTUP_IO_THREADS"
	EnvRAMBudget       = "RUSTUP_RAM_BUDGET"
	EnvRecursionCount  = "RUSTUP_RECURSION_COUNT"
	EnvAutoInstall     = "RUSTUP_AUTO_INSTALL"

	DefaultDistServer = "https://static.rust-lang.org"

	settingsFileName = "settings.toml"
)

// Settings is the persisted contents of $RUSTUP_HOME/settings.toml.
type Settings struct {
	Version          string            `toml:"version"`
	DefaultToolchain string            `toml:"default_toolchain,omitempty"`
	DefaultHostTriple string           `toml:"default_host_triple,omitempty"`
	Overrides        map[string]string `toml:"overrides,omitempty"` // directory path -> toolchain name
}

// Context is the process-wide configuration threaded down from main.
type Context struct {
	Home       string // RUSTUP_HOME, the metadata root
	DistServer string
}

// Load builds a Context from the environment, applying documented defaults.
func Load() (*Context, error) {
	home := os.Getenv(EnvHome)
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine user home directory: %w", err)
		}
		home = filepath.Join(dir, ".rustup")
	}
	server := os.Getenv(EnvDistServer)
	if server == "" {
		server = DefaultDistServer
	}
	return &Context{Home: home, DistServer: server}, nil
}

func (c *Context) settingsPath() string {
	return filepath.Join(c.Home, settingsFileName)
}

// LoadSettings reads settings.toml, returning a default Settings (Version
// "12", every other field empty) rather than an error if the file does not
// yet exist — a fresh RUSTUP_HOME has none.
func (c *Context) LoadSettings() (*Settings, error) {
	data, err := os.ReadFile(c.settingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{Version: "12"}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", c.settingsPath(), err)
	}
	var s Settings
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", c.settingsPath(), err)
	}
	if s.Overrides == nil {
		s.Overrides = map[string]string{}
	}
	return &s, nil
}

// SaveSettings writes settings.toml, creating RUSTUP_HOME if necessary.
func (c *Context) SaveSettings(s *Settings) error {
	if err := os.MkdirAll(c.Home, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", c.Home, err)
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(c.settingsPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.settingsPath(), err)
	}
	return nil
}

// ToolchainsDir is where each installed toolchain's prefix lives.
func (c *Context) ToolchainsDir() string {
	return filepath.Join(c.Home, "toolchains")
}

// UpdateHashesDir stores the last-seen manifest hash per toolchain, used by
// the dist resolver's update-hash short-circuit (spec.md §4.7).
func (c *Context) UpdateHashesDir() string {
	return filepath.Join(c.Home, "update-hashes")
}

// AutoInstallEnabled reports whether missing toolchains should be installed
// automatically on first use (spec.md §4.8), honoring the disabling env var.
func AutoInstallEnabled() bool {
	return os.Getenv(EnvAutoInstall) != "0" && os.Getenv(EnvAutoInstall) != "false"
}
