// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// homeEnv overrides the default base directory when set.
const homeEnv = "FGP_HOME"

// defaultHomeDir is the base directory name under the user's home.
const defaultHomeDir = ".fgp"

// Config holds runtime settings shared by the CLI, daemons, and the
// bridge. Domain daemons layer their own configuration on top; this
// covers only what the protocol runtime itself consumes.
type Config struct {
	// Home is the FGP base directory. Defaults to ~/.fgp.
	Home string `yaml:"home,omitempty"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level,omitempty"`
}

// Default returns the built-in configuration: home resolved from
// FGP_HOME or ~/.fgp, info-level logging.
func Default() (Config, error) {
	home, err := ResolveHome()
	if err != nil {
		return Config{}, err
	}
	return Config{Home: home, LogLevel: "info"}, nil
}

// Load returns the effective configuration: defaults overlaid with
// <home>/config.yaml when that file exists. A missing config file is
// not an error; a malformed one is.
func Load() (Config, error) {
	config, err := Default()
	if err != nil {
		return Config{}, err
	}

	path := filepath.Join(config.Home, "config.yaml")
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if config.Home == "" {
		// The file may legitimately omit home; restore the resolved
		// default rather than treating "" as a path.
		defaultConfig, _ := Default()
		config.Home = defaultConfig.Home
	}
	if err := validateLevel(config.LogLevel); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

// ResolveHome returns the FGP base directory: $FGP_HOME when set,
// otherwise ~/.fgp.
func ResolveHome() (string, error) {
	if override := os.Getenv(homeEnv); override != "" {
		return override, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving user home directory: %w", err)
	}
	return filepath.Join(userHome, defaultHomeDir), nil
}

// ServicesDir returns the directory that holds one subdirectory per
// installed daemon.
func (c Config) ServicesDir() string {
	return filepath.Join(c.Home, "services")
}

// ServiceDir returns the directory owned by the named daemon.
func (c Config) ServiceDir(name string) string {
	return filepath.Join(c.ServicesDir(), name)
}

// SocketPath returns the conventional socket path for the named
// daemon: <home>/services/<name>/daemon.sock.
func (c Config) SocketPath(name string) string {
	return filepath.Join(c.ServiceDir(name), "daemon.sock")
}

// ManifestPath returns the install manifest path for the named daemon.
func (c Config) ManifestPath(name string) string {
	return filepath.Join(c.ServiceDir(name), "daemon.yaml")
}

// LogPath returns the captured-output log file for the named daemon.
func (c Config) LogPath(name string) string {
	return filepath.Join(c.ServiceDir(name), "daemon.log")
}

// SlogLevel converts the configured log level string to a slog.Level.
// Unknown values fall back to info; Load has already validated the
// value for file-sourced configs.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidateServiceName rejects daemon names that would escape the
// services directory or collide with path syntax. Names are a single
// path component of letters, digits, dash, and underscore.
func ValidateServiceName(name string) error {
	if name == "" {
		return errors.New("daemon name is empty")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("invalid daemon name %q: only letters, digits, '-' and '_' are allowed", name)
		}
	}
	return nil
}

func validateLevel(level string) error {
	switch strings.ToLower(level) {
	case "", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
}
