// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveHomeHonorsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(homeEnv, dir)

	home, err := ResolveHome()
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if home != dir {
		t.Errorf("home = %q, want %q", home, dir)
	}
}

func TestResolveHomeDefault(t *testing.T) {
	t.Setenv(homeEnv, "")

	home, err := ResolveHome()
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	userHome, _ := os.UserHomeDir()
	if home != filepath.Join(userHome, defaultHomeDir) {
		t.Errorf("home = %q, want ~/%s", home, defaultHomeDir)
	}
}

func TestPathConventions(t *testing.T) {
	c := Config{Home: "/srv/fgp"}

	if got := c.SocketPath("browser"); got != "/srv/fgp/services/browser/daemon.sock" {
		t.Errorf("SocketPath = %q", got)
	}
	if got := c.ManifestPath("browser"); got != "/srv/fgp/services/browser/daemon.yaml" {
		t.Errorf("ManifestPath = %q", got)
	}
	if got := c.LogPath("browser"); got != "/srv/fgp/services/browser/daemon.log" {
		t.Errorf("LogPath = %q", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(homeEnv, dir)

	config, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.Home != dir {
		t.Errorf("Home = %q, want %q", config.Home, dir)
	}
	if config.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel = %v, want info", config.SlogLevel())
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(homeEnv, dir)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log_level: debug\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	config, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel = %v, want debug", config.SlogLevel())
	}
	if config.Home != dir {
		t.Errorf("Home = %q, want %q (file omitted home)", config.Home, dir)
	}
}

func TestLoadRejectsBadLevel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(homeEnv, dir)
	os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log_level: chatty\n"), 0o644)

	if _, err := Load(); err == nil {
		t.Error("Load accepted an unknown log level")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(homeEnv, dir)
	os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log_level: [unclosed\n"), 0o644)

	if _, err := Load(); err == nil {
		t.Error("Load accepted malformed YAML")
	}
}

func TestValidateServiceName(t *testing.T) {
	valid := []string{"browser", "apple-calendar", "kv_store", "A1"}
	for _, name := range valid {
		if err := ValidateServiceName(name); err != nil {
			t.Errorf("ValidateServiceName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "a/b", "..", "name with space", "dot.name"}
	for _, name := range invalid {
		if err := ValidateServiceName(name); err == nil {
			t.Errorf("ValidateServiceName(%q) = nil, want error", name)
		}
	}
}
