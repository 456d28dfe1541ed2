// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest describes how to launch one installed daemon. It lives at
// <home>/services/<name>/daemon.yaml.
type Manifest struct {
	// Binary is the absolute path of the daemon executable.
	Binary string `yaml:"binary"`

	// Args is the full argument list passed to the binary. Nothing is
	// implied; a daemon built on the shared command surface typically
	// lists "run" here.
	Args []string `yaml:"args,omitempty"`

	// Env entries are added to the inherited environment, KEY: VALUE.
	Env map[string]string `yaml:"env,omitempty"`

	// Description is shown in status listings.
	Description string `yaml:"description,omitempty"`
}

// Validate checks the manifest is launchable.
func (m Manifest) Validate() error {
	if m.Binary == "" {
		return errors.New("manifest has no binary path")
	}
	return nil
}

// loadManifest reads and validates the manifest at path. A missing
// file returns fs.ErrNotExist for the caller to classify.
func loadManifest(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	return manifest, nil
}

// writeManifest serializes the manifest to path.
func writeManifest(path string, manifest Manifest) error {
	raw, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// manifestExists reports whether a manifest file is present at path.
func manifestExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
