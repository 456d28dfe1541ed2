// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for FGP components
// and the filesystem conventions shared by every daemon.
//
// The base directory (the "FGP home") defaults to ~/.fgp and can be
// overridden with the FGP_HOME environment variable. Each installed
// daemon owns one subdirectory:
//
//	<home>/services/<name>/daemon.yaml   install manifest
//	<home>/services/<name>/daemon.sock   listening socket
//	<home>/services/<name>/daemon.sock.pid   runtime metadata
//	<home>/services/<name>/daemon.log    captured stdout/stderr
//
// An optional YAML config file at <home>/config.yaml adjusts runtime
// defaults (log verbosity). There is no discovery chain beyond that
// single path: deterministic configuration with no hidden overrides.
package config
