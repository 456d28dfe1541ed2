// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor manages installed daemons by name: install
// manifests under the services directory, spawn daemon processes
// detached with their output captured to a log file, stop them
// (protocol stop first, SIGTERM fallback), and probe their status.
//
// The supervisor never links daemon code. It only knows the
// conventions: <home>/services/<name>/ holds daemon.yaml (the install
// manifest), daemon.sock, daemon.sock.pid, and daemon.log.
package supervisor
