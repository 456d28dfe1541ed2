// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides small test helpers shared across FGP
// packages: channel operations with timeout safety valves so a broken
// synchronization path fails the test instead of hanging the run.
package testutil
